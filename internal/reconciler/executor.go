package reconciler

import (
	"context"

	"go.uber.org/zap"
)

// Backend 执行计划需要的后端能力（api.Client 满足该接口）
type Backend interface {
	PostJSON(ctx context.Context, path string, body any, out any) error
	PatchJSON(ctx context.Context, path string, body any, out any) error
	Delete(ctx context.Context, path string) error
}

// RowFailure 单行操作失败（不致命，逐条上报）
type RowFailure struct {
	Op  Operation
	Err error
}

// ExecReport 计划执行结果
// 行级失败被吞掉并逐条记录：用量是从属明细，单行失败不拖垮整次保存
type ExecReport struct {
	Succeeded int
	Failures  []RowFailure
	Skipped   []SkippedRow
}

// Executor 用量计划执行器
type Executor struct {
	backend Backend
	logger  *zap.Logger
}

// NewExecutor 创建执行器
func NewExecutor(backend Backend, logger *zap.Logger) *Executor {
	return &Executor{backend: backend, logger: logger}
}

// Execute 顺序执行一个集合的计划
// 同一集合的操作严格串行（同一张卡上的并发写会触发后端锁竞争），
// 任何一行失败都记录后继续下一行
func (e *Executor) Execute(ctx context.Context, plan Plan) ExecReport {
	report := ExecReport{Skipped: plan.Skipped}

	for _, op := range plan.Ops {
		var err error
		switch op.Kind {
		case OpDelete:
			err = e.backend.Delete(ctx, op.Path())
		case OpCreate:
			err = e.backend.PostJSON(ctx, op.Path(), op.Payload, nil)
		case OpUpdate:
			err = e.backend.PatchJSON(ctx, op.Path(), op.Payload, nil)
		}

		if err != nil {
			e.logger.Warn("Usage operation failed, continuing with remaining rows",
				zap.Error(err),
				zap.String("collection", op.Collection.Name),
				zap.String("op", op.Kind.String()),
				zap.String("path", op.Path()),
			)
			report.Failures = append(report.Failures, RowFailure{Op: op, Err: err})
			continue
		}
		report.Succeeded++
	}

	return report
}

// Merge 合并多个集合的执行结果
func (r ExecReport) Merge(other ExecReport) ExecReport {
	return ExecReport{
		Succeeded: r.Succeeded + other.Succeeded,
		Failures:  append(r.Failures, other.Failures...),
		Skipped:   append(r.Skipped, other.Skipped...),
	}
}
