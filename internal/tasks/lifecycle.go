package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"vetdesk-workflow/internal/domain"
)

// Bucket 任务看板分桶（读侧投影，不是存储状态）
type Bucket string

const (
	BucketTodo      Bucket = "TODO"
	BucketDoneToday Bucket = "DONE_TODAY"
	BucketDone      Bucket = "DONE"
)

// Origin 任务详情的打开来源（完成门控依据来源列表，而不是任务自身的日期）
type Origin string

const (
	OriginTodo      Origin = "todo"
	OriginDoneToday Origin = "done_today"
	OriginDone      Origin = "done"
)

// 完成门控的拒绝原因
var (
	ErrAlreadyDone       = errors.New("task is already done")
	ErrWrongOrigin       = errors.New("completion is only allowed from the todo list")
	ErrNotScheduledToday = errors.New("task is not scheduled for today")
	ErrUpdateInFlight    = errors.New("task update already in flight")
)

// gateMessages 门控拒绝原因对应的用户提示
var gateMessages = map[error]string{
	ErrAlreadyDone:       "Задача уже выполнена",
	ErrWrongOrigin:       "Завершать задачи можно только из списка текущих",
	ErrNotScheduledToday: "Задача не запланирована на сегодня",
	ErrUpdateInFlight:    "Задача уже обновляется",
}

// GateMessage 门控错误的用户提示；非门控错误返回 ("", false)
func GateMessage(err error) (string, bool) {
	for gateErr, msg := range gateMessages {
		if errors.Is(err, gateErr) {
			return msg, true
		}
	}
	return "", false
}

// Board 分桶后的任务看板
type Board struct {
	Todo      []domain.Task
	DoneToday []domain.Task
	Done      []domain.Task
}

// Classify 把任务列表切成三个互斥的桶
// status != DONE 的进 TODO；DONE 中完成时间落在今天（loc 自然日）的进
// DONE_TODAY，其余进 DONE。每个任务恰好落在一个桶里，每次刷新重新计算
func Classify(tasks []domain.Task, now time.Time, loc *time.Location) Board {
	board := Board{}
	for _, task := range tasks {
		if task.Status != domain.TaskDone {
			board.Todo = append(board.Todo, task)
			continue
		}
		if ts, ok := task.CompletionTime(); ok && domain.SameLocalDay(ts, now, loc) {
			board.DoneToday = append(board.DoneToday, task)
			continue
		}
		board.Done = append(board.Done, task)
	}
	return board
}

// Backend 生命周期管理器需要的后端能力（api.Client 满足该接口）
type Backend interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
	ListJSON(ctx context.Context, path string, query url.Values, out any) error
	PatchJSON(ctx context.Context, path string, body any, out any) error
}

// RefreshFunc 任务完成后触发的整体刷新（指标 + 列表）
type RefreshFunc func(ctx context.Context) error

// Manager 护士任务生命周期管理器
type Manager struct {
	backend Backend
	logger  *zap.Logger
	loc     *time.Location
	now     func() time.Time
	refresh RefreshFunc

	mu       sync.Mutex
	updating map[int64]struct{} // 在途的状态更新，同一任务不允许并发提交

	detailSeq atomic.Int64
}

// NewManager 创建任务生命周期管理器
// refresh 可为 nil；loc 为 nil 时使用本地时区
func NewManager(backend Backend, logger *zap.Logger, loc *time.Location, refresh RefreshFunc) *Manager {
	if loc == nil {
		loc = time.Local
	}
	return &Manager{
		backend:  backend,
		logger:   logger,
		loc:      loc,
		now:      time.Now,
		refresh:  refresh,
		updating: make(map[int64]struct{}),
	}
}

// ListForNurse 拉取护士的任务列表
// 后端的过滤参数名经历过变更，按 nurse_id -> nurse -> 全量 + 客户端过滤 依次回退
func (m *Manager) ListForNurse(ctx context.Context, nurseID int64) ([]domain.Task, error) {
	idStr := strconv.FormatInt(nurseID, 10)

	var tasks []domain.Task
	err := m.backend.ListJSON(ctx, "tasks/", url.Values{"nurse_id": {idStr}}, &tasks)
	if err == nil {
		return tasks, nil
	}
	m.logger.Warn("Task list query with nurse_id failed, retrying with nurse",
		zap.Error(err),
		zap.Int64("nurse_id", nurseID),
	)

	tasks = nil
	err = m.backend.ListJSON(ctx, "tasks/", url.Values{"nurse": {idStr}}, &tasks)
	if err == nil {
		return tasks, nil
	}
	m.logger.Warn("Task list query with nurse failed, falling back to unfiltered list",
		zap.Error(err),
		zap.Int64("nurse_id", nurseID),
	)

	tasks = nil
	if err := m.backend.ListJSON(ctx, "tasks/", nil, &tasks); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	filtered := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.AssignedNurse.Present() && task.AssignedNurse.ID == nurseID {
			filtered = append(filtered, task)
		}
	}
	return filtered, nil
}

// CheckGate 检查完成门控，返回第一个不满足的前置条件
// 顺序：已完成 > 来源列表 > 今日计划
func (m *Manager) CheckGate(task *domain.Task, origin Origin) error {
	if task.Status == domain.TaskDone {
		return ErrAlreadyDone
	}
	if origin != OriginTodo {
		return ErrWrongOrigin
	}
	if !task.ScheduledToday(m.now(), m.loc) {
		return ErrNotScheduledToday
	}
	return nil
}

// MarkDone 把任务标记为完成
// 所有前置条件通过后发 PATCH {status:"DONE"}，成功后触发整体刷新；
// 服务端拒绝时错误里带 detail 原文，本地状态不做乐观更新
func (m *Manager) MarkDone(ctx context.Context, task *domain.Task, origin Origin) error {
	if err := m.CheckGate(task, origin); err != nil {
		return err
	}

	// 同一任务不允许并发提交；其他任务不受影响
	m.mu.Lock()
	if _, inFlight := m.updating[task.ID]; inFlight {
		m.mu.Unlock()
		return ErrUpdateInFlight
	}
	m.updating[task.ID] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.updating, task.ID)
		m.mu.Unlock()
	}()

	path := fmt.Sprintf("tasks/%d/", task.ID)
	if err := m.backend.PatchJSON(ctx, path, map[string]any{"status": string(domain.TaskDone)}, nil); err != nil {
		m.logger.Error("Failed to mark task done",
			zap.Error(err),
			zap.Int64("task_id", task.ID),
		)
		return fmt.Errorf("failed to mark task %d done: %w", task.ID, err)
	}

	m.logger.Info("Task marked done", zap.Int64("task_id", task.ID))

	if m.refresh != nil {
		if err := m.refresh(ctx); err != nil {
			// 刷新失败不回滚完成操作，下一次读取会纠正
			m.logger.Warn("Post-completion refresh failed",
				zap.Error(err),
				zap.Int64("task_id", task.ID),
			)
		}
	}
	return nil
}

// LoadDetail 加载任务详情
// 返回的 stale 为 true 表示在本次加载期间又发起了新的详情请求，
// 调用方不得应用本次结果的 loading 副作用（丢弃过期响应）
func (m *Manager) LoadDetail(ctx context.Context, taskID int64) (task *domain.Task, stale bool, err error) {
	seq := m.detailSeq.Add(1)

	var loaded domain.Task
	err = m.backend.GetJSON(ctx, fmt.Sprintf("tasks/%d/", taskID), nil, &loaded)
	stale = m.detailSeq.Load() != seq
	if err != nil {
		return nil, stale, fmt.Errorf("failed to load task %d: %w", taskID, err)
	}
	return &loaded, stale, nil
}
