package reconciler

import (
	"fmt"

	"vetdesk-workflow/internal/domain"
)

// Catalog 目录价目表（创建/改引用时解析名称快照）
type Catalog interface {
	Entry(id int64) (domain.CatalogEntry, bool)
}

// MapCatalog 基于 map 的目录实现
type MapCatalog map[int64]domain.CatalogEntry

func (m MapCatalog) Entry(id int64) (domain.CatalogEntry, bool) {
	entry, ok := m[id]
	return entry, ok
}

// OpKind 计划操作类型
type OpKind int

const (
	OpDelete OpKind = iota
	OpCreate
	OpUpdate
)

func (k OpKind) String() string {
	switch k {
	case OpDelete:
		return "delete"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Operation 一条已决定要发的 REST 操作
type Operation struct {
	Kind       OpKind
	Collection Collection
	ServerID   int64          // delete/update 的目标资源
	LocalID    string         // create 来源的草稿行
	Payload    map[string]any // create 的完整体 / update 的稀疏 diff
}

// Path 操作对应的 REST 路径
func (op Operation) Path() string {
	if op.Kind == OpCreate {
		return op.Collection.Path
	}
	return fmt.Sprintf("%s%d/", op.Collection.Path, op.ServerID)
}

// SkippedRow 因必填项缺失而被整行丢弃的新行（不发任何请求）
type SkippedRow struct {
	LocalID string
	Reason  string
}

// Plan 一个集合的收敛计划，操作保持草稿行顺序
type Plan struct {
	Collection Collection
	Ops        []Operation
	Skipped    []SkippedRow
}

// BuildPlan 把草稿与服务端原始行的差异折算成最小操作序列（纯函数）
//
// 规则：
//   - deleted 且有服务端 id -> DELETE（执行时尽力而为）
//   - deleted 且是 new     -> 本地丢弃，零网络调用
//   - new                  -> 必填项（引用 + 数量，药品加剂量）齐备才 POST，
//     并带上从目录条目解析的名称快照
//   - dirty 且有服务端 id  -> 只 PATCH 发生变化的字段；引用变了时同步换名称快照
func BuildPlan(col Collection, cardID int64, original []Row, draft []DraftRow, catalog Catalog) Plan {
	plan := Plan{Collection: col}

	byServerID := make(map[int64]Row, len(original))
	for _, row := range original {
		byServerID[row.ServerID] = row
	}

	for _, row := range draft {
		switch {
		case row.Deleted && row.ServerID != 0:
			plan.Ops = append(plan.Ops, Operation{
				Kind:       OpDelete,
				Collection: col,
				ServerID:   row.ServerID,
			})

		case row.Deleted:
			// new + deleted：从未到过服务端，本地丢弃

		case row.New:
			if reason, ok := missingRequired(col, row); ok {
				plan.Skipped = append(plan.Skipped, SkippedRow{LocalID: row.LocalID, Reason: reason})
				continue
			}
			payload := map[string]any{
				"medical_card": cardID,
				col.RefField:   row.RefID,
				"quantity":     row.Quantity,
			}
			if row.Detail != "" {
				payload[col.DetailField] = row.Detail
			}
			// 保存时刻从目录解析名称快照，目录条目日后改名不影响历史可读性
			if entry, ok := catalog.Entry(row.RefID); ok {
				payload[col.NameField] = entry.Name
			}
			plan.Ops = append(plan.Ops, Operation{
				Kind:       OpCreate,
				Collection: col,
				LocalID:    row.LocalID,
				Payload:    payload,
			})

		case row.Dirty && row.ServerID != 0:
			base, known := byServerID[row.ServerID]
			payload := map[string]any{}
			if !known || base.Quantity != row.Quantity {
				payload["quantity"] = row.Quantity
			}
			if !known || base.Detail != row.Detail {
				payload[col.DetailField] = row.Detail
			}
			if !known || base.RefID != row.RefID {
				payload[col.RefField] = row.RefID
				if entry, ok := catalog.Entry(row.RefID); ok {
					payload[col.NameField] = entry.Name
				}
			}
			if len(payload) == 0 {
				// dirty 标记但实际没改：不发请求
				continue
			}
			plan.Ops = append(plan.Ops, Operation{
				Kind:       OpUpdate,
				Collection: col,
				ServerID:   row.ServerID,
				Payload:    payload,
			})
		}
	}

	return plan
}

// missingRequired 新行的必填项检查
func missingRequired(col Collection, row DraftRow) (string, bool) {
	if row.RefID == 0 {
		return "missing " + col.RefField, true
	}
	if row.Quantity <= 0 {
		return "missing quantity", true
	}
	if col.DetailRequired && row.Detail == "" {
		return "missing " + col.DetailField, true
	}
	return "", false
}
