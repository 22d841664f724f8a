package reconciler

import (
	"github.com/google/uuid"

	"vetdesk-workflow/internal/domain"
)

// Collection 用量集合的端点与字段描述
type Collection struct {
	Name        string // 日志用
	Path        string // REST 路径前缀，如 "service-usages/"
	RefField    string // 目录条目引用字段名
	NameField   string // 反规范化名称快照字段名
	DetailField string // 附加字段名：description 或 dosage
	// DetailRequired 为 true 时附加字段是创建的必填项（药品的剂量）
	DetailRequired bool
}

var (
	Services = Collection{
		Name:        "services",
		Path:        "service-usages/",
		RefField:    "service",
		NameField:   "service_name",
		DetailField: "description",
	}
	Medicines = Collection{
		Name:           "medicines",
		Path:           "medicine-usages/",
		RefField:       "medicine",
		NameField:      "medicine_name",
		DetailField:    "dosage",
		DetailRequired: true,
	}
	Feeds = Collection{
		Name:        "feeds",
		Path:        "feed-usages/",
		RefField:    "feed",
		NameField:   "feed_name",
		DetailField: "description",
	}
)

// Row 服务端用量行的统一投影（规划对比的基准）
type Row struct {
	ServerID int64
	RefID    int64 // 目录条目 id
	Quantity int
	Detail   string // description / dosage
	Name     string // 已落盘的名称快照
}

// DraftRow 编辑会话中的本地草稿行
// New/Dirty/Deleted 标记待发的操作；New 行没有服务端 id
type DraftRow struct {
	LocalID  string // 仅客户端使用的行键
	ServerID int64
	RefID    int64
	Quantity int
	Detail   string

	New     bool
	Dirty   bool
	Deleted bool
}

// NewDraftRow 新建一条空白草稿行
func NewDraftRow() DraftRow {
	return DraftRow{LocalID: uuid.NewString(), New: true}
}

// RowsFromServiceUsages 把服务端用量折叠成统一的 Row
func RowsFromServiceUsages(usages []domain.ServiceUsage) []Row {
	rows := make([]Row, 0, len(usages))
	for _, u := range usages {
		rows = append(rows, Row{
			ServerID: u.ID,
			RefID:    u.Service.ID,
			Quantity: u.Quantity,
			Detail:   u.Description,
			Name:     u.ServiceName,
		})
	}
	return rows
}

func RowsFromMedicineUsages(usages []domain.MedicineUsage) []Row {
	rows := make([]Row, 0, len(usages))
	for _, u := range usages {
		rows = append(rows, Row{
			ServerID: u.ID,
			RefID:    u.Medicine.ID,
			Quantity: u.Quantity,
			Detail:   u.Dosage,
			Name:     u.MedicineName,
		})
	}
	return rows
}

func RowsFromFeedUsages(usages []domain.FeedUsage) []Row {
	rows := make([]Row, 0, len(usages))
	for _, u := range usages {
		rows = append(rows, Row{
			ServerID: u.ID,
			RefID:    u.Feed.ID,
			Quantity: u.Quantity,
			Detail:   u.Description,
			Name:     u.FeedName,
		})
	}
	return rows
}

// HydrateDrafts 编辑会话开始时从服务端行生成草稿副本
func HydrateDrafts(rows []Row) []DraftRow {
	drafts := make([]DraftRow, 0, len(rows))
	for _, row := range rows {
		drafts = append(drafts, DraftRow{
			LocalID:  uuid.NewString(),
			ServerID: row.ServerID,
			RefID:    row.RefID,
			Quantity: row.Quantity,
			Detail:   row.Detail,
		})
	}
	return drafts
}
