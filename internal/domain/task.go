package domain

import (
	"time"
)

// TaskStatus 任务状态（后端存储状态只有 TODO 和 DONE）
type TaskStatus string

const (
	TaskTodo TaskStatus = "TODO"
	TaskDone TaskStatus = "DONE"
)

// Task 护士工作任务（由医疗卡的服务处方生成）
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`

	// 计划时间与截止时间（ISO 字符串，后端格式不统一，解析时做容错）
	Datetime string `json:"datetime"`
	DueDate  string `json:"due_date"`

	// 完成/更新时间戳（用于 DONE_TODAY 投影）
	CompletedAt string `json:"completed_at"`
	UpdatedAt   string `json:"updated_at"`

	AssignedNurse Reference `json:"assigned_nurse"`
	Service       Reference `json:"service"`
	MedicalCard   Reference `json:"medical_card"`
	Schedule      Reference `json:"schedule"`
	Pet           Reference `json:"pet"`
}

// timeLayouts 后端返回的时间格式（按尝试顺序）
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime 容错解析后端时间字符串，失败返回 (zero, false)
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SameLocalDay a 和 b 在 loc 时区下是否同一天
func SameLocalDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ScheduledTime 任务的计划时间
// datetime 和 due_date 都存在时 datetime 优先（见 DESIGN.md 的决定）
func (t *Task) ScheduledTime() (time.Time, bool) {
	if ts, ok := ParseTime(t.Datetime); ok {
		return ts, true
	}
	return ParseTime(t.DueDate)
}

// ScheduledToday 任务是否计划在今天（loc 时区的自然日）
// 只用于完成门控，不用于分桶
func (t *Task) ScheduledToday(now time.Time, loc *time.Location) bool {
	ts, ok := t.ScheduledTime()
	if !ok {
		return false
	}
	return SameLocalDay(ts, now, loc)
}

// CompletionTime 任务的完成时间（completed_at 优先，缺失时退回 updated_at）
func (t *Task) CompletionTime() (time.Time, bool) {
	if ts, ok := ParseTime(t.CompletedAt); ok {
		return ts, true
	}
	return ParseTime(t.UpdatedAt)
}

// PetRef 任务关联的宠物引用
// 直接的 pet 字段优先，缺失时尝试 medical_card 内嵌对象里的 pet
func (t *Task) PetRef() Reference {
	if t.Pet.Present() {
		return t.Pet
	}
	if nested := t.MedicalCard.EmbeddedRef("pet"); nested.Present() {
		return nested
	}
	return Reference{}
}
