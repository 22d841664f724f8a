package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EntityKind 实体类型（用于名称解析与显示）
type EntityKind string

const (
	KindPet      EntityKind = "pet"
	KindSchedule EntityKind = "schedule"
	KindService  EntityKind = "service"
	KindMedicine EntityKind = "medicine"
	KindFeed     EntityKind = "feed"
	KindDoctor   EntityKind = "doctor"
	KindClient   EntityKind = "client"
)

// kindLabels 各实体类型的显示标签（与前端俄语界面一致）
var kindLabels = map[EntityKind]string{
	KindPet:      "Питомец",
	KindSchedule: "Расписание",
	KindService:  "Услуга",
	KindMedicine: "Медикамент",
	KindFeed:     "Корм",
	KindDoctor:   "Врач",
	KindClient:   "Клиент",
}

// Label 实体类型的显示标签
func (k EntityKind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

// FallbackLabel 无法解析名称时的占位标签，如 "Питомец #42"
func (k EntityKind) FallbackLabel(id int64) string {
	return fmt.Sprintf("%s #%d", k.Label(), id)
}

// RefKind 引用的归一化形态
type RefKind int

const (
	// RefAbsent 字段缺失或为 null
	RefAbsent RefKind = iota
	// RefID 只有一个裸 ID（数字或数字字符串）
	RefID
	// RefEmbedded 内嵌的（可能不完整的）实体对象
	RefEmbedded
)

// Reference 对后端返回的实体引用做一次性归一化
// 后端对同一字段可能返回裸 ID、数字字符串或内嵌对象，
// 归一化在反序列化边界完成，后续代码不再做形态判断
type Reference struct {
	Kind   RefKind
	ID     int64
	Fields map[string]any // Kind == RefEmbedded 时的原始字段
}

// nameFields 内嵌对象中按优先级尝试的名称字段
var nameFields = []string{"name", "nickname", "title", "service_name", "medicine_name", "pet_name", "full_name"}

// UnmarshalJSON 接受 null、数字、数字字符串或对象
func (r *Reference) UnmarshalJSON(data []byte) error {
	*r = Reference{}

	if string(data) == "null" {
		return nil
	}

	// 裸数字 ID
	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		r.Kind = RefID
		r.ID = id
		return nil
	}

	// 数字字符串 ID
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("reference string is not an id: %q", s)
		}
		r.Kind = RefID
		r.ID = parsed
		return nil
	}

	// 内嵌对象
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("unsupported reference shape: %w", err)
	}
	r.Kind = RefEmbedded
	r.Fields = fields
	r.ID = extractID(fields)
	return nil
}

// MarshalJSON 引用序列化为裸 ID（发送给后端时只需要 ID）
func (r Reference) MarshalJSON() ([]byte, error) {
	if r.Kind == RefAbsent {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// Present 引用是否存在
func (r Reference) Present() bool {
	return r.Kind != RefAbsent
}

// EmbeddedName 尝试从内嵌对象中取出名称，按 nameFields 优先级
// 裸 ID 引用没有内嵌名称，返回 ("", false)
func (r Reference) EmbeddedName() (string, bool) {
	if r.Kind != RefEmbedded {
		return "", false
	}
	return ExtractName(r.Fields)
}

// EmbeddedRef 取出内嵌对象中的下级引用（如 medical_card 里的 pet）
func (r Reference) EmbeddedRef(field string) Reference {
	if r.Kind != RefEmbedded {
		return Reference{}
	}
	raw, ok := r.Fields[field]
	if !ok || raw == nil {
		return Reference{}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return Reference{}
	}
	var ref Reference
	if err := ref.UnmarshalJSON(data); err != nil {
		return Reference{}
	}
	return ref
}

// ExtractName 从任意实体字段集合中取名称，按 nameFields 优先级
func ExtractName(fields map[string]any) (string, bool) {
	for _, f := range nameFields {
		if v, ok := fields[f]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// extractID 从实体字段集合中取数字 ID（"id" 可能是数字或字符串）
func extractID(fields map[string]any) int64 {
	raw, ok := fields["id"]
	if !ok {
		return 0
	}
	switch v := raw.(type) {
	case float64:
		return int64(v)
	case string:
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	case json.Number:
		if parsed, err := v.Int64(); err == nil {
			return parsed
		}
	}
	return 0
}
