package booking

import (
	"errors"

	"vetdesk-workflow/internal/domain"
)

// 校验失败原因（网络调用之前在客户端拦下）
var (
	ErrRoomRequired        = errors.New("stationary room is required")
	ErrStayRangeRequired   = errors.New("stay date range is required for daily booking")
	ErrHourlyRangeRequired = errors.New("hourly time range is required for hourly booking")
	ErrUnknownBookingType  = errors.New("unknown booking type")
)

// validationMessages 校验错误对应的用户提示
var validationMessages = map[error]string{
	ErrRoomRequired:        "Укажите палату стационара",
	ErrStayRangeRequired:   "Укажите даты начала и окончания пребывания",
	ErrHourlyRangeRequired: "Укажите время начала и окончания пребывания",
	ErrUnknownBookingType:  "Выберите тип размещения",
}

// ValidationMessage 校验错误的用户提示；非校验错误返回 ("", false)
func ValidationMessage(err error) (string, bool) {
	for valErr, msg := range validationMessages {
		if errors.Is(err, valErr) {
			return msg, true
		}
	}
	return "", false
}

// Form 住院预订表单状态
type Form struct {
	IsStationary bool
	Room         string
	BookingType  domain.BookingType

	StayStart   string // DAILY：日期区间
	StayEnd     string
	HourlyStart string // HOURLY：时间戳区间
	HourlyEnd   string
}

// stationaryFields 清空住院数据时需要显式置 null 的全部字段
// 后端把缺失字段当作"未变更"，清空必须发显式 null 而不是省略
var stationaryFields = []string{
	"stationary_room",
	"booking_type",
	"stay_start",
	"stay_end",
	"hourly_start",
	"hourly_end",
}

// BuildPatch 根据表单状态生成医疗卡住院字段的 patch
//
// hadBooking 为原记录是否已有住院数据：
//   - 关掉住院且原来有数据 -> 六个字段全部显式 null
//   - 关掉住院且原来没数据 -> 空 patch（不发字段）
//   - 开住院 -> 必填校验后按 booking_type 填一对区间，另一对显式置 null
func BuildPatch(form Form, hadBooking bool) (map[string]any, error) {
	patch := map[string]any{}

	if !form.IsStationary {
		if hadBooking {
			for _, field := range stationaryFields {
				patch[field] = nil
			}
		}
		return patch, nil
	}

	if form.Room == "" {
		return nil, ErrRoomRequired
	}

	switch form.BookingType {
	case domain.BookingDaily:
		if form.StayStart == "" || form.StayEnd == "" {
			return nil, ErrStayRangeRequired
		}
		patch["stationary_room"] = form.Room
		patch["booking_type"] = string(domain.BookingDaily)
		patch["stay_start"] = form.StayStart
		patch["stay_end"] = form.StayEnd
		patch["hourly_start"] = nil
		patch["hourly_end"] = nil

	case domain.BookingHourly:
		if form.HourlyStart == "" || form.HourlyEnd == "" {
			return nil, ErrHourlyRangeRequired
		}
		patch["stationary_room"] = form.Room
		patch["booking_type"] = string(domain.BookingHourly)
		patch["hourly_start"] = form.HourlyStart
		patch["hourly_end"] = form.HourlyEnd
		patch["stay_start"] = nil
		patch["stay_end"] = nil

	default:
		return nil, ErrUnknownBookingType
	}

	return patch, nil
}

// SwitchBookingType 切换预订模式并立即清空另一种模式的输入
// 切换时就清空而不是等保存，避免陈旧值被悄悄提交
func SwitchBookingType(form Form, to domain.BookingType) Form {
	form.BookingType = to
	switch to {
	case domain.BookingDaily:
		form.HourlyStart = ""
		form.HourlyEnd = ""
	case domain.BookingHourly:
		form.StayStart = ""
		form.StayEnd = ""
	}
	return form
}
