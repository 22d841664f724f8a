package domain

// CardStatus 医疗卡状态
// 后端历史上对部分状态有两种写法（WAITING_FOR_PAYMENT/WAITING、FULLY_PAID/PAID），
// 判断时两种都认
type CardStatus string

const (
	CardOpen              CardStatus = "OPEN"
	CardWaitingForPayment CardStatus = "WAITING_FOR_PAYMENT"
	CardWaiting           CardStatus = "WAITING"
	CardPartlyPaid        CardStatus = "PARTLY_PAID"
	CardFullyPaid         CardStatus = "FULLY_PAID"
	CardPaid              CardStatus = "PAID"
	CardClosed            CardStatus = "CLOSED"
)

// BookingType 住院预订模式
type BookingType string

const (
	BookingDaily  BookingType = "DAILY"
	BookingHourly BookingType = "HOURLY"
)

// MedicalCard 就诊/住院记录
type MedicalCard struct {
	ID        int64      `json:"id"`
	Status    CardStatus `json:"status"`
	Diagnosis string     `json:"diagnosis"`
	TotalFee  float64    `json:"total_fee"`

	Client        Reference `json:"client"`
	Pet           Reference `json:"pet"`
	Doctor        Reference `json:"doctor"`
	AssignedNurse Reference `json:"assigned_nurse"`

	// 住院字段：stationary_room 存在时 DAILY 对或 HOURLY 对恰好填一对
	StationaryRoom *string      `json:"stationary_room"`
	BookingType    *BookingType `json:"booking_type"`
	StayStart      *string      `json:"stay_start"`
	StayEnd        *string      `json:"stay_end"`
	HourlyStart    *string      `json:"hourly_start"`
	HourlyEnd      *string      `json:"hourly_end"`

	ServiceUsages  []ServiceUsage  `json:"service_usages"`
	MedicineUsages []MedicineUsage `json:"medicine_usages"`
	FeedUsages     []FeedUsage     `json:"feed_usages"`
	Attachments    []Attachment    `json:"attachments"`
}

// Editable 卡片是否还允许编辑用量
// CLOSED 或已全额支付后服务端拒绝写入，客户端不再提供编辑入口
func (c *MedicalCard) Editable() bool {
	switch c.Status {
	case CardOpen, CardWaitingForPayment, CardWaiting, CardPartlyPaid:
		return true
	default:
		return false
	}
}

// Attachment 医疗卡附件
type Attachment struct {
	ID       int64  `json:"id"`
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
	FileType string `json:"file_type"`
}

// ServiceUsage 服务用量行（独立可寻址的 REST 资源，外键归属一张医疗卡）
type ServiceUsage struct {
	ID          int64     `json:"id"`
	MedicalCard Reference `json:"medical_card"`
	Service     Reference `json:"service"`
	// 创建时落盘的名称快照，目录条目改名后历史仍可读
	ServiceName string  `json:"service_name"`
	Quantity    int     `json:"quantity"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
}

// MedicineUsage 药品用量行
type MedicineUsage struct {
	ID           int64     `json:"id"`
	MedicalCard  Reference `json:"medical_card"`
	Medicine     Reference `json:"medicine"`
	MedicineName string    `json:"medicine_name"`
	Quantity     int       `json:"quantity"`
	Dosage       string    `json:"dosage"`
	Price        float64   `json:"price"`
}

// FeedUsage 饲料用量行（住院期间喂食记录）
type FeedUsage struct {
	ID          int64     `json:"id"`
	MedicalCard Reference `json:"medical_card"`
	Feed        Reference `json:"feed"`
	FeedName    string    `json:"feed_name"`
	Quantity    int       `json:"quantity"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
}
