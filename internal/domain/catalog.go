package domain

// CatalogEntry 目录条目（服务/药品/饲料价目表中的一项）
// 用量行创建时从选中的目录条目解析名称快照
type CatalogEntry struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Pet 宠物档案（名称解析用的最小投影）
type Pet struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Species  string `json:"species"`
}

// DisplayName 宠物显示名（name 优先，退回 nickname）
func (p *Pet) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Nickname
}

// Schedule 预约排期（任务缺少直接 pet 引用时经由排期间接解析）
// 后端对宠物字段的形态不稳定：pet / pet_id / animal / animal_id 都可能出现
type Schedule struct {
	ID     int64     `json:"id"`
	Pet    Reference `json:"pet"`
	PetID  int64     `json:"pet_id"`
	Animal Reference `json:"animal"`
	// 部分历史响应用 animal_id
	AnimalID int64 `json:"animal_id"`
}

// PetRef 从排期中取宠物引用，按 pet > pet_id > animal > animal_id 的顺序
func (s *Schedule) PetRef() Reference {
	if s.Pet.Present() {
		return s.Pet
	}
	if s.PetID != 0 {
		return Reference{Kind: RefID, ID: s.PetID}
	}
	if s.Animal.Present() {
		return s.Animal
	}
	if s.AnimalID != 0 {
		return Reference{Kind: RefID, ID: s.AnimalID}
	}
	return Reference{}
}
