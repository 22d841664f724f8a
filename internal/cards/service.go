package cards

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"go.uber.org/zap"

	"vetdesk-workflow/internal/booking"
	"vetdesk-workflow/internal/domain"
	"vetdesk-workflow/internal/reconciler"
)

// ErrNotEditable 卡片已结束（CLOSED 或已全额支付），客户端不再发起编辑
var ErrNotEditable = errors.New("medical card is no longer editable")

// Backend 卡片工作流需要的后端能力（api.Client 满足该接口）
type Backend interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
	ListJSON(ctx context.Context, path string, query url.Values, out any) error
	PostJSON(ctx context.Context, path string, body any, out any) error
	PatchJSON(ctx context.Context, path string, body any, out any) error
	Delete(ctx context.Context, path string) error
	UploadAttachment(ctx context.Context, cardID int64, fileName, fileType string, file io.Reader, out any) error
}

// Service 医生端医疗卡编辑工作流
type Service struct {
	backend  Backend
	logger   *zap.Logger
	executor *reconciler.Executor
}

// NewService 创建卡片工作流服务
func NewService(backend Backend, logger *zap.Logger) *Service {
	return &Service{
		backend:  backend,
		logger:   logger,
		executor: reconciler.NewExecutor(backend, logger),
	}
}

// LoadCard 加载单张医疗卡（编辑会话的起点）
func (s *Service) LoadCard(ctx context.Context, cardID int64) (*domain.MedicalCard, error) {
	var card domain.MedicalCard
	if err := s.backend.GetJSON(ctx, fmt.Sprintf("medical-cards/%d/", cardID), nil, &card); err != nil {
		return nil, fmt.Errorf("failed to load medical card %d: %w", cardID, err)
	}
	return &card, nil
}

// ListCards 拉取医疗卡列表
func (s *Service) ListCards(ctx context.Context, query url.Values) ([]domain.MedicalCard, error) {
	var cardList []domain.MedicalCard
	if err := s.backend.ListJSON(ctx, "medical-cards/", query, &cardList); err != nil {
		return nil, fmt.Errorf("failed to list medical cards: %w", err)
	}
	return cardList, nil
}

// LoadCatalog 拉取目录价目表（services/ medicines/ feeds/）
func (s *Service) LoadCatalog(ctx context.Context, path string) (reconciler.MapCatalog, error) {
	var entries []domain.CatalogEntry
	if err := s.backend.ListJSON(ctx, path, nil, &entries); err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	catalog := make(reconciler.MapCatalog, len(entries))
	for _, entry := range entries {
		catalog[entry.ID] = entry
	}
	return catalog, nil
}

// AttachmentUpload 待上传的附件
type AttachmentUpload struct {
	FileName string
	FileType string
	Content  io.Reader
}

// AttachmentFailure 单个附件上传失败（不致命，但逐个对用户可见）
type AttachmentFailure struct {
	FileName string
	Err      error
}

// SaveRequest 保存一次编辑会话的全部输入
type SaveRequest struct {
	// Card 编辑会话开始时取到的服务端卡片（对比基准）
	Card *domain.MedicalCard

	// CardPatch 卡片自身字段的稀疏 diff（诊断、护士等），住院字段由 Booking 生成
	CardPatch map[string]any

	Booking booking.Form

	ServiceDrafts  []reconciler.DraftRow
	MedicineDrafts []reconciler.DraftRow
	FeedDrafts     []reconciler.DraftRow

	ServiceCatalog  reconciler.Catalog
	MedicineCatalog reconciler.Catalog
	FeedCatalog     reconciler.Catalog

	Attachments []AttachmentUpload
}

// SaveResult 保存结果
// 整体成败只取决于卡片 patch；用量行和附件的失败是从属信息
type SaveResult struct {
	Card               *domain.MedicalCard
	Usages             reconciler.ExecReport
	Uploaded           []domain.Attachment
	AttachmentFailures []AttachmentFailure
	RefreshedCards     []domain.MedicalCard
}

// Save 持久化一次编辑会话
//
// 顺序：校验 -> PATCH 卡片（失败则整体失败）-> 按固定顺序串行收敛三个
// 用量集合（行级失败吞掉）-> 逐个上传附件（单个失败不阻塞其余）->
// 从服务端重取卡片列表（不信任本地合并结果）
func (s *Service) Save(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	if req.Card == nil {
		return nil, errors.New("save requires the original card")
	}
	if !req.Card.Editable() {
		return nil, ErrNotEditable
	}

	// 1. 住院字段校验与 patch 组装（任何网络调用之前）
	bookingPatch, err := booking.BuildPatch(req.Booking, hadBooking(req.Card))
	if err != nil {
		return nil, err
	}
	patch := make(map[string]any, len(req.CardPatch)+len(bookingPatch))
	for k, v := range req.CardPatch {
		patch[k] = v
	}
	for k, v := range bookingPatch {
		patch[k] = v
	}

	result := &SaveResult{}

	// 2. 卡片 patch：这是唯一致命的写操作
	if len(patch) > 0 {
		var updated domain.MedicalCard
		if err := s.backend.PatchJSON(ctx, fmt.Sprintf("medical-cards/%d/", req.Card.ID), patch, &updated); err != nil {
			s.logger.Error("Medical card patch failed",
				zap.Error(err),
				zap.Int64("card_id", req.Card.ID),
			)
			return nil, fmt.Errorf("failed to patch medical card %d: %w", req.Card.ID, err)
		}
		result.Card = &updated
	} else {
		result.Card = req.Card
	}

	// 3. 用量收敛：集合间固定顺序，集合内严格串行
	collections := []struct {
		col      reconciler.Collection
		original []reconciler.Row
		draft    []reconciler.DraftRow
		catalog  reconciler.Catalog
	}{
		{reconciler.Services, reconciler.RowsFromServiceUsages(req.Card.ServiceUsages), req.ServiceDrafts, req.ServiceCatalog},
		{reconciler.Medicines, reconciler.RowsFromMedicineUsages(req.Card.MedicineUsages), req.MedicineDrafts, req.MedicineCatalog},
		{reconciler.Feeds, reconciler.RowsFromFeedUsages(req.Card.FeedUsages), req.FeedDrafts, req.FeedCatalog},
	}
	for _, c := range collections {
		if c.draft == nil {
			continue
		}
		catalog := c.catalog
		if catalog == nil {
			catalog = reconciler.MapCatalog{}
		}
		plan := reconciler.BuildPlan(c.col, req.Card.ID, c.original, c.draft, catalog)
		report := s.executor.Execute(ctx, plan)
		result.Usages = result.Usages.Merge(report)
	}

	// 4. 附件：一个请求一个文件，失败逐个上报
	for _, upload := range req.Attachments {
		var created []domain.Attachment
		err := s.backend.UploadAttachment(ctx, req.Card.ID, upload.FileName, upload.FileType, upload.Content, &created)
		if err != nil {
			s.logger.Warn("Attachment upload failed",
				zap.Error(err),
				zap.Int64("card_id", req.Card.ID),
				zap.String("file_name", upload.FileName),
			)
			result.AttachmentFailures = append(result.AttachmentFailures, AttachmentFailure{
				FileName: upload.FileName,
				Err:      err,
			})
			continue
		}
		result.Uploaded = append(result.Uploaded, created...)
	}

	// 5. 刷新：用量和附件以服务端状态为准
	refreshed, err := s.ListCards(ctx, nil)
	if err != nil {
		// 保存本身已经成功，刷新失败只记录
		s.logger.Warn("Card list refresh after save failed", zap.Error(err))
	} else {
		result.RefreshedCards = refreshed
	}

	return result, nil
}

// hadBooking 原记录是否已有住院数据
func hadBooking(card *domain.MedicalCard) bool {
	return card.StationaryRoom != nil ||
		card.BookingType != nil ||
		card.StayStart != nil ||
		card.StayEnd != nil ||
		card.HourlyStart != nil ||
		card.HourlyEnd != nil
}
