package cards

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vetdesk-workflow/internal/api"
	"vetdesk-workflow/internal/booking"
	"vetdesk-workflow/internal/config"
	"vetdesk-workflow/internal/domain"
	"vetdesk-workflow/internal/reconciler"
)

// recordingHandler 记录请求序列的测试后端
type recordingHandler struct {
	mu     sync.Mutex
	calls  []string          // "METHOD path"
	bodies map[string]string // "METHOD path" -> 最后一次请求体
	status map[string]int    // "METHOD path" -> 强制返回的状态码
	reply  map[string]string // "METHOD path" -> 响应体
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		bodies: make(map[string]string),
		status: make(map[string]int),
		reply:  make(map[string]string),
	}
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
	}

	h.mu.Lock()
	h.calls = append(h.calls, key)
	h.bodies[key] = string(body)
	status := h.status[key]
	reply := h.reply[key]
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	if reply == "" {
		reply = `{}`
	}
	w.Write([]byte(reply))
}

func (h *recordingHandler) callList() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func newTestService(t *testing.T, handler http.Handler) (*Service, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := api.NewClient(config.APIConfig{BaseURL: srv.URL, TimeoutSeconds: 5}, zap.NewNop())
	return NewService(client, zap.NewNop()), srv
}

func editableCard() *domain.MedicalCard {
	return &domain.MedicalCard{
		ID:     10,
		Status: domain.CardWaitingForPayment,
		ServiceUsages: []domain.ServiceUsage{
			{ID: 1, Service: domain.Reference{Kind: domain.RefID, ID: 12}, Quantity: 2, ServiceName: "УЗИ"},
			{ID: 2, Service: domain.Reference{Kind: domain.RefID, ID: 5}, Quantity: 1, ServiceName: "Рентген"},
		},
	}
}

func TestSave_HappyPathOrderAndPayloads(t *testing.T) {
	handler := newRecordingHandler()
	handler.reply["PATCH /medical-cards/10/"] = `{"id":10,"status":"WAITING_FOR_PAYMENT","diagnosis":"отит"}`
	handler.reply["POST /medical-cards/10/attachments/"] = `[{"id":71,"file_name":"blood.pdf"}]`
	handler.reply["GET /medical-cards/"] = `{"count":1,"results":[{"id":10,"status":"WAITING_FOR_PAYMENT"}]}`

	svc, _ := newTestService(t, handler)

	card := editableCard()
	drafts := []reconciler.DraftRow{
		{LocalID: "a", ServerID: 1, RefID: 12, Quantity: 2},
		{LocalID: "b", ServerID: 2, RefID: 5, Quantity: 1, Deleted: true},
		{LocalID: "c", New: true, RefID: 5, Quantity: 3},
	}
	catalog := reconciler.MapCatalog{5: {ID: 5, Name: "Рентген"}}

	result, err := svc.Save(context.Background(), SaveRequest{
		Card:      card,
		CardPatch: map[string]any{"diagnosis": "отит"},
		Booking: booking.Form{
			IsStationary: true,
			Room:         "Палата 3",
			BookingType:  domain.BookingDaily,
			StayStart:    "2025-03-10",
			StayEnd:      "2025-03-14",
		},
		ServiceDrafts:  drafts,
		ServiceCatalog: catalog,
		Attachments: []AttachmentUpload{
			{FileName: "blood.pdf", FileType: "analysis", Content: strings.NewReader("pdf")},
		},
	})
	require.NoError(t, err)

	// 卡片 patch 先行，用量按行顺序串行，附件随后，最后刷新
	assert.Equal(t, []string{
		"PATCH /medical-cards/10/",
		"DELETE /service-usages/2/",
		"POST /service-usages/",
		"POST /medical-cards/10/attachments/",
		"GET /medical-cards/",
	}, handler.callList())

	// 卡片 patch 带稀疏 diff + 住院字段，未用到的 HOURLY 对是显式 null
	var patchBody map[string]any
	require.NoError(t, json.Unmarshal([]byte(handler.bodies["PATCH /medical-cards/10/"]), &patchBody))
	assert.Equal(t, "отит", patchBody["diagnosis"])
	assert.Equal(t, "DAILY", patchBody["booking_type"])
	require.Contains(t, patchBody, "hourly_start")
	assert.Nil(t, patchBody["hourly_start"])

	// 新行带目录名称快照
	var createBody map[string]any
	require.NoError(t, json.Unmarshal([]byte(handler.bodies["POST /service-usages/"]), &createBody))
	assert.Equal(t, "Рентген", createBody["service_name"])

	assert.Equal(t, 2, result.Usages.Succeeded)
	assert.Empty(t, result.Usages.Failures)
	require.Len(t, result.Uploaded, 1)
	assert.Equal(t, "blood.pdf", result.Uploaded[0].FileName)
	require.Len(t, result.RefreshedCards, 1)
	assert.Equal(t, "отит", result.Card.Diagnosis)
}

func TestSave_CardPatchFailureIsFatal(t *testing.T) {
	handler := newRecordingHandler()
	handler.status["PATCH /medical-cards/10/"] = http.StatusBadRequest
	handler.reply["PATCH /medical-cards/10/"] = `{"detail":"Карта закрыта для изменений"}`

	svc, _ := newTestService(t, handler)

	_, err := svc.Save(context.Background(), SaveRequest{
		Card:      editableCard(),
		CardPatch: map[string]any{"diagnosis": "отит"},
		ServiceDrafts: []reconciler.DraftRow{
			{LocalID: "c", New: true, RefID: 5, Quantity: 3},
		},
		ServiceCatalog: reconciler.MapCatalog{},
	})
	require.Error(t, err)

	// detail 原文透传给用户
	apiErr, ok := api.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "Карта закрыта для изменений", apiErr.UserMessage())

	// 卡片 patch 失败后不再碰用量、附件和刷新
	assert.Equal(t, []string{"PATCH /medical-cards/10/"}, handler.callList())
}

func TestSave_RowFailureDoesNotFailSave(t *testing.T) {
	handler := newRecordingHandler()
	handler.reply["PATCH /medical-cards/10/"] = `{"id":10,"status":"WAITING_FOR_PAYMENT"}`
	handler.status["DELETE /service-usages/2/"] = http.StatusNotFound
	handler.reply["GET /medical-cards/"] = `[]`

	svc, _ := newTestService(t, handler)

	result, err := svc.Save(context.Background(), SaveRequest{
		Card:      editableCard(),
		CardPatch: map[string]any{"diagnosis": "отит"},
		ServiceDrafts: []reconciler.DraftRow{
			{LocalID: "b", ServerID: 2, RefID: 5, Quantity: 1, Deleted: true},
			{LocalID: "c", New: true, RefID: 5, Quantity: 3},
		},
		ServiceCatalog: reconciler.MapCatalog{5: {ID: 5, Name: "Рентген"}},
	})
	// 行级失败不影响整体保存结果
	require.NoError(t, err)
	assert.Equal(t, 1, result.Usages.Succeeded)
	require.Len(t, result.Usages.Failures, 1)
	assert.Equal(t, reconciler.OpDelete, result.Usages.Failures[0].Op.Kind)
}

func TestSave_AttachmentFailuresAreIndividuallyVisible(t *testing.T) {
	handler := newRecordingHandler()
	handler.reply["PATCH /medical-cards/10/"] = `{"id":10}`
	handler.reply["GET /medical-cards/"] = `[]`
	// 附件端点：第一次调用失败，第二次放行
	var attachmentCalls int
	wrapped := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/medical-cards/10/attachments/" {
			attachmentCalls++
			if attachmentCalls == 1 {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				w.Write([]byte(`{"detail":"Файл слишком большой"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"id":72,"file_name":"xray.png"}]`))
			return
		}
		handler.ServeHTTP(w, r)
	})

	svc, _ := newTestService(t, wrapped)

	result, err := svc.Save(context.Background(), SaveRequest{
		Card: editableCard(),
		Attachments: []AttachmentUpload{
			{FileName: "huge.mov", FileType: "video", Content: strings.NewReader("x")},
			{FileName: "xray.png", FileType: "image", Content: strings.NewReader("y")},
		},
	})
	require.NoError(t, err)

	// 坏文件不阻塞好文件
	assert.Equal(t, 2, attachmentCalls)
	require.Len(t, result.AttachmentFailures, 1)
	assert.Equal(t, "huge.mov", result.AttachmentFailures[0].FileName)
	require.Len(t, result.Uploaded, 1)
	assert.Equal(t, "xray.png", result.Uploaded[0].FileName)
}

func TestSave_NotEditableShortCircuits(t *testing.T) {
	handler := newRecordingHandler()
	svc, _ := newTestService(t, handler)

	closed := &domain.MedicalCard{ID: 10, Status: domain.CardClosed}
	_, err := svc.Save(context.Background(), SaveRequest{Card: closed})
	require.ErrorIs(t, err, ErrNotEditable)
	assert.Empty(t, handler.callList())
}

func TestSave_BookingValidationBeforeAnyNetworkCall(t *testing.T) {
	handler := newRecordingHandler()
	svc, _ := newTestService(t, handler)

	_, err := svc.Save(context.Background(), SaveRequest{
		Card: editableCard(),
		Booking: booking.Form{
			IsStationary: true,
			BookingType:  domain.BookingDaily,
			// Room 缺失
		},
	})
	require.ErrorIs(t, err, booking.ErrRoomRequired)
	assert.Empty(t, handler.callList())
}

func TestLoadCatalog(t *testing.T) {
	handler := newRecordingHandler()
	handler.reply["GET /services/"] = `{"count":2,"results":[{"id":5,"name":"Рентген","price":1200},{"id":12,"name":"УЗИ","price":900}]}`

	svc, _ := newTestService(t, handler)

	catalog, err := svc.LoadCatalog(context.Background(), "services/")
	require.NoError(t, err)

	entry, ok := catalog.Entry(5)
	require.True(t, ok)
	assert.Equal(t, "Рентген", entry.Name)
	assert.Equal(t, 1200.0, entry.Price)
}
