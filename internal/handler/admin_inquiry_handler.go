package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/autowheel/internal/console"
	"github.com/hitoshi/autowheel/internal/model"
)

// InquiryConsoleInterface は管理画面の問い合わせハンドラーが必要とするサービスインターフェース。
type InquiryConsoleInterface interface {
	List(ctx context.Context, opts console.ListOptions) ([]model.Inquiry, error)
	Get(ctx context.Context, id string) (*model.Inquiry, error)
	UpdateStatus(ctx context.Context, id string, upd console.StatusUpdate) (*model.Inquiry, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*model.InquiryStats, error)
	ContactURL(inq model.Inquiry) string
}

var _ InquiryConsoleInterface = (*console.Console)(nil)

// InquiryStreamer はキューの変更を購読し、最新の一覧をpushへ渡し続ける。
// 戻り値の関数で購読を止める。
type InquiryStreamer interface {
	Watch(ctx context.Context, push func([]model.Inquiry)) (stop func())
}

// InquiryStreamerFunc は関数をInquiryStreamerとして扱うアダプタ。
type InquiryStreamerFunc func(ctx context.Context, push func([]model.Inquiry)) (stop func())

// Watch はf(ctx, push)を呼ぶ。
func (f InquiryStreamerFunc) Watch(ctx context.Context, push func([]model.Inquiry)) func() {
	return f(ctx, push)
}

// AdminInquiryHandler は管理画面の問い合わせ操作のHTTPハンドラー。
type AdminInquiryHandler struct {
	console  InquiryConsoleInterface
	streamer InquiryStreamer
}

// NewAdminInquiryHandler はAdminInquiryHandlerを生成する。
func NewAdminInquiryHandler(c InquiryConsoleInterface, streamer InquiryStreamer) *AdminInquiryHandler {
	return &AdminInquiryHandler{console: c, streamer: streamer}
}

// updateStatusRequest はステータス更新リクエストのボディ。
type updateStatusRequest struct {
	Status     string     `json:"status"`
	AdminNotes *string    `json:"admin_notes"`
	FollowUpAt *time.Time `json:"follow_up_at"`
}

// listInquiriesResponse は問い合わせ一覧のAPIレスポンス。
type listInquiriesResponse struct {
	Inquiries []model.Inquiry `json:"inquiries"`
	Total     int             `json:"total"`
}

// ListInquiries は問い合わせを新しい順に返す。
// GET /api/admin/inquiries?status=&car_id=&from=&to=
func (h *AdminInquiryHandler) ListInquiries(w http.ResponseWriter, r *http.Request) {
	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	inquiries, err := h.console.List(r.Context(), opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listInquiriesResponse{Inquiries: inquiries, Total: len(inquiries)})
}

// Stats はステータス別、種別別の件数を返す。
// GET /api/admin/inquiries/stats
func (h *AdminInquiryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.console.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetInquiry は問い合わせ詳細を返す。
// GET /api/admin/inquiries/{id}
func (h *AdminInquiryHandler) GetInquiry(w http.ResponseWriter, r *http.Request) {
	inq, err := h.console.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inq)
}

// UpdateStatus は問い合わせのステータスと管理メモを更新する。
// PATCH /api/admin/inquiries/{id}/status
func (h *AdminInquiryHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inq, err := h.console.UpdateStatus(r.Context(), chi.URLParam(r, "id"), console.StatusUpdate{
		Status:     req.Status,
		Notes:      req.AdminNotes,
		FollowUpAt: req.FollowUpAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inq)
}

// DeleteInquiry は問い合わせを削除する。
// DELETE /api/admin/inquiries/{id}
func (h *AdminInquiryHandler) DeleteInquiry(w http.ResponseWriter, r *http.Request) {
	if err := h.console.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Contact は顧客へ連絡するためのWhatsAppディープリンクを返す。
// GET /api/admin/inquiries/{id}/contact
func (h *AdminInquiryHandler) Contact(w http.ResponseWriter, r *http.Request) {
	inq, err := h.console.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"contact_url": h.console.ContactURL(*inq)})
}

// Stream はキューが変わるたびに最新の問い合わせ一覧をServer-Sent Eventsで送る。
// GET /api/admin/inquiries/stream
//
// 送信が追いつかない場合は古い一覧を捨て、最新の一覧だけを送る。
func (h *AdminInquiryHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// サーバー全体のWriteTimeoutをこの接続だけ解除する
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	ctx := r.Context()
	latest := make(chan []model.Inquiry, 1)
	stop := h.streamer.Watch(ctx, func(inquiries []model.Inquiry) {
		for {
			select {
			case latest <- inquiries:
				return
			default:
			}
			select {
			case <-latest:
			default:
			}
		}
	})
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case inquiries := <-latest:
			if err := writeSSE(w, "inquiries", inquiries); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// parseListOptions は一覧の絞り込み条件をクエリパラメータから読む。
// 日付はRFC3339または YYYY-MM-DD。YYYY-MM-DD のtoはその日の終わりまでを含む。
func parseListOptions(r *http.Request) (console.ListOptions, *model.APIError) {
	q := r.URL.Query()
	var opts console.ListOptions

	if s := q.Get("status"); s != "" {
		status, ok := model.ParseInquiryStatus(s)
		if !ok {
			return opts, model.NewInvalidStatusError(s)
		}
		opts.Status = status
	}
	if s := q.Get("car_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return opts, newInvalidIDError(s)
		}
		opts.ListingID = id
	}
	if s := q.Get("from"); s != "" {
		from, err := parseDateParam(s, false)
		if err != nil {
			return opts, newInvalidDateError(s)
		}
		opts.From = &from
	}
	if s := q.Get("to"); s != "" {
		to, err := parseDateParam(s, true)
		if err != nil {
			return opts, newInvalidDateError(s)
		}
		opts.To = &to
	}
	return opts, nil
}

func parseDateParam(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func newInvalidDateError(raw string) *model.APIError {
	return &model.APIError{
		Code:     "INVALID_DATE",
		Message:  "日付の形式が正しくありません: " + raw,
		Category: "validation",
		Action:   "YYYY-MM-DD またはRFC3339形式で指定してください。",
	}
}
