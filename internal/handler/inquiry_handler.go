package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/autowheel/internal/inquiry"
	"github.com/hitoshi/autowheel/internal/middleware"
	"github.com/hitoshi/autowheel/internal/model"
)

// ListingFinder は問い合わせ対象の車両を取得する。
type ListingFinder interface {
	Get(ctx context.Context, id int64) (*model.Listing, error)
}

// InquirySubmitter は問い合わせ送信パイプラインを実行する。
type InquirySubmitter interface {
	Submit(ctx context.Context, listing model.Listing, draft inquiry.Draft) (*inquiry.SubmitResult, error)
}

var _ InquirySubmitter = (*inquiry.Submitter)(nil)

// InquiryHandler は顧客からの問い合わせ送信を受け付けるHTTPハンドラー。
type InquiryHandler struct {
	listings  ListingFinder
	submitter InquirySubmitter
}

// NewInquiryHandler はInquiryHandlerを生成する。
func NewInquiryHandler(listings ListingFinder, submitter InquirySubmitter) *InquiryHandler {
	return &InquiryHandler{listings: listings, submitter: submitter}
}

// submitInquiryResponse は問い合わせ受付時のレスポンス。
type submitInquiryResponse struct {
	OK         bool   `json:"ok"`
	InquiryID  string `json:"inquiry_id"`
	ContactURL string `json:"contact_url"`
}

// Submit は問い合わせを受け付ける。
// POST /api/cars/{id}/inquiries
//
// 201: 保存済み。contact_urlでWhatsAppを開ける。
// 422: 入力エラー。field_errorsに項目ごとのメッセージが入る。
// 503: 保存失敗。入力内容はそのまま再送できる。
func (h *InquiryHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	var draft inquiry.Draft
	if !decodeJSON(w, r, &draft) {
		return
	}

	listing, err := h.listings.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.submitter.Submit(r.Context(), *listing, draft)
	if err != nil {
		if errors.Is(err, inquiry.ErrPersistence) {
			writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewInquiryNotSavedError())
			return
		}
		handleServiceError(w, err)
		return
	}

	if !result.Accepted() {
		middleware.WriteValidationError(w, model.NewInvalidInquiryError(), result.FieldErrors)
		return
	}

	slog.Debug("inquiry accepted", slog.String("inquiry_id", result.Inquiry.ID))
	writeJSON(w, http.StatusCreated, submitInquiryResponse{
		OK:         true,
		InquiryID:  result.Inquiry.ID,
		ContactURL: result.ContactURL,
	})
}
