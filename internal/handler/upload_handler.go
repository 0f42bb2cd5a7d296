package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/autowheel/internal/asset"
	"github.com/hitoshi/autowheel/internal/model"
)

// uploadFormField はmultipartフォームの画像フィールド名。
const uploadFormField = "file"

// AssetServiceInterface は画像アップロードハンドラーが必要とするサービスインターフェース。
type AssetServiceInterface interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
	Import(ctx context.Context, rawURL string) (string, error)
	MaxSize() int64
}

var _ AssetServiceInterface = (*asset.Service)(nil)

// UploadHandler は車両写真・体験談写真のアップロードを扱うHTTPハンドラー。
type UploadHandler struct {
	service AssetServiceInterface
}

// NewUploadHandler はUploadHandlerを生成する。
func NewUploadHandler(service AssetServiceInterface) *UploadHandler {
	return &UploadHandler{service: service}
}

type importRequest struct {
	URL string `json:"url"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

// Upload はmultipartで送られた画像を保存し、公開URLを返す。
// POST /api/admin/uploads
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	maxSize := h.service.MaxSize()
	// フォームのヘッダー分の余裕を持たせる
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+(1<<20))

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, tooLargeError(maxSize))
			return
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "画像ファイルが見つかりません。",
			Category: "validation",
			Action:   fmt.Sprintf("multipart/form-dataの%sフィールドで画像を送信してください。", uploadFormField),
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if int64(len(data)) > maxSize {
		writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, tooLargeError(maxSize))
		return
	}

	publicURL, err := h.service.Upload(r.Context(), header.Filename, data)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{URL: publicURL})
}

// Import は外部URLの画像を取り込み、公開URLを返す。
// POST /api/admin/uploads/remote
func (h *UploadHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	publicURL, err := h.service.Import(r.Context(), req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{URL: publicURL})
}

func tooLargeError(maxSize int64) *model.APIError {
	return model.NewAssetTooLargeError(maxSize)
}
