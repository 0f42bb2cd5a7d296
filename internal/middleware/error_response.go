package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/autowheel/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。入力エラーでは項目ごとのメッセージも返す。
type ErrorResponseBody struct {
	OK          bool              `json:"ok"`
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Category    string            `json:"category"`
	Action      string            `json:"action"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// WriteJSON は任意の値をJSONで書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	WriteJSON(w, statusCode, ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteValidationError は項目ごとのエラーを含む422レスポンスを書き込む。
func WriteValidationError(w http.ResponseWriter, apiErr *model.APIError, fieldErrors map[string]string) {
	WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponseBody{
		Code:        apiErr.Code,
		Message:     apiErr.Message,
		Category:    apiErr.Category,
		Action:      apiErr.Action,
		FieldErrors: fieldErrors,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、利用者には一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
