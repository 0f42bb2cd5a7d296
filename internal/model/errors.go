// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, inquiry, asset, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeListingNotFound    = "LISTING_NOT_FOUND"
	ErrCodeInvalidListing     = "INVALID_LISTING"
	ErrCodeInquiryNotFound    = "INQUIRY_NOT_FOUND"
	ErrCodeInvalidInquiry     = "INVALID_INQUIRY"
	ErrCodeInvalidStatus      = "INVALID_STATUS"
	ErrCodeInquiryNotSaved    = "INQUIRY_NOT_SAVED"
	ErrCodeStoryNotFound      = "STORY_NOT_FOUND"
	ErrCodeInvalidStory       = "INVALID_STORY"
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeUploadFailed       = "UPLOAD_FAILED"
	ErrCodeUnsupportedMedia   = "UNSUPPORTED_MEDIA"
	ErrCodeAssetTooLarge      = "ASSET_TOO_LARGE"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeAssetStoreDisabled = "ASSET_STORE_DISABLED"
)

// NewListingNotFoundError は車両未検出エラーを生成する。
func NewListingNotFoundError(listingID int64) *APIError {
	return &APIError{
		Code:     ErrCodeListingNotFound,
		Message:  fmt.Sprintf("指定された車両が見つかりません: %d", listingID),
		Category: "catalog",
		Action:   "車両IDを確認してください。掲載が終了している可能性があります。",
	}
}

// NewInvalidListingError は車両情報の入力エラーを生成する。
func NewInvalidListingError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidListing,
		Message:  fmt.Sprintf("車両情報が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInquiryNotFoundError は問い合わせ未検出エラーを生成する。
func NewInquiryNotFoundError(inquiryID string) *APIError {
	return &APIError{
		Code:     ErrCodeInquiryNotFound,
		Message:  fmt.Sprintf("指定された問い合わせが見つかりません: %s", inquiryID),
		Category: "inquiry",
		Action:   "一覧を再読み込みしてください。別の管理者が削除した可能性があります。",
	}
}

// NewInvalidInquiryError は問い合わせフォームの入力エラーを生成する。
// 項目ごとの詳細はレスポンスのfield_errorsで返す。
func NewInvalidInquiryError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInquiry,
		Message:  "入力内容に誤りがあります。",
		Category: "validation",
		Action:   "各項目のエラーメッセージを確認して修正してください。",
	}
}

// NewInvalidStatusError は無効なステータス指定エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには pending、contacted、in_progress、sold、cancelled のいずれかを指定してください。",
	}
}

// NewInquiryNotSavedError は問い合わせの保存失敗エラーを生成する。
func NewInquiryNotSavedError() *APIError {
	return &APIError{
		Code:     ErrCodeInquiryNotSaved,
		Message:  "問い合わせを保存できませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再度送信してください。",
	}
}

// NewStoryNotFoundError は体験談未検出エラーを生成する。
func NewStoryNotFoundError(storyID int64) *APIError {
	return &APIError{
		Code:     ErrCodeStoryNotFound,
		Message:  fmt.Sprintf("指定された体験談が見つかりません: %d", storyID),
		Category: "catalog",
		Action:   "体験談IDを確認してください。",
	}
}

// NewInvalidStoryError は体験談の入力エラーを生成する。
func NewInvalidStoryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStory,
		Message:  fmt.Sprintf("体験談の内容が不正です: %s", reason),
		Category: "validation",
		Action:   "お客様名、地域、写真URL、本文をすべて入力してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewUploadFailedError は画像アップロード失敗エラーを生成する。
func NewUploadFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUploadFailed,
		Message:  fmt.Sprintf("画像のアップロードに失敗しました: %s", reason),
		Category: "asset",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUnsupportedMediaError は画像以外のファイルが指定された場合のエラーを生成する。
func NewUnsupportedMediaError(contentType string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedMedia,
		Message:  fmt.Sprintf("対応していないファイル形式です: %s", contentType),
		Category: "asset",
		Action:   "JPEG、PNG、WebP、GIFのいずれかの画像ファイルを指定してください。",
	}
}

// NewAssetTooLargeError は画像がサイズ上限を超えている場合のエラーを生成する。
func NewAssetTooLargeError(maxSize int64) *APIError {
	return &APIError{
		Code:     ErrCodeAssetTooLarge,
		Message:  fmt.Sprintf("画像のサイズが上限（%dバイト）を超えています", maxSize),
		Category: "asset",
		Action:   "画像を縮小してから再度お試しください。",
	}
}

// NewAssetStoreDisabledError は画像ストレージ未設定エラーを生成する。
func NewAssetStoreDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeAssetStoreDisabled,
		Message:  "画像ストレージが設定されていません。",
		Category: "asset",
		Action:   "管理者にストレージ設定（MINIO_ENDPOINT）を確認するよう依頼してください。",
	}
}

// NewInvalidCredentialsError は管理者ログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してもう一度ログインしてください。",
	}
}
