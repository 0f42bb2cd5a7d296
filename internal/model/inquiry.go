package model

import "time"

// InquiryType は問い合わせ種別を表す。
type InquiryType string

const (
	InquiryTypeGeneral   InquiryType = "general"
	InquiryTypePrice     InquiryType = "price"
	InquiryTypeTestDrive InquiryType = "test_drive"
	InquiryTypeFinancing InquiryType = "financing"
	InquiryTypeTradeIn   InquiryType = "trade_in"
)

// InquiryTypes は有効な問い合わせ種別の一覧（表示順）。
var InquiryTypes = []InquiryType{
	InquiryTypeGeneral,
	InquiryTypePrice,
	InquiryTypeTestDrive,
	InquiryTypeFinancing,
	InquiryTypeTradeIn,
}

// Valid は列挙値に含まれるかを返す。
func (t InquiryType) Valid() bool {
	for _, v := range InquiryTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Label は連絡メッセージに埋め込む表示名を返す。
func (t InquiryType) Label() string {
	switch t {
	case InquiryTypePrice:
		return "Price Inquiry"
	case InquiryTypeTestDrive:
		return "Test Drive"
	case InquiryTypeFinancing:
		return "Financing"
	case InquiryTypeTradeIn:
		return "Trade-in"
	default:
		return "General Inquiry"
	}
}

// ContactMethod は顧客が希望する連絡手段を表す。
type ContactMethod string

const (
	ContactMethodWhatsApp ContactMethod = "whatsapp"
	ContactMethodPhone    ContactMethod = "phone"
	ContactMethodEmail    ContactMethod = "email"
)

// Valid は列挙値に含まれるかを返す。
func (m ContactMethod) Valid() bool {
	switch m {
	case ContactMethodWhatsApp, ContactMethodPhone, ContactMethodEmail:
		return true
	}
	return false
}

// InquiryStatus は問い合わせの対応状況を表す。
type InquiryStatus string

const (
	InquiryStatusPending    InquiryStatus = "pending"
	InquiryStatusContacted  InquiryStatus = "contacted"
	InquiryStatusInProgress InquiryStatus = "in_progress"
	InquiryStatusSold       InquiryStatus = "sold"
	InquiryStatusCancelled  InquiryStatus = "cancelled"
)

// InquiryStatuses は有効なステータスの一覧（ワークフロー順）。
var InquiryStatuses = []InquiryStatus{
	InquiryStatusPending,
	InquiryStatusContacted,
	InquiryStatusInProgress,
	InquiryStatusSold,
	InquiryStatusCancelled,
}

// ParseInquiryStatus は入力文字列をステータスに変換する。
// 旧管理画面の open / solved / closed も受け付け、正規の値に読み替える。
func ParseInquiryStatus(s string) (InquiryStatus, bool) {
	switch s {
	case "open":
		return InquiryStatusPending, true
	case "solved":
		return InquiryStatusSold, true
	case "closed":
		return InquiryStatusCancelled, true
	}
	for _, v := range InquiryStatuses {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// Terminal は対応が完了したステータスかを返す。
func (s InquiryStatus) Terminal() bool {
	return s == InquiryStatusSold || s == InquiryStatusCancelled
}

// Inquiry は顧客からの問い合わせを表す。
// 永続化キューにJSON配列としてまるごと保存されるため、JSONタグが保存形式を決める。
type Inquiry struct {
	ID                     string          `json:"id"`
	Listing                ListingSnapshot `json:"listing"`
	CustomerName           string          `json:"customer_name"`
	CustomerEmail          string          `json:"customer_email"`
	CustomerPhone          string          `json:"customer_phone"`
	CustomerLocation       string          `json:"customer_location,omitempty"`
	Message                string          `json:"message"`
	Type                   InquiryType     `json:"inquiry_type"`
	PreferredContactMethod ContactMethod   `json:"preferred_contact_method"`
	Status                 InquiryStatus   `json:"status"`
	AdminNotes             string          `json:"admin_notes,omitempty"`
	FollowUpAt             *time.Time      `json:"follow_up_at,omitempty"`
	ReminderSentAt         *time.Time      `json:"reminder_sent_at,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// InquiryStats は問い合わせの集計結果を表す。
type InquiryStats struct {
	Total    int                   `json:"total"`
	ByStatus map[InquiryStatus]int `json:"by_status"`
	ByType   map[InquiryType]int   `json:"by_type"`
}
