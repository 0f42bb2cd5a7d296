// Package inquiry は問い合わせフォームの検証、問い合わせキューの永続化、送信パイプラインを提供する。
package inquiry

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/autowheel/internal/model"
)

// フィールド名。エラーマップのキーとレスポンスのfield_errorsに使う。
const (
	FieldName          = "customer_name"
	FieldEmail         = "customer_email"
	FieldPhone         = "customer_phone"
	FieldMessage       = "message"
	FieldInquiryType   = "inquiry_type"
	FieldContactMethod = "preferred_contact_method"
)

// 入力長の制約（文字数）。
const (
	nameMinLen    = 2
	nameMaxLen    = 100
	phoneMinLen   = 7
	phoneMaxLen   = 20
	messageMinLen = 10
	messageMaxLen = 1000
)

var (
	namePattern  = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	phonePattern = regexp.MustCompile(`^(\+?\d{1,4}[\s-]?)?(\(?\d{1,4}\)?[\s-]?)?[\d\s-]{7,}$`)
	// 正規化済みの番号。7桁の番号など phonePattern に合わない正規形もあるため別に受け付ける。
	canonicalPhone = regexp.MustCompile(`^\+\d{7,19}$`)
	// 国番号付きで + が省略された番号
	bareInternational = regexp.MustCompile(`^[1-9]\d{10,}$`)
	// phonePattern が区切りとして許す文字（\s はフォームフィードも含む）
	phoneSeparators = regexp.MustCompile(`[\s\-()]`)
)

// Draft はフォームに入力されたままの問い合わせ内容。
type Draft struct {
	Name          string `json:"customer_name"`
	Email         string `json:"customer_email"`
	Phone         string `json:"customer_phone"`
	Location      string `json:"customer_location"`
	Message       string `json:"message"`
	InquiryType   string `json:"inquiry_type"`
	ContactMethod string `json:"preferred_contact_method"`
}

// Form は検証と正規化が済んだ問い合わせ内容。
type Form struct {
	Name          string
	Email         string
	Phone         string
	Location      string
	Message       string
	InquiryType   model.InquiryType
	ContactMethod model.ContactMethod
}

// Draft はFormを入力形式に戻す。戻したDraftを再検証すると同じFormになる。
func (f Form) Draft() Draft {
	return Draft{
		Name:          f.Name,
		Email:         f.Email,
		Phone:         f.Phone,
		Location:      f.Location,
		Message:       f.Message,
		InquiryType:   string(f.InquiryType),
		ContactMethod: string(f.ContactMethod),
	}
}

// Outcome は検証結果。Valid と Invalid のどちらか一方になる。
type Outcome interface {
	outcome()
}

// Valid は検証に成功した結果。
type Valid struct {
	Form Form
}

// Invalid は検証に失敗した結果。項目ごとに最初に見つかったエラーメッセージを持つ。
type Invalid struct {
	FieldErrors map[string]string
}

func (Valid) outcome()   {}
func (Invalid) outcome() {}

// Validate は入力を検証し、正規化済みのFormか項目ごとのエラーを返す。
// 各項目は独立に検証され、すべてのエラーが集められる。
func Validate(d Draft) Outcome {
	errs := make(map[string]string)

	if msg := checkName(d.Name); msg != "" {
		errs[FieldName] = msg
	}
	email, msg := checkEmail(d.Email)
	if msg != "" {
		errs[FieldEmail] = msg
	}
	if msg := checkPhone(d.Phone); msg != "" {
		errs[FieldPhone] = msg
	}
	if msg := checkMessage(d.Message); msg != "" {
		errs[FieldMessage] = msg
	}
	inquiryType := model.InquiryType(d.InquiryType)
	if !inquiryType.Valid() {
		errs[FieldInquiryType] = "Invalid inquiry type"
	}
	contactMethod := model.ContactMethod(d.ContactMethod)
	if !contactMethod.Valid() {
		errs[FieldContactMethod] = "Invalid contact method"
	}

	if len(errs) > 0 {
		return Invalid{FieldErrors: errs}
	}

	return Valid{Form: Form{
		Name:          d.Name,
		Email:         email,
		Phone:         NormalizePhone(d.Phone),
		Location:      strings.TrimSpace(d.Location),
		Message:       d.Message,
		InquiryType:   inquiryType,
		ContactMethod: contactMethod,
	}}
}

func checkName(name string) string {
	n := utf8.RuneCountInString(name)
	switch {
	case n < nameMinLen:
		return "Name must be at least 2 characters"
	case n > nameMaxLen:
		return "Name must be less than 100 characters"
	case !namePattern.MatchString(name):
		return "Name can only contain letters and spaces"
	}
	return ""
}

// checkEmail は表示名や空白を含まない素のアドレスだけを受け付け、小文字化した値を返す。
func checkEmail(email string) (string, string) {
	const invalid = "Please enter a valid email address"

	if email == "" || strings.ContainsAny(email, " \t\r\n<>") {
		return "", invalid
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return "", invalid
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", invalid
	}
	return strings.ToLower(email), ""
}

// checkPhone は入力値と正規化後の値の両方を検査する。
// 正規化後の値も同じ規則を満たすので、正規化済みの番号を再検証しても通る。
func checkPhone(phone string) string {
	const invalid = "Please enter a valid phone number (e.g., +94771234567, 0771234567, or international format)"

	n := utf8.RuneCountInString(phone)
	switch {
	case n < phoneMinLen:
		return "Phone number is too short"
	case n > phoneMaxLen:
		return "Phone number is too long"
	case !phonePattern.MatchString(phone) && !canonicalPhone.MatchString(phone):
		return invalid
	}

	normalized := NormalizePhone(phone)
	if len(normalized) > phoneMaxLen {
		return "Phone number is too long"
	}
	if len(normalized)-1 < phoneMinLen {
		return invalid
	}
	return ""
}

func checkMessage(message string) string {
	n := utf8.RuneCountInString(message)
	switch {
	case n < messageMinLen:
		return "Message must be at least 10 characters"
	case n > messageMaxLen:
		return "Message must be less than 1000 characters"
	}
	return ""
}

// NormalizePhone は電話番号を国際形式に揃える。
// 空白・ハイフン・括弧を取り除き、0から始まる10桁のスリランカ国内番号は +94 形式に書き換え、
// それ以外は先頭に + がなければ付ける。正規化済みの番号を渡すと同じ値を返す。
func NormalizePhone(phone string) string {
	cleaned := phoneSeparators.ReplaceAllString(phone, "")

	if strings.HasPrefix(cleaned, "0") && len(cleaned) == 10 {
		return "+94" + cleaned[1:]
	}
	if bareInternational.MatchString(cleaned) {
		return "+" + cleaned
	}
	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	return "+" + cleaned
}
