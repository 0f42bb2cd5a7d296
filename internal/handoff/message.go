// Package handoff は問い合わせを外部のメッセージングチャネルへ引き渡す。
//
// WhatsAppのディープリンクを組み立て、設定されたチャネル（販売店へのメール、NATSイベント）へ
// 問い合わせを配送する。引き渡しは投げっぱなしで、失敗しても問い合わせの保存は取り消さない。
package handoff

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/autowheel/internal/model"
)

// DefaultWhatsAppNumber は問い合わせの送り先となる販売店のWhatsApp番号。
const DefaultWhatsAppNumber = "94771234567"

const whatsAppBaseURL = "https://wa.me/"

// BuildMessage は問い合わせと車両スナップショットから連絡用メッセージを組み立てる。
// 送信時と管理画面での再構成で同じ文面になるよう、保存済みの値だけを使う。
func BuildMessage(inq model.Inquiry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "New %s - AutoWheel\n", inq.Type.Label())
	b.WriteString("\n")
	fmt.Fprintf(&b, "Vehicle: %d %s %s\n", inq.Listing.Year, inq.Listing.Make, inq.Listing.Model)
	fmt.Fprintf(&b, "Price: %s\n", FormatLKR(inq.Listing.Price))
	fmt.Fprintf(&b, "Listing ID: %d\n", inq.Listing.ID)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Name: %s\n", inq.CustomerName)
	fmt.Fprintf(&b, "Phone: %s\n", inq.CustomerPhone)
	fmt.Fprintf(&b, "Email: %s\n", inq.CustomerEmail)
	if inq.CustomerLocation != "" {
		fmt.Fprintf(&b, "Location: %s\n", inq.CustomerLocation)
	}
	fmt.Fprintf(&b, "Preferred contact: %s\n", contactLabel(inq.PreferredContactMethod))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Message:\n%s", inq.Message)

	return b.String()
}

func contactLabel(m model.ContactMethod) string {
	switch m {
	case model.ContactMethodWhatsApp:
		return "WhatsApp"
	case model.ContactMethodPhone:
		return "Phone call"
	case model.ContactMethodEmail:
		return "Email"
	}
	return string(m)
}

// FormatLKR は金額を "LKR 4,250,000" 形式にする。
func FormatLKR(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "LKR " + sign + b.String()
}

// WhatsAppURL は宛先番号と本文を埋め込んだディープリンクを返す。
// 宛先番号は数字以外を取り除いて使う。
func WhatsAppURL(destination, text string) string {
	var digits strings.Builder
	for _, r := range destination {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return whatsAppBaseURL + digits.String() + "?text=" + url.QueryEscape(text)
}

// ContactURL は問い合わせの連絡用ディープリンクを組み立てる。
func ContactURL(destination string, inq model.Inquiry) string {
	return WhatsAppURL(destination, BuildMessage(inq))
}
