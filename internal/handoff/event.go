package handoff

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/hitoshi/autowheel/internal/model"
)

// SubjectInquirySubmitted は問い合わせ受付イベントのNATSサブジェクト。
const SubjectInquirySubmitted = "autowheel.inquiry.submitted"

// publisher はnats.Connのうちイベント発行に使う部分。
type publisher interface {
	Publish(subj string, data []byte) error
}

// SubmittedEvent は下流のサービスに通知する問い合わせ受付イベント。
type SubmittedEvent struct {
	InquiryID     string                `json:"inquiry_id"`
	Listing       model.ListingSnapshot `json:"listing"`
	InquiryType   model.InquiryType     `json:"inquiry_type"`
	ContactMethod model.ContactMethod   `json:"preferred_contact_method"`
	CustomerName  string                `json:"customer_name"`
	CustomerPhone string                `json:"customer_phone"`
	CustomerEmail string                `json:"customer_email"`
	Message       string                `json:"message"`
	SubmittedAt   time.Time             `json:"submitted_at"`
}

// EventChannel は問い合わせ受付イベントをNATSへ発行する。
type EventChannel struct {
	pub     publisher
	conn    *nats.Conn
	subject string
}

var _ Channel = (*EventChannel)(nil)

// NewEventChannel はNATSへ接続してEventChannelを生成する。
func NewEventChannel(url string) (*EventChannel, error) {
	conn, err := nats.Connect(url, nats.Name("autowheel"))
	if err != nil {
		return nil, fmt.Errorf("NATSへの接続に失敗しました: %w", err)
	}
	return &EventChannel{pub: conn, conn: conn, subject: SubjectInquirySubmitted}, nil
}

// Name はチャネル名を返す。
func (c *EventChannel) Name() string { return "nats" }

// Deliver は問い合わせ受付イベントを発行する。
func (c *EventChannel) Deliver(_ context.Context, inq model.Inquiry, _ string) error {
	data, err := json.Marshal(SubmittedEvent{
		InquiryID:     inq.ID,
		Listing:       inq.Listing,
		InquiryType:   inq.Type,
		ContactMethod: inq.PreferredContactMethod,
		CustomerName:  inq.CustomerName,
		CustomerPhone: inq.CustomerPhone,
		CustomerEmail: inq.CustomerEmail,
		Message:       inq.Message,
		SubmittedAt:   inq.CreatedAt,
	})
	if err != nil {
		return Permanent(fmt.Errorf("イベントのエンコードに失敗しました: %w", err))
	}
	return c.pub.Publish(c.subject, data)
}

// Close はNATS接続を閉じる。
func (c *EventChannel) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
