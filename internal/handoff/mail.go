package handoff

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/hitoshi/autowheel/internal/model"
)

// SMTPConfig はメール送信の設定を保持する。
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// messageSender はgomail.Dialerのうちメール送信に使う部分。
type messageSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer はSMTPでプレーンテキストのメールを送る。
type Mailer struct {
	from   string
	sender messageSender
}

// NewMailer はMailerを生成する。HostかFromが空の場合はエラーを返す。
func NewMailer(cfg SMTPConfig) (*Mailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("SMTPのホストと送信元アドレスを設定してください")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &Mailer{
		from:   cfg.From,
		sender: gomail.NewDialer(cfg.Host, port, cfg.User, cfg.Password),
	}, nil
}

// Send はメールを1通送る。コンテキストが先に終わった場合はその時点でエラーを返す。
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	done := make(chan error, 1)
	go func() {
		done <- m.sender.DialAndSend(msg)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("メール送信がタイムアウトしました: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("メール送信に失敗しました: %w", err)
		}
		return nil
	}
}

// MailChannel は問い合わせを販売店の受信箱へメールで転送する。
type MailChannel struct {
	mailer *Mailer
	to     string
}

var _ Channel = (*MailChannel)(nil)

// NewMailChannel はMailChannelを生成する。
func NewMailChannel(mailer *Mailer, dealerEmail string) *MailChannel {
	return &MailChannel{mailer: mailer, to: dealerEmail}
}

// Name はチャネル名を返す。
func (c *MailChannel) Name() string { return "mail" }

// Deliver は問い合わせをメールで送る。顧客のメールアドレスを返信先に設定する。
func (c *MailChannel) Deliver(ctx context.Context, inq model.Inquiry, message string) error {
	subject := fmt.Sprintf("[AutoWheel] %s: %d %s %s",
		inq.Type.Label(), inq.Listing.Year, inq.Listing.Make, inq.Listing.Model)
	return c.mailer.Send(ctx, c.to, subject, message)
}
