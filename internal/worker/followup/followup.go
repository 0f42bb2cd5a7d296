// Package followup はフォローアップ日時を迎えた問い合わせをディーラーにメールで知らせるジョブを提供する。
package followup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/autowheel/internal/handoff"
	"github.com/hitoshi/autowheel/internal/inquiry"
	"github.com/hitoshi/autowheel/internal/metrics"
	"github.com/hitoshi/autowheel/internal/model"
	"github.com/hitoshi/autowheel/internal/notify"
)

// Mailer はリマインダーメールを送る。
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

var _ Mailer = (*handoff.Mailer)(nil)

// Job はフォローアップのリマインダージョブ。
type Job struct {
	queue       *inquiry.Queue
	events      inquiry.EventPublisher
	mailer      Mailer
	dealerEmail string
	destination string
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	now         func() time.Time
}

// Option はJobの設定を変更する。
type Option func(*Job)

// WithClock は期日判定に使う時刻関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(collector metrics.MetricsCollector) Option {
	return func(j *Job) { j.metrics = collector }
}

// WithDestination はメール本文に載せる連絡用リンクの宛先番号を設定する。
func WithDestination(number string) Option {
	return func(j *Job) { j.destination = number }
}

// NewJob はJobを生成する。
func NewJob(queue *inquiry.Queue, events inquiry.EventPublisher, mailer Mailer, dealerEmail string, logger *slog.Logger, opts ...Option) *Job {
	j := &Job{
		queue:       queue,
		events:      events,
		mailer:      mailer,
		dealerEmail: dealerEmail,
		destination: handoff.DefaultWhatsAppNumber,
		logger:      logger,
		metrics:     metrics.Nop{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start はintervalごとにRunを実行する。ctxがキャンセルされるまで戻らない。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("フォローアップジョブを開始しました", slog.Duration("interval", interval))

	// 起動直後に1回実行
	j.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("フォローアップジョブを停止しました")
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *Job) runAndLog(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil {
		j.logger.Error("フォローアップジョブの実行に失敗しました", slog.String("error", err.Error()))
	}
}

// Run は期日を迎えた未通知の問い合わせごとにメールを送り、送信済みとして記録する。
// 送信に失敗した問い合わせは記録せず、次回の実行で再送する。送信した件数を返す。
func (j *Job) Run(ctx context.Context) (int, error) {
	inquiries, err := j.queue.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("問い合わせキューの読み込みに失敗: %w", err)
	}

	now := j.now()
	sent := 0
	for _, inq := range inquiries {
		if !Due(inq, now) {
			continue
		}

		subject, body := j.reminder(inq)
		if err := j.mailer.Send(ctx, j.dealerEmail, subject, body); err != nil {
			j.logger.Warn("リマインダーメールの送信に失敗しました",
				slog.String("inquiry_id", inq.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		updated, err := j.queue.Update(ctx, inq.ID, func(stored *model.Inquiry) {
			at := now
			stored.ReminderSentAt = &at
		})
		if err != nil {
			return sent, fmt.Errorf("送信済みの記録に失敗: %w", err)
		}
		if updated == nil {
			// 送信中に削除された
			continue
		}
		sent++
		j.events.Publish(notify.Event{
			Kind:      notify.KindQueueChanged,
			Origin:    notify.OriginLocal,
			InquiryID: inq.ID,
			At:        now,
		})
	}

	if sent > 0 {
		j.metrics.RecordFollowUpsSent(sent)
	}
	j.logger.Info("フォローアップジョブが完了しました", slog.Int("sent_count", sent))
	return sent, nil
}

// Due は問い合わせがリマインダーの送信対象かを返す。
// 対応中で、フォローアップ日時を過ぎていて、まだ通知していないものが対象になる。
func Due(inq model.Inquiry, now time.Time) bool {
	if inq.Status.Terminal() || inq.FollowUpAt == nil || inq.ReminderSentAt != nil {
		return false
	}
	return !inq.FollowUpAt.After(now)
}

func (j *Job) reminder(inq model.Inquiry) (subject, body string) {
	subject = fmt.Sprintf("[Follow-up] %s %d %s - %s",
		inq.Listing.Make, inq.Listing.Year, inq.Listing.Model, inq.CustomerName)

	var b strings.Builder
	fmt.Fprintf(&b, "Follow-up due: %s\n\n", inq.FollowUpAt.Format(time.DateTime))
	fmt.Fprintf(&b, "Customer: %s\n", inq.CustomerName)
	fmt.Fprintf(&b, "Phone: %s\n", inq.CustomerPhone)
	fmt.Fprintf(&b, "Email: %s\n", inq.CustomerEmail)
	fmt.Fprintf(&b, "Preferred contact: %s\n", inq.PreferredContactMethod)
	fmt.Fprintf(&b, "Status: %s\n", inq.Status)
	fmt.Fprintf(&b, "Vehicle: %s %d %s (%s)\n", inq.Listing.Make, inq.Listing.Year, inq.Listing.Model, handoff.FormatLKR(inq.Listing.Price))
	if inq.AdminNotes != "" {
		fmt.Fprintf(&b, "\nNotes:\n%s\n", inq.AdminNotes)
	}
	fmt.Fprintf(&b, "\nOriginal message:\n%s\n", inq.Message)
	fmt.Fprintf(&b, "\nContact: %s\n", handoff.ContactURL(j.destination, inq))
	return subject, b.String()
}
