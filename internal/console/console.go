// Package console は管理画面向けの問い合わせ操作を提供する。
//
// 一覧や集計は呼び出しのたびに保存済みのキュー全体を読み直す。更新と削除はキュー全体の
// 読み込み、変更、書き戻しで行い、書き込みの後に変更通知を発行する。
package console

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/hitoshi/autowheel/internal/handoff"
	"github.com/hitoshi/autowheel/internal/inquiry"
	"github.com/hitoshi/autowheel/internal/model"
	"github.com/hitoshi/autowheel/internal/notify"
)

// ListOptions は一覧の絞り込み条件。ゼロ値の項目は条件に使わない。
type ListOptions struct {
	Status    model.InquiryStatus
	ListingID int64
	// From と To は受付日時の範囲（両端を含む）。
	From *time.Time
	To   *time.Time
}

// StatusUpdate はステータス更新の内容。
type StatusUpdate struct {
	// Status は新しいステータス。旧名（open / solved / closed）も受け付ける。
	Status string
	// Notes がnilの場合は管理メモを変更しない。
	Notes *string
	// FollowUpAt がnilの場合はフォローアップ日時を変更しない。
	// 設定するとリマインダー送信済みの記録を消す。
	FollowUpAt *time.Time
}

// Console は管理画面の問い合わせ操作。
type Console struct {
	queue       *inquiry.Queue
	events      inquiry.EventPublisher
	destination string
	logger      *slog.Logger
	now         func() time.Time
}

// Option はConsoleの設定を変更する。
type Option func(*Console)

// WithClock は更新日時に使う時刻関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(c *Console) { c.now = now }
}

// WithDestination はディープリンクの宛先番号を設定する。
func WithDestination(number string) Option {
	return func(c *Console) { c.destination = number }
}

// New はConsoleを生成する。
func New(queue *inquiry.Queue, events inquiry.EventPublisher, logger *slog.Logger, opts ...Option) *Console {
	c := &Console{
		queue:       queue,
		events:      events,
		destination: handoff.DefaultWhatsAppNumber,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List は条件に合う問い合わせを新しい順に返す。
func (c *Console) List(ctx context.Context, opts ListOptions) ([]model.Inquiry, error) {
	all, err := c.queue.Load(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]model.Inquiry, 0, len(all))
	for _, inq := range all {
		if opts.matches(inq) {
			result = append(result, inq)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (o ListOptions) matches(inq model.Inquiry) bool {
	if o.Status != "" && inq.Status != o.Status {
		return false
	}
	if o.ListingID != 0 && inq.Listing.ID != o.ListingID {
		return false
	}
	if o.From != nil && inq.CreatedAt.Before(*o.From) {
		return false
	}
	if o.To != nil && inq.CreatedAt.After(*o.To) {
		return false
	}
	return true
}

// Get はIDで問い合わせを取得する。
func (c *Console) Get(ctx context.Context, id string) (*model.Inquiry, error) {
	all, err := c.queue.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, model.NewInquiryNotFoundError(id)
}

// UpdateStatus は問い合わせのステータスと管理メモを更新する。
// 列挙されたステータスであれば、どのステータスからどのステータスへも遷移できる。
func (c *Console) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) (*model.Inquiry, error) {
	status, ok := model.ParseInquiryStatus(upd.Status)
	if !ok {
		return nil, model.NewInvalidStatusError(upd.Status)
	}

	now := c.now()
	updated, err := c.queue.Update(ctx, id, func(inq *model.Inquiry) {
		inq.Status = status
		if upd.Notes != nil {
			inq.AdminNotes = *upd.Notes
		}
		if upd.FollowUpAt != nil {
			at := *upd.FollowUpAt
			inq.FollowUpAt = &at
			inq.ReminderSentAt = nil
		}
		inq.UpdatedAt = now
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, model.NewInquiryNotFoundError(id)
	}

	c.publish(id, now)
	c.logger.Info("inquiry status updated",
		slog.String("inquiry_id", id),
		slog.String("status", string(status)),
	)
	return updated, nil
}

// Delete は問い合わせを削除する。
func (c *Console) Delete(ctx context.Context, id string) error {
	found, err := c.queue.Remove(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return model.NewInquiryNotFoundError(id)
	}

	c.publish(id, c.now())
	c.logger.Info("inquiry deleted", slog.String("inquiry_id", id))
	return nil
}

// Stats は問い合わせの件数をステータス別、種別別に集計する。
// 0件のステータスと種別も結果に含める。
func (c *Console) Stats(ctx context.Context) (*model.InquiryStats, error) {
	all, err := c.queue.Load(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.InquiryStats{
		Total:    len(all),
		ByStatus: make(map[model.InquiryStatus]int, len(model.InquiryStatuses)),
		ByType:   make(map[model.InquiryType]int, len(model.InquiryTypes)),
	}
	for _, s := range model.InquiryStatuses {
		stats.ByStatus[s] = 0
	}
	for _, t := range model.InquiryTypes {
		stats.ByType[t] = 0
	}
	for _, inq := range all {
		stats.ByStatus[inq.Status]++
		stats.ByType[inq.Type]++
	}
	return stats, nil
}

// ContactURL は保存済みのスナップショットから送信時と同じ連絡用ディープリンクを組み立てる。
func (c *Console) ContactURL(inq model.Inquiry) string {
	return handoff.ContactURL(c.destination, inq)
}

func (c *Console) publish(id string, at time.Time) {
	c.events.Publish(notify.Event{
		Kind:      notify.KindQueueChanged,
		Origin:    notify.OriginLocal,
		InquiryID: id,
		At:        at,
	})
}
