// Package cleanup は対応済み問い合わせの自動削除ジョブを提供する。
// 保持期間（デフォルト180日）を超過した sold / cancelled の問い合わせを
// 日次バッチで問い合わせキューから取り除く。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/autowheel/internal/inquiry"
	"github.com/hitoshi/autowheel/internal/metrics"
	"github.com/hitoshi/autowheel/internal/model"
	"github.com/hitoshi/autowheel/internal/notify"
)

// QueuePruner は条件に合う問い合わせをキューから取り除く。
type QueuePruner interface {
	RemoveWhere(ctx context.Context, pred func(model.Inquiry) bool) (int, error)
}

var _ QueuePruner = (*inquiry.Queue)(nil)

// DefaultRetentionDays は対応済み問い合わせの保持日数の既定値。
const DefaultRetentionDays = 180

// CleanupJob は保持期間を超過した問い合わせの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	queue         QueuePruner
	events        inquiry.EventPublisher
	logger        *slog.Logger
	metrics       metrics.MetricsCollector
	now           func() time.Time
	RetentionDays int // 対応済み問い合わせの保持日数（デフォルト: 180）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は180日。
func NewCleanupJob(queue QueuePruner, events inquiry.EventPublisher, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &CleanupJob{
		queue:         queue,
		events:        events,
		logger:        logger,
		metrics:       collector,
		now:           time.Now,
		RetentionDays: DefaultRetentionDays,
	}
}

// Expired は問い合わせが削除対象かを返す。
// 対応済みで、最終更新が cutoff より前のものが対象になる。
func Expired(inq model.Inquiry, cutoff time.Time) bool {
	return inq.Status.Terminal() && inq.UpdatedAt.Before(cutoff)
}

// Run は保持期間を超過した対応済みの問い合わせを削除する。
// 冪等: 削除対象がない場合でもエラーにならず、変更通知も出さない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()
	// 0以下だとcutoffが現在以降になり、対応済みの問い合わせがすべて消える
	if j.RetentionDays <= 0 {
		j.logger.Warn("保持日数が不正なため既定値を使用します",
			slog.Int("retention_days", j.RetentionDays),
			slog.Int("default", DefaultRetentionDays),
		)
		j.RetentionDays = DefaultRetentionDays
	}
	cutoff := start.AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.queue.RemoveWhere(ctx, func(inq model.Inquiry) bool {
		return Expired(inq, cutoff)
	})
	if err != nil {
		j.logger.Error("問い合わせクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("問い合わせクリーンアップの実行に失敗: %w", err)
	}

	if deletedCount > 0 {
		j.events.Publish(notify.Event{
			Kind:   notify.KindQueueChanged,
			Origin: notify.OriginLocal,
			At:     start,
		})
		j.metrics.RecordInquiriesPurged(deletedCount)
	}

	duration := j.now().Sub(start)
	j.logger.Info("問い合わせクリーンアップジョブが完了しました",
		slog.Int("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後と interval ごとに Run を実行する。ctxがキャンセルされるまで戻らない。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 起動直後に1回実行。失敗はRun内でログに残る
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
