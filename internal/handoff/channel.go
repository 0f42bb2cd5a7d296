package handoff

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/autowheel/internal/metrics"
	"github.com/hitoshi/autowheel/internal/model"
)

// Channel は問い合わせを受け取る外部チャネル。
type Channel interface {
	// Name はログとメトリクスのラベルに使うチャネル名を返す。
	Name() string
	// Deliver は問い合わせと組み立て済みのメッセージを配送する。
	Deliver(ctx context.Context, inq model.Inquiry, message string) error
}

// DefaultDeliveryTimeout は1チャネルあたりの配送タイムアウト。
const DefaultDeliveryTimeout = 30 * time.Second

// Dispatcher は問い合わせを全チャネルへ非同期に配送する。
// 配送の失敗はログとメトリクスに残すだけで、呼び出し元には返さない。
type Dispatcher struct {
	channels []Channel
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
	timeout  time.Duration
	retry    RetryPolicy

	wg sync.WaitGroup
}

// NewDispatcher はDispatcherを生成する。
func NewDispatcher(logger *slog.Logger, collector metrics.MetricsCollector, channels ...Channel) *Dispatcher {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Dispatcher{
		channels: channels,
		logger:   logger,
		metrics:  collector,
		timeout:  DefaultDeliveryTimeout,
		retry:    noRetry,
	}
}

// WithRetry は一時的な配送失敗を policy に従って再試行するよう設定する。
func (d *Dispatcher) WithRetry(policy RetryPolicy) *Dispatcher {
	d.retry = policy
	return d
}

// Channels は登録されているチャネル名を返す。
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name()
	}
	return names
}

// Dispatch は各チャネルへの配送をバックグラウンドで開始してすぐに戻る。
// 呼び出し元のコンテキストがキャンセルされても配送は続く。
func (d *Dispatcher) Dispatch(ctx context.Context, inq model.Inquiry, message string) {
	base := context.WithoutCancel(ctx)
	for _, ch := range d.channels {
		d.wg.Add(1)
		go func(ch Channel) {
			defer d.wg.Done()
			d.deliver(base, ch, inq, message)
		}(ch)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ch Channel, inq model.Inquiry, message string) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.RecordHandoffFailure(ch.Name())
			d.logger.Error("handoff channel panicked",
				slog.String("channel", ch.Name()),
				slog.String("inquiry_id", inq.ID),
				slog.Any("panic", r),
			)
		}
	}()

	for attempt := 1; ; attempt++ {
		err := d.attempt(ctx, ch, inq, message)
		if err == nil {
			d.logger.Info("handoff delivered",
				slog.String("channel", ch.Name()),
				slog.String("inquiry_id", inq.ID),
				slog.Int("attempt", attempt),
			)
			return
		}

		if IsPermanent(err) || attempt >= d.retry.Attempts {
			d.metrics.RecordHandoffFailure(ch.Name())
			d.logger.Warn("handoff delivery failed",
				slog.String("channel", ch.Name()),
				slog.String("inquiry_id", inq.ID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return
		}

		delay := d.retry.Backoff(attempt)
		d.logger.Info("handoff delivery will be retried",
			slog.String("channel", ch.Name()),
			slog.String("inquiry_id", inq.ID),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("error", err.Error()),
		)
		time.Sleep(delay)
	}
}

func (d *Dispatcher) attempt(ctx context.Context, ch Channel, inq model.Inquiry, message string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return ch.Deliver(ctx, inq, message)
}

// Wait は開始済みの配送がすべて終わるまで待つ。シャットダウン時に使う。
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
