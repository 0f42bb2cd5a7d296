package console

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/autowheel/internal/debounce"
	"github.com/hitoshi/autowheel/internal/model"
	"github.com/hitoshi/autowheel/internal/notify"
)

// DefaultWatchDebounce は変更通知をまとめる時間の既定値。
const DefaultWatchDebounce = 250 * time.Millisecond

// Watcher は変更通知を受けるたびにキューを読み直し、コールバックへ渡す。
// 短時間に続いた通知はまとめて1回の読み直しにする。
type Watcher struct {
	console *Console
	logger  *slog.Logger
	push    func([]model.Inquiry)

	ticks       *debounce.Value[uint64]
	mu          sync.Mutex
	seq         uint64
	unsubscribe func()
	stopTicks   func()
	closeOnce   sync.Once
}

// Watch はバスを購読するWatcherを開始する。
// 開始直後に1回、現在のキューをpushへ渡す。
func Watch(ctx context.Context, c *Console, bus *notify.Bus, delay time.Duration, push func([]model.Inquiry), opts ...debounce.Option) *Watcher {
	w := &Watcher{
		console: c,
		logger:  c.logger,
		push:    push,
		ticks:   debounce.New[uint64](0, delay, opts...),
	}
	reload := context.WithoutCancel(ctx)
	w.stopTicks = w.ticks.OnChange(func(uint64) {
		w.refresh(reload)
	})
	w.unsubscribe = bus.OnInquiryQueueChanged(func(notify.Event) {
		w.mu.Lock()
		w.seq++
		seq := w.seq
		w.mu.Unlock()
		w.ticks.Set(seq)
	})

	w.refresh(reload)
	return w
}

func (w *Watcher) refresh(ctx context.Context) {
	inquiries, err := w.console.List(ctx, ListOptions{})
	if err != nil {
		w.logger.Error("failed to reload inquiry queue", slog.String("error", err.Error()))
		return
	}
	w.push(inquiries)
}

// Close は購読を解除し、保留中の読み直しを取り消す。
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		w.unsubscribe()
		w.stopTicks()
		w.ticks.Stop()
	})
}
