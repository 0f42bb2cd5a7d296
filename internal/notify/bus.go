// Package notify は問い合わせキューの変更を関心のあるオブザーバーへ伝える通知バスを提供する。
//
// 通知は「キューが変わった」という合図だけを運ぶ。受け取った側は必ずストアから
// キュー全体を読み直すこと。同じ変更が複数回届いても結果は変わらない。
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/autowheel/internal/kv"
)

// Origin は通知の発生元を表す。
type Origin string

const (
	// OriginLocal は同じプロセス内での書き込みによる通知。
	OriginLocal Origin = "local"
	// OriginRemote は他のプロセスがストアを書き換えたことによる通知。
	OriginRemote Origin = "remote"
)

// Kind は通知の種類を表す。
type Kind string

const (
	// KindQueueChanged は問い合わせキューが書き換えられたことを表す。
	KindQueueChanged Kind = "inquiry_queue_changed"
)

// Event は通知バスで配送される変更の合図。
type Event struct {
	Kind   Kind
	Origin Origin
	// InquiryID は変更のきっかけになった問い合わせ。分からない場合は空。
	InquiryID string
	At        time.Time
}

// Bus は同期配送のpublish/subscribeチャネル。
// Publishは登録順に全オブザーバーを呼び出してから戻る。
type Bus struct {
	mu        sync.Mutex
	nextID    int
	observers []busObserver
	logger    *slog.Logger
	now       func() time.Time
}

type busObserver struct {
	id int
	fn func(Event)
}

// NewBus はBusを生成する。
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger: logger,
		now:    time.Now,
	}
}

// OnInquiryQueueChanged はキュー変更時に呼ばれるコールバックを登録し、登録解除関数を返す。
// 登録解除関数は何度呼んでもよい。
func (b *Bus) OnInquiryQueueChanged(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.observers = append(b.observers, busObserver{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, o := range b.observers {
			if o.id == id {
				b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
				return
			}
		}
	}
}

// Publish はイベントを全オブザーバーへ同期的に配送する。
// オブザーバーのpanicは回復してログに残し、残りのオブザーバーへの配送を続ける。
func (b *Bus) Publish(ev Event) {
	if ev.Kind == "" {
		ev.Kind = KindQueueChanged
	}
	if ev.Origin == "" {
		ev.Origin = OriginLocal
	}
	if ev.At.IsZero() {
		ev.At = b.now()
	}

	b.mu.Lock()
	obs := make([]busObserver, len(b.observers))
	copy(obs, b.observers)
	b.mu.Unlock()

	for _, o := range obs {
		b.deliver(o, ev)
	}
}

func (b *Bus) deliver(o busObserver, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("notification observer panicked",
				slog.String("kind", string(ev.Kind)),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	o.fn(ev)
}

// Subscribers は現在登録されているオブザーバー数を返す。
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}

// Bridge はストアのネイティブな変更通知をBusへ中継する。
// 他のプロセスによる書き込みもローカルの書き込みと同じ経路でオブザーバーに届く。
// 戻り値の関数で中継を停止する。
func Bridge(ctx context.Context, bus *Bus, store kv.Store, key string) (func(), error) {
	unsubscribe, err := store.Subscribe(ctx, key, func() {
		bus.Publish(Event{Kind: KindQueueChanged, Origin: OriginRemote})
	})
	if err != nil {
		return nil, fmt.Errorf("ストア変更通知の購読に失敗しました: %w", err)
	}
	return unsubscribe, nil
}
