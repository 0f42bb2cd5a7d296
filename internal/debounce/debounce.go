// Package debounce は連続して変化する値を、入力が落ち着くまで遅延して伝播させる。
package debounce

import (
	"sync"
	"time"
)

// Timer は予約済みの遅延実行を表す。time.Timer を満たす。
type Timer interface {
	Stop() bool
}

// AfterFunc は遅延実行を予約する関数。既定は time.AfterFunc。
type AfterFunc func(d time.Duration, f func()) Timer

// Option はValueの設定を変更する。
type Option func(*options)

type options struct {
	afterFunc AfterFunc
}

// WithAfterFunc は遅延実行の仕組みを差し替える。テストで時間を制御するために使う。
func WithAfterFunc(fn AfterFunc) Option {
	return func(o *options) {
		o.afterFunc = fn
	}
}

func defaultAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Value はデバウンスされた値を保持する。
// Set のたびに保留中の伝播を取り消して予約し直すため、最後の値だけが伝播する。
type Value[T any] struct {
	mu        sync.Mutex
	delay     time.Duration
	current   T
	pending   Timer
	gen       uint64
	stopped   bool
	nextID    int
	observers []observer[T]
	afterFunc AfterFunc
}

type observer[T any] struct {
	id int
	fn func(T)
}

// New は初期値と遅延時間からValueを生成する。
// delayが0以下の場合はSetした値を即座に伝播する。
func New[T any](initial T, delay time.Duration, opts ...Option) *Value[T] {
	o := &options{afterFunc: defaultAfterFunc}
	for _, opt := range opts {
		opt(o)
	}
	return &Value[T]{
		delay:     delay,
		current:   initial,
		afterFunc: o.afterFunc,
	}
}

// Get は最後に伝播した値を返す。一度も伝播していなければ初期値を返す。
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set は入力値を更新する。
// 保留中の伝播があれば取り消し、delay経過後に val を伝播するよう予約し直す。
// Stop 後の呼び出しは無視する。
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	if v.pending != nil {
		v.pending.Stop()
		v.pending = nil
	}
	v.gen++
	gen := v.gen

	if v.delay <= 0 {
		v.mu.Unlock()
		v.propagate(gen, val)
		return
	}

	v.pending = v.afterFunc(v.delay, func() {
		v.propagate(gen, val)
	})
	v.mu.Unlock()
}

// propagate は世代が最新の場合に限り値を確定してオブザーバーへ通知する。
// Stop済みのTimerが発火してしまった場合でも古い値が伝播しないよう世代で判定する。
func (v *Value[T]) propagate(gen uint64, val T) {
	v.mu.Lock()
	if v.stopped || gen != v.gen {
		v.mu.Unlock()
		return
	}
	v.pending = nil
	v.current = val
	obs := make([]observer[T], len(v.observers))
	copy(obs, v.observers)
	v.mu.Unlock()

	for _, o := range obs {
		o.fn(val)
	}
}

// OnChange は伝播のたびに呼ばれるコールバックを登録し、登録解除関数を返す。
func (v *Value[T]) OnChange(fn func(T)) func() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.nextID++
	id := v.nextID
	v.observers = append(v.observers, observer[T]{id: id, fn: fn})

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		for i, o := range v.observers {
			if o.id == id {
				v.observers = append(v.observers[:i], v.observers[i+1:]...)
				return
			}
		}
	}
}

// Stop は保留中の伝播を取り消し、以降のSetを無視する。複数回呼んでもよい。
func (v *Value[T]) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopped = true
	if v.pending != nil {
		v.pending.Stop()
		v.pending = nil
	}
}
