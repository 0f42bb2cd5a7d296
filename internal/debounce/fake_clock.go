package debounce

import (
	"sort"
	"sync"
	"time"
)

// FakeClock は手動で時刻を進める AfterFunc の実装。
// デバウンスに依存するパッケージのテストで使う。
type FakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *FakeClock
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

// Stop はタイマーを取り消す。発火前に取り消せた場合はtrueを返す。
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewFakeClock は経過時間0のFakeClockを生成する。
func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

// AfterFunc は WithAfterFunc に渡す関数を返す。
func (c *FakeClock) AfterFunc() AfterFunc {
	return func(d time.Duration, f func()) Timer {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.seq++
		t := &fakeTimer{clock: c, at: c.now + d, seq: c.seq, fn: f}
		c.timers = append(c.timers, t)
		return t
	}
}

// Advance は時刻をdだけ進め、期限を迎えたタイマーを期限順に同期実行する。
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		due := c.nextDue(target)
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = due.at
		due.fired = true
		c.mu.Unlock()

		due.fn()
	}
}

// Pending は未発火かつ未取り消しのタイマー数を返す。
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *FakeClock) nextDue(target time.Duration) *fakeTimer {
	var live []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.Slice(live, func(i, j int) bool {
		if live[i].at == live[j].at {
			return live[i].seq < live[j].seq
		}
		return live[i].at < live[j].at
	})
	if len(live) == 0 || live[0].at > target {
		return nil
	}
	return live[0]
}
