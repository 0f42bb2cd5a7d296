package catalog

import (
	"sync"
	"time"

	"github.com/hitoshi/autowheel/internal/debounce"
	"github.com/hitoshi/autowheel/internal/model"
)

// DefaultSearchDebounce は検索ボックス入力のデバウンス時間の既定値。
const DefaultSearchDebounce = 500 * time.Millisecond

// Browser は1回分の閲覧セッションを表す。
// テキストクエリはデバウンスしてから反映し、絞り込み条件は即座に反映する。
// 表示対象は常に最新のスナップショットから再計算する。
type Browser struct {
	mu        sync.Mutex
	listings  []model.Listing
	filter    model.FilterState
	visible   []model.Listing
	query     *debounce.Value[string]
	applied   string
	nextID    int
	observers map[int]func([]model.Listing)
	stopQuery func()
}

// NewBrowser はカタログのスナップショットから閲覧セッションを生成する。
func NewBrowser(listings []model.Listing, delay time.Duration, opts ...debounce.Option) *Browser {
	b := &Browser{
		listings:  listings,
		query:     debounce.New("", delay, opts...),
		observers: make(map[int]func([]model.Listing)),
	}
	b.visible = Filter(listings, "", b.filter)
	b.stopQuery = b.query.OnChange(func(q string) {
		b.mu.Lock()
		b.applied = q
		b.mu.Unlock()
		b.recompute()
	})
	return b
}

// SetQuery は検索ボックスの入力を受け取る。反映はデバウンス後に行う。
func (b *Browser) SetQuery(q string) {
	b.query.Set(q)
}

// Query はデバウンス済みの（現在表示に反映されている）クエリを返す。
func (b *Browser) Query() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.applied
}

// SetFilter は絞り込み条件を置き換えて即座に再計算する。
// FilterState.Query は無視し、テキスト検索は SetQuery で行う。
func (b *Browser) SetFilter(f model.FilterState) {
	b.mu.Lock()
	b.filter = f
	b.mu.Unlock()
	b.recompute()
}

// SetListings はカタログのスナップショットを差し替えて即座に再計算する。
func (b *Browser) SetListings(listings []model.Listing) {
	b.mu.Lock()
	b.listings = listings
	b.mu.Unlock()
	b.recompute()
}

// Visible は現在の表示対象を返す。
func (b *Browser) Visible() []model.Listing {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Listing, len(b.visible))
	copy(out, b.visible)
	return out
}

// OnChange は表示対象が再計算されるたびに呼ばれるコールバックを登録し、登録解除関数を返す。
func (b *Browser) OnChange(fn func([]model.Listing)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.observers[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.observers, id)
	}
}

// Close は保留中のクエリ反映を取り消し、セッションを終了する。
func (b *Browser) Close() {
	b.stopQuery()
	b.query.Stop()
}

// recompute は反映済みクエリと絞り込み条件を同じロック内で読み、表示対象を作り直す。
func (b *Browser) recompute() {
	b.mu.Lock()
	b.visible = Filter(b.listings, b.applied, b.filter)
	visible := make([]model.Listing, len(b.visible))
	copy(visible, b.visible)
	obs := make([]func([]model.Listing), 0, len(b.observers))
	for _, fn := range b.observers {
		obs = append(obs, fn)
	}
	b.mu.Unlock()

	for _, fn := range obs {
		fn(visible)
	}
}
