package inquiry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/autowheel/internal/kv"
	"github.com/hitoshi/autowheel/internal/model"
)

// DefaultQueueKey は問い合わせキューを保存するキー。
const DefaultQueueKey = "autowheel:inquiries"

// ErrPersistence は問い合わせキューの読み書きに失敗したことを表す。
var ErrPersistence = errors.New("問い合わせキューの保存に失敗しました")

// Queue は問い合わせキューをkv.Storeの1スロットにJSON配列としてまるごと保存する。
//
// すべての更新はキュー全体の読み込み、変更、書き戻しで行う。ロックやバージョン番号は持たないため、
// 同時に更新した場合は後から書いた側の内容が残る。
type Queue struct {
	store kv.Store
	key   string
}

// NewQueue はQueueを生成する。keyが空の場合はDefaultQueueKeyを使う。
func NewQueue(store kv.Store, key string) *Queue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &Queue{store: store, key: key}
}

// Key はキューを保存しているキーを返す。
func (q *Queue) Key() string {
	return q.key
}

// Store はキューの保存先を返す。
func (q *Queue) Store() kv.Store {
	return q.store
}

// Load はキュー全体を読み込む。スロットが存在しない場合は空のキューを返す。
func (q *Queue) Load(ctx context.Context) ([]model.Inquiry, error) {
	raw, found, err := q.store.Get(ctx, q.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if !found || len(raw) == 0 {
		return []model.Inquiry{}, nil
	}

	var inquiries []model.Inquiry
	if err := json.Unmarshal(raw, &inquiries); err != nil {
		return nil, fmt.Errorf("問い合わせキューの形式が不正です: %w", err)
	}
	if inquiries == nil {
		inquiries = []model.Inquiry{}
	}
	return inquiries, nil
}

// Save はキュー全体を置き換える。
func (q *Queue) Save(ctx context.Context, inquiries []model.Inquiry) error {
	if inquiries == nil {
		inquiries = []model.Inquiry{}
	}
	raw, err := json.Marshal(inquiries)
	if err != nil {
		return fmt.Errorf("問い合わせキューのエンコードに失敗しました: %w", err)
	}
	if err := q.store.Set(ctx, q.key, raw); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Append は問い合わせを末尾に追加する。
func (q *Queue) Append(ctx context.Context, inq model.Inquiry) error {
	inquiries, err := q.Load(ctx)
	if err != nil {
		return err
	}
	return q.Save(ctx, append(inquiries, inq))
}

// Update はidの問い合わせにfnを適用して保存し、更新後の値を返す。
// 見つからない場合は nil, nil を返し、何も書き込まない。
func (q *Queue) Update(ctx context.Context, id string, fn func(*model.Inquiry)) (*model.Inquiry, error) {
	inquiries, err := q.Load(ctx)
	if err != nil {
		return nil, err
	}

	idx := indexOf(inquiries, id)
	if idx < 0 {
		return nil, nil
	}
	fn(&inquiries[idx])

	if err := q.Save(ctx, inquiries); err != nil {
		return nil, err
	}
	updated := inquiries[idx]
	return &updated, nil
}

// Remove はidの問い合わせを取り除いて保存する。見つからない場合は false を返す。
func (q *Queue) Remove(ctx context.Context, id string) (bool, error) {
	inquiries, err := q.Load(ctx)
	if err != nil {
		return false, err
	}

	idx := indexOf(inquiries, id)
	if idx < 0 {
		return false, nil
	}
	kept := append(inquiries[:idx:idx], inquiries[idx+1:]...)

	if err := q.Save(ctx, kept); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveWhere はpredが真を返す問い合わせをすべて取り除き、取り除いた件数を返す。
// 1件も該当しない場合は書き込まない。
func (q *Queue) RemoveWhere(ctx context.Context, pred func(model.Inquiry) bool) (int, error) {
	inquiries, err := q.Load(ctx)
	if err != nil {
		return 0, err
	}

	kept := make([]model.Inquiry, 0, len(inquiries))
	for _, inq := range inquiries {
		if !pred(inq) {
			kept = append(kept, inq)
		}
	}
	removed := len(inquiries) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if err := q.Save(ctx, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func indexOf(inquiries []model.Inquiry, id string) int {
	for i := range inquiries {
		if inquiries[i].ID == id {
			return i
		}
	}
	return -1
}
