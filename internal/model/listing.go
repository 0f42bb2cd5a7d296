// Package model はドメインモデルを定義する。
package model

import "time"

// Listing は販売車両のカタログエントリを表す。
// 価格はLKR建て。
type Listing struct {
	ID           int64
	Make         string
	Model        string
	Year         int
	Category     string
	EngineCC     string // 排気量クラス（例: "1500cc"）
	FuelType     string
	Transmission string
	Grade        string
	Location     string
	Mileage      int
	Price        int64
	Tax          *int64 // 未設定の場合はnil
	Views        int
	Rating       int
	IsHotDeal    bool
	Images       []string
	Description  string
	Features     []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TotalPrice は税込価格を返す。税が未設定の場合は本体価格をそのまま返す。
func (l *Listing) TotalPrice() int64 {
	if l.Tax == nil {
		return l.Price
	}
	return l.Price + *l.Tax
}

// ListingSnapshot は問い合わせ作成時点の車両情報のコピー。
// 車両が後から編集・削除されても問い合わせ履歴の意味が失われないように保持する。
type ListingSnapshot struct {
	ID    int64  `json:"id"`
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
	Price int64  `json:"price"`
}

// Snapshot は現在の車両情報からスナップショットを作成する。
func (l *Listing) Snapshot() ListingSnapshot {
	return ListingSnapshot{
		ID:    l.ID,
		Make:  l.Make,
		Model: l.Model,
		Year:  l.Year,
		Price: l.Price,
	}
}

// FilterState はカタログ閲覧時の絞り込み条件を表す。
// 空文字・nil・falseのフィールドは制約を課さない。
type FilterState struct {
	Query        string
	Make         string
	FuelType     string
	Category     string
	EngineCC     string
	Grade        string
	Transmission string
	MinPrice     *int64
	MaxPrice     *int64
	HotDealOnly  bool
}

// ListingSort は絞り込み後の表示順を表す。
type ListingSort string

const (
	// ListingSortNewest は登録日時の新しい順。
	ListingSortNewest ListingSort = "newest"
	// ListingSortPriceAsc は価格の安い順。
	ListingSortPriceAsc ListingSort = "price_asc"
	// ListingSortPriceDesc は価格の高い順。
	ListingSortPriceDesc ListingSort = "price_desc"
	// ListingSortViews は閲覧数の多い順。
	ListingSortViews ListingSort = "views"
)
