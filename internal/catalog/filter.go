// Package catalog は車両カタログの絞り込みと管理を提供する。
package catalog

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/hitoshi/autowheel/internal/model"
)

// Filter は listings のうち filter とテキストクエリ query の両方を満たすものを返す。
// 入力の順序を保ち、並び替えは行わない。listingsは変更しない。
func Filter(listings []model.Listing, query string, filter model.FilterState) []model.Listing {
	q := strings.ToLower(strings.TrimSpace(query))
	result := make([]model.Listing, 0, len(listings))
	for i := range listings {
		if matchesQuery(&listings[i], q) && Matches(&listings[i], filter) {
			result = append(result, listings[i])
		}
	}
	return result
}

// Matches は listing が filter の設定済み制約をすべて満たすかを返す。
// filter.Query はここでは評価しない（デバウンス済みのクエリを Filter に渡すため）。
func Matches(l *model.Listing, f model.FilterState) bool {
	if !matchesExact(l.Make, f.Make) ||
		!matchesExact(l.FuelType, f.FuelType) ||
		!matchesExact(l.Category, f.Category) ||
		!matchesExact(l.EngineCC, f.EngineCC) ||
		!matchesExact(l.Grade, f.Grade) ||
		!matchesExact(l.Transmission, f.Transmission) {
		return false
	}

	if f.MinPrice != nil && l.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && l.Price > *f.MaxPrice {
		return false
	}

	if f.HotDealOnly && !l.IsHotDeal {
		return false
	}

	return true
}

// matchesExact は制約が未設定なら常にtrue、設定済みなら大文字小文字を区別して完全一致を判定する。
// 車両側が空の場合、設定済みの制約には一致しない。
func matchesExact(value, constraint string) bool {
	if constraint == "" {
		return true
	}
	return value == constraint
}

// matchesQuery は小文字化済みのクエリがメーカー・モデル・地域・カテゴリ・排気量のいずれかに部分一致するかを返す。
func matchesQuery(l *model.Listing, q string) bool {
	if q == "" {
		return true
	}
	for _, field := range []string{l.Make, l.Model, l.Location, l.Category, l.EngineCC} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// ParseFilterState はクエリパラメータから絞り込み条件を組み立てる。
// 価格が数値として解釈できない場合は未設定として扱う。
func ParseFilterState(values url.Values) model.FilterState {
	return model.FilterState{
		Query:        values.Get("q"),
		Make:         values.Get("make"),
		FuelType:     values.Get("fuel_type"),
		Category:     values.Get("category"),
		EngineCC:     values.Get("engine_cc"),
		Grade:        values.Get("grade"),
		Transmission: values.Get("transmission"),
		MinPrice:     parsePrice(values.Get("min_price")),
		MaxPrice:     parsePrice(values.Get("max_price")),
		HotDealOnly:  parseBool(values.Get("hot_deal")),
	}
}

func parsePrice(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// ParseSort は表示順の指定を解釈する。未知の値は登録日時の新しい順として扱う。
func ParseSort(s string) model.ListingSort {
	switch model.ListingSort(s) {
	case model.ListingSortPriceAsc, model.ListingSortPriceDesc, model.ListingSortViews:
		return model.ListingSort(s)
	default:
		return model.ListingSortNewest
	}
}

// SortListings は絞り込み済みの一覧を表示順に並べ替える。
// 同順位の場合は元の順序を保つ。
func SortListings(listings []model.Listing, order model.ListingSort) {
	var less func(a, b *model.Listing) bool
	switch order {
	case model.ListingSortPriceAsc:
		less = func(a, b *model.Listing) bool { return a.Price < b.Price }
	case model.ListingSortPriceDesc:
		less = func(a, b *model.Listing) bool { return a.Price > b.Price }
	case model.ListingSortViews:
		less = func(a, b *model.Listing) bool { return a.Views > b.Views }
	default:
		less = func(a, b *model.Listing) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(listings, func(i, j int) bool {
		return less(&listings[i], &listings[j])
	})
}
