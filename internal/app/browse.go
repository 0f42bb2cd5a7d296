package app

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/autowheel/internal/catalog"
	"github.com/hitoshi/autowheel/internal/debounce"
	"github.com/hitoshi/autowheel/internal/handoff"
	"github.com/hitoshi/autowheel/internal/model"
)

const browseHelp = `入力した文字列で在庫を検索します。
  /filter make=Toyota&fuel_type=Hybrid&max_price=8000000   絞り込み（クエリ文字列形式、空で解除）
  /sort price_asc|price_desc|newest|views                  並び順
  /quit                                                    終了
`

// runBrowse は標準入力の各行を検索ボックスへの入力として扱う閲覧セッションを実行する。
// 表示対象が再計算されるたびに一覧を out に書き出す。
func runBrowse(in io.Reader, out io.Writer, listings []model.Listing, delay time.Duration, opts ...debounce.Option) error {
	b := catalog.NewBrowser(listings, delay, opts...)
	defer b.Close()

	var (
		mu      sync.Mutex
		order   = model.ListingSortNewest
		pending string
	)
	settled := make(chan struct{}, 1)

	show := func(visible []model.Listing) {
		mu.Lock()
		defer mu.Unlock()
		writeListings(out, visible, b.Query(), order)
	}
	unsubscribe := b.OnChange(func(visible []model.Listing) {
		show(visible)
		select {
		case settled <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	fmt.Fprint(out, browseHelp)
	show(b.Visible())

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/filter"):
			values, err := url.ParseQuery(strings.TrimSpace(strings.TrimPrefix(line, "/filter")))
			if err != nil {
				mu.Lock()
				fmt.Fprintf(out, "絞り込み条件を解釈できません: %v\n", err)
				mu.Unlock()
				continue
			}
			b.SetFilter(catalog.ParseFilterState(values))
		case strings.HasPrefix(line, "/sort"):
			mu.Lock()
			order = catalog.ParseSort(strings.TrimSpace(strings.TrimPrefix(line, "/sort")))
			mu.Unlock()
			show(b.Visible())
		default:
			pending = line
			b.SetQuery(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	// 入力が終わっても保留中のクエリは反映してから終了する
	for b.Query() != pending {
		select {
		case <-settled:
		case <-time.After(2 * delay):
			return nil
		}
	}
	return nil
}

func writeListings(out io.Writer, listings []model.Listing, query string, order model.ListingSort) {
	sorted := make([]model.Listing, len(listings))
	copy(sorted, listings)
	catalog.SortListings(sorted, order)

	fmt.Fprintf(out, "-- %d件 (検索: %q, 並び順: %s) --\n", len(sorted), query, order)
	for _, l := range sorted {
		hot := ""
		if l.IsHotDeal {
			hot = " [HOT]"
		}
		fmt.Fprintf(out, "#%d %s %s %d | %s | %s | %s%s\n",
			l.ID, l.Make, l.Model, l.Year, l.FuelType, l.Transmission, handoff.FormatLKR(l.TotalPrice()), hot)
	}
}
