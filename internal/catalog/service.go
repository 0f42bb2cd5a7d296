package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/autowheel/internal/model"
	"github.com/hitoshi/autowheel/internal/repository"
	"github.com/hitoshi/autowheel/internal/security"
)

// Service は車両カタログの取得・絞り込み・管理を行うサービス。
type Service struct {
	repo      repository.ListingRepository
	sanitizer security.ContentSanitizerService
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ListingRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
	}
}

// List は全車両のスナップショットを取得し、filterで絞り込んでから表示順に並べ替えて返す。
// テキスト検索には filter.Query を使う。
func (s *Service) List(ctx context.Context, filter model.FilterState, order model.ListingSort) ([]model.Listing, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	result := Filter(all, filter.Query, filter)
	SortListings(result, order)
	return result, nil
}

// Snapshot は絞り込み前の全車両を返す。閲覧セッションの初期データとして使う。
func (s *Service) Snapshot(ctx context.Context) ([]model.Listing, error) {
	return s.repo.ListAll(ctx)
}

// Get は指定IDの車両を返す。見つからない場合はLISTING_NOT_FOUNDエラーを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.Listing, error) {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, model.NewListingNotFoundError(id)
	}
	return l, nil
}

// Create は入力を検証・整形してから車両を登録する。
func (s *Service) Create(ctx context.Context, l *model.Listing) (*model.Listing, error) {
	if err := s.prepare(l); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Update は入力を検証・整形してから車両情報を更新する。
func (s *Service) Update(ctx context.Context, l *model.Listing) (*model.Listing, error) {
	if err := s.prepare(l); err != nil {
		return nil, err
	}
	found, err := s.repo.Update(ctx, l)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, model.NewListingNotFoundError(l.ID)
	}
	return l, nil
}

// Delete は車両を削除する。既存の問い合わせはスナップショットを持つため影響を受けない。
func (s *Service) Delete(ctx context.Context, id int64) error {
	found, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return model.NewListingNotFoundError(id)
	}
	return nil
}

// RecordView は閲覧数を1増やし、更新後の閲覧数を返す。
func (s *Service) RecordView(ctx context.Context, id int64) (int, error) {
	views, found, err := s.repo.IncrementViews(ctx, id)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, model.NewListingNotFoundError(id)
	}
	return views, nil
}

// prepare は管理画面からの入力を検証し、保存できる形に整える。
func (s *Service) prepare(l *model.Listing) error {
	l.Make = strings.TrimSpace(l.Make)
	l.Model = strings.TrimSpace(l.Model)
	l.Location = strings.TrimSpace(l.Location)
	l.Category = strings.TrimSpace(l.Category)
	l.EngineCC = strings.TrimSpace(l.EngineCC)
	l.FuelType = strings.TrimSpace(l.FuelType)
	l.Transmission = strings.TrimSpace(l.Transmission)
	l.Grade = strings.TrimSpace(l.Grade)

	if l.Make == "" {
		return model.NewInvalidListingError("メーカーは必須です")
	}
	if l.Model == "" {
		return model.NewInvalidListingError("モデルは必須です")
	}
	maxYear := s.now().Year() + 1
	if l.Year < 1900 || l.Year > maxYear {
		return model.NewInvalidListingError(fmt.Sprintf("年式は1900から%dの範囲で指定してください", maxYear))
	}
	if l.Price < 0 {
		return model.NewInvalidListingError("価格は0以上で指定してください")
	}
	if l.Tax != nil && *l.Tax < 0 {
		return model.NewInvalidListingError("税額は0以上で指定してください")
	}
	if l.Mileage < 0 {
		return model.NewInvalidListingError("走行距離は0以上で指定してください")
	}
	if l.Rating == 0 {
		l.Rating = 5
	}
	if l.Rating < 1 || l.Rating > 5 {
		return model.NewInvalidListingError("評価は1から5の範囲で指定してください")
	}
	if l.Grade == "" {
		l.Grade = "G"
	}

	features, err := normalizeFeatures(l.Features)
	if err != nil {
		return err
	}
	l.Features = features
	l.Images = compact(l.Images)
	l.Description = s.sanitizer.Sanitize(l.Description)
	return nil
}

// normalizeFeatures は装備タグの前後空白を除き、空要素を捨て、重複を拒否する。
func normalizeFeatures(features []string) ([]string, error) {
	seen := make(map[string]bool, len(features))
	out := make([]string, 0, len(features))
	for _, f := range features {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		key := strings.ToLower(f)
		if seen[key] {
			return nil, model.NewInvalidListingError(fmt.Sprintf("装備が重複しています: %s", f))
		}
		seen[key] = true
		out = append(out, f)
	}
	return out, nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
