package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/autowheel/internal/model"
)

// PostgresListingRepo はPostgreSQLを使用した車両リポジトリ。
type PostgresListingRepo struct {
	db *sql.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

var _ ListingRepository = (*PostgresListingRepo)(nil)

const listingColumns = `id, make, model, year, category, engine_cc, fuel_type, transmission, grade,
	location, mileage, price, tax, views, rating, is_hot_deal, images, description, features,
	created_at, updated_at`

// rowScanner は *sql.Row と *sql.Rows の共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(s rowScanner) (*model.Listing, error) {
	l := &model.Listing{}
	var tax sql.NullInt64
	var images, features pq.StringArray
	err := s.Scan(
		&l.ID, &l.Make, &l.Model, &l.Year, &l.Category, &l.EngineCC, &l.FuelType, &l.Transmission, &l.Grade,
		&l.Location, &l.Mileage, &l.Price, &tax, &l.Views, &l.Rating, &l.IsHotDeal, &images, &l.Description, &features,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tax.Valid {
		v := tax.Int64
		l.Tax = &v
	}
	l.Images = []string(images)
	l.Features = []string(features)
	return l, nil
}

func nullableTax(tax *int64) sql.NullInt64 {
	if tax == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *tax, Valid: true}
}

// ListAll は全車両を登録日時の新しい順で返す。
func (r *PostgresListingRepo) ListAll(ctx context.Context) ([]model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("車両一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("車両行の読み取りに失敗しました: %w", err)
		}
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("車両一覧の走査に失敗しました: %w", err)
	}
	return listings, nil
}

// FindByID は指定IDの車両を取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByID(ctx context.Context, id int64) (*model.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("車両の取得に失敗しました: %w", err)
	}
	return l, nil
}

// Create は車両を作成する。
func (r *PostgresListingRepo) Create(ctx context.Context, l *model.Listing) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO listings (make, model, year, category, engine_cc, fuel_type, transmission, grade,
			location, mileage, price, tax, rating, is_hot_deal, images, description, features)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING id, views, created_at, updated_at`,
		l.Make, l.Model, l.Year, l.Category, l.EngineCC, l.FuelType, l.Transmission, l.Grade,
		l.Location, l.Mileage, l.Price, nullableTax(l.Tax), l.Rating, l.IsHotDeal,
		pq.Array(l.Images), l.Description, pq.Array(l.Features),
	).Scan(&l.ID, &l.Views, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("車両の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は車両情報を更新する。閲覧数と作成日時は変更しない。
func (r *PostgresListingRepo) Update(ctx context.Context, l *model.Listing) (bool, error) {
	err := r.db.QueryRowContext(ctx,
		`UPDATE listings SET make = $2, model = $3, year = $4, category = $5, engine_cc = $6,
			fuel_type = $7, transmission = $8, grade = $9, location = $10, mileage = $11,
			price = $12, tax = $13, rating = $14, is_hot_deal = $15, images = $16,
			description = $17, features = $18, updated_at = NOW()
		 WHERE id = $1
		 RETURNING views, created_at, updated_at`,
		l.ID, l.Make, l.Model, l.Year, l.Category, l.EngineCC,
		l.FuelType, l.Transmission, l.Grade, l.Location, l.Mileage,
		l.Price, nullableTax(l.Tax), l.Rating, l.IsHotDeal, pq.Array(l.Images),
		l.Description, pq.Array(l.Features),
	).Scan(&l.Views, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("車両の更新に失敗しました: %w", err)
	}
	return true, nil
}

// DeleteByID は指定IDの車両を削除する。
func (r *PostgresListingRepo) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("車両の削除に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// IncrementViews は閲覧数を1増やす。
func (r *PostgresListingRepo) IncrementViews(ctx context.Context, id int64) (int, bool, error) {
	var views int
	err := r.db.QueryRowContext(ctx,
		`UPDATE listings SET views = views + 1 WHERE id = $1 RETURNING views`,
		id,
	).Scan(&views)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("閲覧数の更新に失敗しました: %w", err)
	}
	return views, true, nil
}
