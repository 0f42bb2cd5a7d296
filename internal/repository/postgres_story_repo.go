package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/autowheel/internal/model"
)

// PostgresStoryRepo はPostgreSQLを使用した体験談リポジトリ。
type PostgresStoryRepo struct {
	db *sql.DB
}

// NewPostgresStoryRepo はPostgresStoryRepoを生成する。
func NewPostgresStoryRepo(db *sql.DB) *PostgresStoryRepo {
	return &PostgresStoryRepo{db: db}
}

var _ StoryRepository = (*PostgresStoryRepo)(nil)

// ListAll は全体験談を登録日時の新しい順で返す。
func (r *PostgresStoryRepo) ListAll(ctx context.Context) ([]model.SuccessStory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, customer_name, location, photo_url, description, created_at, updated_at
		 FROM success_stories ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("体験談一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var stories []model.SuccessStory
	for rows.Next() {
		var s model.SuccessStory
		if err := rows.Scan(&s.ID, &s.CustomerName, &s.Location, &s.PhotoURL, &s.Description, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("体験談行の読み取りに失敗しました: %w", err)
		}
		stories = append(stories, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("体験談一覧の走査に失敗しました: %w", err)
	}
	return stories, nil
}

// FindByID は指定IDの体験談を取得する。見つからない場合はnilを返す。
func (r *PostgresStoryRepo) FindByID(ctx context.Context, id int64) (*model.SuccessStory, error) {
	s := &model.SuccessStory{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, customer_name, location, photo_url, description, created_at, updated_at
		 FROM success_stories WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.CustomerName, &s.Location, &s.PhotoURL, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("体験談の取得に失敗しました: %w", err)
	}
	return s, nil
}

// Create は体験談を作成する。
func (r *PostgresStoryRepo) Create(ctx context.Context, s *model.SuccessStory) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO success_stories (customer_name, location, photo_url, description)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		s.CustomerName, s.Location, s.PhotoURL, s.Description,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("体験談の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は体験談を更新する。
func (r *PostgresStoryRepo) Update(ctx context.Context, s *model.SuccessStory) (bool, error) {
	err := r.db.QueryRowContext(ctx,
		`UPDATE success_stories SET customer_name = $2, location = $3, photo_url = $4,
			description = $5, updated_at = NOW()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		s.ID, s.CustomerName, s.Location, s.PhotoURL, s.Description,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("体験談の更新に失敗しました: %w", err)
	}
	return true, nil
}

// DeleteByID は指定IDの体験談を削除する。
func (r *PostgresStoryRepo) DeleteByID(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM success_stories WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("体験談の削除に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}
