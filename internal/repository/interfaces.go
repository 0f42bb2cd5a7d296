// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/autowheel/internal/model"
)

// ListingRepository は車両カタログの永続化インターフェース。
type ListingRepository interface {
	// ListAll は全車両を登録日時の新しい順で返す。
	ListAll(ctx context.Context) ([]model.Listing, error)

	// FindByID は指定IDの車両を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Listing, error)

	// Create は車両を作成し、採番されたIDと作成日時をlistingに設定する。
	Create(ctx context.Context, listing *model.Listing) error

	// Update は車両情報を更新する。対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, listing *model.Listing) (bool, error)

	// DeleteByID は指定IDの車両を削除する。対象が存在しない場合はfalseを返す。
	DeleteByID(ctx context.Context, id int64) (bool, error)

	// IncrementViews は閲覧数を1増やし、更新後の閲覧数を返す。
	// 対象が存在しない場合は found=false を返す。
	IncrementViews(ctx context.Context, id int64) (views int, found bool, err error)
}

// StoryRepository は成約体験談の永続化インターフェース。
type StoryRepository interface {
	// ListAll は全体験談を登録日時の新しい順で返す。
	ListAll(ctx context.Context) ([]model.SuccessStory, error)

	// FindByID は指定IDの体験談を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.SuccessStory, error)

	// Create は体験談を作成し、採番されたIDと作成日時をstoryに設定する。
	Create(ctx context.Context, story *model.SuccessStory) error

	// Update は体験談を更新する。対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, story *model.SuccessStory) (bool, error)

	// DeleteByID は指定IDの体験談を削除する。対象が存在しない場合はfalseを返す。
	DeleteByID(ctx context.Context, id int64) (bool, error)
}
