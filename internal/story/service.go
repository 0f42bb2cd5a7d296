// Package story は成約した顧客の体験談を管理する。
package story

import (
	"context"
	"net/url"
	"strings"

	"github.com/hitoshi/autowheel/internal/model"
	"github.com/hitoshi/autowheel/internal/repository"
	"github.com/hitoshi/autowheel/internal/security"
)

// Service は体験談の取得と管理を行うサービス。
type Service struct {
	repo      repository.StoryRepository
	guard     security.SSRFGuardService
	sanitizer security.ContentSanitizerService
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.StoryRepository, guard security.SSRFGuardService, sanitizer security.ContentSanitizerService) *Service {
	return &Service{repo: repo, guard: guard, sanitizer: sanitizer}
}

// List は全体験談を新しい順に返す。
func (s *Service) List(ctx context.Context) ([]model.SuccessStory, error) {
	return s.repo.ListAll(ctx)
}

// Get は指定IDの体験談を返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.SuccessStory, error) {
	st, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, model.NewStoryNotFoundError(id)
	}
	return st, nil
}

// Create は入力を検証してから体験談を登録する。
func (s *Service) Create(ctx context.Context, st *model.SuccessStory) (*model.SuccessStory, error) {
	if err := s.prepare(st); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Update は入力を検証してから体験談を更新する。
func (s *Service) Update(ctx context.Context, st *model.SuccessStory) (*model.SuccessStory, error) {
	if err := s.prepare(st); err != nil {
		return nil, err
	}
	found, err := s.repo.Update(ctx, st)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, model.NewStoryNotFoundError(st.ID)
	}
	return st, nil
}

// Delete は体験談を削除する。
func (s *Service) Delete(ctx context.Context, id int64) error {
	found, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		return model.NewStoryNotFoundError(id)
	}
	return nil
}

func (s *Service) prepare(st *model.SuccessStory) error {
	st.CustomerName = s.sanitizer.PlainText(st.CustomerName)
	st.Location = s.sanitizer.PlainText(st.Location)
	st.Description = s.sanitizer.PlainText(st.Description)
	st.PhotoURL = strings.TrimSpace(st.PhotoURL)

	switch {
	case st.CustomerName == "":
		return model.NewInvalidStoryError("お客様名は必須です")
	case st.Location == "":
		return model.NewInvalidStoryError("地域は必須です")
	case st.PhotoURL == "":
		return model.NewInvalidStoryError("写真URLは必須です")
	case st.Description == "":
		return model.NewInvalidStoryError("本文は必須です")
	}

	u, err := url.Parse(st.PhotoURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return model.NewInvalidURLError(st.PhotoURL)
	}
	if err := s.guard.ValidateURL(st.PhotoURL); err != nil {
		return model.NewSSRFBlockedError()
	}
	return nil
}
