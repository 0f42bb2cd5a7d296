package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/autowheel/internal/model"
	"github.com/hitoshi/autowheel/internal/story"
)

// StoryServiceInterface は体験談ハンドラーが必要とするサービスインターフェース。
type StoryServiceInterface interface {
	List(ctx context.Context) ([]model.SuccessStory, error)
	Get(ctx context.Context, id int64) (*model.SuccessStory, error)
	Create(ctx context.Context, st *model.SuccessStory) (*model.SuccessStory, error)
	Update(ctx context.Context, st *model.SuccessStory) (*model.SuccessStory, error)
	Delete(ctx context.Context, id int64) error
}

var _ StoryServiceInterface = (*story.Service)(nil)

// StoryHandler は体験談のHTTPハンドラー。
type StoryHandler struct {
	service StoryServiceInterface
}

// NewStoryHandler はStoryHandlerを生成する。
func NewStoryHandler(service StoryServiceInterface) *StoryHandler {
	return &StoryHandler{service: service}
}

type storyRequest struct {
	CustomerName string `json:"customer_name"`
	Location     string `json:"location"`
	PhotoURL     string `json:"photo_url"`
	Description  string `json:"description"`
}

type storyResponse struct {
	ID           int64     `json:"id"`
	CustomerName string    `json:"customer_name"`
	Location     string    `json:"location"`
	PhotoURL     string    `json:"photo_url"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toStoryResponse(st *model.SuccessStory) storyResponse {
	return storyResponse{
		ID:           st.ID,
		CustomerName: st.CustomerName,
		Location:     st.Location,
		PhotoURL:     st.PhotoURL,
		Description:  st.Description,
		CreatedAt:    st.CreatedAt,
		UpdatedAt:    st.UpdatedAt,
	}
}

func (req storyRequest) toStory(id int64) *model.SuccessStory {
	return &model.SuccessStory{
		ID:           id,
		CustomerName: req.CustomerName,
		Location:     req.Location,
		PhotoURL:     req.PhotoURL,
		Description:  req.Description,
	}
}

// ListStories は体験談一覧を返す。
// GET /api/success-stories
func (h *StoryHandler) ListStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := make([]storyResponse, len(stories))
	for i := range stories {
		resp[i] = toStoryResponse(&stories[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"stories": resp})
}

// GetStory は体験談を1件返す。
// GET /api/success-stories/{id}
func (h *StoryHandler) GetStory(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	st, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoryResponse(st))
}

// CreateStory は体験談を登録する。
// POST /api/admin/success-stories
func (h *StoryHandler) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req storyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.service.Create(r.Context(), req.toStory(0))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStoryResponse(st))
}

// UpdateStory は体験談を更新する。
// PUT /api/admin/success-stories/{id}
func (h *StoryHandler) UpdateStory(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req storyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.service.Update(r.Context(), req.toStory(id))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStoryResponse(st))
}

// DeleteStory は体験談を削除する。
// DELETE /api/admin/success-stories/{id}
func (h *StoryHandler) DeleteStory(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
