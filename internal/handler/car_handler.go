package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/autowheel/internal/catalog"
	"github.com/hitoshi/autowheel/internal/model"
)

// CatalogServiceInterface は車両ハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	List(ctx context.Context, filter model.FilterState, order model.ListingSort) ([]model.Listing, error)
	Get(ctx context.Context, id int64) (*model.Listing, error)
	Create(ctx context.Context, l *model.Listing) (*model.Listing, error)
	Update(ctx context.Context, l *model.Listing) (*model.Listing, error)
	Delete(ctx context.Context, id int64) error
	RecordView(ctx context.Context, id int64) (int, error)
}

var _ CatalogServiceInterface = (*catalog.Service)(nil)

// CarHandler は車両カタログのHTTPハンドラー。
type CarHandler struct {
	service CatalogServiceInterface
}

// NewCarHandler はCarHandlerを生成する。
func NewCarHandler(service CatalogServiceInterface) *CarHandler {
	return &CarHandler{service: service}
}

// carRequest は車両の登録・更新リクエストのボディ。
type carRequest struct {
	Make         string   `json:"make"`
	Model        string   `json:"model"`
	Year         int      `json:"year"`
	Category     string   `json:"category"`
	EngineCC     string   `json:"engine_cc"`
	FuelType     string   `json:"fuel_type"`
	Transmission string   `json:"transmission"`
	Grade        string   `json:"grade"`
	Location     string   `json:"location"`
	Mileage      int      `json:"mileage"`
	Price        int64    `json:"price"`
	Tax          *int64   `json:"tax"`
	Rating       int      `json:"rating"`
	IsHotDeal    bool     `json:"is_hot_deal"`
	Images       []string `json:"images"`
	Description  string   `json:"description"`
	Features     []string `json:"features"`
}

func (req carRequest) toListing(id int64) *model.Listing {
	return &model.Listing{
		ID:           id,
		Make:         req.Make,
		Model:        req.Model,
		Year:         req.Year,
		Category:     req.Category,
		EngineCC:     req.EngineCC,
		FuelType:     req.FuelType,
		Transmission: req.Transmission,
		Grade:        req.Grade,
		Location:     req.Location,
		Mileage:      req.Mileage,
		Price:        req.Price,
		Tax:          req.Tax,
		Rating:       req.Rating,
		IsHotDeal:    req.IsHotDeal,
		Images:       req.Images,
		Description:  req.Description,
		Features:     req.Features,
	}
}

// carResponse は車両情報のAPIレスポンス。
type carResponse struct {
	ID           int64     `json:"id"`
	Make         string    `json:"make"`
	Model        string    `json:"model"`
	Year         int       `json:"year"`
	Category     string    `json:"category"`
	EngineCC     string    `json:"engine_cc"`
	FuelType     string    `json:"fuel_type"`
	Transmission string    `json:"transmission"`
	Grade        string    `json:"grade"`
	Location     string    `json:"location"`
	Mileage      int       `json:"mileage"`
	Price        int64     `json:"price"`
	Tax          *int64    `json:"tax"`
	TotalPrice   int64     `json:"total_price"`
	Views        int       `json:"views"`
	Rating       int       `json:"rating"`
	IsHotDeal    bool      `json:"is_hot_deal"`
	Images       []string  `json:"images"`
	PrimaryImage string    `json:"primary_image"`
	Description  string    `json:"description"`
	Features     []string  `json:"features"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// listCarsResponse は車両一覧のAPIレスポンス。
type listCarsResponse struct {
	Cars  []carResponse `json:"cars"`
	Total int           `json:"total"`
}

// ListCars は絞り込み条件と並び順に従って車両一覧を返す。
// GET /api/cars?q=&make=&fuel_type=&category=&engine_cc=&grade=&transmission=&min_price=&max_price=&hot_deal=&sort=
func (h *CarHandler) ListCars(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := catalog.ParseFilterState(query)
	order := catalog.ParseSort(query.Get("sort"))

	listings, err := h.service.List(r.Context(), filter, order)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	cars := make([]carResponse, len(listings))
	for i := range listings {
		cars[i] = toCarResponse(&listings[i])
	}
	writeJSON(w, http.StatusOK, listCarsResponse{Cars: cars, Total: len(cars)})
}

// GetCar は車両詳細を返す。
// GET /api/cars/{id}
func (h *CarHandler) GetCar(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	l, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCarResponse(l))
}

// RecordView は車両の閲覧数を1増やす。
// POST /api/cars/{id}/view
func (h *CarHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}

	views, err := h.service.RecordView(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"views": views})
}

// CreateCar は車両を登録する。
// POST /api/admin/cars
func (h *CarHandler) CreateCar(w http.ResponseWriter, r *http.Request) {
	var req carRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	l, err := h.service.Create(r.Context(), req.toListing(0))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCarResponse(l))
}

// UpdateCar は車両情報を更新する。
// PUT /api/admin/cars/{id}
func (h *CarHandler) UpdateCar(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req carRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	l, err := h.service.Update(r.Context(), req.toListing(id))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCarResponse(l))
}

// DeleteCar は車両を削除する。
// DELETE /api/admin/cars/{id}
func (h *CarHandler) DeleteCar(w http.ResponseWriter, r *http.Request) {
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

// toCarResponse はmodel.ListingからAPIレスポンスに変換する。
func toCarResponse(l *model.Listing) carResponse {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	features := l.Features
	if features == nil {
		features = []string{}
	}
	return carResponse{
		ID:           l.ID,
		Make:         l.Make,
		Model:        l.Model,
		Year:         l.Year,
		Category:     l.Category,
		EngineCC:     l.EngineCC,
		FuelType:     l.FuelType,
		Transmission: l.Transmission,
		Grade:        l.Grade,
		Location:     l.Location,
		Mileage:      l.Mileage,
		Price:        l.Price,
		Tax:          l.Tax,
		TotalPrice:   l.TotalPrice(),
		Views:        l.Views,
		Rating:       l.Rating,
		IsHotDeal:    l.IsHotDeal,
		Images:       images,
		PrimaryImage: catalog.PrimaryImage(l),
		Description:  l.Description,
		Features:     features,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}
