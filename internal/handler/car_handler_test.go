package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/autowheel/internal/model"
)

func TestCarHandler_ListCars_ParsesFiltersAndSort(t *testing.T) {
	var gotFilter model.FilterState
	var gotOrder model.ListingSort
	svc := &mockCatalogService{
		listFn: func(ctx context.Context, filter model.FilterState, order model.ListingSort) ([]model.Listing, error) {
			gotFilter, gotOrder = filter, order
			return []model.Listing{*sampleListing()}, nil
		},
	}
	h := NewCarHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/cars?q=aqua&make=Toyota&min_price=1000000&hot_deal=true&sort=price_asc", nil)
	w := httptest.NewRecorder()
	h.ListCars(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotFilter.Query != "aqua" || gotFilter.Make != "Toyota" || !gotFilter.HotDealOnly {
		t.Errorf("filter = %+v", gotFilter)
	}
	if gotFilter.MinPrice == nil || *gotFilter.MinPrice != 1000000 {
		t.Errorf("MinPrice = %v, want 1000000", gotFilter.MinPrice)
	}
	if gotOrder != model.ListingSortPriceAsc {
		t.Errorf("order = %q, want %q", gotOrder, model.ListingSortPriceAsc)
	}

	var body listCarsResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Total != 1 || len(body.Cars) != 1 {
		t.Fatalf("total = %d, cars = %d; want 1, 1", body.Total, len(body.Cars))
	}
	car := body.Cars[0]
	if car.TotalPrice != 6500000 {
		t.Errorf("total_price = %d, want 6500000", car.TotalPrice)
	}
	if car.PrimaryImage == "" {
		t.Error("primary_image should fall back to a placeholder")
	}
	if car.Images == nil || car.Features == nil {
		t.Error("images and features should be empty arrays, not null")
	}
}

func TestCarHandler_ListCars_ServiceError(t *testing.T) {
	svc := &mockCatalogService{
		listFn: func(ctx context.Context, filter model.FilterState, order model.ListingSort) ([]model.Listing, error) {
			return nil, errors.New("db down")
		},
	}
	w := httptest.NewRecorder()
	NewCarHandler(svc).ListCars(w, httptest.NewRequest(http.MethodGet, "/api/cars", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if body := decodeErrorBody(t, w); body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
}

func TestCarHandler_GetCar(t *testing.T) {
	svc := &mockCatalogService{
		getFn: func(ctx context.Context, id int64) (*model.Listing, error) {
			if id == 7 {
				return sampleListing(), nil
			}
			return nil, model.NewListingNotFoundError(id)
		},
	}
	h := NewCarHandler(svc)

	tests := []struct {
		name string
		id   string
		want int
	}{
		{"found", "7", http.StatusOK},
		{"not found", "8", http.StatusNotFound},
		{"non numeric", "abc", http.StatusBadRequest},
		{"zero", "0", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveWithParams(h.GetCar, httptest.NewRequest(http.MethodGet, "/api/cars/"+tt.id, nil), map[string]string{"id": tt.id})
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestCarHandler_RecordView(t *testing.T) {
	svc := &mockCatalogService{
		recordViewFn: func(ctx context.Context, id int64) (int, error) { return 42, nil },
	}
	w := serveWithParams(NewCarHandler(svc).RecordView, httptest.NewRequest(http.MethodPost, "/api/cars/7/view", nil), map[string]string{"id": "7"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body map[string]int
	json.NewDecoder(w.Body).Decode(&body)
	if body["views"] != 42 {
		t.Errorf("views = %d, want 42", body["views"])
	}
}

func TestCarHandler_CreateCar(t *testing.T) {
	var got *model.Listing
	svc := &mockCatalogService{
		createFn: func(ctx context.Context, l *model.Listing) (*model.Listing, error) {
			got = l
			l.ID = 99
			return l, nil
		},
	}
	h := NewCarHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/cars", jsonBody(t, map[string]any{
		"make": "Honda", "model": "Vezel", "year": 2019, "price": 9800000, "tax": 150000,
		"features": []string{"Reverse camera"},
	}))
	w := httptest.NewRecorder()
	h.CreateCar(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if got == nil || got.Make != "Honda" || got.Tax == nil || *got.Tax != 150000 {
		t.Errorf("listing passed to service = %+v", got)
	}
	var body carResponse
	json.NewDecoder(w.Body).Decode(&body)
	if body.ID != 99 {
		t.Errorf("id = %d, want 99", body.ID)
	}
}

func TestCarHandler_CreateCar_InvalidBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewCarHandler(&mockCatalogService{}).CreateCar(w, httptest.NewRequest(http.MethodPost, "/api/admin/cars", strings.NewReader("{")))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorBody(t, w); body.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q, want INVALID_REQUEST", body.Code)
	}
}

func TestCarHandler_CreateCar_ValidationError(t *testing.T) {
	svc := &mockCatalogService{
		createFn: func(ctx context.Context, l *model.Listing) (*model.Listing, error) {
			return nil, model.NewInvalidListingError("メーカーは必須です")
		},
	}
	w := httptest.NewRecorder()
	NewCarHandler(svc).CreateCar(w, httptest.NewRequest(http.MethodPost, "/api/admin/cars", strings.NewReader(`{}`)))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeInvalidListing {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidListing)
	}
}

func TestCarHandler_UpdateCar_UsesPathID(t *testing.T) {
	var gotID int64
	svc := &mockCatalogService{
		updateFn: func(ctx context.Context, l *model.Listing) (*model.Listing, error) {
			gotID = l.ID
			return l, nil
		},
	}
	req := httptest.NewRequest(http.MethodPut, "/api/admin/cars/7", strings.NewReader(`{"id": 1, "make": "Toyota"}`))
	w := serveWithParams(NewCarHandler(svc).UpdateCar, req, map[string]string{"id": "7"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotID != 7 {
		t.Errorf("id = %d, want 7", gotID)
	}
}

func TestCarHandler_DeleteCar(t *testing.T) {
	svc := &mockCatalogService{
		deleteFn: func(ctx context.Context, id int64) error {
			if id == 7 {
				return nil
			}
			return model.NewListingNotFoundError(id)
		},
	}
	h := NewCarHandler(svc)

	w := serveWithParams(h.DeleteCar, httptest.NewRequest(http.MethodDelete, "/api/admin/cars/7", nil), map[string]string{"id": "7"})
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}

	w = serveWithParams(h.DeleteCar, httptest.NewRequest(http.MethodDelete, "/api/admin/cars/8", nil), map[string]string{"id": "8"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
