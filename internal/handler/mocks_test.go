package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/autowheel/internal/auth"
	"github.com/hitoshi/autowheel/internal/middleware"
	"github.com/hitoshi/autowheel/internal/model"
)

// --- モック定義 ---

type mockCatalogService struct {
	listFn       func(ctx context.Context, filter model.FilterState, order model.ListingSort) ([]model.Listing, error)
	getFn        func(ctx context.Context, id int64) (*model.Listing, error)
	createFn     func(ctx context.Context, l *model.Listing) (*model.Listing, error)
	updateFn     func(ctx context.Context, l *model.Listing) (*model.Listing, error)
	deleteFn     func(ctx context.Context, id int64) error
	recordViewFn func(ctx context.Context, id int64) (int, error)
}

func (m *mockCatalogService) List(ctx context.Context, filter model.FilterState, order model.ListingSort) ([]model.Listing, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter, order)
	}
	return nil, nil
}

func (m *mockCatalogService) Get(ctx context.Context, id int64) (*model.Listing, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewListingNotFoundError(id)
}

func (m *mockCatalogService) Create(ctx context.Context, l *model.Listing) (*model.Listing, error) {
	if m.createFn != nil {
		return m.createFn(ctx, l)
	}
	return l, nil
}

func (m *mockCatalogService) Update(ctx context.Context, l *model.Listing) (*model.Listing, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, l)
	}
	return l, nil
}

func (m *mockCatalogService) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockCatalogService) RecordView(ctx context.Context, id int64) (int, error) {
	if m.recordViewFn != nil {
		return m.recordViewFn(ctx, id)
	}
	return 0, nil
}

type mockStoryService struct {
	listFn   func(ctx context.Context) ([]model.SuccessStory, error)
	getFn    func(ctx context.Context, id int64) (*model.SuccessStory, error)
	createFn func(ctx context.Context, st *model.SuccessStory) (*model.SuccessStory, error)
	updateFn func(ctx context.Context, st *model.SuccessStory) (*model.SuccessStory, error)
	deleteFn func(ctx context.Context, id int64) error
}

func (m *mockStoryService) List(ctx context.Context) ([]model.SuccessStory, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockStoryService) Get(ctx context.Context, id int64) (*model.SuccessStory, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewStoryNotFoundError(id)
}

func (m *mockStoryService) Create(ctx context.Context, st *model.SuccessStory) (*model.SuccessStory, error) {
	if m.createFn != nil {
		return m.createFn(ctx, st)
	}
	return st, nil
}

func (m *mockStoryService) Update(ctx context.Context, st *model.SuccessStory) (*model.SuccessStory, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, st)
	}
	return st, nil
}

func (m *mockStoryService) Delete(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockAssetService struct {
	uploadFn func(ctx context.Context, filename string, data []byte) (string, error)
	importFn func(ctx context.Context, rawURL string) (string, error)
	maxSize  int64
}

func (m *mockAssetService) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, filename, data)
	}
	return "", nil
}

func (m *mockAssetService) Import(ctx context.Context, rawURL string) (string, error) {
	if m.importFn != nil {
		return m.importFn(ctx, rawURL)
	}
	return "", nil
}

func (m *mockAssetService) MaxSize() int64 {
	if m.maxSize > 0 {
		return m.maxSize
	}
	return 1 << 20
}

type mockAuthService struct {
	loginFn  func(email, password string) (*auth.Session, error)
	verifyFn func(token string) (*auth.Admin, error)
}

func (m *mockAuthService) Login(email, password string) (*auth.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(email, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) Verify(token string) (*auth.Admin, error) {
	if m.verifyFn != nil {
		return m.verifyFn(token)
	}
	return nil, auth.ErrInvalidToken
}

type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

// --- ヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// serveWithParams はchiのURLパラメータを設定してハンドラーを呼ぶ。
func serveWithParams(h http.HandlerFunc, req *http.Request, params map[string]string) *httptest.ResponseRecorder {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	return bytes.NewReader(b)
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v\nraw: %s", err, w.Body.String())
	}
	return body
}

func int64Ptr(v int64) *int64 { return &v }

func sampleListing() *model.Listing {
	return &model.Listing{
		ID:           7,
		Make:         "Toyota",
		Model:        "Aqua",
		Year:         2018,
		Category:     "Hatchback",
		EngineCC:     "1500cc",
		FuelType:     "Hybrid",
		Transmission: "Automatic",
		Price:        6250000,
		Tax:          int64Ptr(250000),
	}
}
