package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/autowheel/internal/model"
)

func multipartRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	part.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadHandler_Upload(t *testing.T) {
	var gotName string
	var gotData []byte
	svc := &mockAssetService{
		uploadFn: func(ctx context.Context, filename string, data []byte) (string, error) {
			gotName, gotData = filename, data
			return "https://cdn.example.com/cars/abc.png", nil
		},
	}
	w := httptest.NewRecorder()
	NewUploadHandler(svc).Upload(w, multipartRequest(t, "file", "aqua.png", []byte("\x89PNG\r\n\x1a\nimage")))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if gotName != "aqua.png" || !bytes.HasPrefix(gotData, []byte("\x89PNG")) {
		t.Errorf("service got filename %q and %d bytes", gotName, len(gotData))
	}
	var body uploadResponse
	json.NewDecoder(w.Body).Decode(&body)
	if body.URL != "https://cdn.example.com/cars/abc.png" {
		t.Errorf("url = %q", body.URL)
	}
}

func TestUploadHandler_Upload_MissingFile(t *testing.T) {
	w := httptest.NewRecorder()
	NewUploadHandler(&mockAssetService{}).Upload(w, multipartRequest(t, "photo", "aqua.png", []byte("data")))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUploadHandler_Upload_TooLarge(t *testing.T) {
	called := false
	svc := &mockAssetService{
		maxSize: 16,
		uploadFn: func(ctx context.Context, filename string, data []byte) (string, error) {
			called = true
			return "", nil
		},
	}
	w := httptest.NewRecorder()
	NewUploadHandler(svc).Upload(w, multipartRequest(t, "file", "big.png", bytes.Repeat([]byte("x"), 64)))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
	if called {
		t.Error("oversized file should not reach the service")
	}
}

func TestUploadHandler_Upload_ServiceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported media", model.NewUnsupportedMediaError("text/plain"), http.StatusUnsupportedMediaType},
		{"store disabled", model.NewAssetStoreDisabledError(), http.StatusServiceUnavailable},
		{"store failure", model.NewUploadFailedError("bucket unavailable"), http.StatusBadGateway},
		{"too large", model.NewAssetTooLargeError(16), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAssetService{
				uploadFn: func(ctx context.Context, filename string, data []byte) (string, error) {
					return "", tt.err
				},
			}
			w := httptest.NewRecorder()
			NewUploadHandler(svc).Upload(w, multipartRequest(t, "file", "a.txt", []byte("hello")))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestUploadHandler_Import(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		importFn func(ctx context.Context, rawURL string) (string, error)
		want     int
	}{
		{
			name: "imported",
			body: `{"url": "https://images.example.org/aqua.jpg"}`,
			importFn: func(ctx context.Context, rawURL string) (string, error) {
				return "https://cdn.example.com/cars/imported.jpg", nil
			},
			want: http.StatusCreated,
		},
		{
			name: "empty url",
			body: `{"url": ""}`,
			want: http.StatusBadRequest,
		},
		{
			name: "private address",
			body: `{"url": "http://169.254.169.254/latest/meta-data"}`,
			importFn: func(ctx context.Context, rawURL string) (string, error) {
				return "", model.NewSSRFBlockedError()
			},
			want: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAssetService{importFn: tt.importFn}
			w := httptest.NewRecorder()
			NewUploadHandler(svc).Import(w, httptest.NewRequest(http.MethodPost, "/api/admin/uploads/remote", strings.NewReader(tt.body)))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}
