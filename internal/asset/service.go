package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hitoshi/autowheel/internal/metrics"
	"github.com/hitoshi/autowheel/internal/model"
	"github.com/hitoshi/autowheel/internal/security"
)

// DefaultMaxSize は受け付ける画像サイズの上限の既定値（10MB）。
const DefaultMaxSize int64 = 10 << 20

const (
	remoteFetchTimeout = 15 * time.Second
	remoteMaxRedirects = 3
)

// ErrTooLarge は画像がサイズ上限を超えていることを表す。
var ErrTooLarge = errors.New("画像がサイズ上限を超えています")

// Service は画像のアップロードと外部URLからの取り込みを行う。
type Service struct {
	uploader Uploader
	guard    security.SSRFGuardService
	client   *http.Client
	maxSize  int64
	logger   *slog.Logger
	metrics  metrics.MetricsCollector
}

// NewService はServiceを生成する。uploaderがnilの場合、アップロードはASSET_STORE_DISABLEDになる。
func NewService(uploader Uploader, guard security.SSRFGuardService, maxSize int64, logger *slog.Logger, collector metrics.MetricsCollector) *Service {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		uploader: uploader,
		guard:    guard,
		client:   guard.NewSafeClient(remoteFetchTimeout, remoteMaxRedirects),
		maxSize:  maxSize,
		logger:   logger,
		metrics:  collector,
	}
}

// MaxSize は受け付ける画像サイズの上限を返す。
func (s *Service) MaxSize() int64 {
	return s.maxSize
}

// Upload は管理画面から送られた画像を保存する。
// Content-Typeは申告値ではなく内容から判定する。
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if s.uploader == nil {
		return "", model.NewAssetStoreDisabledError()
	}
	if int64(len(data)) > s.maxSize {
		return "", model.NewAssetTooLargeError(s.maxSize)
	}
	contentType := http.DetectContentType(data)
	if !isImage(contentType) {
		return "", model.NewUnsupportedMediaError(contentType)
	}

	publicURL, err := s.uploader.Upload(ctx, filename, contentType, data)
	if err != nil {
		s.logger.Error("asset upload failed", slog.String("filename", filename), slog.String("error", err.Error()))
		return "", model.NewUploadFailedError("ストレージへの保存に失敗しました")
	}
	s.metrics.RecordAssetUploaded("upload")
	return publicURL, nil
}

// Import は外部URLの画像をSSRF対策済みのクライアントで取得し、保存する。
func (s *Service) Import(ctx context.Context, rawURL string) (string, error) {
	if s.uploader == nil {
		return "", model.NewAssetStoreDisabledError()
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", model.NewInvalidURLError(rawURL)
	}
	if err := s.guard.ValidateURL(rawURL); err != nil {
		return "", model.NewSSRFBlockedError()
	}

	data, contentType, err := s.fetch(ctx, rawURL)
	if err != nil {
		s.logger.Warn("remote image fetch failed", slog.String("url", rawURL), slog.String("error", err.Error()))
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return "", apiErr
		}
		if errors.Is(err, ErrTooLarge) {
			return "", model.NewAssetTooLargeError(s.maxSize)
		}
		return "", model.NewUploadFailedError("画像を取得できませんでした")
	}

	filename := path.Base(u.Path)
	if filename == "/" || filename == "." {
		filename = "remote"
	}
	publicURL, err := s.uploader.Upload(ctx, filename, contentType, data)
	if err != nil {
		s.logger.Error("asset upload failed", slog.String("url", rawURL), slog.String("error", err.Error()))
		return "", model.NewUploadFailedError("ストレージへの保存に失敗しました")
	}
	s.metrics.RecordAssetUploaded("remote")
	return publicURL, nil
}

func (s *Service) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if resp.ContentLength > s.maxSize {
		return nil, "", ErrTooLarge
	}
	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	if !isImage(contentType) {
		return nil, "", model.NewUnsupportedMediaError(contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > s.maxSize {
		return nil, "", ErrTooLarge
	}
	return data, contentType, nil
}

// allowedImageTypes は受け付ける画像形式。SVGはスクリプトを埋め込めるため含めない。
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

func isImage(contentType string) bool {
	return allowedImageTypes[strings.ToLower(strings.TrimSpace(contentType))]
}
