// Package asset は車両写真や体験談写真のアップロードを扱う。
package asset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Uploader は画像を保存して公開URLを返す。
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (publicURL string, err error)
}

// MinIOConfig はオブジェクトストレージの接続設定を保持する。
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicBaseURL が空でなければ公開URLの組み立てに使う（CDN経由で配信する場合など）。
	PublicBaseURL string
}

// objectPutter はminio.Clientのうちアップロードに使う部分。
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOStore はS3互換のオブジェクトストレージに画像を保存する。
type MinIOStore struct {
	client  objectPutter
	bucket  string
	baseURL string
	logger  *slog.Logger
	newKey  func(ext string) string
}

var _ Uploader = (*MinIOStore)(nil)

// NewMinIOStore はMinIOクライアントを生成し、バケットがなければ作成する。
func NewMinIOStore(ctx context.Context, cfg MinIOConfig, logger *slog.Logger) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("MinIOクライアントの作成に失敗しました: %w", err)
	}

	if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := client.BucketExists(ctx, cfg.Bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("バケット %s を作成できませんでした: %w", cfg.Bucket, err)
		}
		logger.Info("asset bucket already exists", slog.String("bucket", cfg.Bucket))
	} else {
		logger.Info("asset bucket created", slog.String("bucket", cfg.Bucket))
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = client.EndpointURL().String() + "/" + cfg.Bucket
	}
	return newMinIOStore(client, cfg.Bucket, baseURL, logger), nil
}

func newMinIOStore(client objectPutter, bucket, baseURL string, logger *slog.Logger) *MinIOStore {
	return &MinIOStore{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		newKey: func(ext string) string {
			return "images/" + uuid.NewString() + ext
		},
	}
}

// Upload は画像を images/<uuid><拡張子> に保存し、公開URLを返す。
func (s *MinIOStore) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	key := s.newKey(strings.ToLower(filepath.Ext(filename)))

	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"original-filename": filepath.Base(filename)},
	})
	if err != nil {
		return "", fmt.Errorf("オブジェクト %s のアップロードに失敗しました: %w", key, err)
	}

	s.logger.Info("asset uploaded",
		slog.String("bucket", s.bucket),
		slog.String("key", info.Key),
		slog.Int64("size", info.Size),
	)
	return s.baseURL + "/" + (&url.URL{Path: key}).EscapedPath(), nil
}
