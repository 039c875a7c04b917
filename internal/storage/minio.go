// Package storage releases uploaded scoreboard assets (logos, side icons) from S3-compatible storage.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"papanskor/config"
)

// MinIO is safe for concurrent use.
type MinIO struct {
	client *minio.Client
	bucket string
}

func NewMinIO(cfg config.MinIOConfig) (*MinIO, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials are required")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIO{client: cli, bucket: cfg.Bucket}, nil
}

func (m *MinIO) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

// Release deletes the object an asset URL points at. URLs outside the bucket are skipped.
func (m *MinIO) Release(ctx context.Context, assetURL string) error {
	key, ok := KeyFromURL(m.bucket, assetURL)
	if !ok {
		return nil
	}
	return m.Delete(ctx, key)
}

// KeyFromURL extracts the object key from a path-style (host/bucket/key) or
// virtual-hosted (bucket.host/key) URL.
func KeyFromURL(bucket, raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	p := strings.TrimPrefix(u.Path, "/")
	if strings.HasPrefix(u.Host, bucket+".") && p != "" {
		return p, true
	}
	if key, ok := strings.CutPrefix(p, bucket+"/"); ok && key != "" {
		return key, true
	}
	return "", false
}
