// Package gcs implements the Google Cloud Storage backend. Downloads use V4
// signed URLs; the API never proxies object content.
package gcs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	appconfig "github.com/community-hub/community-hub/internal/config"
	appstorage "github.com/community-hub/community-hub/internal/storage"
)

func init() {
	appstorage.Register("gcs", func(cfg *appconfig.Config) (appstorage.Storage, error) {
		return New(&cfg.Storage.GCS)
	})
}

// GCSStorage implements storage.Storage for Google Cloud Storage
type GCSStorage struct {
	client *storage.Client
	bucket string
}

// New creates a GCS backend. Credentials come from credentials_file when set,
// otherwise from Application Default Credentials. A custom endpoint (an
// emulator) is used without authentication.
func New(cfg *appconfig.GCSStorageConfig) (*GCSStorage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}

	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "":
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStorage{client: client, bucket: cfg.Bucket}, nil
}

func (s *GCSStorage) Close() error {
	return s.client.Close()
}

// Put writes the object with its SHA256 in custom metadata
func (s *GCSStorage) Put(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (*appstorage.UploadResult, error) {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(w, hasher), reader)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to upload to GCS: %w", err)
	}
	checksum := hex.EncodeToString(hasher.Sum(nil))
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize GCS upload: %w", err)
	}

	if _, err := s.client.Bucket(s.bucket).Object(path).Update(ctx, storage.ObjectAttrsToUpdate{
		Metadata: map[string]string{"sha256": checksum},
	}); err != nil {
		return nil, fmt.Errorf("failed to set GCS object metadata: %w", err)
	}
	return &appstorage.UploadResult{Path: path, Size: written, Checksum: checksum}, nil
}

func (s *GCSStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, appstorage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to download from GCS: %w", err)
	}
	return r, nil
}

func (s *GCSStorage) Delete(ctx context.Context, path string) error {
	err := s.client.Bucket(s.bucket).Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// SignedURL returns a V4 signed GET URL
func (s *GCSStorage) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", appstorage.ErrNotFound
	}
	url, err := s.client.Bucket(s.bucket).SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return url, nil
}

func (s *GCSStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.Bucket(s.bucket).Object(path).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check GCS object: %w", err)
	}
	return true, nil
}
