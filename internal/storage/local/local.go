// Package local implements the filesystem storage backend. It is intended for
// development and single-node deployments; objects are served back through the
// API at /files/:token, where the token is a sealed, expiring object path.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/community-hub/community-hub/internal/config"
	"github.com/community-hub/community-hub/internal/crypto"
	"github.com/community-hub/community-hub/internal/storage"
)

func init() {
	storage.Register("local", func(cfg *config.Config) (storage.Storage, error) {
		return New(&cfg.Storage.Local, cfg.Server.BaseURL)
	})
}

// LocalStorage implements storage.Storage on the local filesystem
type LocalStorage struct {
	basePath string
	baseURL  string
	tokens   *crypto.FileTokens
}

// New creates the base directory and the token sealer
func New(cfg *config.LocalStorageConfig, serverBaseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.BasePath, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	tokens, err := crypto.NewFileTokens(cfg.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise file tokens: %w", err)
	}
	return &LocalStorage{
		basePath: cfg.BasePath,
		baseURL:  strings.TrimRight(serverBaseURL, "/"),
		tokens:   tokens,
	}, nil
}

// fullPath maps an object path into basePath, refusing paths that escape it
func (s *LocalStorage) fullPath(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	full := filepath.Join(s.basePath, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.basePath)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object path: %s", path)
	}
	return full, nil
}

// Put writes the object, computing its checksum while copying
func (s *LocalStorage) Put(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (*storage.UploadResult, error) {
	full, err := s.fullPath(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(file, hasher), reader)
	if err != nil {
		_ = os.Remove(full)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &storage.UploadResult{
		Path:     path,
		Size:     written,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func (s *LocalStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := s.fullPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	full, err := s.fullPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// SignedURL returns <base_url>/files/<token>
func (s *LocalStorage) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", storage.ErrNotFound
	}
	token, err := s.tokens.Seal(path, ttl)
	if err != nil {
		return "", fmt.Errorf("failed to sign file URL: %w", err)
	}
	return fmt.Sprintf("%s/files/%s", s.baseURL, url.PathEscape(token)), nil
}

// Resolve opens the object referenced by a token from SignedURL
func (s *LocalStorage) Resolve(token string) (string, error) {
	path, err := s.tokens.Open(token)
	if err != nil {
		if errors.Is(err, crypto.ErrTokenExpired) {
			return "", err
		}
		return "", storage.ErrNotFound
	}
	return path, nil
}

func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.fullPath(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return true, nil
}
