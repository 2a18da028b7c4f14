// Package storage defines the Storage interface shared by the object storage
// backends that hold uploaded images and community export files.
//
// Backends register themselves with the factory from an init() function in
// their own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// cmd/server imports each backend with a blank import to trigger init().
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when no object exists at a path
var ErrNotFound = errors.New("storage: object not found")

// Storage defines the interface for all storage backends
type Storage interface {
	// Put stores an object and returns its size and SHA256 checksum
	Put(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (*UploadResult, error)

	// Open returns a reader for an object, or ErrNotFound
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes an object; deleting a missing object is not an error
	Delete(ctx context.Context, path string) error

	// SignedURL returns a time-limited download URL for an object
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// Exists checks if an object exists at the path
	Exists(ctx context.Context, path string) (bool, error)
}

// UploadResult contains information about a stored object
type UploadResult struct {
	Path     string
	Size     int64
	Checksum string
}
