package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	appconfig "github.com/community-hub/community-hub/internal/config"
	"github.com/community-hub/community-hub/internal/storage"
)

// ---------------------------------------------------------------------------
// New() validation (no AWS connection required)
// ---------------------------------------------------------------------------

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  appconfig.S3StorageConfig
	}{
		{"missing bucket", appconfig.S3StorageConfig{Region: "us-east-1"}},
		{"missing region", appconfig.S3StorageConfig{Bucket: "b"}},
		{"static without keys", appconfig.S3StorageConfig{Bucket: "b", Region: "us-east-1", AuthMethod: "static"}},
		{"assume_role without arn", appconfig.S3StorageConfig{Bucket: "b", Region: "us-east-1", AuthMethod: "assume_role"}},
		{"unknown method", appconfig.S3StorageConfig{Bucket: "b", Region: "us-east-1", AuthMethod: "oidc"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(&tt.cfg); err == nil {
				t.Error("New() = nil error, want error")
			}
		})
	}
}

func TestNew_AssumeRole_IsLazy(t *testing.T) {
	_, err := New(&appconfig.S3StorageConfig{
		Bucket:     "b",
		Region:     "us-east-1",
		AuthMethod: "assume_role",
		RoleARN:    "arn:aws:iam::123456789012:role/community-hub",
		ExternalID: "ext-1",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Minimal path-style S3 server
// ---------------------------------------------------------------------------

type mockBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newTestStorage(t *testing.T) (*S3Storage, *mockBucket) {
	t.Helper()
	mb := &mockBucket{objects: map[string][]byte{}, types: map[string]string{}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/test-bucket/")
		mb.mu.Lock()
		defer mb.mu.Unlock()

		switch r.Method {
		case http.MethodPut:
			data, _ := io.ReadAll(r.Body)
			mb.objects[key] = data
			mb.types[key] = r.Header.Get("Content-Type")
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet, http.MethodHead:
			data, ok := mb.objects[key]
			if !ok {
				if r.Method == http.MethodGet {
					w.Header().Set("Content-Type", "application/xml")
					w.WriteHeader(http.StatusNotFound)
					_, _ = w.Write([]byte(`<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
					return
				}
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
			w.WriteHeader(http.StatusOK)
			if r.Method == http.MethodGet {
				_, _ = w.Write(data)
			}
		case http.MethodDelete:
			delete(mb.objects, key)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)

	s, err := New(&appconfig.S3StorageConfig{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		AuthMethod:      "static",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		Endpoint:        srv.URL,
	})
	if err != nil {
		t.Fatalf("New() for mock S3: %v", err)
	}
	return s, mb
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

func TestS3_PutOpenDelete(t *testing.T) {
	s, mb := newTestStorage(t)
	ctx := context.Background()

	res, err := s.Put(ctx, "images/c-1/a.png", strings.NewReader("pixels"), 6, "image/png")
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if res.Size != 6 || len(res.Checksum) != 64 {
		t.Errorf("result = %+v", res)
	}
	if mb.types["images/c-1/a.png"] != "image/png" {
		t.Errorf("content type = %q", mb.types["images/c-1/a.png"])
	}

	rc, err := s.Open(ctx, "images/c-1/a.png")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "pixels" {
		t.Errorf("content = %q", data)
	}

	if err := s.Delete(ctx, "images/c-1/a.png"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if ok, err := s.Exists(ctx, "images/c-1/a.png"); err != nil || ok {
		t.Errorf("Exists after delete = %v, %v", ok, err)
	}
}

func TestS3_Open_NotFound(t *testing.T) {
	s, _ := newTestStorage(t)
	if _, err := s.Open(context.Background(), "ghost.png"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestS3_SignedURL(t *testing.T) {
	s, _ := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.SignedURL(ctx, "missing.json", time.Hour); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SignedURL(missing) error = %v", err)
	}

	if _, err := s.Put(ctx, "exports/c-1/j.json", strings.NewReader("{}"), 2, "application/json"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	u, err := s.SignedURL(ctx, "exports/c-1/j.json", time.Hour)
	if err != nil {
		t.Fatalf("SignedURL() error: %v", err)
	}
	if !strings.Contains(u, "X-Amz-Signature") {
		t.Errorf("url is not presigned: %s", u)
	}
}
