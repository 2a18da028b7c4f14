package gcs

import (
	"testing"

	appconfig "github.com/community-hub/community-hub/internal/config"
)

func TestNew_MissingBucket(t *testing.T) {
	if _, err := New(&appconfig.GCSStorageConfig{}); err == nil {
		t.Error("New() = nil error, want error for missing bucket")
	}
}

func TestNew_EmulatorEndpoint(t *testing.T) {
	s, err := New(&appconfig.GCSStorageConfig{Bucket: "media", Endpoint: "http://localhost:4443/storage/v1/"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()
	if s.bucket != "media" {
		t.Errorf("bucket = %q", s.bucket)
	}
}

func TestNew_MissingCredentialsFile(t *testing.T) {
	// The client may fail at construction or at first use; it must not panic.
	s, err := New(&appconfig.GCSStorageConfig{Bucket: "media", CredentialsFile: "/nonexistent/credentials.json"})
	if err == nil {
		s.Close()
	}
}
