package services

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/community-hub/community-hub/internal/storage"
	"github.com/jmoiron/sqlx"
)

// ---------------------------------------------------------------------------
// Store and clock
// ---------------------------------------------------------------------------

var (
	errDB    = errors.New("db error")
	fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
)

func newTestStore(t *testing.T) (*repositories.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewStore(sqlx.NewDb(db, "postgres")), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func freeze(b *base) { b.now = func() time.Time { return fixedNow } }

// recorder is an events.Publisher that keeps what it was given
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// memStorage is an in-memory storage.Storage
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
}

func newMemStorage() *memStorage { return &memStorage{objects: map[string][]byte{}} }

func (m *memStorage) Put(_ context.Context, path string, r io.Reader, _ int64, _ string) (*storage.UploadResult, error) {
	if m.failOn != "" && bytes.Contains([]byte(path), []byte(m.failOn)) {
		return nil, errors.New("put failed")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	return &storage.UploadResult{Path: path, Size: int64(len(data)), Checksum: "sum"}, nil
}

func (m *memStorage) Open(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *memStorage) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return "https://files.test/" + path, nil
}

func (m *memStorage) Exists(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok, nil
}

func (m *memStorage) paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for p := range m.objects {
		out = append(out, p)
	}
	return out
}

// ---------------------------------------------------------------------------
// Row builders
// ---------------------------------------------------------------------------

var membershipCols = []string{"id", "user_id", "community_id", "role", "activated_at", "deactivated_at", "created_at", "updated_at"}

var profileCols = []string{
	"id", "community_id", "name", "username", "bio", "avatar_image_id", "is_primary",
	"activated_at", "deactivated_at", "muted_at", "created_at", "updated_at", "deleted_at",
}

var ownershipCols = []string{"user_id", "profile_id", "role", "created_at"}

var applicationCols = []string{
	"id", "community_id", "user_id", "profile_name", "profile_username", "message", "status",
	"rejection_reason", "reviewed_by", "reviewed_at", "profile_id", "created_at", "updated_at",
}

var communityCols = []string{
	"id", "slug", "name", "description", "custom_domain", "domain_verification_token", "domain_verified_at",
	"recruiting_starts_at", "recruiting_ends_at", "starts_at", "ends_at", "created_at", "updated_at", "deleted_at",
}

var postCols = []string{
	"id", "community_id", "board_id", "profile_id", "parent_id", "root_id", "body", "image_id",
	"scheduled_at", "published_at", "pinned_at", "created_at", "updated_at", "deleted_at",
}

func memberRow(id, userID, communityID string, role models.Role) *sqlmock.Rows {
	return sqlmock.NewRows(membershipCols).AddRow(id, userID, communityID, string(role), fixedNow, nil, fixedNow, fixedNow)
}

func inactiveMemberRow(id, userID, communityID string, role models.Role) *sqlmock.Rows {
	return sqlmock.NewRows(membershipCols).AddRow(id, userID, communityID, string(role), fixedNow, fixedNow, fixedNow, fixedNow)
}

func noRows(cols []string) *sqlmock.Rows { return sqlmock.NewRows(cols) }

type profileOpt func(values []driver.Value)

func primary(v []driver.Value)     { v[6] = true }
func deactivated(v []driver.Value) { v[8] = fixedNow }
func muted(v []driver.Value)       { v[9] = fixedNow }

func profileRow(id, communityID, username string, opts ...profileOpt) *sqlmock.Rows {
	v := []driver.Value{id, communityID, username, username, "", nil, false, fixedNow, nil, nil, fixedNow, fixedNow, nil}
	for _, o := range opts {
		o(v)
	}
	return sqlmock.NewRows(profileCols).AddRow(v...)
}

func ownershipRow(userID, profileID string, role models.OwnershipRole) *sqlmock.Rows {
	return sqlmock.NewRows(ownershipCols).AddRow(userID, profileID, string(role), fixedNow)
}

func applicationRow(id, userID, username string, status models.ApplicationStatus, profileID driver.Value) *sqlmock.Rows {
	var reviewedBy, reviewedAt driver.Value
	if status != models.ApplicationPending {
		reviewedBy, reviewedAt = "u-reviewer", fixedNow
	}
	return sqlmock.NewRows(applicationCols).AddRow(
		id, "c-1", userID, "Ada", username, "hi", string(status),
		nil, reviewedBy, reviewedAt, profileID, fixedNow, fixedNow)
}

func communityRow(id, slug string) *sqlmock.Rows {
	return sqlmock.NewRows(communityCols).AddRow(
		id, slug, "Community", "", nil, nil, nil, nil, nil, nil, nil, fixedNow, fixedNow, nil)
}

func postRow(id, profileID string, parentID driver.Value, published bool) *sqlmock.Rows {
	var publishedAt driver.Value
	if published {
		publishedAt = fixedNow
	}
	return sqlmock.NewRows(postCols).AddRow(
		id, "c-1", nil, profileID, parentID, parentID, "hello", nil, nil, publishedAt, nil, fixedNow, fixedNow, nil)
}

// ---------------------------------------------------------------------------
// Expectations shared by many tests
// ---------------------------------------------------------------------------

func expectActiveMember(mock sqlmock.Sqlmock, userID string, role models.Role) {
	mock.ExpectQuery("SELECT.*FROM memberships").
		WithArgs(userID, "c-1").
		WillReturnRows(memberRow("m-"+userID, userID, "c-1", role))
}

func expectNotMember(mock sqlmock.Sqlmock, userID string) {
	mock.ExpectQuery("SELECT.*FROM memberships").
		WithArgs(userID, "c-1").
		WillReturnRows(noRows(membershipCols))
}
