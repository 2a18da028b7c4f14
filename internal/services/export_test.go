package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exportCols = []string{"id", "community_id", "requested_by", "status", "result_path", "error", "started_at", "finished_at", "created_at"}

var memberWithUserCols = append(append([]string{}, membershipCols...),
	"user_name", "user_email", "primary_profile_id", "primary_username")

func newExportService(t *testing.T) (*ExportService, sqlmock.Sqlmock, *memStorage, *recorder) {
	store, mock := newTestStore(t)
	backend := newMemStorage()
	rec := &recorder{}
	s := NewExportService(store, rec, backend, 15*time.Minute)
	freeze(&s.base)
	return s, mock, backend, rec
}

func TestRequestExport_OwnerOnly(t *testing.T) {
	s, mock, _, _ := newExportService(t)
	expectActiveMember(mock, "u-admin", models.RoleModerator)

	_, err := s.RequestExport(context.Background(), "c-1", "u-admin")
	assert.True(t, apperr.Is(err, apperr.CodeInsufficientRole), "got %v", err)
	expectationsMet(t, mock)
}

func TestRequestExport_Queues(t *testing.T) {
	s, mock, _, _ := newExportService(t)
	expectActiveMember(mock, "u-owner", models.RoleOwner)
	mock.ExpectExec("INSERT INTO export_jobs").
		WithArgs(sqlmock.AnyArg(), "c-1", "u-owner", models.ExportPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	job, err := s.RequestExport(context.Background(), "c-1", "u-owner")
	require.NoError(t, err)
	assert.Equal(t, models.ExportPending, job.Status)
	expectationsMet(t, mock)
}

func TestGetExport_SignsCompletedFile(t *testing.T) {
	s, mock, _, _ := newExportService(t)
	expectActiveMember(mock, "u-owner", models.RoleOwner)
	mock.ExpectQuery("SELECT.*FROM export_jobs WHERE id = \\$1 AND community_id = \\$2").
		WithArgs("e-1", "c-1").
		WillReturnRows(sqlmock.NewRows(exportCols).
			AddRow("e-1", "c-1", "u-owner", "completed", "exports/c-1/e-1.json", nil, fixedNow, fixedNow, fixedNow))

	st, err := s.GetExport(context.Background(), "c-1", "e-1", "u-owner")
	require.NoError(t, err)
	assert.Equal(t, "https://files.test/exports/c-1/e-1.json", st.DownloadURL)
	expectationsMet(t, mock)
}

func TestGetExport_PendingHasNoURL(t *testing.T) {
	s, mock, _, _ := newExportService(t)
	expectActiveMember(mock, "u-owner", models.RoleOwner)
	mock.ExpectQuery("SELECT.*FROM export_jobs").
		WillReturnRows(sqlmock.NewRows(exportCols).
			AddRow("e-1", "c-1", "u-owner", "pending", nil, nil, nil, nil, fixedNow))

	st, err := s.GetExport(context.Background(), "c-1", "e-1", "u-owner")
	require.NoError(t, err)
	assert.Empty(t, st.DownloadURL)
	expectationsMet(t, mock)
}

func TestRunNext_NoWork(t *testing.T) {
	s, mock, _, _ := newExportService(t)
	mock.ExpectQuery("UPDATE export_jobs SET status = 'running'").WillReturnRows(sqlmock.NewRows(exportCols))

	found, err := s.RunNext(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
	expectationsMet(t, mock)
}

func claimedJob() *sqlmock.Rows {
	return sqlmock.NewRows(exportCols).AddRow("e-1", "c-1", "u-owner", "running", nil, nil, fixedNow, nil, fixedNow)
}

func TestRunNext_WritesDocument(t *testing.T) {
	s, mock, backend, rec := newExportService(t)
	mock.ExpectQuery("UPDATE export_jobs SET status = 'running'").WithArgs(fixedNow, fixedNow.Add(-ExportLease)).WillReturnRows(claimedJob())
	mock.ExpectQuery("SELECT.*FROM communities WHERE id").WillReturnRows(communityRow("c-1", "demo"))
	mock.ExpectQuery("SELECT.*FROM memberships m JOIN users u").WillReturnRows(sqlmock.NewRows(memberWithUserCols).
		AddRow("m-1", "u-owner", "c-1", "owner", fixedNow, nil, fixedNow, fixedNow, "Ada", "ada@example.com", "p-1", "ada"))
	mock.ExpectQuery("SELECT.*FROM profiles WHERE community_id = \\$1").WillReturnRows(profileRow("p-1", "c-1", "ada", primary))
	mock.ExpectQuery("SELECT.*FROM posts WHERE community_id = \\$1").WillReturnRows(postRow("post-1", "p-1", nil, true))
	mock.ExpectExec("UPDATE export_jobs SET status = 'completed'").
		WithArgs("e-1", "exports/c-1/e-1.json", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	found, err := s.RunNext(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{events.ExportCompleted}, rec.types())

	rc, err := backend.Open(context.Background(), "exports/c-1/e-1.json")
	require.NoError(t, err)
	defer rc.Close()
	var doc Document
	require.NoError(t, json.NewDecoder(rc).Decode(&doc))
	assert.Equal(t, "demo", doc.Community.Slug)
	assert.Len(t, doc.Members, 1)
	assert.Len(t, doc.Profiles, 1)
	assert.Len(t, doc.Posts, 1)
	expectationsMet(t, mock)
}

func TestRunNext_RecordsFailure(t *testing.T) {
	s, mock, backend, rec := newExportService(t)
	backend.failOn = "exports/"
	mock.ExpectQuery("UPDATE export_jobs SET status = 'running'").WillReturnRows(claimedJob())
	mock.ExpectQuery("SELECT.*FROM communities WHERE id").WillReturnRows(communityRow("c-1", "demo"))
	mock.ExpectQuery("SELECT.*FROM memberships m JOIN users u").WillReturnRows(sqlmock.NewRows(memberWithUserCols))
	mock.ExpectQuery("SELECT.*FROM profiles WHERE community_id").WillReturnRows(noRows(profileCols))
	mock.ExpectQuery("SELECT.*FROM posts WHERE community_id").WillReturnRows(noRows(postCols))
	mock.ExpectExec("UPDATE export_jobs SET status = 'failed'").
		WithArgs("e-1", sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	found, err := s.RunNext(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, rec.types())
	assert.Empty(t, backend.paths())
	expectationsMet(t, mock)
}

func TestRunNext_CommunityGone(t *testing.T) {
	s, mock, _, _ := newExportService(t)
	mock.ExpectQuery("UPDATE export_jobs SET status = 'running'").WillReturnRows(claimedJob())
	mock.ExpectQuery("SELECT.*FROM communities WHERE id").WillReturnRows(noRows(communityCols))
	mock.ExpectExec("UPDATE export_jobs SET status = 'failed'").WillReturnResult(sqlmock.NewResult(0, 1))

	found, err := s.RunNext(context.Background())
	require.NoError(t, err)
	assert.True(t, found)
	expectationsMet(t, mock)
}
