package repositories

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/community-hub/community-hub/internal/db/models"
)

var auditCols = []string{"id", "user_id", "community_id", "action", "resource_type", "resource_id", "metadata", "ip_address", "created_at"}

// ---------------------------------------------------------------------------
// CreateAuditLog
// ---------------------------------------------------------------------------

func TestCreateAuditLog_EncodesMetadata(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(sqlmock.AnyArg(), strPtr("u-1"), strPtr("c-1"), "DELETE /console/communities/:communityId",
			nil, nil, []byte(`{"status_code":204}`), strPtr("10.0.0.1"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.AuditLog{
		UserID:      strPtr("u-1"),
		CommunityID: strPtr("c-1"),
		Action:      "DELETE /console/communities/:communityId",
		Metadata:    map[string]interface{}{"status_code": 204},
		IPAddress:   strPtr("10.0.0.1"),
	}
	if err := store.Audit().CreateAuditLog(context.Background(), entry); err != nil {
		t.Fatalf("CreateAuditLog: %v", err)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Errorf("id/created_at not assigned: %+v", entry)
	}
	expectationsMet(t, mock)
}

func TestCreateAuditLog_DBError(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errDB)

	if err := store.Audit().CreateAuditLog(context.Background(), &models.AuditLog{Action: "POST /console/communities"}); err == nil {
		t.Fatal("expected error")
	}
}

// ---------------------------------------------------------------------------
// ListAuditLogs
// ---------------------------------------------------------------------------

func TestListAuditLogs_FiltersAndDecodes(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_logs WHERE 1=1 AND community_id = \\$1 AND action = \\$2").
		WithArgs("c-1", "POST /console/communities/:communityId/boards").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, user_id.*FROM audit_logs WHERE 1=1 AND community_id = \\$1 AND action = \\$2 ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs("c-1", "POST /console/communities/:communityId/boards", 20, 0).
		WillReturnRows(sqlmock.NewRows(auditCols).
			AddRow("a-1", "u-1", "c-1", "POST /console/communities/:communityId/boards", nil, nil,
				[]byte(`{"status_code":201}`), "10.0.0.1", fixedNow))

	logs, total, err := store.Audit().ListAuditLogs(context.Background(), AuditFilters{
		CommunityID: strPtr("c-1"),
		Action:      strPtr("POST /console/communities/:communityId/boards"),
	}, 20, 0)
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("total=%d len=%d, want 1/1", total, len(logs))
	}
	if got := logs[0].Metadata["status_code"]; got != float64(201) {
		t.Errorf("metadata status_code = %v", got)
	}
	expectationsMet(t, mock)
}

func TestListAuditLogs_CountError(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errDB)

	if _, _, err := store.Audit().ListAuditLogs(context.Background(), AuditFilters{}, 10, 0); err == nil {
		t.Fatal("expected error")
	}
}
