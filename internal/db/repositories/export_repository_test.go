package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/community-hub/community-hub/internal/db/models"
)

var exportCols = []string{"id", "community_id", "requested_by", "status", "result_path", "error", "started_at", "finished_at", "created_at"}

func TestExportCreate(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("INSERT INTO export_jobs").
		WithArgs(sqlmock.AnyArg(), "c-1", "u-1", models.ExportPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	j := &models.ExportJob{CommunityID: "c-1", RequestedBy: "u-1"}
	if err := store.Exports().Create(context.Background(), j); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if j.ID == "" || j.Status != models.ExportPending {
		t.Errorf("Create left job as %+v", j)
	}
}

func TestExportClaimNext_PendingOrAbandoned(t *testing.T) {
	store, mock := newStore(t)
	stale := fixedNow.Add(-30 * time.Minute)
	mock.ExpectQuery("UPDATE export_jobs SET status = 'running'.*status = 'pending' OR \\(status = 'running' AND started_at < \\$2\\).*FOR UPDATE SKIP LOCKED.*RETURNING").
		WithArgs(fixedNow, stale).
		WillReturnRows(sqlmock.NewRows(exportCols).
			AddRow("j-1", "c-1", "u-1", "running", nil, nil, fixedNow, nil, fixedNow))

	j, err := store.Exports().ClaimNext(context.Background(), fixedNow, stale)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if j == nil || j.Status != models.ExportRunning {
		t.Fatalf("ClaimNext = %+v", j)
	}
}

func TestExportClaimNext_EmptyQueue(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectQuery("UPDATE export_jobs").WillReturnRows(sqlmock.NewRows(exportCols))

	j, err := store.Exports().ClaimNext(context.Background(), fixedNow, fixedNow)
	if err != nil || j != nil {
		t.Fatalf("ClaimNext = %v, %v; want nil, nil", j, err)
	}
}

func TestExportCompleteAndFail(t *testing.T) {
	store, mock := newStore(t)
	mock.ExpectExec("UPDATE export_jobs SET status = 'completed'").
		WithArgs("j-1", "exports/c-1/j-1.json", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE export_jobs SET status = 'failed'").
		WithArgs("j-2", "boom", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	if err := store.Exports().Complete(ctx, "j-1", "exports/c-1/j-1.json", fixedNow); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := store.Exports().Fail(ctx, "j-2", "boom", fixedNow); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	expectationsMet(t, mock)
}
