package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/google/uuid"
)

// ExportRepository handles the export job queue
type ExportRepository struct {
	q DBTX
}

const exportColumns = `id, community_id, requested_by, status, result_path, error, started_at, finished_at, created_at`

// Create enqueues a pending export job
func (r *ExportRepository) Create(ctx context.Context, j *models.ExportJob) error {
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	j.Status = models.ExportPending
	j.CreatedAt = time.Now().UTC()
	query := `INSERT INTO export_jobs (id, community_id, requested_by, status, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.q.ExecContext(ctx, query, j.ID, j.CommunityID, j.RequestedBy, j.Status, j.CreatedAt); err != nil {
		return fmt.Errorf("failed to create export job: %w", err)
	}
	return nil
}

// GetByID returns an export job scoped to its community
func (r *ExportRepository) GetByID(ctx context.Context, communityID, id string) (*models.ExportJob, error) {
	query := `SELECT ` + exportColumns + ` FROM export_jobs WHERE id = $1 AND community_id = $2`
	var j models.ExportJob
	if err := r.q.GetContext(ctx, &j, query, id, communityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get export job: %w", err)
	}
	return &j, nil
}

// ClaimNext atomically moves the oldest claimable job to running and returns
// it. A job is claimable when pending, or when it has been running since
// before staleBefore, which is how jobs abandoned by a crashed run come back.
// It returns nil when nothing is claimable. Concurrent callers never claim the
// same job.
func (r *ExportRepository) ClaimNext(ctx context.Context, now, staleBefore time.Time) (*models.ExportJob, error) {
	query := `
		UPDATE export_jobs SET status = 'running', started_at = $1
		WHERE id = (
			SELECT id FROM export_jobs
			WHERE status = 'pending' OR (status = 'running' AND started_at < $2)
			ORDER BY created_at LIMIT 1 FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + exportColumns
	var j models.ExportJob
	if err := r.q.GetContext(ctx, &j, query, now, staleBefore); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim export job: %w", err)
	}
	return &j, nil
}

// Complete marks a job finished with its stored result
func (r *ExportRepository) Complete(ctx context.Context, id, resultPath string, now time.Time) error {
	query := `UPDATE export_jobs SET status = 'completed', result_path = $2, finished_at = $3 WHERE id = $1`
	if _, err := r.q.ExecContext(ctx, query, id, resultPath, now); err != nil {
		return fmt.Errorf("failed to complete export job: %w", err)
	}
	return nil
}

// Fail marks a job failed with an error message
func (r *ExportRepository) Fail(ctx context.Context, id, msg string, now time.Time) error {
	query := `UPDATE export_jobs SET status = 'failed', error = $2, finished_at = $3 WHERE id = $1`
	if _, err := r.q.ExecContext(ctx, query, id, msg, now); err != nil {
		return fmt.Errorf("failed to fail export job: %w", err)
	}
	return nil
}
