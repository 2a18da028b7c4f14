package models

import "time"

// ExportStatus is the processing state of an export job
type ExportStatus string

const (
	ExportPending   ExportStatus = "pending"
	ExportRunning   ExportStatus = "running"
	ExportCompleted ExportStatus = "completed"
	ExportFailed    ExportStatus = "failed"
)

// ExportJob is a queued request to export a community's data
type ExportJob struct {
	ID          string       `db:"id" json:"id"`
	CommunityID string       `db:"community_id" json:"community_id"`
	RequestedBy string       `db:"requested_by" json:"requested_by"`
	Status      ExportStatus `db:"status" json:"status"`
	ResultPath  *string      `db:"result_path" json:"-"`
	Error       *string      `db:"error" json:"error,omitempty"`
	StartedAt   *time.Time   `db:"started_at" json:"started_at,omitempty"`
	FinishedAt  *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}
