package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/google/uuid"
)

// AuditRepository writes and reads the console audit trail
type AuditRepository struct {
	q DBTX
}

// AuditFilters narrows ListAuditLogs
type AuditFilters struct {
	CommunityID *string
	UserID      *string
	Action      *string
	StartDate   *time.Time
	EndDate     *time.Time
}

// CreateAuditLog inserts an audit entry
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	log.ID = uuid.New().String()
	log.CreatedAt = time.Now().UTC()

	var metadataJSON []byte
	if log.Metadata != nil {
		var err error
		if metadataJSON, err = json.Marshal(log.Metadata); err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (id, user_id, community_id, action, resource_type, resource_id, metadata, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.q.ExecContext(ctx, query,
		log.ID, log.UserID, log.CommunityID, log.Action, log.ResourceType, log.ResourceID,
		metadataJSON, log.IPAddress, log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns matching entries newest first plus the total count
func (r *AuditRepository) ListAuditLogs(ctx context.Context, filters AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	where := ` WHERE 1=1`
	args := make([]interface{}, 0)

	add := func(clause string, v interface{}) {
		args = append(args, v)
		where += fmt.Sprintf(clause, len(args))
	}
	if filters.CommunityID != nil {
		add(` AND community_id = $%d`, *filters.CommunityID)
	}
	if filters.UserID != nil {
		add(` AND user_id = $%d`, *filters.UserID)
	}
	if filters.Action != nil {
		add(` AND action = $%d`, *filters.Action)
	}
	if filters.StartDate != nil {
		add(` AND created_at >= $%d`, *filters.StartDate)
	}
	if filters.EndDate != nil {
		add(` AND created_at <= $%d`, *filters.EndDate)
	}

	var total int
	if err := r.q.QueryRowxContext(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := `SELECT id, user_id, community_id, action, resource_type, resource_id, metadata, ip_address, created_at
		FROM audit_logs` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.q.QueryxContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log := &models.AuditLog{}
		var metadataJSON []byte
		if err := rows.Scan(&log.ID, &log.UserID, &log.CommunityID, &log.Action, &log.ResourceType,
			&log.ResourceID, &metadataJSON, &log.IPAddress, &log.CreatedAt); err != nil {
			return nil, 0, err
		}
		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &log.Metadata); err != nil {
				return nil, 0, err
			}
		}
		logs = append(logs, log)
	}
	return logs, total, rows.Err()
}
