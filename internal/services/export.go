package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
	"github.com/community-hub/community-hub/internal/events"
	"github.com/community-hub/community-hub/internal/storage"
	"github.com/community-hub/community-hub/internal/telemetry"
)

// ExportService queues and produces community data exports
type ExportService struct {
	base
	backend storage.Storage
	ttl     time.Duration
}

func NewExportService(store *repositories.Store, publisher events.Publisher, backend storage.Storage, signedURLTTL time.Duration) *ExportService {
	return &ExportService{base: newBase(store, publisher), backend: backend, ttl: signedURLTTL}
}

// ExportStatus is an export job with its download link once completed
type ExportStatus struct {
	*models.ExportJob
	DownloadURL string `json:"download_url,omitempty"`
}

// Document is the JSON written for a completed export
type Document struct {
	ExportedAt time.Time               `json:"exported_at"`
	Community  *models.Community       `json:"community"`
	Members    []models.MemberWithUser `json:"members"`
	Profiles   []models.Profile        `json:"profiles"`
	Posts      []models.Post           `json:"posts"`
}

// RequestExport enqueues an export; owner only
func (s *ExportService) RequestExport(ctx context.Context, communityID, userID string) (*models.ExportJob, error) {
	if _, err := requireRole(ctx, s.store, userID, communityID, models.RoleOwner); err != nil {
		return nil, err
	}
	job := &models.ExportJob{CommunityID: communityID, RequestedBy: userID}
	if err := s.store.Exports().Create(ctx, job); err != nil {
		return nil, err
	}
	telemetry.ExportJobsTotal.WithLabelValues(string(models.ExportPending)).Inc()
	return job, nil
}

// GetExport returns a job's status. The signed URL is only issued once the
// file exists.
func (s *ExportService) GetExport(ctx context.Context, communityID, exportID, userID string) (*ExportStatus, error) {
	if _, err := requireRole(ctx, s.store, userID, communityID, models.RoleOwner); err != nil {
		return nil, err
	}
	job, err := s.store.Exports().GetByID(ctx, communityID, exportID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apperr.NotFound(codeNotFound)
	}
	out := &ExportStatus{ExportJob: job}
	if job.Status == models.ExportCompleted && job.ResultPath != nil {
		url, err := s.backend.SignedURL(ctx, *job.ResultPath, s.ttl)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		out.DownloadURL = url
	}
	return out, nil
}

// ExportLease is how long a running export may go without finishing before
// another tick reclaims it
const ExportLease = 30 * time.Minute

// RunNext claims and processes the oldest pending export, or one whose run
// was abandoned. It reports whether a job was found.
func (s *ExportService) RunNext(ctx context.Context) (bool, error) {
	now := s.now()
	job, err := s.store.Exports().ClaimNext(ctx, now, now.Add(-ExportLease))
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	start := time.Now()
	path, runErr := s.run(ctx, job)
	telemetry.ExportJobDuration.Observe(time.Since(start).Seconds())

	if runErr != nil {
		telemetry.ExportJobsTotal.WithLabelValues(string(models.ExportFailed)).Inc()
		slog.ErrorContext(ctx, "export job failed", "export_id", job.ID, "community_id", job.CommunityID, "error", runErr)
		if err := s.store.Exports().Fail(ctx, job.ID, runErr.Error(), s.now()); err != nil {
			return true, err
		}
		return true, nil
	}

	if err := s.store.Exports().Complete(ctx, job.ID, path, s.now()); err != nil {
		return true, err
	}
	telemetry.ExportJobsTotal.WithLabelValues(string(models.ExportCompleted)).Inc()
	slog.InfoContext(ctx, "export job completed", "export_id", job.ID, "community_id", job.CommunityID, "path", path)
	s.publish(ctx, events.Event{
		Type: events.ExportCompleted, CommunityID: job.CommunityID, ActorID: job.RequestedBy, SubjectID: job.ID,
	})
	return true, nil
}

func (s *ExportService) run(ctx context.Context, job *models.ExportJob) (string, error) {
	community, err := s.store.Communities().GetByID(ctx, job.CommunityID)
	if err != nil {
		return "", err
	}
	if community == nil {
		return "", fmt.Errorf("community %s no longer exists", job.CommunityID)
	}
	members, err := s.store.Memberships().ListMembers(ctx, job.CommunityID)
	if err != nil {
		return "", err
	}
	profiles, err := s.store.Profiles().ListByCommunity(ctx, job.CommunityID)
	if err != nil {
		return "", err
	}
	posts, err := s.store.Posts().ListPublished(ctx, job.CommunityID)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(Document{
		ExportedAt: s.now(),
		Community:  community,
		Members:    members,
		Profiles:   profiles,
		Posts:      posts,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode export: %w", err)
	}

	path := fmt.Sprintf("exports/%s/%s.json", job.CommunityID, job.ID)
	if _, err := s.backend.Put(ctx, path, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", fmt.Errorf("failed to store export: %w", err)
	}
	return path, nil
}
