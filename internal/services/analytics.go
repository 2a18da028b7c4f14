package services

import (
	"context"
	"time"

	"github.com/community-hub/community-hub/internal/apperr"
	"github.com/community-hub/community-hub/internal/authz"
	"github.com/community-hub/community-hub/internal/db/models"
	"github.com/community-hub/community-hub/internal/db/repositories"
)

const (
	IntervalDay  = "day"
	IntervalWeek = "week"

	maxAnalyticsRange = 366 * 24 * time.Hour
)

// AnalyticsService serves the console dashboards
type AnalyticsService struct {
	store *repositories.Store
}

func NewAnalyticsService(store *repositories.Store) *AnalyticsService {
	return &AnalyticsService{store: store}
}

func validRange(from, to time.Time) error {
	if !from.Before(to) || to.Sub(from) > maxAnalyticsRange {
		return apperr.BadRequest(apperr.CodeInvalidRequest, "from/to")
	}
	return nil
}

// TimeSeries returns one point per interval in [from, to), including empty buckets
func (s *AnalyticsService) TimeSeries(ctx context.Context, communityID, userID, metric string, from, to time.Time, interval string) ([]models.SeriesPoint, error) {
	switch metric {
	case models.MetricPosts, models.MetricMembers, models.MetricMessages:
	default:
		return nil, apperr.BadRequest("invalid_metric", metric)
	}
	if interval == "" {
		interval = IntervalDay
	}
	if interval != IntervalDay && interval != IntervalWeek {
		return nil, apperr.BadRequest("invalid_interval", interval)
	}
	from, to = from.UTC(), to.UTC()
	if err := validRange(from, to); err != nil {
		return nil, err
	}
	if _, err := requireRole(ctx, s.store, userID, communityID, authz.Staff...); err != nil {
		return nil, err
	}

	rows, err := s.store.Analytics().TimeSeries(ctx, communityID, metric, from, to, interval)
	if err != nil {
		return nil, err
	}
	return fillSeries(rows, from, to, interval), nil
}

// fillSeries lays rows over every bucket between from and to
func fillSeries(rows []models.SeriesPoint, from, to time.Time, interval string) []models.SeriesPoint {
	counts := make(map[int64]int64, len(rows))
	for _, r := range rows {
		counts[r.Bucket.UTC().Unix()] = r.Count
	}
	step := 24 * time.Hour
	if interval == IntervalWeek {
		step = 7 * step
	}
	out := []models.SeriesPoint{}
	for b := truncate(from, interval); b.Before(to); b = b.Add(step) {
		out = append(out, models.SeriesPoint{Bucket: b, Count: counts[b.Unix()]})
	}
	return out
}

// truncate mirrors Postgres date_trunc for day and ISO week
func truncate(t time.Time, interval string) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if interval == IntervalWeek {
		offset := (int(d.Weekday()) + 6) % 7
		d = d.AddDate(0, 0, -offset)
	}
	return d
}

// Heatmap returns post counts for all 7x24 weekday/hour cells
func (s *AnalyticsService) Heatmap(ctx context.Context, communityID, userID string, from, to time.Time) ([]models.HeatCell, error) {
	from, to = from.UTC(), to.UTC()
	if err := validRange(from, to); err != nil {
		return nil, err
	}
	if _, err := requireRole(ctx, s.store, userID, communityID, authz.Staff...); err != nil {
		return nil, err
	}
	rows, err := s.store.Analytics().Heatmap(ctx, communityID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]models.HeatCell, 7*24)
	for i := range out {
		out[i] = models.HeatCell{Weekday: i / 24, Hour: i % 24}
	}
	for _, r := range rows {
		if r.Weekday >= 0 && r.Weekday < 7 && r.Hour >= 0 && r.Hour < 24 {
			out[r.Weekday*24+r.Hour].Count = r.Count
		}
	}
	return out, nil
}
