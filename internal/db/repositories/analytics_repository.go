package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/community-hub/community-hub/internal/db/models"
)

// AnalyticsRepository runs aggregate queries for the console dashboards
type AnalyticsRepository struct {
	q DBTX
}

// metricSources maps metric names to a subquery yielding one "ts" per event
var metricSources = map[string]string{
	models.MetricPosts: `SELECT published_at AS ts FROM posts
		WHERE community_id = $1 AND deleted_at IS NULL AND published_at IS NOT NULL`,
	models.MetricMembers: `SELECT activated_at AS ts FROM memberships
		WHERE community_id = $1 AND activated_at IS NOT NULL`,
	models.MetricMessages: `SELECT m.created_at AS ts FROM messages m
		JOIN conversations c ON c.id = m.conversation_id WHERE c.community_id = $1`,
}

// TimeSeries counts events per interval ("day" or "week") in [from, to). Empty
// buckets are omitted.
func (r *AnalyticsRepository) TimeSeries(ctx context.Context, communityID, metric string, from, to time.Time, interval string) ([]models.SeriesPoint, error) {
	source, ok := metricSources[metric]
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	if interval != "day" && interval != "week" {
		return nil, fmt.Errorf("unknown interval %q", interval)
	}

	query := `
		SELECT date_trunc('` + interval + `', ts) AS bucket, COUNT(*) AS count
		FROM (` + source + `) events
		WHERE ts >= $2 AND ts < $3
		GROUP BY 1
		ORDER BY 1
	`
	out := []models.SeriesPoint{}
	if err := r.q.SelectContext(ctx, &out, query, communityID, from, to); err != nil {
		return nil, fmt.Errorf("failed to query time series: %w", err)
	}
	return out, nil
}

// Heatmap counts published posts by weekday and hour in [from, to)
func (r *AnalyticsRepository) Heatmap(ctx context.Context, communityID string, from, to time.Time) ([]models.HeatCell, error) {
	query := `
		SELECT EXTRACT(DOW FROM published_at)::int AS weekday, EXTRACT(HOUR FROM published_at)::int AS hour,
			COUNT(*) AS count
		FROM posts
		WHERE community_id = $1 AND deleted_at IS NULL AND published_at >= $2 AND published_at < $3
		GROUP BY 1, 2
	`
	out := []models.HeatCell{}
	if err := r.q.SelectContext(ctx, &out, query, communityID, from, to); err != nil {
		return nil, fmt.Errorf("failed to query heatmap: %w", err)
	}
	return out, nil
}
