// scheduler.go implements the process-wide ticker that publishes scheduled
// posts and drains the community export queue.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/community-hub/community-hub/internal/safego"
	"github.com/community-hub/community-hub/internal/telemetry"
)

// DefaultInterval is used when the configured interval is not positive
const DefaultInterval = 60 * time.Second

// DuePublisher publishes scheduled posts whose time has come
type DuePublisher interface {
	PublishDue(ctx context.Context) (int64, error)
}

// ExportRunner processes at most one pending export job
type ExportRunner interface {
	RunNext(ctx context.Context) (bool, error)
}

// Scheduler runs one tick per interval. A tick that starts while the previous
// one is still running is skipped.
type Scheduler struct {
	posts    DuePublisher
	exports  ExportRunner
	interval time.Duration
	running  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewScheduler creates a scheduler
func NewScheduler(posts DuePublisher, exports ExportRunner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		posts:    posts,
		exports:  exports,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start blocks, ticking until Stop is called or ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("scheduler started", "interval", s.interval)
	for {
		select {
		case <-ticker.C:
			safego.Go("scheduler.tick", func() { s.Tick(ctx) })
		case <-s.stopChan:
			slog.Info("scheduler stopped")
			return
		case <-ctx.Done():
			slog.Info("scheduler context cancelled")
			return
		}
	}
}

// Stop ends the loop; a tick already in progress finishes on its own
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// Tick runs one pass and returns its result label: "ok", "error" or "skipped".
// A failing or panicking step is logged and does not prevent the next one.
func (s *Scheduler) Tick(ctx context.Context) string {
	if !s.running.CompareAndSwap(false, true) {
		telemetry.SchedulerTicksTotal.WithLabelValues("skipped").Inc()
		slog.Warn("scheduler tick skipped, previous run still in progress")
		return "skipped"
	}
	defer s.running.Store(false)

	result := "ok"
	var published int64
	err := guard("publish scheduled posts", func() (err error) {
		published, err = s.posts.PublishDue(ctx)
		return err
	})
	if err != nil {
		result = "error"
		slog.Error("failed to publish scheduled posts", "error", err)
	} else if published > 0 {
		telemetry.ScheduledPostsPublishedTotal.Add(float64(published))
		slog.Info("published scheduled posts", "count", published)
	}

	if err := guard("run export job", func() error {
		_, err := s.exports.RunNext(ctx)
		return err
	}); err != nil {
		result = "error"
		slog.Error("failed to run export job", "error", err)
	}

	telemetry.SchedulerTicksTotal.WithLabelValues(result).Inc()
	return result
}

// guard converts a panic in step into an error so the tick can finish
func guard(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", step, r)
		}
	}()
	return fn()
}
