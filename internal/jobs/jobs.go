// Package jobs runs periodic housekeeping against the database.
package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/erazemk/zadolzitve/internal/metrics"
	"github.com/erazemk/zadolzitve/internal/store"
)

// DefaultPurgeInterval is how often expired rows are removed.
const DefaultPurgeInterval = 10 * time.Minute

// Scheduler wraps a gocron scheduler with the purge jobs registered.
type Scheduler struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a scheduler that purges expired workflow contexts and token
// revocations every interval.
func New(db *sql.DB, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(Purge, ctx, db),
		gocron.WithName("purge-expired"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		_ = s.Shutdown()
		return nil, fmt.Errorf("creating purge job: %w", err)
	}

	return &Scheduler{scheduler: s, ctx: ctx, cancel: cancel}, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	slog.Info("starting background jobs")
	s.scheduler.Start()
}

// Stop cancels running jobs, waits for them and stops the scheduler.
func (s *Scheduler) Stop() error {
	slog.Info("stopping background jobs")
	s.cancel()
	return s.scheduler.Shutdown()
}

// Purge removes expired workflow contexts and revocations of expired tokens.
func Purge(ctx context.Context, db *sql.DB) error {
	now := time.Now()

	workflows, err := store.PurgeExpiredWorkflows(ctx, db, now)
	if err != nil {
		slog.Error("purging workflow contexts", "error", err)
		return err
	}
	metrics.Purged("workflow_contexts", workflows)

	tokens, err := store.PurgeRevokedTokens(ctx, db, now)
	if err != nil {
		slog.Error("purging revoked tokens", "error", err)
		return err
	}
	metrics.Purged("revoked_tokens", tokens)

	if workflows > 0 || tokens > 0 {
		slog.Debug("purged expired rows", "workflows", workflows, "tokens", tokens)
	}
	return nil
}
