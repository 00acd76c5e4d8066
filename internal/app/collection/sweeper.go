package collection

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/forensiq/collectq/internal/domain/collection"
	"github.com/forensiq/collectq/pkg/common/logger"
)

// SweeperConfig tunes the background maintenance loop.
type SweeperConfig struct {
	// Interval is how often the sweep runs.
	Interval time.Duration

	// LockTimeout is how long a claim may go unresolved before its worker is
	// presumed dead and the request becomes claimable again.
	LockTimeout time.Duration

	// CollectionWindow is how long a request may wait in the queue before it
	// is finalized as failed.
	CollectionWindow time.Duration
}

// Sweeper periodically reclaims stale locks and expires requests that
// outlived the collection window. Multiple sweepers may run concurrently;
// the conditional updates make each sweep idempotent.
type Sweeper struct {
	repo collection.RequestRepository
	cfg  SweeperConfig

	logger *logger.Logger
	tracer trace.Tracer
}

// NewSweeper creates a sweeper over the given repository.
func NewSweeper(repo collection.RequestRepository, cfg SweeperConfig, logger *logger.Logger, tracer trace.Tracer) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Minute
	}
	if cfg.CollectionWindow <= 0 {
		cfg.CollectionWindow = 168 * time.Hour
	}

	return &Sweeper{
		repo:   repo,
		cfg:    cfg,
		logger: logger.With("component", "collection_sweeper"),
		tracer: tracer,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one maintenance pass. Failures are logged and retried on the
// next tick; a broken database connection must not stop the loop.
func (s *Sweeper) sweep(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "collection_sweeper.sweep")
	defer span.End()

	reclaimed, err := s.repo.ReclaimStale(ctx, s.cfg.LockTimeout)
	if err != nil {
		s.logger.Error(ctx, "failed to reclaim stale locks", "err", err)
	} else if reclaimed > 0 {
		s.logger.Warn(ctx, "reclaimed stale locks", "count", reclaimed, "lock_timeout", s.cfg.LockTimeout)
	}

	expired, err := s.repo.ExpireOverdue(ctx, s.cfg.CollectionWindow)
	if err != nil {
		s.logger.Error(ctx, "failed to expire overdue requests", "err", err)
	} else if expired > 0 {
		s.logger.Info(ctx, "expired overdue requests", "count", expired, "collection_window", s.cfg.CollectionWindow)
	}
}
