package collection

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/forensiq/collectq/internal/domain/collection"
	"github.com/forensiq/collectq/internal/domain/collector"
	"github.com/forensiq/collectq/internal/domain/events"
	"github.com/forensiq/collectq/pkg/common"
	"github.com/forensiq/collectq/pkg/common/logger"
)

// WorkerConfig tunes the claim loop.
type WorkerConfig struct {
	// Concurrency is the number of claim loops to run. Each loop claims,
	// executes, and resolves one request at a time.
	Concurrency int

	// PollInterval is how long a loop idles after finding no claimable work.
	PollInterval time.Duration

	// AttemptTimeout bounds one collector execution.
	AttemptTimeout time.Duration

	// Eligibility gates which requests this worker's claims consider.
	Eligibility collection.ClaimEligibility

	// ClaimsPerSecond and ClaimBurst bound how fast this worker hits the
	// database when the queue is hot.
	ClaimsPerSecond float64
	ClaimBurst      int
}

// Worker runs a pool of claim loops against the request queue. Each loop
// claims one eligible request, routes it to the matching collector, and
// resolves the outcome. Completion events are published for every request
// that reaches a terminal state.
type Worker struct {
	id       string
	registry *collector.Registry
	repo     collection.RequestRepository
	pub      events.DomainEventPublisher
	limiter  *common.RateLimiter

	cfg WorkerConfig

	logger *logger.Logger
	tracer trace.Tracer
}

// NewWorker creates a worker pool over the given registry and repository.
func NewWorker(
	id string,
	registry *collector.Registry,
	repo collection.RequestRepository,
	pub events.DomainEventPublisher,
	cfg WorkerConfig,
	logger *logger.Logger,
	tracer trace.Tracer,
) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Minute
	}
	if cfg.ClaimsPerSecond <= 0 {
		cfg.ClaimsPerSecond = 10
	}
	if cfg.ClaimBurst <= 0 {
		cfg.ClaimBurst = 1
	}

	return &Worker{
		id:       id,
		registry: registry,
		repo:     repo,
		pub:      pub,
		limiter:  common.NewRateLimiter(cfg.ClaimsPerSecond, cfg.ClaimBurst),
		cfg:      cfg,
		logger:   logger.With("component", "collection_worker", "worker_id", id),
		tracer:   tracer,
	}
}

// Run starts the claim loops and blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	caps := w.registry.Capabilities()
	w.logger.Info(ctx, "starting collection worker",
		"concurrency", w.cfg.Concurrency, "capabilities", len(caps))

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error { return w.claimLoop(ctx, caps) })
	}
	return g.Wait()
}

// claimLoop claims and executes requests until the context is cancelled.
// Storage failures back off exponentially; an idle queue is polled at the
// configured interval.
func (w *Worker) claimLoop(ctx context.Context, caps []collection.Capability) error {
	storageBackoff := backoff.NewExponentialBackOff()
	storageBackoff.MaxElapsedTime = 0
	storageBackoff.InitialInterval = time.Second
	storageBackoff.MaxInterval = time.Minute

	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := w.repo.Claim(ctx, caps, w.cfg.Eligibility)
		switch {
		case errors.Is(err, collection.ErrNoWork):
			storageBackoff.Reset()
			if err := sleepCtx(ctx, w.cfg.PollInterval); err != nil {
				return err
			}
			continue

		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := storageBackoff.NextBackOff()
			w.logger.Error(ctx, "claim failed, backing off", "err", err, "wait", wait)
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
			continue
		}
		storageBackoff.Reset()

		w.execute(ctx, req)
	}
}

// execute runs one claimed request through its collector and resolves the
// outcome.
func (w *Worker) execute(ctx context.Context, req *collection.Request) {
	ctx, span := w.tracer.Start(ctx, "collection_worker.execute",
		trace.WithAttributes(
			attribute.String("request_id", req.ID().String()),
			attribute.String("collector_name", req.CollectorName()),
			attribute.String("observable_type", req.Observable().Type()),
		))
	defer span.End()

	lockToken := *req.LockToken()
	outcome := w.collect(ctx, req)

	resolved, err := w.repo.Resolve(ctx, req.ID(), lockToken, outcome)
	if err != nil {
		if errors.Is(err, collection.ErrNotEligible) {
			// The lock was reclaimed or an administrator intervened while the
			// attempt ran. The other writer's state wins.
			w.logger.Warn(ctx, "lost request ownership before resolution",
				"request_id", req.ID(), "result", outcome.Kind)
			return
		}
		w.logger.Error(ctx, "failed to resolve attempt", "request_id", req.ID(), "err", err)
		return
	}

	w.logger.Info(ctx, "resolved collection attempt",
		"request_id", req.ID(), "result", outcome.Kind, "status", resolved.Status(), "retry_count", resolved.RetryCount())

	if resolved.IsTerminal() {
		event := collection.NewRequestCompletedEvent(resolved, time.Now().UTC())
		if err := w.pub.PublishDomainEvent(ctx, event); err != nil {
			// The request state is already durable; event delivery is
			// best-effort and failures only cost downstream latency.
			w.logger.Error(ctx, "failed to publish completion event", "request_id", req.ID(), "err", err)
		}
	}
}

// collect routes the request to its collector and converts every failure
// mode, including panics, into an attempt outcome.
func (w *Worker) collect(ctx context.Context, req *collection.Request) (outcome collection.AttemptOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error(ctx, "collector panicked",
				"request_id", req.ID(), "panic", rec, "stack", string(debug.Stack()))
			outcome = collection.AttemptOutcome{
				Kind:    collection.ResultError,
				Message: fmt.Sprintf("collector panic: %v", rec),
			}
		}
	}()

	col, ok := w.registry.Get(req.CollectorName())
	if !ok {
		return collection.AttemptOutcome{
			Kind:    collection.ResultFailed,
			Message: fmt.Sprintf("no collector registered with name %q", req.CollectorName()),
		}
	}

	target := collector.Target{
		RequestID:  req.ID(),
		CaseID:     req.CaseID(),
		Observable: req.Observable(),
	}
	if req.Observable().Type() == collection.ObservableTypeFileLocation {
		hostname, path, err := collection.SplitFileLocation(req.Observable().Key())
		if err != nil {
			return collection.AttemptOutcome{Kind: collection.ResultFailed, Message: err.Error()}
		}
		target.Hostname = hostname
		target.Path = path
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.AttemptTimeout)
	defer cancel()

	result, err := col.Collect(ctx, target)
	if err != nil {
		return collection.AttemptOutcome{Kind: collection.ResultError, Message: err.Error()}
	}

	return collection.AttemptOutcome{
		Kind:         result.Kind,
		Message:      result.Message,
		ArtifactPath: result.ArtifactPath,
		ArtifactHash: result.ArtifactHash,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
