// Package collection provides the application services that drive the
// file collection queue: admitting requests, executing claims against the
// collector pool, and sweeping stale work back into the queue.
package collection

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/forensiq/collectq/internal/domain/collection"
	"github.com/forensiq/collectq/pkg/common/logger"
)

// ErrInvalidRequest marks a creation command rejected by domain validation,
// as opposed to an infrastructure failure.
var ErrInvalidRequest = errors.New("invalid collection request")

// CreateRequestCommand carries everything needed to queue a new collection.
type CreateRequestCommand struct {
	ObservableType string
	ObservableKey  string
	CollectorName  string
	CaseID         uuid.UUID
	RequestedBy    *int64
	MaxRetries     int
}

// ActionOutcome classifies the per-request result of a bulk console action.
type ActionOutcome string

const (
	// ActionApplied means the action took effect on the request.
	ActionApplied ActionOutcome = "applied"

	// ActionCancelRequested means an in-flight request was flagged for
	// cooperative cancellation instead of being cancelled outright.
	ActionCancelRequested ActionOutcome = "cancel_requested"

	// ActionNotFound means the request does not exist.
	ActionNotFound ActionOutcome = "not_found"

	// ActionNotEligible means the request's state does not permit the action.
	ActionNotEligible ActionOutcome = "not_eligible"

	// ActionFailed means the action errored for infrastructure reasons.
	ActionFailed ActionOutcome = "failed"
)

// ActionResult reports what happened to one request during a bulk action.
type ActionResult struct {
	ID      uuid.UUID
	Outcome ActionOutcome
	Detail  string
}

// RequestService is the console-facing application service over the request
// queue: admission with duplicate suppression, reads, and administrative
// bulk actions.
type RequestService struct {
	repo    collection.RequestRepository
	history collection.HistoryRepository

	logger *logger.Logger
	tracer trace.Tracer
}

// NewRequestService creates a request service backed by the given repositories.
func NewRequestService(
	repo collection.RequestRepository,
	history collection.HistoryRepository,
	logger *logger.Logger,
	tracer trace.Tracer,
) *RequestService {
	return &RequestService{repo: repo, history: history, logger: logger, tracer: tracer}
}

// CreateRequest queues a new collection request. If an equivalent request
// (same collector, observable and case) is still pending, that request is
// returned instead of queueing a duplicate; the bool reports whether a new
// request was created.
func (s *RequestService) CreateRequest(ctx context.Context, cmd CreateRequestCommand) (*collection.Request, bool, error) {
	ctx, span := s.tracer.Start(ctx, "request_service.create_request",
		trace.WithAttributes(
			attribute.String("observable_type", cmd.ObservableType),
			attribute.String("collector_name", cmd.CollectorName),
		))
	defer span.End()

	obs, err := collection.NewObservable(cmd.ObservableType, cmd.ObservableKey)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	existing, err := s.repo.FindPending(ctx, cmd.CollectorName, obs, cmd.CaseID)
	if err == nil {
		s.logger.Info(ctx, "suppressed duplicate collection request",
			"existing_request_id", existing.ID(), "observable_key", obs.Key())
		return existing, false, nil
	}
	if !errors.Is(err, collection.ErrRequestNotFound) {
		return nil, false, fmt.Errorf("checking for pending request: %w", err)
	}

	req, err := collection.NewRequest(obs, cmd.CollectorName, cmd.CaseID, cmd.RequestedBy, cmd.MaxRetries)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}

	s.logger.Info(ctx, "queued collection request",
		"request_id", req.ID(), "collector_name", req.CollectorName(), "observable_key", obs.Key())
	return req, true, nil
}

// GetRequest returns a single request by id.
func (s *RequestService) GetRequest(ctx context.Context, id uuid.UUID) (*collection.Request, error) {
	return s.repo.Get(ctx, id)
}

// ListRequests returns one page of the filtered request view plus the total
// match count.
func (s *RequestService) ListRequests(ctx context.Context, q collection.ListQuery) ([]*collection.Request, int64, error) {
	return s.repo.List(ctx, q)
}

// RequestHistory returns one page of a request's attempt history. The request
// must exist even when its history is empty.
func (s *RequestService) RequestHistory(ctx context.Context, id uuid.UUID, page collection.Page) ([]collection.HistoryEntry, int64, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, 0, err
	}
	return s.history.ListByRequest(ctx, id, page)
}

// Retry resets failed or exhausted requests back to the queue. Each id is
// processed independently; one ineligible request never blocks the rest.
func (s *RequestService) Retry(ctx context.Context, ids []uuid.UUID) []ActionResult {
	return s.bulk(ctx, "retry", ids, func(ctx context.Context, id uuid.UUID) (ActionOutcome, error) {
		if err := s.repo.ResetForRetry(ctx, id); err != nil {
			return "", err
		}
		return ActionApplied, nil
	})
}

// Cancel cancels queued requests outright and flags in-flight requests for
// cooperative cancellation.
func (s *RequestService) Cancel(ctx context.Context, ids []uuid.UUID) []ActionResult {
	return s.bulk(ctx, "cancel", ids, func(ctx context.Context, id uuid.UUID) (ActionOutcome, error) {
		err := s.repo.Cancel(ctx, id)
		if err == nil {
			return ActionApplied, nil
		}
		if !errors.Is(err, collection.ErrNotEligible) {
			return "", err
		}

		// The request is not NEW; if a worker owns it, ask the worker to stop.
		if err := s.repo.RequestCancel(ctx, id); err != nil {
			return "", err
		}
		return ActionCancelRequested, nil
	})
}

// Delete removes requests in any state along with their history.
func (s *RequestService) Delete(ctx context.Context, ids []uuid.UUID) []ActionResult {
	return s.bulk(ctx, "delete", ids, func(ctx context.Context, id uuid.UUID) (ActionOutcome, error) {
		if err := s.repo.Delete(ctx, id); err != nil {
			return "", err
		}
		return ActionApplied, nil
	})
}

func (s *RequestService) bulk(
	ctx context.Context,
	action string,
	ids []uuid.UUID,
	apply func(ctx context.Context, id uuid.UUID) (ActionOutcome, error),
) []ActionResult {
	ctx, span := s.tracer.Start(ctx, "request_service.bulk_"+action,
		trace.WithAttributes(attribute.Int("request_count", len(ids))))
	defer span.End()

	results := make([]ActionResult, 0, len(ids))
	for _, id := range ids {
		outcome, err := apply(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, collection.ErrRequestNotFound):
			outcome = ActionNotFound
		case errors.Is(err, collection.ErrNotEligible):
			outcome = ActionNotEligible
		default:
			outcome = ActionFailed
			s.logger.Error(ctx, "bulk action failed", "action", action, "request_id", id, "err", err)
		}

		result := ActionResult{ID: id, Outcome: outcome}
		if err != nil {
			result.Detail = err.Error()
		}
		results = append(results, result)
	}
	return results
}
