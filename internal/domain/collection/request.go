package collection

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries bounds retry attempts when a request does not specify its own.
const DefaultMaxRetries = 10

// Request tracks the full lifecycle of a single file collection: what to
// collect, which collector handles it, its current scheduling state, and the
// bounded-retry bookkeeping. All cross-worker coordination happens through the
// persisted fields; the aggregate itself holds no locks.
type Request struct {
	id            uuid.UUID
	observable    Observable
	collectorName string
	caseID        uuid.UUID
	requestedBy   *int64

	status        Status
	result        *ResultKind
	resultMessage string

	lockToken       *uuid.UUID
	lockAcquiredAt  time.Time
	cancelRequested bool

	retryCount int
	maxRetries int

	artifactPath string
	artifactHash string

	createdAt       time.Time
	lastAttemptedAt time.Time
}

// NewRequest creates a request in the NEW state, ready to be claimed.
// Every collected artifact must be attributable to a case, so caseID is
// required. A nil requestedBy marks an automated origin.
func NewRequest(
	observable Observable,
	collectorName string,
	caseID uuid.UUID,
	requestedBy *int64,
	maxRetries int,
) (*Request, error) {
	if collectorName == "" {
		return nil, fmt.Errorf("collector name is required")
	}
	if caseID == uuid.Nil {
		return nil, fmt.Errorf("case id is required")
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Request{
		id:            uuid.New(),
		observable:    observable,
		collectorName: collectorName,
		caseID:        caseID,
		requestedBy:   requestedBy,
		status:        StatusNew,
		maxRetries:    maxRetries,
		createdAt:     time.Now().UTC(),
	}, nil
}

// ReconstructRequest creates a Request from persisted data without enforcing
// creation-time invariants. This should only be used by repositories when
// reconstructing from storage.
func ReconstructRequest(
	id uuid.UUID,
	observable Observable,
	collectorName string,
	caseID uuid.UUID,
	requestedBy *int64,
	status Status,
	result *ResultKind,
	resultMessage string,
	lockToken *uuid.UUID,
	lockAcquiredAt time.Time,
	cancelRequested bool,
	retryCount int,
	maxRetries int,
	artifactPath string,
	artifactHash string,
	createdAt time.Time,
	lastAttemptedAt time.Time,
) *Request {
	return &Request{
		id:              id,
		observable:      observable,
		collectorName:   collectorName,
		caseID:          caseID,
		requestedBy:     requestedBy,
		status:          status,
		result:          result,
		resultMessage:   resultMessage,
		lockToken:       lockToken,
		lockAcquiredAt:  lockAcquiredAt,
		cancelRequested: cancelRequested,
		retryCount:      retryCount,
		maxRetries:      maxRetries,
		artifactPath:    artifactPath,
		artifactHash:    artifactHash,
		createdAt:       createdAt,
		lastAttemptedAt: lastAttemptedAt,
	}
}

// ID returns the unique identifier of this request.
func (r *Request) ID() uuid.UUID { return r.id }

// Observable returns what is being collected.
func (r *Request) Observable() Observable { return r.observable }

// CollectorName returns the name of the collector that handles this request.
func (r *Request) CollectorName() string { return r.collectorName }

// CaseID returns the owning investigation.
func (r *Request) CaseID() uuid.UUID { return r.caseID }

// RequestedBy returns the requesting user id, or nil for automated origins.
func (r *Request) RequestedBy() *int64 { return r.requestedBy }

// Status returns the current scheduling state.
func (r *Request) Status() Status { return r.status }

// Result returns the most recent attempt result, or nil before any attempt.
func (r *Request) Result() *ResultKind { return r.result }

// ResultMessage returns the free-text detail of the most recent attempt.
func (r *Request) ResultMessage() string { return r.resultMessage }

// LockToken returns the opaque token of the owning worker, or nil when unowned.
func (r *Request) LockToken() *uuid.UUID { return r.lockToken }

// LockAcquiredAt returns when the current claim was taken.
func (r *Request) LockAcquiredAt() time.Time { return r.lockAcquiredAt }

// CancelRequested reports whether a cooperative cancel is pending.
func (r *Request) CancelRequested() bool { return r.cancelRequested }

// RetryCount returns the number of attempts resolved so far.
func (r *Request) RetryCount() int { return r.retryCount }

// MaxRetries returns the retry bound for this request.
func (r *Request) MaxRetries() int { return r.maxRetries }

// ArtifactPath returns where the collected file was placed, set only on SUCCESS.
func (r *Request) ArtifactPath() string { return r.artifactPath }

// ArtifactHash returns the SHA256 of the collected file, set only on SUCCESS.
func (r *Request) ArtifactHash() string { return r.artifactHash }

// CreatedAt returns when the request was queued.
func (r *Request) CreatedAt() time.Time { return r.createdAt }

// LastAttemptedAt returns when the request was last resolved after an attempt.
func (r *Request) LastAttemptedAt() time.Time { return r.lastAttemptedAt }

// IsTerminal reports whether the request reached a terminal outcome.
func (r *Request) IsTerminal() bool { return r.status == StatusCompleted }

// Claim transitions the request from NEW to IN_PROGRESS under a fresh lock
// token. Storage enforces the same guard as a conditional update; this method
// keeps in-memory representations honest.
func (r *Request) Claim(token uuid.UUID, at time.Time) error {
	if err := r.status.validateTransition(StatusInProgress); err != nil {
		return err
	}
	r.status = StatusInProgress
	r.lockToken = &token
	r.lockAcquiredAt = at
	return nil
}

// Resolution describes how an attempt outcome was applied to a request:
// the history entry to append and whether the request was finalized.
type Resolution struct {
	Entry     HistoryEntry
	Finalized bool
}

// ResolveAttempt applies the retry policy to an attempt outcome. The raw
// result is always recorded in the returned history entry. Terminal results
// finalize the request. Retryable results increment the retry count and
// requeue, unless the bound is exhausted (finalize as FAILED while the last
// transient reason stays in the result message) or a cooperative cancel is
// pending (finalize as CANCELLED). The lock is released in every branch.
func (r *Request) ResolveAttempt(kind ResultKind, message, artifactPath, artifactHash string, at time.Time) (Resolution, error) {
	if r.status != StatusInProgress {
		return Resolution{}, fmt.Errorf("cannot resolve attempt for request %s in status %s", r.id, r.status)
	}

	r.lastAttemptedAt = at
	r.resultMessage = message
	r.lockToken = nil
	r.lockAcquiredAt = time.Time{}

	entry := HistoryEntry{
		requestID:  r.id,
		occurredAt: at,
		result:     kind,
		message:    message,
	}

	switch {
	case kind.IsTerminal():
		r.status = StatusCompleted
		res := kind
		r.result = &res
		if kind == ResultSuccess {
			r.artifactPath = artifactPath
			r.artifactHash = artifactHash
		}

	default:
		r.retryCount++

		switch {
		case r.cancelRequested:
			// A cancel arrived mid-attempt. The attempt did not finish the
			// lifecycle on its own, so the cancel wins over a requeue.
			r.status = StatusCompleted
			res := ResultCancelled
			r.result = &res

		case r.retryCount >= r.maxRetries:
			// Exhausted. The stored terminal reason reflects exhaustion; the
			// last transient reason remains in the message and the history.
			r.status = StatusCompleted
			res := ResultFailed
			r.result = &res

		default:
			r.status = StatusNew
			res := kind
			r.result = &res
		}
	}

	entry.resultingStatus = r.status
	return Resolution{Entry: entry, Finalized: r.status == StatusCompleted}, nil
}

// Cancel finalizes a NEW request as CANCELLED. Requests already in flight
// require a cooperative cancel via MarkCancelRequested.
func (r *Request) Cancel(at time.Time) (HistoryEntry, error) {
	if r.status != StatusNew {
		return HistoryEntry{}, fmt.Errorf("cannot cancel request %s in status %s", r.id, r.status)
	}
	r.status = StatusCompleted
	res := ResultCancelled
	r.result = &res
	r.lockToken = nil
	return NewHistoryEntry(r.id, ResultCancelled, "cancelled by administrator", StatusCompleted, at), nil
}

// MarkCancelRequested records a cooperative cancellation intent on an in-flight
// request. The running attempt observes the flag at resolution time.
func (r *Request) MarkCancelRequested() error {
	if r.status != StatusInProgress {
		return fmt.Errorf("cannot request cancel for request %s in status %s", r.id, r.status)
	}
	r.cancelRequested = true
	return nil
}

// ResetForRetry returns an exhausted or failed COMPLETED request to the queue
// with fresh retry bookkeeping. SUCCESS and CANCELLED outcomes are not
// retryable.
func (r *Request) ResetForRetry() error {
	if r.status != StatusCompleted || r.result == nil {
		return fmt.Errorf("cannot retry request %s in status %s", r.id, r.status)
	}
	eligible := false
	for _, kind := range RetryableResultKinds() {
		if *r.result == kind {
			eligible = true
			break
		}
	}
	if !eligible {
		return fmt.Errorf("cannot retry request %s with result %s", r.id, *r.result)
	}

	r.status = StatusNew
	r.result = nil
	r.resultMessage = ""
	r.lockToken = nil
	r.lockAcquiredAt = time.Time{}
	r.cancelRequested = false
	r.retryCount = 0
	r.lastAttemptedAt = time.Time{}
	return nil
}

// ExpireWindow finalizes a NEW request that outlived the collection window as
// FAILED. Endpoints that stay unreachable for the whole window are unlikely to
// ever produce the file.
func (r *Request) ExpireWindow(at time.Time) (HistoryEntry, error) {
	if r.status != StatusNew {
		return HistoryEntry{}, fmt.Errorf("cannot expire request %s in status %s", r.id, r.status)
	}
	r.status = StatusCompleted
	res := ResultFailed
	r.result = &res
	r.resultMessage = "collection window expired"
	return NewHistoryEntry(r.id, ResultFailed, "collection window expired", StatusCompleted, at), nil
}

// ReclaimStale resets an IN_PROGRESS request whose worker went silent back to
// NEW so it becomes claimable again, recording the reclaim in history.
func (r *Request) ReclaimStale(at time.Time) (HistoryEntry, error) {
	if r.status != StatusInProgress {
		return HistoryEntry{}, fmt.Errorf("cannot reclaim request %s in status %s", r.id, r.status)
	}
	r.status = StatusNew
	r.lockToken = nil
	r.lockAcquiredAt = time.Time{}
	return NewHistoryEntry(r.id, ResultError, "stale lock reclaimed", StatusNew, at), nil
}
