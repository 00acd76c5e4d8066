package collection

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNoWork indicates no claimable request matched a worker's
	// capabilities. This is the normal idle case, not a failure.
	ErrNoWork = errors.New("no claimable collection request")

	// ErrRequestNotFound indicates the referenced request does not exist.
	ErrRequestNotFound = errors.New("collection request not found")

	// ErrNotEligible indicates a conditional update found the request in a
	// state that does not permit the operation (e.g. cancelling a COMPLETED
	// request, or resolving after losing lock ownership).
	ErrNotEligible = errors.New("collection request not eligible for operation")
)

// Capability identifies one kind of work a worker can service: requests whose
// observable type and collector name both match.
type Capability struct {
	ObservableType string
	CollectorName  string
}

// AttemptOutcome carries the typed result of one collection attempt into the
// resolution path. Artifact fields are meaningful only on SUCCESS.
type AttemptOutcome struct {
	Kind         ResultKind
	Message      string
	ArtifactPath string
	ArtifactHash string
}

// ClaimEligibility gates which NEW requests a claim may consider. Between
// attempts each request backs off exponentially from its last attempt, and
// requests older than the collection window stop being claimed entirely.
type ClaimEligibility struct {
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
	MaxCollectionAge  time.Duration
}

// RetryDelayFor returns the backoff delay required before a request with the
// given retry count may be claimed again.
func (e ClaimEligibility) RetryDelayFor(retryCount int) time.Duration {
	delay := e.InitialRetryDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= e.MaxRetryDelay {
			return e.MaxRetryDelay
		}
	}
	if delay > e.MaxRetryDelay {
		return e.MaxRetryDelay
	}
	return delay
}

// SortField names a column of the console list view.
type SortField string

const (
	SortFieldID        SortField = "id"
	SortFieldCollector SortField = "collector"
	SortFieldType      SortField = "type"
	SortFieldValue     SortField = "value"
	SortFieldStatus    SortField = "status"
	SortFieldResult    SortField = "result"
	SortFieldCreatedAt SortField = "created_at"
)

// ParseSortField converts a string to a SortField, defaulting to id.
func ParseSortField(s string) SortField {
	switch SortField(s) {
	case SortFieldCollector, SortFieldType, SortFieldValue, SortFieldStatus, SortFieldResult, SortFieldCreatedAt:
		return SortField(s)
	default:
		return SortFieldID
	}
}

// SortDirection orders a sorted list view.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection converts a string to a SortDirection, defaulting to descending.
func ParseSortDirection(s string) SortDirection {
	if SortDirection(s) == SortAsc {
		return SortAsc
	}
	return SortDesc
}

// ListFilter restricts the console list view. Zero values mean "no filter".
// ObservableKey matches as a substring; the other fields match exactly.
type ListFilter struct {
	ID             *uuid.UUID
	CollectorName  string
	ObservableType string
	ObservableKey  string
	Status         Status
	Result         ResultKind
}

// Page bounds one page of a list view.
type Page struct {
	Limit  int
	Offset int
}

// ListQuery is a filtered, sorted, paginated read over the request store.
type ListQuery struct {
	Filter    ListFilter
	SortBy    SortField
	Direction SortDirection
	Page      Page
}

// RequestRepository is the durable store of collection requests. Every
// mutation is a conditional update guarded by the request's expected prior
// state; there is no read-then-write anywhere in the contract.
type RequestRepository interface {
	// Create persists a new request in the NEW state.
	Create(ctx context.Context, req *Request) error

	// Get returns the request with the given id, or ErrRequestNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Request, error)

	// FindPending returns the most recent non-COMPLETED request for the same
	// collector, observable and case, or ErrRequestNotFound if none exists.
	// Used to suppress duplicate queueing.
	FindPending(ctx context.Context, collectorName string, obs Observable, caseID uuid.UUID) (*Request, error)

	// Claim takes exclusive ownership of the oldest eligible NEW request
	// matching one of the capabilities, transitioning it to IN_PROGRESS under
	// a fresh lock token. Losing a claim race moves on to the next candidate;
	// ErrNoWork means no eligible request exists.
	Claim(ctx context.Context, caps []Capability, elig ClaimEligibility) (*Request, error)

	// Resolve applies an attempt outcome to a request still owned under the
	// given lock token: appends the history entry and either requeues or
	// finalizes per the retry policy, all in one transaction. Returns
	// ErrNotEligible if ownership was lost (stale-lock reclaim or admin
	// action won the race).
	Resolve(ctx context.Context, id, lockToken uuid.UUID, outcome AttemptOutcome) (*Request, error)

	// Cancel finalizes a NEW request as CANCELLED and appends a history
	// entry. Returns ErrNotEligible unless the request is NEW.
	Cancel(ctx context.Context, id uuid.UUID) error

	// RequestCancel records a cooperative cancellation intent on an
	// IN_PROGRESS request. Returns ErrNotEligible unless in progress.
	RequestCancel(ctx context.Context, id uuid.UUID) error

	// ResetForRetry returns a failed or exhausted COMPLETED request to NEW
	// with retry bookkeeping cleared. Returns ErrNotEligible for SUCCESS,
	// CANCELLED, or non-COMPLETED requests.
	ResetForRetry(ctx context.Context, id uuid.UUID) error

	// Delete removes a request in any state, cascading its history.
	Delete(ctx context.Context, id uuid.UUID) error

	// ReclaimStale resets IN_PROGRESS requests whose lock is older than the
	// given age back to NEW, appending a history entry per reclaimed row.
	// Returns the number of reclaimed requests.
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)

	// ExpireOverdue finalizes NEW requests created more than the given age
	// ago as FAILED, appending a history entry per expired row. Returns the
	// number of expired requests.
	ExpireOverdue(ctx context.Context, olderThan time.Duration) (int, error)

	// List returns one page of the filtered request view plus the total
	// match count.
	List(ctx context.Context, q ListQuery) ([]*Request, int64, error)
}

// HistoryRepository reads the append-only attempt ledger. Appends happen
// inside RequestRepository mutations so the head row and its audit trail
// commit atomically.
type HistoryRepository interface {
	// ListByRequest returns one page of a request's history, oldest first,
	// plus the total entry count.
	ListByRequest(ctx context.Context, requestID uuid.UUID, page Page) ([]HistoryEntry, int64, error)
}
