// Package memory provides an in-memory implementation of the collection
// repositories, suitable for tests and development environments where
// durability is not required.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forensiq/collectq/internal/domain/collection"
)

// Verify Store satisfies both domain contracts.
var (
	_ collection.RequestRepository = (*Store)(nil)
	_ collection.HistoryRepository = (*Store)(nil)
)

// Store holds requests and their history in memory. All operations are
// serialized by one mutex, which gives the same effective isolation the
// database provides through conditional updates.
type Store struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*collection.Request
	history  map[uuid.UUID][]collection.HistoryEntry
	nextID   int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		requests: make(map[uuid.UUID]*collection.Request),
		history:  make(map[uuid.UUID][]collection.HistoryEntry),
	}
}

func (s *Store) appendHistory(entry collection.HistoryEntry) {
	s.nextID++
	stored := collection.ReconstructHistoryEntry(
		s.nextID,
		entry.RequestID(),
		entry.OccurredAt(),
		entry.Result(),
		entry.Message(),
		entry.ResultingStatus(),
	)
	s.history[entry.RequestID()] = append(s.history[entry.RequestID()], stored)
}

// Create persists a new request.
func (s *Store) Create(_ context.Context, req *collection.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID()] = req
	return nil
}

// Get returns the request with the given id.
func (s *Store) Get(_ context.Context, id uuid.UUID) (*collection.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, collection.ErrRequestNotFound
	}
	return req, nil
}

// FindPending returns the most recent non-COMPLETED request for the same
// collector, observable and case.
func (s *Store) FindPending(_ context.Context, collectorName string, obs collection.Observable, caseID uuid.UUID) (*collection.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found *collection.Request
	for _, req := range s.requests {
		if req.Status() == collection.StatusCompleted {
			continue
		}
		if req.CollectorName() != collectorName ||
			req.Observable().Type() != obs.Type() ||
			req.Observable().Key() != obs.Key() ||
			req.CaseID() != caseID {
			continue
		}
		if found == nil || req.CreatedAt().After(found.CreatedAt()) {
			found = req
		}
	}
	if found == nil {
		return nil, collection.ErrRequestNotFound
	}
	return found, nil
}

// Claim takes the oldest eligible NEW request matching one of the capabilities.
func (s *Store) Claim(_ context.Context, caps []collection.Capability, elig collection.ClaimEligibility) (*collection.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	var candidates []*collection.Request
	for _, req := range s.requests {
		if req.Status() != collection.StatusNew {
			continue
		}
		if !capabilityMatch(caps, req) {
			continue
		}
		if now.Sub(req.CreatedAt()) >= elig.MaxCollectionAge {
			continue
		}
		if !req.LastAttemptedAt().IsZero() &&
			now.Before(req.LastAttemptedAt().Add(elig.RetryDelayFor(req.RetryCount()))) {
			continue
		}
		candidates = append(candidates, req)
	}
	if len(candidates) == 0 {
		return nil, collection.ErrNoWork
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt().Before(candidates[j].CreatedAt())
	})

	claimed := candidates[0]
	if err := claimed.Claim(uuid.New(), now); err != nil {
		return nil, err
	}
	return claimed, nil
}

func capabilityMatch(caps []collection.Capability, req *collection.Request) bool {
	for _, c := range caps {
		if c.ObservableType == req.Observable().Type() && c.CollectorName == req.CollectorName() {
			return true
		}
	}
	return false
}

// Resolve applies an attempt outcome to a request still owned under the given
// lock token.
func (s *Store) Resolve(_ context.Context, id, lockToken uuid.UUID, outcome collection.AttemptOutcome) (*collection.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, collection.ErrRequestNotFound
	}
	if req.Status() != collection.StatusInProgress || req.LockToken() == nil || *req.LockToken() != lockToken {
		return nil, collection.ErrNotEligible
	}

	resolution, err := req.ResolveAttempt(outcome.Kind, outcome.Message, outcome.ArtifactPath, outcome.ArtifactHash, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.appendHistory(resolution.Entry)
	return req, nil
}

// Cancel finalizes a NEW request as CANCELLED.
func (s *Store) Cancel(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return collection.ErrRequestNotFound
	}
	entry, err := req.Cancel(time.Now().UTC())
	if err != nil {
		return collection.ErrNotEligible
	}
	s.appendHistory(entry)
	return nil
}

// RequestCancel records a cooperative cancellation intent.
func (s *Store) RequestCancel(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return collection.ErrRequestNotFound
	}
	if err := req.MarkCancelRequested(); err != nil {
		return collection.ErrNotEligible
	}
	return nil
}

// ResetForRetry returns a failed or exhausted COMPLETED request to NEW.
func (s *Store) ResetForRetry(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return collection.ErrRequestNotFound
	}
	if err := req.ResetForRetry(); err != nil {
		return collection.ErrNotEligible
	}
	return nil
}

// Delete removes a request and its history.
func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[id]; !ok {
		return collection.ErrRequestNotFound
	}
	delete(s.requests, id)
	delete(s.history, id)
	return nil
}

// ReclaimStale resets IN_PROGRESS requests with locks older than the given age.
func (s *Store) ReclaimStale(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	cutoff := now.Add(-olderThan)

	var reclaimed int
	for _, req := range s.requests {
		if req.Status() != collection.StatusInProgress || req.LockAcquiredAt().After(cutoff) {
			continue
		}
		entry, err := req.ReclaimStale(now)
		if err != nil {
			continue
		}
		s.appendHistory(entry)
		reclaimed++
	}
	return reclaimed, nil
}

// ExpireOverdue finalizes NEW requests older than the given age as FAILED.
func (s *Store) ExpireOverdue(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	cutoff := now.Add(-olderThan)

	var expired int
	for _, req := range s.requests {
		if req.Status() != collection.StatusNew || req.CreatedAt().After(cutoff) {
			continue
		}
		entry, err := req.ExpireWindow(now)
		if err != nil {
			continue
		}
		s.appendHistory(entry)
		expired++
	}
	return expired, nil
}

// List returns one page of the filtered request view plus the total match count.
func (s *Store) List(_ context.Context, q collection.ListQuery) ([]*collection.Request, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*collection.Request
	for _, req := range s.requests {
		if filterMatch(q.Filter, req) {
			matched = append(matched, req)
		}
	}
	total := int64(len(matched))

	sort.Slice(matched, func(i, j int) bool {
		less := sortLess(q.SortBy, matched[i], matched[j])
		if q.Direction == collection.SortAsc {
			return less
		}
		return !less
	})

	limit := q.Page.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := q.Page.Offset
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func filterMatch(f collection.ListFilter, req *collection.Request) bool {
	if f.ID != nil && *f.ID != req.ID() {
		return false
	}
	if f.CollectorName != "" && f.CollectorName != req.CollectorName() {
		return false
	}
	if f.ObservableType != "" && f.ObservableType != req.Observable().Type() {
		return false
	}
	if f.ObservableKey != "" && !strings.Contains(strings.ToLower(req.Observable().Key()), strings.ToLower(f.ObservableKey)) {
		return false
	}
	if f.Status != "" && f.Status != collection.StatusUnspecified && f.Status != req.Status() {
		return false
	}
	if f.Result != "" && f.Result != collection.ResultUnspecified {
		if req.Result() == nil || *req.Result() != f.Result {
			return false
		}
	}
	return true
}

func sortLess(field collection.SortField, a, b *collection.Request) bool {
	switch field {
	case collection.SortFieldCollector:
		return a.CollectorName() < b.CollectorName()
	case collection.SortFieldType:
		return a.Observable().Type() < b.Observable().Type()
	case collection.SortFieldValue:
		return a.Observable().Key() < b.Observable().Key()
	case collection.SortFieldStatus:
		return a.Status() < b.Status()
	case collection.SortFieldResult:
		ar, br := "", ""
		if a.Result() != nil {
			ar = a.Result().String()
		}
		if b.Result() != nil {
			br = b.Result().String()
		}
		return ar < br
	case collection.SortFieldCreatedAt:
		return a.CreatedAt().Before(b.CreatedAt())
	default:
		return a.ID().String() < b.ID().String()
	}
}

// ListByRequest returns one page of a request's history, oldest first.
func (s *Store) ListByRequest(_ context.Context, requestID uuid.UUID, page collection.Page) ([]collection.HistoryEntry, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.history[requestID]
	total := int64(len(entries))

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := page.Offset
	if offset >= len(entries) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}

	out := make([]collection.HistoryEntry, end-offset)
	copy(out, entries[offset:end])
	return out, total, nil
}
