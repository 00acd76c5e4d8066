package collection

import (
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one immutable record of something that happened to a
// request: a collection attempt, a stale-lock reclaim, or an administrative
// cancellation. Entries are append-only; the mutable head row never replaces
// the audit trail.
type HistoryEntry struct {
	id              int64
	requestID       uuid.UUID
	occurredAt      time.Time
	result          ResultKind
	message         string
	resultingStatus Status
}

// NewHistoryEntry creates a history entry for an event that just occurred.
// The entry id is assigned by storage on append.
func NewHistoryEntry(requestID uuid.UUID, result ResultKind, message string, resultingStatus Status, occurredAt time.Time) HistoryEntry {
	return HistoryEntry{
		requestID:       requestID,
		occurredAt:      occurredAt,
		result:          result,
		message:         message,
		resultingStatus: resultingStatus,
	}
}

// ReconstructHistoryEntry creates a HistoryEntry from persisted data.
// This should only be used by repositories when reconstructing from storage.
func ReconstructHistoryEntry(
	id int64,
	requestID uuid.UUID,
	occurredAt time.Time,
	result ResultKind,
	message string,
	resultingStatus Status,
) HistoryEntry {
	return HistoryEntry{
		id:              id,
		requestID:       requestID,
		occurredAt:      occurredAt,
		result:          result,
		message:         message,
		resultingStatus: resultingStatus,
	}
}

// ID returns the storage-assigned identifier of this entry.
func (h HistoryEntry) ID() int64 { return h.id }

// RequestID returns the identifier of the request this entry belongs to.
func (h HistoryEntry) RequestID() uuid.UUID { return h.requestID }

// OccurredAt returns when the recorded event happened.
func (h HistoryEntry) OccurredAt() time.Time { return h.occurredAt }

// Result returns the raw result of the recorded attempt or event.
func (h HistoryEntry) Result() ResultKind { return h.result }

// Message returns the free-text detail recorded with the event.
func (h HistoryEntry) Message() string { return h.message }

// ResultingStatus returns the request status this event left behind.
func (h HistoryEntry) ResultingStatus() Status { return h.resultingStatus }
