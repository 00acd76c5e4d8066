package collection

import (
	"errors"
	"fmt"
)

// Status represents the scheduling state of a collection request. It drives
// every claim and dispatch decision the queue makes.
type Status string

// ErrStatusUnknown is returned when a request status is unknown.
var ErrStatusUnknown = errors.New("collection status unknown")

const (
	// StatusNew indicates a request is queued and eligible for claiming.
	StatusNew Status = "NEW"

	// StatusInProgress indicates a worker holds the request's lock and is
	// actively attempting collection.
	StatusInProgress Status = "IN_PROGRESS"

	// StatusCompleted indicates a request reached a terminal result and may
	// never be claimed again.
	StatusCompleted Status = "COMPLETED"

	// StatusUnspecified is used when a request status is unknown.
	StatusUnspecified Status = "UNSPECIFIED"
)

// String returns the string representation of the Status.
func (s Status) String() string { return string(s) }

// ParseStatus converts a string to a Status.
func ParseStatus(s string) Status {
	switch s {
	case "NEW":
		return StatusNew
	case "IN_PROGRESS":
		return StatusInProgress
	case "COMPLETED":
		return StatusCompleted
	default:
		return StatusUnspecified
	}
}

// validateTransition checks if a status transition is valid and returns an error if not.
func (s Status) validateTransition(target Status) error {
	if !s.isValidTransition(target) {
		return fmt.Errorf("invalid collection status transition from %s to %s", s, target)
	}
	return nil
}

// isValidTransition checks if the current status can transition to the target status.
// It enforces the request lifecycle rules to prevent invalid state changes.
func (s Status) isValidTransition(target Status) bool {
	switch s {
	case StatusNew:
		// From New, a worker claim moves to InProgress; an administrative
		// cancel (or window expiry) finalizes directly.
		return target == StatusInProgress || target == StatusCompleted
	case StatusInProgress:
		// From InProgress, a retryable result requeues; a terminal result
		// (or stale-lock reclaim back to New) finalizes.
		return target == StatusNew || target == StatusCompleted
	case StatusCompleted:
		// Terminal. An administrative retry reconstructs the request as New
		// through ResetForRetry rather than a lifecycle transition.
		return false
	case StatusUnspecified:
		return false
	default:
		return false
	}
}
