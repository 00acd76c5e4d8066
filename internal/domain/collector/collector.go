// Package collector defines the contract between the request queue and the
// pluggable implementations that actually retrieve files from endpoints.
package collector

import (
	"context"

	"github.com/google/uuid"

	"github.com/forensiq/collectq/internal/domain/collection"
)

// Target describes one collection attempt handed to a collector: the claimed
// request's identity and its parsed observable.
type Target struct {
	RequestID  uuid.UUID
	CaseID     uuid.UUID
	Observable collection.Observable

	// Hostname and Path are the parsed components of a file_location key.
	// They are empty for other observable types.
	Hostname string
	Path     string
}

// Result is what a collector reports back for one attempt. The queue's retry
// policy interprets the kind; the collector never decides scheduling.
type Result struct {
	Kind         collection.ResultKind
	Message      string
	ArtifactPath string
	ArtifactHash string
}

// Collector retrieves files described by one observable type. Implementations
// must be safe for concurrent use; the worker pool calls Collect from multiple
// goroutines.
type Collector interface {
	// Name identifies this collector. Requests are routed to the collector
	// whose name they carry.
	Name() string

	// ObservableType returns the observable type this collector services.
	ObservableType() string

	// Collect attempts to retrieve the target's file. Infrastructure errors
	// are reported through the Result kind, not the error return; a non-nil
	// error means the attempt could not even be classified.
	Collect(ctx context.Context, target Target) (Result, error)
}
