package collection

// ResultKind classifies the outcome of a single collection attempt as reported
// by a collector. The kind alone decides whether the queue retries or
// finalizes a request.
type ResultKind string

const (
	// ResultDelayed indicates the endpoint acknowledged the request but the
	// file is not yet available (e.g. the agent queued it for later).
	ResultDelayed ResultKind = "DELAYED"

	// ResultError indicates an unexpected failure while attempting collection.
	ResultError ResultKind = "ERROR"

	// ResultFailed indicates the collection failed in a way that retrying
	// will not fix.
	ResultFailed ResultKind = "FAILED"

	// ResultSuccess indicates the file was retrieved and stored.
	ResultSuccess ResultKind = "SUCCESS"

	// ResultCancelled indicates the request was cancelled before completion.
	ResultCancelled ResultKind = "CANCELLED"

	// ResultHostOffline indicates the endpoint could not be reached.
	ResultHostOffline ResultKind = "HOST_OFFLINE"

	// ResultFileNotFound indicates the endpoint was reached but the file
	// does not exist at the given path.
	ResultFileNotFound ResultKind = "FILE_NOT_FOUND"

	// ResultUnspecified is used when a result kind is unknown.
	ResultUnspecified ResultKind = "UNSPECIFIED"
)

// String returns the string representation of the ResultKind.
func (r ResultKind) String() string { return string(r) }

// IsTerminal reports whether this result ends the request's lifecycle with no
// further retries permitted.
func (r ResultKind) IsTerminal() bool {
	switch r {
	case ResultSuccess, ResultCancelled, ResultFailed, ResultFileNotFound:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether this result indicates a transient condition the
// queue should retry, subject to the retry bound.
func (r ResultKind) IsRetryable() bool {
	switch r {
	case ResultDelayed, ResultError, ResultHostOffline:
		return true
	default:
		return false
	}
}

// Status returns the request status implied by this result: terminal kinds
// complete the request, transient kinds return it to the queue.
func (r ResultKind) Status() Status {
	if r.IsTerminal() {
		return StatusCompleted
	}
	return StatusNew
}

// ParseResultKind converts a string to a ResultKind.
func ParseResultKind(s string) ResultKind {
	switch s {
	case "DELAYED":
		return ResultDelayed
	case "ERROR":
		return ResultError
	case "FAILED":
		return ResultFailed
	case "SUCCESS":
		return ResultSuccess
	case "CANCELLED":
		return ResultCancelled
	case "HOST_OFFLINE":
		return ResultHostOffline
	case "FILE_NOT_FOUND":
		return ResultFileNotFound
	default:
		return ResultUnspecified
	}
}

// RetryableResultKinds returns the result kinds an administrative retry may be
// applied to: everything that represents a failed or exhausted request.
func RetryableResultKinds() []ResultKind {
	return []ResultKind{ResultFailed, ResultError, ResultHostOffline, ResultFileNotFound}
}
