package collection

import (
	"time"

	"github.com/forensiq/collectq/internal/domain/events"
)

// EventTypeRequestCompleted is emitted once per request when it reaches a
// terminal outcome. Downstream analysis pipelines consume these to pick up
// collected artifacts.
const EventTypeRequestCompleted events.EventType = "collection.request_completed"

// RequestCompletedPayload is the wire payload of a completion event.
type RequestCompletedPayload struct {
	RequestID      string    `json:"request_id"`
	CaseID         string    `json:"case_id"`
	CollectorName  string    `json:"collector_name"`
	ObservableType string    `json:"observable_type"`
	ObservableKey  string    `json:"observable_key"`
	Result         string    `json:"result"`
	ResultMessage  string    `json:"result_message,omitempty"`
	ArtifactPath   string    `json:"artifact_path,omitempty"`
	ArtifactHash   string    `json:"artifact_hash,omitempty"`
	RetryCount     int       `json:"retry_count"`
	CompletedAt    time.Time `json:"completed_at"`
}

// NewRequestCompletedEvent builds the completion event for a request that just
// reached a terminal outcome.
func NewRequestCompletedEvent(req *Request, at time.Time) events.DomainEvent {
	var result string
	if req.Result() != nil {
		result = req.Result().String()
	}

	return events.DomainEvent{
		Type:      EventTypeRequestCompleted,
		Key:       req.ID().String(),
		Timestamp: at,
		Payload: RequestCompletedPayload{
			RequestID:      req.ID().String(),
			CaseID:         req.CaseID().String(),
			CollectorName:  req.CollectorName(),
			ObservableType: req.Observable().Type(),
			ObservableKey:  req.Observable().Key(),
			Result:         result,
			ResultMessage:  req.ResultMessage(),
			ArtifactPath:   req.ArtifactPath(),
			ArtifactHash:   req.ArtifactHash(),
			RetryCount:     req.RetryCount(),
			CompletedAt:    at,
		},
	}
}
