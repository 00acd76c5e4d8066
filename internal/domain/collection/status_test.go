package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTransition_ValidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		target  Status
	}{
		{
			name:    "New to InProgress is valid",
			current: StatusNew,
			target:  StatusInProgress,
		},
		{
			name:    "New to Completed is valid",
			current: StatusNew,
			target:  StatusCompleted,
		},
		{
			name:    "InProgress to New is valid",
			current: StatusInProgress,
			target:  StatusNew,
		},
		{
			name:    "InProgress to Completed is valid",
			current: StatusInProgress,
			target:  StatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.current.validateTransition(tt.target)
			assert.NoError(t, err, "expected valid transition from %s to %s", tt.current, tt.target)
		})
	}
}

func TestValidateTransition_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		target  Status
	}{
		{
			name:    "New to New is invalid",
			current: StatusNew,
			target:  StatusNew,
		},
		{
			name:    "InProgress to InProgress is invalid",
			current: StatusInProgress,
			target:  StatusInProgress,
		},
		{
			name:    "Completed to New is invalid",
			current: StatusCompleted,
			target:  StatusNew,
		},
		{
			name:    "Completed to InProgress is invalid",
			current: StatusCompleted,
			target:  StatusInProgress,
		},
		{
			name:    "Completed to Completed is invalid",
			current: StatusCompleted,
			target:  StatusCompleted,
		},
		{
			name:    "Unspecified to any state is invalid",
			current: StatusUnspecified,
			target:  StatusNew,
		},
		{
			name:    "Empty status to a valid target is invalid",
			current: "",
			target:  StatusInProgress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.current.validateTransition(tt.target)
			assert.Error(t, err, "expected error for invalid transition from %s to %s", tt.current, tt.target)
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Status
	}{
		{name: "new", input: "NEW", want: StatusNew},
		{name: "in progress", input: "IN_PROGRESS", want: StatusInProgress},
		{name: "completed", input: "COMPLETED", want: StatusCompleted},
		{name: "unknown maps to unspecified", input: "PAUSED", want: StatusUnspecified},
		{name: "empty maps to unspecified", input: "", want: StatusUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStatus(tt.input))
		})
	}
}
