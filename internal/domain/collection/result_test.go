package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultKind_Classification(t *testing.T) {
	tests := []struct {
		name      string
		kind      ResultKind
		terminal  bool
		retryable bool
	}{
		{name: "delayed retries", kind: ResultDelayed, terminal: false, retryable: true},
		{name: "error retries", kind: ResultError, terminal: false, retryable: true},
		{name: "host offline retries", kind: ResultHostOffline, terminal: false, retryable: true},
		{name: "success finalizes", kind: ResultSuccess, terminal: true, retryable: false},
		{name: "cancelled finalizes", kind: ResultCancelled, terminal: true, retryable: false},
		{name: "failed finalizes", kind: ResultFailed, terminal: true, retryable: false},
		{name: "file not found finalizes", kind: ResultFileNotFound, terminal: true, retryable: false},
		{name: "unspecified is neither", kind: ResultUnspecified, terminal: false, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.kind.IsTerminal())
			assert.Equal(t, tt.retryable, tt.kind.IsRetryable())
		})
	}
}

func TestResultKind_Status(t *testing.T) {
	tests := []struct {
		name string
		kind ResultKind
		want Status
	}{
		{name: "success completes", kind: ResultSuccess, want: StatusCompleted},
		{name: "file not found completes", kind: ResultFileNotFound, want: StatusCompleted},
		{name: "delayed requeues", kind: ResultDelayed, want: StatusNew},
		{name: "host offline requeues", kind: ResultHostOffline, want: StatusNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Status())
		})
	}
}

func TestParseResultKind(t *testing.T) {
	for _, kind := range []ResultKind{
		ResultDelayed,
		ResultError,
		ResultFailed,
		ResultSuccess,
		ResultCancelled,
		ResultHostOffline,
		ResultFileNotFound,
	} {
		assert.Equal(t, kind, ParseResultKind(kind.String()))
	}
	assert.Equal(t, ResultUnspecified, ParseResultKind("TIMED_OUT"))
	assert.Equal(t, ResultUnspecified, ParseResultKind(""))
}

func TestRetryableResultKinds_ExcludesSuccessAndCancelled(t *testing.T) {
	for _, kind := range RetryableResultKinds() {
		assert.NotEqual(t, ResultSuccess, kind)
		assert.NotEqual(t, ResultCancelled, kind)
	}
}
