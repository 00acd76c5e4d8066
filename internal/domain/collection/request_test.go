package collection

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustObservable(t *testing.T) Observable {
	t.Helper()
	obs, err := NewObservable(ObservableTypeFileLocation, "WS-0042@/Users/admin/payload.exe")
	require.NoError(t, err)
	return obs
}

func newTestRequest(t *testing.T, maxRetries int) *Request {
	t.Helper()
	req, err := NewRequest(mustObservable(t), "file_collector", uuid.New(), nil, maxRetries)
	require.NoError(t, err)
	return req
}

func claimedTestRequest(t *testing.T, maxRetries int) *Request {
	t.Helper()
	req := newTestRequest(t, maxRetries)
	require.NoError(t, req.Claim(uuid.New(), time.Now().UTC()))
	return req
}

func TestNewRequest(t *testing.T) {
	caseID := uuid.New()
	userID := int64(7)

	req, err := NewRequest(mustObservable(t), "file_collector", caseID, &userID, 0)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, req.ID())
	assert.Equal(t, StatusNew, req.Status())
	assert.Equal(t, "file_collector", req.CollectorName())
	assert.Equal(t, caseID, req.CaseID())
	require.NotNil(t, req.RequestedBy())
	assert.Equal(t, userID, *req.RequestedBy())
	assert.Nil(t, req.Result())
	assert.Nil(t, req.LockToken())
	assert.Zero(t, req.RetryCount())
	assert.Equal(t, DefaultMaxRetries, req.MaxRetries(), "zero max retries should fall back to the default")
	assert.False(t, req.CreatedAt().IsZero())
}

func TestNewRequest_Validation(t *testing.T) {
	obs := mustObservable(t)

	_, err := NewRequest(obs, "", uuid.New(), nil, 3)
	assert.Error(t, err, "collector name is required")

	_, err = NewRequest(obs, "file_collector", uuid.Nil, nil, 3)
	assert.Error(t, err, "case id is required")
}

func TestRequest_Claim(t *testing.T) {
	req := newTestRequest(t, 3)
	token := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, req.Claim(token, now))

	assert.Equal(t, StatusInProgress, req.Status())
	require.NotNil(t, req.LockToken())
	assert.Equal(t, token, *req.LockToken())
	assert.Equal(t, now, req.LockAcquiredAt())

	// A second claim on an already owned request must fail.
	assert.Error(t, req.Claim(uuid.New(), now))
}

func TestResolveAttempt_Success(t *testing.T) {
	req := claimedTestRequest(t, 3)
	now := time.Now().UTC()

	res, err := req.ResolveAttempt(ResultSuccess, "collected", "/var/lib/collectq/artifacts/abc", "deadbeef", now)
	require.NoError(t, err)

	assert.True(t, res.Finalized)
	assert.Equal(t, StatusCompleted, req.Status())
	require.NotNil(t, req.Result())
	assert.Equal(t, ResultSuccess, *req.Result())
	assert.Equal(t, "/var/lib/collectq/artifacts/abc", req.ArtifactPath())
	assert.Equal(t, "deadbeef", req.ArtifactHash())
	assert.Nil(t, req.LockToken(), "lock must be released on resolution")
	assert.Zero(t, req.RetryCount(), "terminal results do not consume retries")

	assert.Equal(t, ResultSuccess, res.Entry.Result())
	assert.Equal(t, StatusCompleted, res.Entry.ResultingStatus())
	assert.Equal(t, now, res.Entry.OccurredAt())
}

func TestResolveAttempt_RetryableRequeues(t *testing.T) {
	req := claimedTestRequest(t, 3)
	now := time.Now().UTC()

	res, err := req.ResolveAttempt(ResultHostOffline, "no route to host", "", "", now)
	require.NoError(t, err)

	assert.False(t, res.Finalized)
	assert.Equal(t, StatusNew, req.Status())
	assert.Equal(t, 1, req.RetryCount())
	require.NotNil(t, req.Result())
	assert.Equal(t, ResultHostOffline, *req.Result(), "transient result stays visible while requeued")
	assert.Nil(t, req.LockToken())
	assert.Equal(t, now, req.LastAttemptedAt())

	assert.Equal(t, ResultHostOffline, res.Entry.Result())
	assert.Equal(t, StatusNew, res.Entry.ResultingStatus())
}

func TestResolveAttempt_RetryExhaustionFinalizesAsFailed(t *testing.T) {
	req := newTestRequest(t, 2)
	now := time.Now().UTC()

	// Attempt 1: transient, requeued.
	require.NoError(t, req.Claim(uuid.New(), now))
	res, err := req.ResolveAttempt(ResultHostOffline, "no route to host", "", "", now)
	require.NoError(t, err)
	assert.False(t, res.Finalized)
	assert.Equal(t, 1, req.RetryCount())

	// Attempt 2: transient again, bound reached, finalized as FAILED while
	// the raw history entry keeps the real reason.
	require.NoError(t, req.Claim(uuid.New(), now.Add(time.Minute)))
	res, err = req.ResolveAttempt(ResultHostOffline, "no route to host", "", "", now.Add(time.Minute))
	require.NoError(t, err)

	assert.True(t, res.Finalized)
	assert.Equal(t, StatusCompleted, req.Status())
	require.NotNil(t, req.Result())
	assert.Equal(t, ResultFailed, *req.Result())
	assert.Equal(t, 2, req.RetryCount())
	assert.Equal(t, ResultHostOffline, res.Entry.Result())
	assert.Equal(t, StatusCompleted, res.Entry.ResultingStatus())
}

func TestResolveAttempt_RetryCountNeverExceedsBound(t *testing.T) {
	req := newTestRequest(t, 3)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		require.NoError(t, req.Claim(uuid.New(), now))
		_, err := req.ResolveAttempt(ResultDelayed, "agent queued", "", "", now)
		require.NoError(t, err)
		assert.LessOrEqual(t, req.RetryCount(), req.MaxRetries())
	}
	assert.Equal(t, StatusCompleted, req.Status())
}

func TestResolveAttempt_PendingCancelWinsOverRequeue(t *testing.T) {
	req := claimedTestRequest(t, 5)
	require.NoError(t, req.MarkCancelRequested())

	res, err := req.ResolveAttempt(ResultDelayed, "agent queued", "", "", time.Now().UTC())
	require.NoError(t, err)

	assert.True(t, res.Finalized)
	assert.Equal(t, StatusCompleted, req.Status())
	require.NotNil(t, req.Result())
	assert.Equal(t, ResultCancelled, *req.Result())
}

func TestResolveAttempt_TerminalResultWinsOverPendingCancel(t *testing.T) {
	req := claimedTestRequest(t, 5)
	require.NoError(t, req.MarkCancelRequested())

	res, err := req.ResolveAttempt(ResultSuccess, "collected", "/artifacts/abc", "deadbeef", time.Now().UTC())
	require.NoError(t, err)

	assert.True(t, res.Finalized)
	require.NotNil(t, req.Result())
	assert.Equal(t, ResultSuccess, *req.Result(), "a finished attempt outranks a late cancel")
}

func TestResolveAttempt_RequiresInProgress(t *testing.T) {
	req := newTestRequest(t, 3)

	_, err := req.ResolveAttempt(ResultSuccess, "collected", "", "", time.Now().UTC())
	assert.Error(t, err)
}

func TestRequest_Cancel(t *testing.T) {
	req := newTestRequest(t, 3)
	now := time.Now().UTC()

	entry, err := req.Cancel(now)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, req.Status())
	require.NotNil(t, req.Result())
	assert.Equal(t, ResultCancelled, *req.Result())
	assert.Equal(t, ResultCancelled, entry.Result())
	assert.Equal(t, StatusCompleted, entry.ResultingStatus())

	// Cancelling a request that already completed must fail.
	_, err = req.Cancel(now)
	assert.Error(t, err)
}

func TestRequest_Cancel_RejectsInProgress(t *testing.T) {
	req := claimedTestRequest(t, 3)

	_, err := req.Cancel(time.Now().UTC())
	assert.Error(t, err, "in-flight requests require a cooperative cancel")
}

func TestMarkCancelRequested(t *testing.T) {
	req := newTestRequest(t, 3)
	assert.Error(t, req.MarkCancelRequested(), "only in-flight requests carry the flag")

	require.NoError(t, req.Claim(uuid.New(), time.Now().UTC()))
	require.NoError(t, req.MarkCancelRequested())
	assert.True(t, req.CancelRequested())
}

func TestResetForRetry(t *testing.T) {
	req := newTestRequest(t, 1)
	now := time.Now().UTC()

	require.NoError(t, req.Claim(uuid.New(), now))
	_, err := req.ResolveAttempt(ResultHostOffline, "no route to host", "", "", now)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, req.Status())

	require.NoError(t, req.ResetForRetry())

	assert.Equal(t, StatusNew, req.Status())
	assert.Nil(t, req.Result())
	assert.Empty(t, req.ResultMessage())
	assert.Zero(t, req.RetryCount())
	assert.False(t, req.CancelRequested())
	assert.True(t, req.LastAttemptedAt().IsZero())
}

func TestResetForRetry_RejectsIneligible(t *testing.T) {
	t.Run("new request", func(t *testing.T) {
		req := newTestRequest(t, 3)
		assert.Error(t, req.ResetForRetry())
	})

	t.Run("successful request", func(t *testing.T) {
		req := claimedTestRequest(t, 3)
		_, err := req.ResolveAttempt(ResultSuccess, "collected", "/artifacts/abc", "deadbeef", time.Now().UTC())
		require.NoError(t, err)
		assert.Error(t, req.ResetForRetry())
	})

	t.Run("cancelled request", func(t *testing.T) {
		req := newTestRequest(t, 3)
		_, err := req.Cancel(time.Now().UTC())
		require.NoError(t, err)
		assert.Error(t, req.ResetForRetry())
	})
}

func TestReclaimStale(t *testing.T) {
	req := claimedTestRequest(t, 3)
	now := time.Now().UTC()

	entry, err := req.ReclaimStale(now)
	require.NoError(t, err)

	assert.Equal(t, StatusNew, req.Status())
	assert.Nil(t, req.LockToken())
	assert.Equal(t, ResultError, entry.Result())
	assert.Equal(t, StatusNew, entry.ResultingStatus())

	// Only owned requests can be reclaimed.
	_, err = req.ReclaimStale(now)
	assert.Error(t, err)
}

func TestClaimEligibility_RetryDelayFor(t *testing.T) {
	elig := ClaimEligibility{
		InitialRetryDelay: time.Minute,
		MaxRetryDelay:     time.Hour,
		MaxCollectionAge:  168 * time.Hour,
	}

	tests := []struct {
		name       string
		retryCount int
		want       time.Duration
	}{
		{name: "first retry", retryCount: 0, want: time.Minute},
		{name: "second retry doubles", retryCount: 1, want: 2 * time.Minute},
		{name: "fifth retry", retryCount: 4, want: 16 * time.Minute},
		{name: "caps at the maximum", retryCount: 6, want: time.Hour},
		{name: "stays capped", retryCount: 20, want: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, elig.RetryDelayFor(tt.retryCount))
		})
	}
}
