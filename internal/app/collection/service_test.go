package collection

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/forensiq/collectq/internal/domain/collection"
	"github.com/forensiq/collectq/internal/infra/storage/collection/memory"
	"github.com/forensiq/collectq/pkg/common/logger"
)

func newTestService(t *testing.T) (*RequestService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	log := logger.New(io.Discard, logger.LevelDebug, "test", nil)
	svc := NewRequestService(store, store, log, noop.NewTracerProvider().Tracer("test"))
	return svc, store
}

func validCreateCommand() CreateRequestCommand {
	return CreateRequestCommand{
		ObservableType: collection.ObservableTypeFileLocation,
		ObservableKey:  "WS-0042@/Users/admin/payload.exe",
		CollectorName:  "file_collector",
		CaseID:         uuid.New(),
	}
}

func TestCreateRequest(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req, created, err := svc.CreateRequest(ctx, validCreateCommand())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, collection.StatusNew, req.Status())
	assert.Equal(t, collection.DefaultMaxRetries, req.MaxRetries())
}

func TestCreateRequest_SuppressesDuplicates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	cmd := validCreateCommand()

	first, created, err := svc.CreateRequest(ctx, cmd)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.CreateRequest(ctx, cmd)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID(), second.ID())

	// The same observable for a different case is a distinct request.
	other := cmd
	other.CaseID = uuid.New()
	third, created, err := svc.CreateRequest(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID(), third.ID())
}

func TestCreateRequest_DuplicateAllowedAfterCompletion(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	cmd := validCreateCommand()

	first, _, err := svc.CreateRequest(ctx, cmd)
	require.NoError(t, err)

	claimed, err := store.Claim(ctx, []collection.Capability{{
		ObservableType: collection.ObservableTypeFileLocation,
		CollectorName:  "file_collector",
	}}, collection.ClaimEligibility{MaxCollectionAge: time.Hour})
	require.NoError(t, err)
	_, err = store.Resolve(ctx, claimed.ID(), *claimed.LockToken(), collection.AttemptOutcome{Kind: collection.ResultSuccess})
	require.NoError(t, err)

	second, created, err := svc.CreateRequest(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, created, "a completed request does not suppress re-collection")
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestCreateRequest_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cmd := validCreateCommand()
	cmd.ObservableKey = "no-separator"
	_, _, err := svc.CreateRequest(ctx, cmd)
	assert.Error(t, err)

	cmd = validCreateCommand()
	cmd.CaseID = uuid.Nil
	_, _, err = svc.CreateRequest(ctx, cmd)
	assert.Error(t, err)
}

func TestRequestHistory_RequiresExistingRequest(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.RequestHistory(ctx, uuid.New(), collection.Page{})
	assert.ErrorIs(t, err, collection.ErrRequestNotFound)

	req, _, err := svc.CreateRequest(ctx, validCreateCommand())
	require.NoError(t, err)

	entries, total, err := svc.RequestHistory(ctx, req.ID(), collection.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, entries)
}

func TestCancel_BulkOutcomes(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	inFlightCmd := validCreateCommand()
	inFlightCmd.ObservableKey = "WS-0042@/tmp/other"
	inFlight, _, err := svc.CreateRequest(ctx, inFlightCmd)
	require.NoError(t, err)

	claimed, err := store.Claim(ctx, []collection.Capability{{
		ObservableType: collection.ObservableTypeFileLocation,
		CollectorName:  "file_collector",
	}}, collection.ClaimEligibility{MaxCollectionAge: time.Hour})
	require.NoError(t, err)
	require.Equal(t, inFlight.ID(), claimed.ID())

	queued, _, err := svc.CreateRequest(ctx, validCreateCommand())
	require.NoError(t, err)

	missing := uuid.New()
	results := svc.Cancel(ctx, []uuid.UUID{queued.ID(), inFlight.ID(), missing})
	require.Len(t, results, 3)

	byID := make(map[uuid.UUID]ActionResult, len(results))
	for _, r := range results {
		byID[r.ID] = r
	}
	assert.Equal(t, ActionApplied, byID[queued.ID()].Outcome)
	assert.Equal(t, ActionCancelRequested, byID[inFlight.ID()].Outcome)
	assert.Equal(t, ActionNotFound, byID[missing].Outcome)

	assert.Equal(t, collection.StatusCompleted, queued.Status())
	assert.True(t, inFlight.CancelRequested())
}

func TestRetry_BulkOutcomes(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	req, _, err := svc.CreateRequest(ctx, validCreateCommand())
	require.NoError(t, err)

	// A queued request is not retryable.
	results := svc.Retry(ctx, []uuid.UUID{req.ID()})
	require.Len(t, results, 1)
	assert.Equal(t, ActionNotEligible, results[0].Outcome)

	// Exhaust the request, then retry it.
	claimed, err := store.Claim(ctx, []collection.Capability{{
		ObservableType: collection.ObservableTypeFileLocation,
		CollectorName:  "file_collector",
	}}, collection.ClaimEligibility{MaxCollectionAge: time.Hour})
	require.NoError(t, err)
	_, err = store.Resolve(ctx, claimed.ID(), *claimed.LockToken(), collection.AttemptOutcome{
		Kind:    collection.ResultFileNotFound,
		Message: "not there",
	})
	require.NoError(t, err)

	results = svc.Retry(ctx, []uuid.UUID{req.ID()})
	require.Len(t, results, 1)
	assert.Equal(t, ActionApplied, results[0].Outcome)
	assert.Equal(t, collection.StatusNew, req.Status())
}

func TestDelete_BulkOutcomes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req, _, err := svc.CreateRequest(ctx, validCreateCommand())
	require.NoError(t, err)

	results := svc.Delete(ctx, []uuid.UUID{req.ID(), req.ID()})
	require.Len(t, results, 2)
	assert.Equal(t, ActionApplied, results[0].Outcome)
	assert.Equal(t, ActionNotFound, results[1].Outcome, "second delete of the same id reports not found")

	_, err = svc.GetRequest(ctx, req.ID())
	assert.ErrorIs(t, err, collection.ErrRequestNotFound)
}
