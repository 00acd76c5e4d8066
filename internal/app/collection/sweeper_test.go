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

func newTestSweeper(t *testing.T, store *memory.Store, cfg SweeperConfig) *Sweeper {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelDebug, "test", nil)
	return NewSweeper(store, cfg, log, noop.NewTracerProvider().Tracer("test"))
}

func TestSweeper_ReclaimsStaleLocks(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	obs, err := collection.NewObservable(collection.ObservableTypeFileLocation, "WS-0042@/tmp/a")
	require.NoError(t, err)
	req, err := collection.NewRequest(obs, "file_collector", uuid.New(), nil, 3)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, req))

	claimed, err := store.Claim(ctx, []collection.Capability{{
		ObservableType: collection.ObservableTypeFileLocation,
		CollectorName:  "file_collector",
	}}, collection.ClaimEligibility{MaxCollectionAge: time.Hour})
	require.NoError(t, err)
	staleToken := *claimed.LockToken()

	// Zero lock timeout makes every claim immediately stale.
	s := newTestSweeper(t, store, SweeperConfig{
		LockTimeout:      time.Nanosecond,
		CollectionWindow: time.Hour,
	})
	s.sweep(ctx)

	assert.Equal(t, collection.StatusNew, req.Status())
	assert.Nil(t, req.LockToken())

	entries, _, err := store.ListByRequest(ctx, req.ID(), collection.Page{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, collection.ResultError, entries[0].Result())
	assert.Equal(t, "stale lock reclaimed", entries[0].Message())

	// The original worker's late resolution loses.
	_, err = store.Resolve(ctx, req.ID(), staleToken, collection.AttemptOutcome{Kind: collection.ResultSuccess})
	assert.ErrorIs(t, err, collection.ErrNotEligible)
}

func TestSweeper_ExpiresOverdueRequests(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	obs, err := collection.NewObservable(collection.ObservableTypeFileLocation, "WS-0042@/tmp/a")
	require.NoError(t, err)
	req, err := collection.NewRequest(obs, "file_collector", uuid.New(), nil, 3)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, req))

	s := newTestSweeper(t, store, SweeperConfig{
		LockTimeout:      time.Hour,
		CollectionWindow: time.Nanosecond,
	})
	time.Sleep(time.Millisecond)
	s.sweep(ctx)

	assert.Equal(t, collection.StatusCompleted, req.Status())
	require.NotNil(t, req.Result())
	assert.Equal(t, collection.ResultFailed, *req.Result())
	assert.Equal(t, "collection window expired", req.ResultMessage())
}

func TestSweeper_FreshWorkUntouched(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	obs, err := collection.NewObservable(collection.ObservableTypeFileLocation, "WS-0042@/tmp/a")
	require.NoError(t, err)
	req, err := collection.NewRequest(obs, "file_collector", uuid.New(), nil, 3)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, req))

	s := newTestSweeper(t, store, SweeperConfig{
		LockTimeout:      time.Hour,
		CollectionWindow: time.Hour,
	})
	s.sweep(ctx)

	assert.Equal(t, collection.StatusNew, req.Status())

	_, total, err := store.ListByRequest(ctx, req.ID(), collection.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	s := newTestSweeper(t, store, SweeperConfig{
		Interval:         10 * time.Millisecond,
		LockTimeout:      time.Hour,
		CollectionWindow: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
