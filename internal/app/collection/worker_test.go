package collection

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/forensiq/collectq/internal/domain/collection"
	"github.com/forensiq/collectq/internal/domain/collector"
	eventsMemory "github.com/forensiq/collectq/internal/infra/eventbus/memory"
	"github.com/forensiq/collectq/internal/infra/storage/collection/memory"
	"github.com/forensiq/collectq/pkg/common/logger"
)

// fakeCollector services file_location observables with a scripted collect func.
type fakeCollector struct {
	name    string
	collect func(ctx context.Context, target collector.Target) (collector.Result, error)
}

func (f *fakeCollector) Name() string           { return f.name }
func (f *fakeCollector) ObservableType() string { return collection.ObservableTypeFileLocation }
func (f *fakeCollector) Collect(ctx context.Context, target collector.Target) (collector.Result, error) {
	return f.collect(ctx, target)
}

func newTestWorker(t *testing.T, store *memory.Store, pub *eventsMemory.Publisher, collectors ...collector.Collector) *Worker {
	t.Helper()
	registry, err := collector.NewRegistry(collectors...)
	require.NoError(t, err)

	log := logger.New(io.Discard, logger.LevelDebug, "test", nil)
	return NewWorker("worker-test", registry, store, pub, WorkerConfig{
		Concurrency:  2,
		PollInterval: 10 * time.Millisecond,
		// A long retry delay keeps each request to a single attempt while a
		// test worker is running.
		Eligibility: collection.ClaimEligibility{
			InitialRetryDelay: time.Hour,
			MaxRetryDelay:     24 * time.Hour,
			MaxCollectionAge:  time.Hour,
		},
		ClaimsPerSecond: 1000,
		ClaimBurst:      10,
	}, log, noop.NewTracerProvider().Tracer("test"))
}

func queueRequest(t *testing.T, store *memory.Store, collectorName, key string, maxRetries int) *collection.Request {
	t.Helper()
	obs, err := collection.NewObservable(collection.ObservableTypeFileLocation, key)
	require.NoError(t, err)
	req, err := collection.NewRequest(obs, collectorName, uuid.New(), nil, maxRetries)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), req))
	return req
}

func runWorkerUntil(t *testing.T, w *Worker, condition func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, condition, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestWorker_CollectsAndPublishes(t *testing.T) {
	store := memory.NewStore()
	pub := eventsMemory.NewPublisher()

	col := &fakeCollector{
		name: "file_collector",
		collect: func(_ context.Context, target collector.Target) (collector.Result, error) {
			return collector.Result{
				Kind:         collection.ResultSuccess,
				ArtifactPath: "/var/lib/collectq/artifacts/" + target.RequestID.String(),
				ArtifactHash: "deadbeef",
			}, nil
		},
	}
	w := newTestWorker(t, store, pub, col)

	req := queueRequest(t, store, "file_collector", "WS-0042@/Users/admin/payload.exe", 3)

	runWorkerUntil(t, w, func() bool { return len(pub.Events()) > 0 })

	loaded, err := store.Get(context.Background(), req.ID())
	require.NoError(t, err)
	assert.Equal(t, collection.StatusCompleted, loaded.Status())
	require.NotNil(t, loaded.Result())
	assert.Equal(t, collection.ResultSuccess, *loaded.Result())
	assert.Equal(t, "deadbeef", loaded.ArtifactHash())

	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, collection.EventTypeRequestCompleted, events[0].Type)
	payload, ok := events[0].Payload.(collection.RequestCompletedPayload)
	require.True(t, ok)
	assert.Equal(t, req.ID().String(), payload.RequestID)
	assert.Equal(t, "SUCCESS", payload.Result)
}

func TestWorker_TransientResultRequeuesWithoutEvent(t *testing.T) {
	store := memory.NewStore()
	pub := eventsMemory.NewPublisher()

	col := &fakeCollector{
		name: "file_collector",
		collect: func(context.Context, collector.Target) (collector.Result, error) {
			return collector.Result{Kind: collection.ResultHostOffline, Message: "no route to host"}, nil
		},
	}
	w := newTestWorker(t, store, pub, col)

	req := queueRequest(t, store, "file_collector", "WS-0042@/tmp/a", 10)

	runWorkerUntil(t, w, func() bool {
		_, total, err := store.ListByRequest(context.Background(), req.ID(), collection.Page{})
		return err == nil && total >= 1
	})

	assert.Empty(t, pub.Events(), "no completion event for a requeued request")
}

func TestWorker_PanicConvertsToError(t *testing.T) {
	store := memory.NewStore()
	pub := eventsMemory.NewPublisher()

	col := &fakeCollector{
		name: "file_collector",
		collect: func(context.Context, collector.Target) (collector.Result, error) {
			panic("collector exploded")
		},
	}
	w := newTestWorker(t, store, pub, col)

	req := queueRequest(t, store, "file_collector", "WS-0042@/tmp/a", 10)

	runWorkerUntil(t, w, func() bool {
		_, total, err := store.ListByRequest(context.Background(), req.ID(), collection.Page{})
		return err == nil && total >= 1
	})

	// The panic became a retryable ERROR, not a crash or a terminal result.
	assert.Equal(t, collection.StatusNew, req.Status())
	require.NotNil(t, req.Result())
	assert.Equal(t, collection.ResultError, *req.Result())
	assert.Contains(t, req.ResultMessage(), "collector exploded")
}

func TestWorker_CollectorErrorReturn(t *testing.T) {
	store := memory.NewStore()
	pub := eventsMemory.NewPublisher()

	col := &fakeCollector{
		name: "file_collector",
		collect: func(context.Context, collector.Target) (collector.Result, error) {
			return collector.Result{}, errors.New("agent protocol violation")
		},
	}
	w := newTestWorker(t, store, pub, col)

	req := queueRequest(t, store, "file_collector", "WS-0042@/tmp/a", 10)

	runWorkerUntil(t, w, func() bool {
		_, total, err := store.ListByRequest(context.Background(), req.ID(), collection.Page{})
		return err == nil && total >= 1
	})

	require.NotNil(t, req.Result())
	assert.Equal(t, collection.ResultError, *req.Result())
}

func TestWorker_UnknownCollectorFinalizesAsFailed(t *testing.T) {
	store := memory.NewStore()
	pub := eventsMemory.NewPublisher()

	// The worker advertises file_collector but the request names another.
	col := &fakeCollector{
		name: "file_collector",
		collect: func(context.Context, collector.Target) (collector.Result, error) {
			return collector.Result{Kind: collection.ResultSuccess}, nil
		},
	}
	w := newTestWorker(t, store, pub, col)

	// Capability routing means a mismatched collector name is never claimed,
	// so exercise the guard directly.
	req := queueRequest(t, store, "file_collector", "WS-0042@/tmp/a", 10)
	claimed, err := store.Claim(context.Background(), []collection.Capability{{
		ObservableType: collection.ObservableTypeFileLocation,
		CollectorName:  "file_collector",
	}}, collection.ClaimEligibility{MaxCollectionAge: time.Hour})
	require.NoError(t, err)

	w.registry, err = collector.NewRegistry()
	require.NoError(t, err)
	w.execute(context.Background(), claimed)

	assert.Equal(t, collection.StatusCompleted, req.Status())
	require.NotNil(t, req.Result())
	assert.Equal(t, collection.ResultFailed, *req.Result())
}
