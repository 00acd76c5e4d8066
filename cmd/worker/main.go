package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	appcollection "github.com/forensiq/collectq/internal/app/collection"
	"github.com/forensiq/collectq/internal/config/fileloader"
	"github.com/forensiq/collectq/internal/domain/collector"
	"github.com/forensiq/collectq/internal/domain/events"
	"github.com/forensiq/collectq/internal/infra/collectors"
	"github.com/forensiq/collectq/internal/infra/eventbus/kafka"
	"github.com/forensiq/collectq/internal/infra/storage"
	collectionStore "github.com/forensiq/collectq/internal/infra/storage/collection/postgres"
	"github.com/forensiq/collectq/pkg/common/logger"
	"github.com/forensiq/collectq/pkg/common/otel"
)

var build = "develop"

const serviceType = "collection-worker"

func main() {
	// Set the correct number of threads for the service
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		log.Fatalf("failed to get hostname: %v", err)
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}

			// Add any error-specific attributes.
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			// Output the error event with valid JSON details.
			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n",
				r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("COLLECTION-WORKER-%s", hostname)
	metadata := map[string]string{
		"service":   svcName,
		"hostname":  hostname,
		"pod":       os.Getenv("POD_NAME"),
		"namespace": os.Getenv("POD_NAMESPACE"),
		"app":       serviceType,
	}

	logger := logger.NewWithMetadata(os.Stdout, logger.LevelDebug, svcName, traceIDFn, logEvents, metadata)

	ctx := context.Background()

	if err := run(ctx, logger, hostname); err != nil {
		logger.Error(ctx, "startup", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, hostname string) error {
	log.Info(ctx, "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0), "build", build)

	// -------------------------------------------------------------------------
	// Configuration

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "/etc/collectq/config.yaml"
	}
	cfg, err := fileloader.NewFileLoader(configPath).Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// -------------------------------------------------------------------------
	// Database

	poolCfg, err := pgxpool.ParseConfig(databaseDSN())
	if err != nil {
		return fmt.Errorf("parsing db config: %w", err)
	}
	poolCfg.MinConns = 2
	poolCfg.MaxConns = 10
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("creating db pool: %w", err)
	}
	defer pool.Close()

	migrationsURL := os.Getenv("MIGRATIONS_URL")
	if migrationsURL == "" {
		migrationsURL = "file://db/migrations"
	}
	if err := storage.RunMigrations(pool, migrationsURL); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// -------------------------------------------------------------------------
	// Start Tracing Support

	log.Info(ctx, "startup", "status", "initializing tracing support")

	prob := 0.05
	if raw := os.Getenv("OTEL_SAMPLING_RATIO"); raw != "" {
		prob, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parsing sampling ratio: %w", err)
		}
	}

	traceProvider, teardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      serviceType,
		ExporterEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Probability:      prob,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"k8s.pod.name":     os.Getenv("POD_NAME"),
			"k8s.namespace":    os.Getenv("POD_NAMESPACE"),
			"k8s.container.id": hostname,
		},
		InsecureExporter: true,
	})
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	defer teardown(ctx)

	tracer := traceProvider.Tracer(serviceType)

	// -------------------------------------------------------------------------
	// Completion Events

	var publisher events.DomainEventPublisher = noopPublisher{}
	if cfg.Kafka.Enabled() {
		log.Info(ctx, "startup", "status", "connecting completion event publisher", "brokers", cfg.Kafka.Brokers)

		clientID := cfg.Kafka.ClientID
		if clientID == "" {
			clientID = fmt.Sprintf("%s-%s", serviceType, hostname)
		}
		kafkaPub, err := kafka.ConnectPublisher(&kafka.PublisherConfig{
			Brokers:  cfg.Kafka.Brokers,
			Topic:    cfg.Kafka.Topic,
			ClientID: clientID,
		}, log, tracer)
		if err != nil {
			return fmt.Errorf("connecting kafka publisher: %w", err)
		}
		defer kafkaPub.Close()
		publisher = kafkaPub
	} else {
		log.Warn(ctx, "startup", "status", "no kafka brokers configured, completion events disabled")
	}

	// -------------------------------------------------------------------------
	// Start Worker Pools

	built, err := collectors.Build(cfg.Collectors)
	if err != nil {
		return fmt.Errorf("building collectors: %w", err)
	}
	if len(built) == 0 {
		return fmt.Errorf("no collectors configured")
	}

	requestStore := collectionStore.NewRequestStore(pool, tracer)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, runCtx := errgroup.WithContext(runCtx)

	sweeper := appcollection.NewSweeper(requestStore, appcollection.SweeperConfig{
		Interval:         cfg.Queue.SweepInterval(),
		LockTimeout:      cfg.Queue.LockTimeout(),
		CollectionWindow: cfg.Queue.CollectionWindow(),
	}, log, tracer)
	g.Go(func() error { return sweeper.Run(runCtx) })

	// One worker pool per collector so each honors its own thread count.
	for i, col := range built {
		registry, err := collector.NewRegistry(col)
		if err != nil {
			return fmt.Errorf("registering collector %q: %w", col.Name(), err)
		}

		worker := appcollection.NewWorker(
			fmt.Sprintf("%s-%s", hostname, col.Name()),
			registry,
			requestStore,
			publisher,
			appcollection.WorkerConfig{
				Concurrency:     cfg.Collectors[i].Threads,
				PollInterval:    cfg.Worker.PollInterval(),
				AttemptTimeout:  cfg.Worker.AttemptTimeout(),
				Eligibility:     cfg.Queue.Eligibility(),
				ClaimsPerSecond: cfg.Worker.ClaimsPerSecond,
				ClaimBurst:      cfg.Worker.ClaimBurst,
			},
			log,
			tracer,
		)
		g.Go(func() error { return worker.Run(runCtx) })
	}

	log.Info(ctx, "startup", "status", "worker pools running", "collectors", len(built))

	if err := g.Wait(); err != nil && runCtx.Err() == nil {
		return fmt.Errorf("worker error: %w", err)
	}

	log.Info(ctx, "shutdown", "status", "shutdown complete")
	return nil
}

// noopPublisher drops completion events when no broker is configured.
type noopPublisher struct{}

func (noopPublisher) PublishDomainEvent(context.Context, events.DomainEvent) error { return nil }

// databaseDSN assembles the connection string from DATABASE_URL or discrete
// POSTGRES_* variables.
func databaseDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}

	user := os.Getenv("POSTGRES_USER")
	password := os.Getenv("POSTGRES_PASSWORD")
	host := os.Getenv("POSTGRES_HOST")
	dbname := os.Getenv("POSTGRES_DB")

	if user == "" {
		user = "postgres"
	}
	if password == "" {
		password = "postgres"
	}
	if host == "" {
		host = "postgres"
	}
	if dbname == "" {
		dbname = "collectq"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:5432/%s?sslmode=disable",
		user, password, host, dbname)
}
