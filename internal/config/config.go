package config

import (
	"fmt"
	"time"

	"github.com/forensiq/collectq/internal/domain/collection"
)

// CollectorType enumerates the supported collector implementations.
type CollectorType string

const (
	CollectorTypeLocalFS CollectorType = "localfs"
	// Add more as needed....
)

// Config represents the top-level configuration shared by the worker and
// console API processes. Durations are expressed in seconds to keep the file
// format plain; accessor methods convert them.
type Config struct {
	Queue      QueueConfig     `yaml:"queue"`
	Worker     WorkerConfig    `yaml:"worker"`
	Collectors []CollectorSpec `yaml:"collectors"`
	Kafka      KafkaConfig     `yaml:"kafka"`
	API        APIConfig       `yaml:"api"`
}

// QueueConfig tunes the request lifecycle: retry pacing, the collection
// window, and how long a claim may stay unresolved.
type QueueConfig struct {
	MaxRetries            int `yaml:"max_retries"`
	InitialRetryDelaySecs int `yaml:"initial_retry_delay_seconds"`
	MaxRetryDelaySecs     int `yaml:"max_retry_delay_seconds"`
	LockTimeoutSecs       int `yaml:"lock_timeout_seconds"`
	MaxCollectionTimeSecs int `yaml:"max_collection_time_seconds"`
	SweepIntervalSecs     int `yaml:"sweep_interval_seconds"`
}

// WorkerConfig tunes the claim loop.
type WorkerConfig struct {
	PollIntervalSecs   int     `yaml:"poll_interval_seconds"`
	AttemptTimeoutSecs int     `yaml:"attempt_timeout_seconds"`
	ClaimsPerSecond    float64 `yaml:"claims_per_second"`
	ClaimBurst         int     `yaml:"claim_burst"`
}

// CollectorSpec is a generic wrapper for different collector types.
type CollectorSpec struct {
	Name    string         `yaml:"name"`
	Type    CollectorType  `yaml:"type"`
	Threads int            `yaml:"threads"`
	LocalFS *LocalFSTarget `yaml:"localfs,omitempty"`
}

// LocalFSTarget defines parameters for the local filesystem collector.
type LocalFSTarget struct {
	ArtifactDir string `yaml:"artifact_dir"`
	// Hostname overrides the machine hostname, mainly for tests.
	Hostname string `yaml:"hostname,omitempty"`
}

// KafkaConfig defines the completion event publisher connection.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

// Enabled reports whether a publisher should be connected at all. An empty
// broker list runs the worker without completion events.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// APIConfig defines the console API listeners.
type APIConfig struct {
	Host      string `yaml:"host"`
	DebugHost string `yaml:"debug_host"`
}

const (
	defaultMaxRetries        = collection.DefaultMaxRetries
	defaultInitialRetrySecs  = 60
	defaultMaxRetrySecs      = 3600
	defaultLockTimeoutSecs   = 300
	defaultMaxCollectionSecs = 7 * 24 * 3600
	defaultSweepIntervalSecs = 30
	defaultPollIntervalSecs  = 5
	defaultAttemptTimeout    = 600
	defaultAPIHost           = "0.0.0.0:8080"
	defaultDebugHost         = "0.0.0.0:4000"
	defaultKafkaTopic        = "collection-events"
)

// Normalize fills in defaults for every omitted field.
func (c *Config) Normalize() {
	if c.Queue.MaxRetries <= 0 {
		c.Queue.MaxRetries = defaultMaxRetries
	}
	if c.Queue.InitialRetryDelaySecs <= 0 {
		c.Queue.InitialRetryDelaySecs = defaultInitialRetrySecs
	}
	if c.Queue.MaxRetryDelaySecs <= 0 {
		c.Queue.MaxRetryDelaySecs = defaultMaxRetrySecs
	}
	if c.Queue.LockTimeoutSecs <= 0 {
		c.Queue.LockTimeoutSecs = defaultLockTimeoutSecs
	}
	if c.Queue.MaxCollectionTimeSecs <= 0 {
		c.Queue.MaxCollectionTimeSecs = defaultMaxCollectionSecs
	}
	if c.Queue.SweepIntervalSecs <= 0 {
		c.Queue.SweepIntervalSecs = defaultSweepIntervalSecs
	}
	if c.Worker.PollIntervalSecs <= 0 {
		c.Worker.PollIntervalSecs = defaultPollIntervalSecs
	}
	if c.Worker.AttemptTimeoutSecs <= 0 {
		c.Worker.AttemptTimeoutSecs = defaultAttemptTimeout
	}
	for i := range c.Collectors {
		if c.Collectors[i].Threads <= 0 {
			c.Collectors[i].Threads = 1
		}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = defaultKafkaTopic
	}
	if c.API.Host == "" {
		c.API.Host = defaultAPIHost
	}
	if c.API.DebugHost == "" {
		c.API.DebugHost = defaultDebugHost
	}
}

// Validate reports the first configuration error. Call after Normalize.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Collectors))
	for i, spec := range c.Collectors {
		if spec.Name == "" {
			return fmt.Errorf("collectors[%d]: name is required", i)
		}
		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("collectors[%d]: duplicate collector name %q", i, spec.Name)
		}
		seen[spec.Name] = struct{}{}

		switch spec.Type {
		case CollectorTypeLocalFS:
			if spec.LocalFS == nil || spec.LocalFS.ArtifactDir == "" {
				return fmt.Errorf("collector %q: localfs.artifact_dir is required", spec.Name)
			}
		default:
			return fmt.Errorf("collector %q: unknown type %q", spec.Name, spec.Type)
		}
	}
	if c.Queue.InitialRetryDelaySecs > c.Queue.MaxRetryDelaySecs {
		return fmt.Errorf("queue: initial retry delay %ds exceeds max %ds",
			c.Queue.InitialRetryDelaySecs, c.Queue.MaxRetryDelaySecs)
	}
	return nil
}

// Eligibility converts the queue settings into claim eligibility parameters.
func (q QueueConfig) Eligibility() collection.ClaimEligibility {
	return collection.ClaimEligibility{
		InitialRetryDelay: time.Duration(q.InitialRetryDelaySecs) * time.Second,
		MaxRetryDelay:     time.Duration(q.MaxRetryDelaySecs) * time.Second,
		MaxCollectionAge:  time.Duration(q.MaxCollectionTimeSecs) * time.Second,
	}
}

// LockTimeout returns the stale lock cutoff.
func (q QueueConfig) LockTimeout() time.Duration {
	return time.Duration(q.LockTimeoutSecs) * time.Second
}

// CollectionWindow returns the total collection time cutoff.
func (q QueueConfig) CollectionWindow() time.Duration {
	return time.Duration(q.MaxCollectionTimeSecs) * time.Second
}

// SweepInterval returns how often the sweeper runs.
func (q QueueConfig) SweepInterval() time.Duration {
	return time.Duration(q.SweepIntervalSecs) * time.Second
}

// PollInterval returns the idle claim loop pause.
func (w WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalSecs) * time.Second
}

// AttemptTimeout returns the per-attempt collection deadline.
func (w WorkerConfig) AttemptTimeout() time.Duration {
	return time.Duration(w.AttemptTimeoutSecs) * time.Second
}
