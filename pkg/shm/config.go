package shm

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	internalshm "github.com/srediag/shmem/internal/shm"
)

const (
	instrumentationName = "github.com/srediag/shmem/pkg/shm"

	defaultReadyTimeout    = 10 * time.Second
	defaultSpinIterations  = 1 << 10
	defaultPollInterval    = 50 * time.Microsecond
	defaultMaxPollInterval = 10 * time.Millisecond
)

// Config is used to tune a Manager.
type Config struct {
	// HugePageSize is the granularity mappings are rounded up to. Zero uses
	// the system huge page size from /proc/meminfo.
	HugePageSize uint64

	// HugeTLB allocates regions from the hugetlbfs pool instead of hinting
	// transparent huge pages. Create fails when the pool is too small.
	HugeTLB bool

	// ReadyTimeout bounds how long Attach waits for a region to be
	// initialized and marked ready.
	ReadyTimeout time.Duration

	// SpinIterations is how many times the readiness flag is checked before
	// falling back to polling.
	SpinIterations int

	// PollInterval and MaxPollInterval bound the exponential backoff used
	// while polling the readiness flag.
	PollInterval    time.Duration
	MaxPollInterval time.Duration

	// Finder locates a host's descriptor for a region. Defaults to ProcFinder.
	Finder Finder

	// Registerer receives the region metrics. Nil disables them.
	Registerer prometheus.Registerer

	Meter  metric.Meter
	Tracer trace.Tracer
}

// DefaultConfig is used to return a default configuration.
func DefaultConfig() *Config {
	return &Config{
		ReadyTimeout:    defaultReadyTimeout,
		SpinIterations:  defaultSpinIterations,
		PollInterval:    defaultPollInterval,
		MaxPollInterval: defaultMaxPollInterval,
		Finder:          ProcFinder{},
		Registerer:      prometheus.DefaultRegisterer,
		Meter:           otel.Meter(instrumentationName),
		Tracer:          otel.Tracer(instrumentationName),
	}
}

// VerifyConfig is used to verify the sanity of configuration.
func VerifyConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if hp := config.HugePageSize; hp != 0 {
		if hp&(hp-1) != 0 {
			return fmt.Errorf("%w: HugePageSize %d is not a power of two", ErrInvalidConfig, hp)
		}
		if hp < HeaderReservedBytes {
			return fmt.Errorf("%w: HugePageSize %d is smaller than the header (%d bytes)", ErrInvalidConfig, hp, HeaderReservedBytes)
		}
	}
	if config.ReadyTimeout <= 0 {
		return fmt.Errorf("%w: ReadyTimeout must be positive", ErrInvalidConfig)
	}
	if config.SpinIterations < 0 {
		return fmt.Errorf("%w: SpinIterations must not be negative", ErrInvalidConfig)
	}
	if config.PollInterval <= 0 {
		return fmt.Errorf("%w: PollInterval must be positive", ErrInvalidConfig)
	}
	if config.MaxPollInterval < config.PollInterval {
		return fmt.Errorf("%w: MaxPollInterval %v is below PollInterval %v", ErrInvalidConfig, config.MaxPollInterval, config.PollInterval)
	}
	return nil
}

// layout resolves the huge page granularity, reading it from the system when
// it was left unset.
func (c *Config) layout() Layout {
	if c.HugePageSize != 0 {
		return Layout{HugePageSize: c.HugePageSize}
	}
	return Layout{HugePageSize: internalshm.HugePageSize()}
}

// withDefaults fills unset collaborators so a partially built Config behaves
// like DefaultConfig for them.
func (c *Config) withDefaults() *Config {
	out := *c
	if out.Finder == nil {
		out.Finder = ProcFinder{}
	}
	if out.Meter == nil {
		out.Meter = otel.Meter(instrumentationName)
	}
	if out.Tracer == nil {
		out.Tracer = otel.Tracer(instrumentationName)
	}
	return &out
}
