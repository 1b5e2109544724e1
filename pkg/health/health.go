// Package health exposes liveness and readiness of the shared memory regions
// hosted by this process.
package health

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/shmem/pkg/shm"
)

const (
	// LivePath and ReadyPath are where Handler serves the checks.
	LivePath  = "/live"
	ReadyPath = "/ready"

	defaultMaxGoroutines = 10000
)

// ErrUnknownRegion is returned for a name this process does not host.
var ErrUnknownRegion = errors.New("health: region not hosted by this process")

// Provider reports the health of a single hosted region.
type Provider interface {
	// LivenessCheck reports whether the region's header is intact.
	LivenessCheck(name string) (bool, error)
	// ReadinessCheck fails until the region has been marked ready.
	ReadinessCheck(name string) error
}

// Monitor checks every region hosted by this process.
type Monitor struct {
	handler healthcheck.Handler
	regions func() []*shm.Region
}

var _ Provider = (*Monitor)(nil)

// Option configures a Monitor.
type Option func(*options)

type options struct {
	namespace     string
	maxGoroutines int
	regions       func() []*shm.Region
}

// WithNamespace sets the namespace of the check status gauge.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithMaxGoroutines fails liveness once the process runs more goroutines.
func WithMaxGoroutines(n int) Option {
	return func(o *options) { o.maxGoroutines = n }
}

// WithRegions replaces the source of monitored regions, shm.Regions by default.
func WithRegions(f func() []*shm.Region) Option {
	return func(o *options) { o.regions = f }
}

// NewMonitor builds a Monitor. When reg is not nil, the status of every check
// is exported on it as a gauge.
func NewMonitor(reg prometheus.Registerer, opts ...Option) *Monitor {
	o := options{
		namespace:     "shmem",
		maxGoroutines: defaultMaxGoroutines,
		regions:       shm.Regions,
	}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Monitor{regions: o.regions}
	if reg != nil {
		m.handler = healthcheck.NewMetricsHandler(reg, o.namespace)
	} else {
		m.handler = healthcheck.NewHandler()
	}
	m.handler.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(o.maxGoroutines))
	m.handler.AddLivenessCheck("regions-intact", m.allIntact)
	m.handler.AddReadinessCheck("regions-ready", m.allReady)
	return m
}

// Handler serves LivePath and ReadyPath. Append ?full=1 for per-check detail.
func (m *Monitor) Handler() http.Handler {
	return m.handler
}

// LivenessCheck implements Provider.
func (m *Monitor) LivenessCheck(name string) (bool, error) {
	r, err := m.lookup(name)
	if err != nil {
		return false, err
	}
	return r.Intact(), nil
}

// ReadinessCheck implements Provider.
func (m *Monitor) ReadinessCheck(name string) error {
	r, err := m.lookup(name)
	if err != nil {
		return err
	}
	if !r.Ready() {
		return fmt.Errorf("region %q not ready", name)
	}
	return nil
}

func (m *Monitor) lookup(name string) (*shm.Region, error) {
	for _, r := range m.regions() {
		if r.Name() == name {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, name)
}

func (m *Monitor) allIntact() error {
	var errs []error
	for _, r := range m.regions() {
		if !r.Intact() {
			errs = append(errs, fmt.Errorf("region %q: header corrupted", r.Name()))
		}
	}
	return errors.Join(errs...)
}

func (m *Monitor) allReady() error {
	var errs []error
	for _, r := range m.regions() {
		if !r.Ready() {
			errs = append(errs, fmt.Errorf("region %q not ready", r.Name()))
		}
	}
	return errors.Join(errs...)
}
