package shm

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const metricsNamespace = "shmem"

type metrics struct {
	created   *prometheus.CounterVec
	hosted    prometheus.Gauge
	attaches  *prometheus.CounterVec
	readyWait prometheus.Histogram

	attachCounter metric.Int64Counter
	waitHistogram metric.Float64Histogram
}

func newMetrics(reg prometheus.Registerer, meter metric.Meter) *metrics {
	m := &metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "regions_created_total",
			Help:      "Create calls by result.",
		}, []string{"result"}),
		hosted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "regions_hosted",
			Help:      "Regions currently hosted by this process.",
		}),
		attaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "attach_total",
			Help:      "Attach calls by result.",
		}, []string{"result"}),
		readyWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "ready_wait_seconds",
			Help:      "Time clients spent waiting for region readiness.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
		}),
	}
	if reg != nil {
		m.created = registerCollector(reg, m.created)
		m.hosted = registerCollector(reg, m.hosted)
		m.attaches = registerCollector(reg, m.attaches)
		m.readyWait = registerCollector(reg, m.readyWait)
	}

	var err error
	if m.attachCounter, err = meter.Int64Counter("shmem.attach",
		metric.WithDescription("Attach calls by result.")); err != nil {
		internalLogger.warnf("otel counter shmem.attach: %v", err)
	}
	if m.waitHistogram, err = meter.Float64Histogram("shmem.ready_wait",
		metric.WithUnit("s"),
		metric.WithDescription("Time clients spent waiting for region readiness.")); err != nil {
		internalLogger.warnf("otel histogram shmem.ready_wait: %v", err)
	}
	return m
}

// registerCollector registers c, or returns the equal collector another
// Manager already registered.
func registerCollector[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		internalLogger.warnf("register metric collector: %v", err)
	}
	return c
}

func (m *metrics) observeCreate(err error) {
	m.created.WithLabelValues(kindLabel(err)).Inc()
	if err == nil {
		m.hosted.Inc()
	}
}

func (m *metrics) observeHostClose() {
	m.hosted.Dec()
}

func (m *metrics) observeAttach(ctx context.Context, err error) {
	result := kindLabel(err)
	m.attaches.WithLabelValues(result).Inc()
	if m.attachCounter != nil {
		m.attachCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}

func (m *metrics) observeReadyWait(ctx context.Context, d time.Duration) {
	m.readyWait.Observe(d.Seconds())
	if m.waitHistogram != nil {
		m.waitHistogram.Record(ctx, d.Seconds())
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
