package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "oracle_gateway"
	subsystem = "upstream"
)

type EventType string

const (
	EventUpstreamCompleted EventType = "upstream_completed"
	EventConnectionProbed  EventType = "connection_probed"
)

// MetricEvent describes one observation. Outcome is the upstream status code
// ("200", "404") or the failure kind ("timeout", "unavailable", "internal").
// Connection is only set for EventConnectionProbed.
type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Method     string
	Outcome    string
	Duration   time.Duration
	Connection string
}

type Collector struct {
	eventCh  chan MetricEvent
	metrics  *Metrics
	logger   *slog.Logger
	upstream string

	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	connectionUp    prometheus.Gauge
}

func NewCollector(bufferSize int, upstream string, logger *slog.Logger) *Collector {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total number of calls forwarded to the upstream table by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "Duration of upstream calls in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	connectionUp := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "connection_up",
		Help:      "1 if the last health probe reached the upstream with HTTP 200, 0 otherwise.",
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(requestsTotal, requestDuration, connectionUp)

	return &Collector{
		eventCh:         make(chan MetricEvent, bufferSize),
		metrics:         NewMetrics(),
		logger:          logger,
		upstream:        upstream,
		registry:        registry,
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
		connectionUp:    connectionUp,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues an event without blocking. Events are dropped when the buffer
// is full. A nil collector ignores all events.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventUpstreamCompleted:
		c.requestsTotal.WithLabelValues(event.Method, event.Outcome).Inc()
		c.requestDuration.WithLabelValues(event.Method).Observe(event.Duration.Seconds())
		c.metrics.RecordCall(event.Method, event.Duration, event.Outcome)

	case EventConnectionProbed:
		if event.Connection == "connected" {
			c.connectionUp.Set(1)
		} else {
			c.connectionUp.Set(0)
		}
		c.metrics.UpdateConnection(event.Connection)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot(c.upstream)
}
