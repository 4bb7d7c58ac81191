package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeloszaimis/upstream-selector/internal/health"
)

type EventType string

const (
	EventProbeCompleted EventType = "probe_completed"
	EventCacheHit       EventType = "cache_hit"
	EventSelection      EventType = "selection"
	EventHealthChanged  EventType = "health_changed"
)

type Event struct {
	Type       EventType
	Timestamp  time.Time
	Upstream   string
	Duration   time.Duration
	Status     health.Status
	StatusCode int
}

// Collector funnels events from the engine through a buffered channel
// into the counter store and the Prometheus registry, keeping metric
// bookkeeping off the probing path.
type Collector struct {
	eventCh chan Event
	metrics *Metrics
	prom    *promMetrics
	logger  *slog.Logger
}

// NewCollector builds a collector with the given event buffer size and
// registers its Prometheus metrics on registerer. A nil registerer
// falls back to a private registry, which keeps independently built
// collectors from colliding.
func NewCollector(bufferSize int, registerer prometheus.Registerer, logger *slog.Logger) *Collector {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}

	return &Collector{
		eventCh: make(chan Event, bufferSize),
		metrics: NewMetrics(),
		prom:    newPromMetrics(registerer),
		logger:  logger,
	}
}

// Emit enqueues an event without blocking: when the buffer is full the
// event is dropped, since losing a counter beats stalling a probe. A
// nil collector accepts and discards everything, so metrics can be
// switched off by wiring in nothing.
func (c *Collector) Emit(event Event) {
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

func (c *Collector) processEvent(event Event) {
	switch event.Type {
	case EventProbeCompleted:
		c.metrics.RecordProbe(event.Upstream, event.Duration, event.Status, event.StatusCode)
		c.prom.probesTotal.WithLabelValues(event.Upstream, string(event.Status)).Inc()
		c.prom.probeDuration.WithLabelValues(event.Upstream).Observe(event.Duration.Seconds())
		if event.Status == health.StatusHealthy {
			c.prom.upstreamHealthy.WithLabelValues(event.Upstream).Set(1)
		} else {
			c.prom.upstreamHealthy.WithLabelValues(event.Upstream).Set(0)
		}

	case EventCacheHit:
		c.metrics.RecordCacheHit(event.Upstream)
		c.prom.cacheHitsTotal.WithLabelValues(event.Upstream).Inc()

	case EventSelection:
		c.metrics.RecordSelection(event.Upstream)
		c.prom.selectionsTotal.WithLabelValues(event.Upstream).Inc()

	case EventHealthChanged:
		c.metrics.RecordTransition(event.Upstream, event.Status)
		c.prom.transitionsTotal.WithLabelValues(event.Upstream, string(event.Status)).Inc()
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
	return c.metrics.Snapshot()
}
