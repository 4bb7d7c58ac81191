package metrics_test

import (
	"context"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeloszaimis/upstream-selector/internal/health"
	"github.com/angeloszaimis/upstream-selector/internal/metrics"
	"github.com/angeloszaimis/upstream-selector/pkg/logger"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		registry  *prometheus.Registry
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		registry = prometheus.NewRegistry()
		collector = metrics.NewCollector(100, registry, logger.Nop())
	})

	AfterEach(func() {
		cancel()
		time.Sleep(10 * time.Millisecond) // Allow goroutine to finish
	})

	Describe("NewCollector", func() {
		It("should create a collector with specified buffer size", func() {
			c := metrics.NewCollector(500, prometheus.NewRegistry(), logger.Nop())
			Expect(c).NotTo(BeNil())
		})

		It("should fall back to a private registry when given none", func() {
			c := metrics.NewCollector(10, nil, logger.Nop())
			Expect(c).NotTo(BeNil())
		})
	})

	Describe("Emit", func() {
		It("should be safe on a nil collector", func() {
			var c *metrics.Collector
			c.Emit(metrics.Event{Type: metrics.EventSelection, Upstream: "server1"})
		})

		It("should drop events instead of blocking when the buffer is full", func() {
			// Collector not started, buffer size 1: the second emit
			// must return immediately.
			c := metrics.NewCollector(1, prometheus.NewRegistry(), logger.Nop())

			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				c.Emit(metrics.Event{Type: metrics.EventSelection, Upstream: "server1"})
				c.Emit(metrics.Event{Type: metrics.EventSelection, Upstream: "server1"})
				close(done)
			}()

			Eventually(done).Should(BeClosed())
		})
	})

	Describe("Start and event processing", func() {
		It("should process probe events", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:       metrics.EventProbeCompleted,
				Timestamp:  time.Now(),
				Upstream:   "server1",
				Duration:   100 * time.Millisecond,
				Status:     health.StatusHealthy,
				StatusCode: 200,
			})

			Eventually(func() int64 {
				return collector.Snapshot().Upstreams["server1"].Probes
			}).Should(Equal(int64(1)))

			snap := collector.Snapshot()
			Expect(snap.Upstreams["server1"].AvgProbe).To(Equal(100 * time.Millisecond))
			Expect(snap.Upstreams["server1"].StatusCodes[200]).To(Equal(int64(1)))
			Expect(snap.Upstreams["server1"].Status).To(Equal(health.StatusHealthy))
		})

		It("should process cache hit events", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:      metrics.EventCacheHit,
				Timestamp: time.Now(),
				Upstream:  "server1",
			})

			Eventually(func() int64 {
				return collector.Snapshot().Upstreams["server1"].CacheHits
			}).Should(Equal(int64(1)))
		})

		It("should process selection events", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:      metrics.EventSelection,
				Timestamp: time.Now(),
				Upstream:  "server2",
			})

			Eventually(func() int64 {
				return collector.Snapshot().Upstreams["server2"].Selections
			}).Should(Equal(int64(1)))
		})

		It("should process health transition events", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:      metrics.EventHealthChanged,
				Timestamp: time.Now(),
				Upstream:  "server1",
				Status:    health.StatusUnhealthy,
			})

			Eventually(func() int64 {
				return collector.Snapshot().Upstreams["server1"].Transitions
			}).Should(Equal(int64(1)))

			Expect(collector.Snapshot().Upstreams["server1"].Status).To(Equal(health.StatusUnhealthy))
		})

		It("should drain events on context cancellation", func() {
			collector.Start(ctx)

			for i := 0; i < 5; i++ {
				collector.Emit(metrics.Event{
					Type:      metrics.EventCacheHit,
					Timestamp: time.Now(),
					Upstream:  "server1",
				})
			}

			cancel()

			Eventually(func() int64 {
				return collector.Snapshot().Upstreams["server1"].CacheHits
			}).Should(Equal(int64(5)))
		})
	})

	Describe("Prometheus registration", func() {
		It("should expose processed events through the registry", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:       metrics.EventProbeCompleted,
				Timestamp:  time.Now(),
				Upstream:   "server1",
				Duration:   50 * time.Millisecond,
				Status:     health.StatusHealthy,
				StatusCode: 200,
			})

			Eventually(func() []string {
				families, err := registry.Gather()
				Expect(err).NotTo(HaveOccurred())

				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				return names
			}).Should(ContainElements(
				"selector_probes_total",
				"selector_probe_duration_seconds",
				"selector_upstream_healthy",
			))
		})
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Start(ctx)

			collector.Emit(metrics.Event{
				Type:      metrics.EventSelection,
				Timestamp: time.Now(),
				Upstream:  "server1",
			})

			Eventually(func() int64 {
				return collector.Snapshot().Upstreams["server1"].Selections
			}).Should(Equal(int64(1)))

			req := httptest.NewRequest("GET", "/stats", nil)
			rec := httptest.NewRecorder()
			collector.Handler()(rec, req)

			Expect(rec.Code).To(Equal(200))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(rec.Body.String()).To(ContainSubstring("server1"))
		})
	})
})
