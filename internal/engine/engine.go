package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/angeloszaimis/upstream-selector/internal/health"
	"github.com/angeloszaimis/upstream-selector/internal/healthcache"
	"github.com/angeloszaimis/upstream-selector/internal/metrics"
	"github.com/angeloszaimis/upstream-selector/internal/registry"
	"github.com/angeloszaimis/upstream-selector/internal/selector"
)

// ErrUnknownUpstream reports a lookup for a name outside the pool.
var ErrUnknownUpstream = errors.New("unknown upstream")

// Prober issues a single health check. Satisfied by prober.Prober;
// tests substitute fakes.
type Prober interface {
	Probe(ctx context.Context, up registry.Upstream) health.Record
}

// Defaults applied by New when an Options field is unset.
const (
	DefaultProbeTimeout = 3 * time.Second
	DefaultConcurrency  = 10
)

// Options tunes the engine's probe fan-out.
type Options struct {
	ProbeTimeout time.Duration // budget for one probe, spanning its retries
	Concurrency  int           // simultaneous probes per snapshot
}

// Engine is the health-checking and selection core.
type Engine struct {
	registry  *registry.Registry
	prober    Prober
	cache     *healthcache.Cache
	collector *metrics.Collector
	logger    *slog.Logger

	probeTimeout time.Duration
	concurrency  int

	// flight collapses concurrent probes for the same upstream into
	// one request whose result every caller shares.
	flight singleflight.Group

	mu         sync.Mutex
	lastStatus map[string]health.Status
}

// New wires the engine together. The registry, prober, and cache are
// required; the collector may be nil to disable metrics.
func New(
	reg *registry.Registry,
	p Prober,
	cache *healthcache.Cache,
	collector *metrics.Collector,
	opts Options,
	logger *slog.Logger,
) (*Engine, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, fmt.Errorf("engine: registry must not be empty")
	}
	if p == nil {
		return nil, fmt.Errorf("engine: prober is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("engine: cache is required")
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	return &Engine{
		registry:     reg,
		prober:       p,
		cache:        cache,
		collector:    collector,
		logger:       logger,
		probeTimeout: opts.ProbeTimeout,
		concurrency:  opts.Concurrency,
		lastStatus:   make(map[string]health.Status, reg.Len()),
	}, nil
}

// Snapshot returns one record per pool member, in registry order.
// Fresh cache entries are used as-is; the rest are probed concurrently
// under the worker limit. Individual probe failures surface as
// error-status records, never as call failures, so the caller always
// gets a complete picture of the pool.
func (e *Engine) Snapshot(ctx context.Context) []health.Record {
	members := e.registry.All()
	records := make([]health.Record, len(members))

	// Cap the whole poll: with n members and limit L, probes run in at
	// most ceil(n/L) sequential waves, each bounded by the probe
	// timeout. No caller waits longer than that.
	ctx, cancel := context.WithTimeout(ctx, e.snapshotBudget(len(members)))
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, up := range members {
		if rec, ok := e.cache.Get(up.Name()); ok {
			records[i] = rec
			e.collector.Emit(metrics.Event{
				Type:      metrics.EventCacheHit,
				Timestamp: time.Now(),
				Upstream:  up.Name(),
			})
			continue
		}

		i, up := i, up
		g.Go(func() error {
			records[i] = e.check(gctx, up)
			return nil
		})
	}

	// Workers only ever return nil; failures are data in the records.
	_ = g.Wait()

	return records
}

// Best snapshots the pool and picks the healthy record with the
// highest score, breaking ties by registry order. The boolean is false
// when nothing is healthy, which is a defined outcome rather than an
// error.
func (e *Engine) Best(ctx context.Context) (health.Record, bool) {
	best, ok := selector.Best(e.Snapshot(ctx))
	if !ok {
		e.logger.Warn("No healthy upstream available")
		return health.Record{}, false
	}

	e.collector.Emit(metrics.Event{
		Type:      metrics.EventSelection,
		Timestamp: time.Now(),
		Upstream:  best.Name,
	})
	return best, true
}

// One returns the current record for a single named upstream, from
// cache when fresh and by probing otherwise. Unknown names report
// ErrUnknownUpstream.
func (e *Engine) One(ctx context.Context, name string) (health.Record, error) {
	up, ok := e.registry.Lookup(name)
	if !ok {
		return health.Record{}, fmt.Errorf("%w: %q", ErrUnknownUpstream, name)
	}

	if rec, ok := e.cache.Get(name); ok {
		e.collector.Emit(metrics.Event{
			Type:      metrics.EventCacheHit,
			Timestamp: time.Now(),
			Upstream:  name,
		})
		return rec, nil
	}

	return e.check(ctx, up), nil
}

// check runs, or joins, the single in-flight probe for one upstream
// and stores the outcome. Because probes per name are collapsed, cache
// writes for a name are serialized by construction; the cache's own
// capture-time guard backstops orderings across calls.
func (e *Engine) check(ctx context.Context, up registry.Upstream) health.Record {
	v, _, _ := e.flight.Do(up.Name(), func() (any, error) {
		probeCtx, cancel := context.WithTimeout(ctx, e.probeTimeout)
		defer cancel()

		start := time.Now()
		rec := e.prober.Probe(probeCtx, up)
		e.cache.Put(up.Name(), rec)
		e.observe(up.Name(), rec, time.Since(start))

		return rec, nil
	})

	return v.(health.Record)
}

// observe feeds the metrics pipeline and logs status transitions.
func (e *Engine) observe(name string, rec health.Record, elapsed time.Duration) {
	statusCode := 0
	if rec.StatusCode != nil {
		statusCode = *rec.StatusCode
	}

	e.collector.Emit(metrics.Event{
		Type:       metrics.EventProbeCompleted,
		Timestamp:  time.Now(),
		Upstream:   name,
		Duration:   elapsed,
		Status:     rec.Status,
		StatusCode: statusCode,
	})

	e.mu.Lock()
	prev, seen := e.lastStatus[name]
	e.lastStatus[name] = rec.Status
	e.mu.Unlock()

	if seen && prev == rec.Status {
		return
	}

	switch rec.Status {
	case health.StatusHealthy:
		e.logger.Info("Upstream is up",
			slog.String("upstream", name),
			slog.Float64("score", rec.Score))
	case health.StatusUnhealthy:
		e.logger.Warn("Upstream is unhealthy",
			slog.String("upstream", name),
			slog.Int("status_code", statusCode))
	default:
		errMsg := ""
		if rec.Error != nil {
			errMsg = *rec.Error
		}
		e.logger.Warn("Upstream is unreachable",
			slog.String("upstream", name),
			slog.String("error", errMsg))
	}

	e.collector.Emit(metrics.Event{
		Type:      metrics.EventHealthChanged,
		Timestamp: time.Now(),
		Upstream:  name,
		Status:    rec.Status,
	})
}

func (e *Engine) snapshotBudget(n int) time.Duration {
	waves := (n + e.concurrency - 1) / e.concurrency
	if waves < 1 {
		waves = 1
	}
	return time.Duration(waves) * e.probeTimeout
}
