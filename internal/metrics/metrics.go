package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/angeloszaimis/upstream-selector/internal/health"
)

// Metrics is the in-process counter store behind the /stats endpoint.
// Writes come from the collector goroutine; reads take a snapshot.
type Metrics struct {
	mutex       sync.RWMutex
	probes      map[string]int64
	cacheHits   map[string]int64
	selections  map[string]int64
	transitions map[string]int64
	probeTimes  map[string][]time.Duration
	statusCodes map[string]map[int]int64
	lastStatus  map[string]health.Status
	startTime   time.Time
}

type Snapshot struct {
	TotalProbes int64                      `json:"total_probes"`
	Uptime      time.Duration              `json:"uptime"`
	Upstreams   map[string]UpstreamMetrics `json:"upstreams"`
}

type UpstreamMetrics struct {
	Probes      int64         `json:"probes"`
	CacheHits   int64         `json:"cache_hits"`
	Selections  int64         `json:"selections"`
	Transitions int64         `json:"transitions"`
	Status      health.Status `json:"status"`
	AvgProbe    time.Duration `json:"avg_probe"`
	P50Probe    time.Duration `json:"p50_probe"`
	P95Probe    time.Duration `json:"p95_probe"`
	P99Probe    time.Duration `json:"p99_probe"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		probes:      make(map[string]int64),
		cacheHits:   make(map[string]int64),
		selections:  make(map[string]int64),
		transitions: make(map[string]int64),
		probeTimes:  make(map[string][]time.Duration),
		statusCodes: make(map[string]map[int]int64),
		lastStatus:  make(map[string]health.Status),
		startTime:   time.Now(),
	}
}

func (m *Metrics) RecordProbe(upstream string, duration time.Duration, status health.Status, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.probes[upstream]++
	m.lastStatus[upstream] = status

	m.probeTimes[upstream] = append(m.probeTimes[upstream], duration)
	if len(m.probeTimes[upstream]) > 1000 {
		m.probeTimes[upstream] = m.probeTimes[upstream][1:]
	}

	if statusCode != 0 {
		if m.statusCodes[upstream] == nil {
			m.statusCodes[upstream] = make(map[int]int64)
		}
		m.statusCodes[upstream][statusCode]++
	}
}

func (m *Metrics) RecordCacheHit(upstream string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.cacheHits[upstream]++
}

func (m *Metrics) RecordSelection(upstream string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.selections[upstream]++
}

func (m *Metrics) RecordTransition(upstream string, status health.Status) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.transitions[upstream]++
	m.lastStatus[upstream] = status
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:    time.Since(m.startTime),
		Upstreams: make(map[string]UpstreamMetrics),
	}

	// Collect every upstream seen by any counter.
	allUpstreams := make(map[string]bool)
	for upstream := range m.probes {
		allUpstreams[upstream] = true
	}
	for upstream := range m.cacheHits {
		allUpstreams[upstream] = true
	}
	for upstream := range m.selections {
		allUpstreams[upstream] = true
	}
	for upstream := range m.lastStatus {
		allUpstreams[upstream] = true
	}

	for upstream := range allUpstreams {
		snap.TotalProbes += m.probes[upstream]

		um := UpstreamMetrics{
			Probes:      m.probes[upstream],
			CacheHits:   m.cacheHits[upstream],
			Selections:  m.selections[upstream],
			Transitions: m.transitions[upstream],
			Status:      m.lastStatus[upstream],
			StatusCodes: m.statusCodes[upstream],
		}

		durations := m.probeTimes[upstream]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			um.AvgProbe = average(sorted)
			um.P50Probe = percentile(sorted, 0.50)
			um.P95Probe = percentile(sorted, 0.95)
			um.P99Probe = percentile(sorted, 0.99)
		}

		snap.Upstreams[upstream] = um
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
