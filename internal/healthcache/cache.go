package healthcache

import (
	"fmt"
	"sync"
	"time"

	"github.com/angeloszaimis/upstream-selector/internal/health"
)

// DefaultTTL is the freshness window applied when none is configured.
const DefaultTTL = 10 * time.Second

// entry pairs a record with the time it entered the cache.
type entry struct {
	record   health.Record
	cachedAt time.Time
}

// Cache keeps one health record per upstream name. Reads are shared.
// Writes are guarded so a record captured earlier can never replace
// one captured later, which keeps slow probes from rolling entries
// back.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// New builds a cache with the given TTL. The TTL must be positive:
// a zero TTL would make every read a miss and defeat the cache.
func New(ttl time.Duration) (*Cache, error) {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock builds a cache with a custom time source. Tests use it
// to step through TTL expiry without sleeping.
func NewWithClock(ttl time.Duration, now func() time.Time) (*Cache, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("healthcache: ttl must be positive, got %v", ttl)
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry),
	}, nil
}

// Get returns the cached record for name while it is still fresh.
// Stale entries are misses; stale data is never served.
func (c *Cache) Get(name string) (health.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[name]
	if !ok {
		return health.Record{}, false
	}
	if c.now().Sub(e.cachedAt) >= c.ttl {
		return health.Record{}, false
	}
	return e.record, true
}

// Put stores the record unless a fresher one, by capture time, is
// already present. Reports whether the write was kept.
func (c *Cache) Put(name string, rec health.Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.entries[name]; ok && prev.record.LastChecked.After(rec.LastChecked) {
		return false
	}

	c.entries[name] = entry{
		record:   rec,
		cachedAt: c.now(),
	}
	return true
}

// Len reports how many upstreams have an entry, fresh or stale.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL returns the configured freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}
