package registry

import (
	"fmt"
	"net/url"
	"strings"
)

// Definition is the raw upstream description supplied by configuration.
type Definition struct {
	Name   string
	URL    string
	Weight int
}

// Upstream is one member of the pool. Immutable after construction.
type Upstream struct {
	name    string
	baseURL string
	weight  int
}

// Name returns the unique upstream identifier.
func (u Upstream) Name() string {
	return u.name
}

// BaseURL returns the upstream's base URL without a trailing slash.
func (u Upstream) BaseURL() string {
	return u.baseURL
}

// HealthURL returns the probe target for this upstream.
func (u Upstream) HealthURL() string {
	return u.baseURL + "/health"
}

// Weight returns the configured static weight. Selection does not
// consult it yet; it is carried for weighted strategies.
func (u Upstream) Weight() int {
	return u.weight
}

// Registry is the ordered, read-only pool of upstreams.
type Registry struct {
	upstreams []Upstream
	byName    map[string]int
}

// New validates the definitions and builds the pool. Names and URLs
// must be present and unique across the pool, URLs must be absolute
// http or https, and weights must be positive. Trailing slashes on
// URLs are trimmed so health paths join cleanly.
func New(defs []Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("registry: at least one upstream is required")
	}

	r := &Registry{
		upstreams: make([]Upstream, 0, len(defs)),
		byName:    make(map[string]int, len(defs)),
	}
	seenURLs := make(map[string]string, len(defs))

	for i, def := range defs {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			return nil, fmt.Errorf("registry: upstream %d: name must not be empty", i)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("registry: duplicate upstream name %q", name)
		}

		base, err := normalizeURL(def.URL)
		if err != nil {
			return nil, fmt.Errorf("registry: upstream %q: %w", name, err)
		}
		if prev, dup := seenURLs[base]; dup {
			return nil, fmt.Errorf("registry: upstream %q: url already used by %q", name, prev)
		}

		if def.Weight < 1 {
			return nil, fmt.Errorf("registry: upstream %q: weight must be at least 1, got %d", name, def.Weight)
		}

		r.byName[name] = len(r.upstreams)
		r.upstreams = append(r.upstreams, Upstream{
			name:    name,
			baseURL: base,
			weight:  def.Weight,
		})
		seenURLs[base] = name
	}

	return r, nil
}

// All returns the pool in configuration order. The slice is a copy.
func (r *Registry) All() []Upstream {
	out := make([]Upstream, len(r.upstreams))
	copy(out, r.upstreams)
	return out
}

// Lookup returns the upstream with the given name.
func (r *Registry) Lookup(name string) (Upstream, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Upstream{}, false
	}
	return r.upstreams[i], true
}

// Len returns the pool size.
func (r *Registry) Len() int {
	return len(r.upstreams)
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url must not be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url must include a host")
	}

	return strings.TrimRight(raw, "/"), nil
}
