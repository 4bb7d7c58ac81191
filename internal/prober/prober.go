package prober

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/angeloszaimis/upstream-selector/internal/health"
	"github.com/angeloszaimis/upstream-selector/internal/registry"
)

// Defaults applied by New when an Options field is unset.
const (
	DefaultTimeout  = 3 * time.Second
	DefaultRetries  = 2
	DefaultBackoff  = 300 * time.Millisecond
	DefaultPoolSize = 20
)

// Options tunes probe behavior.
type Options struct {
	Timeout    time.Duration // per-probe budget, spanning all retries
	MaxRetries int           // extra attempts on retryable failures
	Backoff    time.Duration // first retry delay, doubled per attempt
	PoolSize   int           // shared idle connection pool size
	Curve      Curve         // latency scoring fallback
}

// Prober issues one health request per call. It never returns an
// error: transport and protocol failures are folded into the record so
// callers treat every outcome uniformly.
type Prober struct {
	client *http.Client
	base   *http.Transport
	curve  Curve
	logger *slog.Logger
}

// New builds a prober around a shared connection pool. Unset options
// fall back to the package defaults.
func New(opts Options, logger *slog.Logger) *Prober {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = DefaultPoolSize
	}
	if opts.Curve == (Curve{}) {
		opts.Curve = DefaultCurve()
	}

	base := &http.Transport{
		MaxIdleConns:        opts.PoolSize,
		MaxIdleConnsPerHost: opts.PoolSize,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Timeout:   opts.Timeout,
		Transport: newRetryTransport(base, opts.MaxRetries, opts.Backoff),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// A redirecting health endpoint is not a healthy one.
			return http.ErrUseLastResponse
		},
	}

	return &Prober{
		client: client,
		base:   base,
		curve:  opts.Curve,
		logger: logger,
	}
}

// healthPayload is the upstream's self-description. Both fields are
// optional; anything else in the body is ignored.
type healthPayload struct {
	Status *string  `json:"status"`
	Score  *float64 `json:"score"`
}

// Probe checks a single upstream and reports the outcome. A 200 with a
// decodable JSON body is healthy; any other answer is unhealthy; a
// probe that never completes is an error. The context bounds the call
// together with the prober's own timeout.
func (p *Prober) Probe(ctx context.Context, up registry.Upstream) health.Record {
	rec := health.Record{
		Name:        up.Name(),
		URL:         up.BaseURL(),
		LastChecked: time.Now(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, up.HealthURL(), nil)
	if err != nil {
		return p.fail(rec, err)
	}

	start := time.Now()
	res, err := p.client.Do(req)
	if err != nil {
		return p.fail(rec, err)
	}
	defer res.Body.Close()

	elapsed := roundMillis(time.Since(start))
	rec.ResponseTime = &elapsed
	rec.StatusCode = &res.StatusCode
	rec.LastChecked = time.Now()

	if res.StatusCode != http.StatusOK {
		rec.Status = health.StatusUnhealthy
		p.logger.Warn("Health check returned non-200",
			slog.String("upstream", up.Name()),
			slog.Int("status_code", res.StatusCode))
		return rec
	}

	var payload healthPayload
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		rec.Status = health.StatusUnhealthy
		msg := "invalid health response"
		rec.Error = &msg
		p.logger.Warn("Health check body was not valid JSON",
			slog.String("upstream", up.Name()),
			slog.String("error", err.Error()))
		return rec
	}

	rec.Status = health.StatusHealthy
	if payload.Score != nil {
		rec.Score = *payload.Score
	} else {
		rec.Score = p.curve.Score(elapsed)
	}

	if payload.Status != nil {
		// Surfaced for operators; classification trusts only the
		// HTTP status code.
		p.logger.Debug("Upstream self-reported status",
			slog.String("upstream", up.Name()),
			slog.String("status", *payload.Status))
	}

	return rec
}

// Close releases idle connections in the shared pool. Call once the
// prober is no longer needed.
func (p *Prober) Close() {
	p.base.CloseIdleConnections()
}

func (p *Prober) fail(rec health.Record, err error) health.Record {
	rec.Status = health.StatusError
	msg := err.Error()
	rec.Error = &msg
	rec.LastChecked = time.Now()

	p.logger.Error("Probe failed",
		slog.String("upstream", rec.Name),
		slog.String("error", msg))
	return rec
}

// roundMillis converts a duration to milliseconds with two decimals,
// matching the precision reported to clients.
func roundMillis(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}
