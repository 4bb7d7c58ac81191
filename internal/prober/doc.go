// Package prober performs single-shot HTTP health checks against
// upstream servers and converts every outcome, including transport
// failures, into a health.Record. Probes share one connection pool,
// retry throttling and server-side failures with exponential backoff,
// and score upstreams by round-trip latency when the upstream does not
// report a score itself.
package prober
