// Package healthcache stores the most recent health record per
// upstream and serves it while younger than a fixed TTL. It is the
// only mutable state between polling cycles: everything else in the
// engine is recomputed per request.
package healthcache
