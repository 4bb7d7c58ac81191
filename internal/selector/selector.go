package selector

import "github.com/angeloszaimis/upstream-selector/internal/health"

// Best returns the healthy record with the highest score. Only status
// matters for candidacy: scores of unhealthy records are never
// compared. Ties keep the earliest record, so callers passing records
// in registry order get a deterministic winner. The boolean is false
// when nothing is healthy.
func Best(records []health.Record) (health.Record, bool) {
	var (
		best  health.Record
		found bool
	)

	for _, rec := range records {
		if !rec.Healthy() {
			continue
		}
		if !found || rec.Score > best.Score {
			best = rec
			found = true
		}
	}

	return best, found
}

// CountHealthy reports how many records are selection candidates.
func CountHealthy(records []health.Record) int {
	n := 0
	for _, rec := range records {
		if rec.Healthy() {
			n++
		}
	}
	return n
}
