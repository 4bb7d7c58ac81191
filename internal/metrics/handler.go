package metrics

import (
	"encoding/json"
	"net/http"
)

// Handler serves the JSON counter snapshot. The Prometheus exposition
// format lives on its own endpoint; this one is for humans and scripts.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := c.metrics.Snapshot()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}
