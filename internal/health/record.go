package health

import "time"

// Status classifies the outcome of a single probe.
type Status string

const (
	// StatusHealthy means the upstream answered 200 with a decodable body.
	StatusHealthy Status = "healthy"

	// StatusUnhealthy means the upstream answered, but not with a usable
	// 200 response.
	StatusUnhealthy Status = "unhealthy"

	// StatusError means the probe never completed: connection failure,
	// timeout, or bad address.
	StatusError Status = "error"
)

// Record is the outcome of one upstream probe. Nullable fields are
// pointers so JSON output carries explicit nulls: a probe that never
// reached the upstream has no response time and no status code.
type Record struct {
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	Status       Status    `json:"health"`
	ResponseTime *float64  `json:"response_time"` // milliseconds
	Score        float64   `json:"score"`
	StatusCode   *int      `json:"status_code"`
	Error        *string   `json:"error"`
	LastChecked  time.Time `json:"last_checked"`
}

// Healthy reports whether the record makes its upstream a selection
// candidate.
func (r Record) Healthy() bool {
	return r.Status == StatusHealthy
}
