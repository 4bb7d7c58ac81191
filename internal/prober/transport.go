package prober

import (
	"io"
	"net/http"
	"time"
)

// retryableStatus reports whether a response code may be retried:
// throttling and server-side failures only. Client errors other than
// 429 are answers, not failures.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// retryTransport re-issues failed probe requests a bounded number of
// times with exponential backoff. Probes are body-less GETs, so
// replaying the request is always safe. The request context caps the
// whole sequence: backoff sleeps abort as soon as it is done.
type retryTransport struct {
	base        http.RoundTripper
	maxRetries  int
	backoffBase time.Duration
}

func newRetryTransport(base http.RoundTripper, maxRetries int, backoff time.Duration) *retryTransport {
	return &retryTransport{
		base:        base,
		maxRetries:  maxRetries,
		backoffBase: backoff,
	}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var (
		res *http.Response
		err error
	)

	backoff := t.backoffBase
	for attempt := 0; ; attempt++ {
		res, err = t.base.RoundTrip(req)

		if err == nil && !retryableStatus(res.StatusCode) {
			return res, nil
		}
		if attempt >= t.maxRetries {
			return res, err
		}

		// Drain so the connection goes back to the pool before the
		// next attempt.
		if res != nil {
			io.Copy(io.Discard, res.Body)
			res.Body.Close()
		}

		select {
		case <-req.Context().Done():
			if err != nil {
				return nil, err
			}
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
