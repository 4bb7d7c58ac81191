// Upstream is a mock pool member used for selector testing.
// It serves the /health endpoint the prober expects and lets you shape
// its behavior from the command line.
//
// Usage:
//
//	go run ./scripts/upstream -port 8081
//	go run ./scripts/upstream -port 8082 -latency 250ms -score 42.5
//	go run ./scripts/upstream -port 8083 -fail-every 3 -fail-status 503
//
// The server logs every probe so you can watch retries land.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"
)

type healthResponse struct {
	Status string   `json:"status"`
	Score  *float64 `json:"score,omitempty"`
}

func main() {
	var (
		port       = flag.Int("port", 8081, "port to listen on")
		latency    = flag.Duration("latency", 0, "artificial delay before answering /health")
		status     = flag.String("status", "healthy", "status string reported in the health payload")
		score      = flag.Float64("score", -1, "self-reported score; negative omits the field")
		failEvery  = flag.Int("fail-every", 0, "fail every Nth probe (0 disables)")
		failStatus = flag.Int("fail-status", http.StatusServiceUnavailable, "HTTP status for injected failures")
	)
	flag.Parse()

	var probes atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		n := probes.Add(1)
		log.Printf("probe #%d from %s", n, r.RemoteAddr)

		if *latency > 0 {
			time.Sleep(*latency)
		}

		if *failEvery > 0 && n%int64(*failEvery) == 0 {
			log.Printf("injecting failure: status=%d", *failStatus)
			http.Error(w, "injected failure", *failStatus)
			return
		}

		resp := healthResponse{Status: *status}
		if *score >= 0 {
			resp.Score = score
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("encode failed: %v", err)
		}
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("starting mock upstream on %s (status=%s latency=%s)", addr, *status, *latency)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
