// Watch polls the selector and prints which upstream wins each round.
// Handy for eyeballing failover while you stop and start mock upstreams.
//
// Usage:
//
//	go run ./scripts/watch -addr http://localhost:10000 -interval 2s
//	go run ./scripts/watch -addr http://localhost:10000 -count 10
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

type selection struct {
	Server       string   `json:"server"`
	ServerURL    string   `json:"server_url"`
	Health       string   `json:"health"`
	Score        float64  `json:"score"`
	ResponseTime *float64 `json:"response_time"`
	Error        string   `json:"error"`
}

func main() {
	var (
		addr     = flag.String("addr", "http://localhost:10000", "selector base URL")
		interval = flag.Duration("interval", 2*time.Second, "poll interval")
		count    = flag.Int("count", 0, "number of polls (0 = run until interrupted)")
	)
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	url := *addr + "/server"

	for i := 0; *count == 0 || i < *count; i++ {
		if i > 0 {
			time.Sleep(*interval)
		}

		start := time.Now()
		resp, err := client.Get(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "poll failed: %v\n", err)
			continue
		}

		var sel selection
		err = json.NewDecoder(resp.Body).Decode(&sel)
		resp.Body.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad response: %v\n", err)
			continue
		}

		elapsed := time.Since(start).Round(time.Millisecond)
		if resp.StatusCode != http.StatusOK {
			fmt.Printf("%s  %-12s  %s (HTTP %d, %s)\n",
				time.Now().Format("15:04:05"), "unavailable", sel.Error, resp.StatusCode, elapsed)
			continue
		}

		rt := "-"
		if sel.ResponseTime != nil {
			rt = fmt.Sprintf("%.2fms", *sel.ResponseTime)
		}

		fmt.Printf("%s  %-12s  score=%.1f  response_time=%s  url=%s  (%s)\n",
			time.Now().Format("15:04:05"), sel.Server, sel.Score, rt, sel.ServerURL, elapsed)
	}
}
