// Package main is a minimal HTTP health check binary for use in distroless
// containers. It exits 0 when the /health endpoint reports a healthy service,
// and 1 otherwise. Compile with CGO_ENABLED=0 for a fully static binary.
package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"time"
)

var (
	endpoint      = flag.String("url", "http://localhost:8080/health", "Health endpoint to probe")
	allowDegraded = flag.Bool("allow-degraded", false, "Treat a degraded status as healthy")
)

func main() {
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(*endpoint)
	if err != nil {
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		os.Exit(1)
	}

	switch {
	case health.Status == "healthy":
	case health.Status == "degraded" && *allowDegraded:
	default:
		os.Exit(1)
	}
}
