// Package main provides the anomaly-api server.
//
// This is a standalone read-only REST API over the monitor's SQLite state
// store: recent anomalies, per-aircraft history and aggregate statistics.
// Run it next to the fleetwatch monitor, pointed at the same database.
//
// Usage:
//
//	anomaly-api [options]
//
// Options:
//
//	-db PATH            SQLite state database (default: data/monitor_state.db, env: MONITOR_STATE_DB)
//	-port N             HTTP port (default: 8081)
//	-auth               Enable API key authentication
//	-api-keys KEYS      Comma-separated list of valid API keys
//
// API Endpoints:
//
//	GET /api/v1/health
//	    Health check endpoint.
//
//	GET /api/v1/anomalies?hours=24&limit=100&severity=HIGH&type=high_speed&icao24=A1B2C3
//	    Recent anomalies, newest first, with optional filters.
//
//	GET /api/v1/anomalies/stats?hours=24
//	    Anomaly counts by type and severity.
//
//	POST /api/v1/anomalies/{id}/ack
//	    Mark an anomaly as reviewed.
//
//	GET /api/v1/aircraft?hours=1
//	    Latest stored snapshot per aircraft.
//
//	GET /api/v1/aircraft/{icao24}/history?hours=24&limit=100
//	    Snapshot history for one aircraft, newest first.
//
// Authentication:
//
//	When -auth is enabled, requests must include an API key via:
//	  - X-API-Key header
//	  - Authorization: Bearer <key> header
//	  - ?api_key=<key> query parameter
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"fleetwatch/internal/api"
	"fleetwatch/internal/state"
)

func main() {
	dbPath := flag.String("db", envOrDefault("MONITOR_STATE_DB", "data/monitor_state.db"), "SQLite state database")
	port := flag.Int("port", 8081, "HTTP port for API server")
	authEnabled := flag.Bool("auth", false, "Enable API key authentication")
	apiKeys := flag.String("api-keys", "", "Comma-separated list of valid API keys (when auth enabled)")

	flag.Parse()

	store, err := state.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening state database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	var keys []string
	if *apiKeys != "" {
		keys = strings.Split(*apiKeys, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
	}

	server := api.NewServer(store, api.Config{
		Port:        *port,
		AuthEnabled: *authEnabled,
		APIKeys:     keys,
	})

	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
