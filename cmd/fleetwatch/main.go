// Command-line entry point for the fleetwatch monitor.
//
// fleetwatch polls a live ADS-B provider for a watched fleet of EMS or
// police aircraft, stores state snapshots, runs anomaly detection and
// dispatches alerts to the console, a JSONL log, and optionally NATS and
// long-term archive databases.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fleetwatch/internal/monitor"
	"fleetwatch/internal/notify"
	"fleetwatch/internal/opensky"
	"fleetwatch/internal/roster"
	"fleetwatch/internal/state"
	"fleetwatch/internal/storage"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "fleetwatch - EMS/police aircraft anomaly monitor:")
	fmt.Fprintln(w, "  monitor    - run the polling loop")
	fmt.Fprintln(w, "  anomalies  - print recent anomalies from the state database")
	fmt.Fprintln(w, "  cleanup    - delete old history rows (the anomaly log is kept)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  fleetwatch monitor [-fleet ems|police] [-region NAME | -states NJ,DE,PA] [-interval 60] [-credentials FILE]")
	fmt.Fprintln(w, "  fleetwatch anomalies [-hours 24] [-limit 50]")
	fmt.Fprintln(w, "  fleetwatch cleanup [-days 30]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Configuration also comes from the environment (OPENSKY_*, MONITOR_*, ANOMALY_*).")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "monitor":
		runMonitor(os.Args[2:])
	case "anomalies":
		runAnomalies(os.Args[2:])
	case "cleanup":
		runCleanup(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runMonitor(args []string) {
	cfg := monitor.ConfigFromEnv()

	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	fleet := fs.String("fleet", "ems", "Fleet roster to watch: ems or police")
	region := fs.String("region", cfg.Region, "Census region to monitor (northeast, midwest, south, west, all)")
	states := fs.String("states", strings.Join(cfg.States, ","), "Comma-separated state codes to monitor (overrides -region)")
	interval := fs.Int("interval", int(cfg.Interval/time.Second), "Polling interval in seconds")
	credentials := fs.String("credentials", "", "Provider credentials JSON file")
	_ = fs.Parse(args)

	cfg.Region = *region
	cfg.States = splitStates(*states)
	cfg.Interval = time.Duration(*interval) * time.Second

	if *credentials != "" {
		creds, err := opensky.LoadCredentialsFile(*credentials)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load credentials: %v\n", err)
			os.Exit(1)
		}
		cfg.Credentials = creds
	}

	rosterPath := cfg.EMSRosterPath
	if strings.EqualFold(*fleet, "police") {
		rosterPath = cfg.PoliceRosterPath
	}
	entries, err := roster.Load(rosterPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load roster %s: %v\n", rosterPath, err)
		fmt.Fprintln(os.Stderr, "Run fleetfilter first to build it from the FAA registry.")
		os.Exit(1)
	}

	store, err := state.Open(cfg.StateDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open state database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	notifier := notify.NewNotifier(cfg.AnomalyLogFile, true)
	if err := notifier.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open anomaly log: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = notifier.Close() }()

	client := opensky.NewClient(opensky.Config{
		Credentials: cfg.Credentials,
		CacheDir:    cfg.CacheDir,
		CacheTTL:    cfg.CacheMaxAge,
		RateLimit:   cfg.RateLimit,
		RatePeriod:  cfg.RatePeriod,
	})

	svc, err := monitor.New(cfg, client, entries, store, notifier)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start monitor: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PostgresDSN != "" || cfg.ClickHouseDSN != "" {
		archives, err := storage.OpenArchives(ctx, cfg.PostgresDSN, cfg.ClickHouseDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open archives: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = archives.Close() }()
		svc.SetArchives(archives)
	}

	if cfg.NATSURL != "" {
		pub, err := notify.NewNATSPublisher(cfg.NATSURL, "fleetwatch.anomalies")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to connect to NATS: %v\n", err)
			os.Exit(1)
		}
		defer pub.Close()
		go pub.Run(ctx, svc.Events())
	}

	if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Monitor error: %v\n", err)
		os.Exit(1)
	}
}

func runAnomalies(args []string) {
	cfg := monitor.ConfigFromEnv()

	fs := flag.NewFlagSet("anomalies", flag.ExitOnError)
	dbPath := fs.String("db", cfg.StateDBPath, "SQLite state database")
	hours := fs.Int("hours", 24, "Lookback window in hours")
	limit := fs.Int("limit", 50, "Maximum anomalies to print")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	_ = fs.Parse(args)

	store, err := state.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open state database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	since := time.Now().Add(-time.Duration(*hours) * time.Hour)
	anomalies, err := store.RecentAnomalies(since, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query anomalies: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	for _, a := range anomalies {
		if err := enc.Encode(a); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode anomaly: %v\n", err)
			os.Exit(1)
		}
	}
}

func runCleanup(args []string) {
	cfg := monitor.ConfigFromEnv()

	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	dbPath := fs.String("db", cfg.StateDBPath, "SQLite state database")
	days := fs.Int("days", 30, "Retention period in days")
	_ = fs.Parse(args)

	store, err := state.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open state database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	removed, err := store.Cleanup(*days)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cleanup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Removed %d history rows older than %d days\n", removed, *days)
}

func splitStates(csv string) []string {
	var out []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}
