package monitor

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"fleetwatch/internal/opensky"
)

// Config holds the monitoring service settings, usually loaded from the
// environment.
type Config struct {
	// Provider credentials and client behaviour.
	Credentials opensky.Credentials
	RateLimit   int
	RatePeriod  time.Duration
	CacheDir    string
	CacheMaxAge time.Duration

	// Polling.
	Interval time.Duration
	Region   string
	States   []string

	// Detection thresholds.
	SpeedThresholdKnots      float64
	MultiLaunchWindowSeconds int
	RapidClimbRateFtMin      float64
	RapidDescentFt           float64
	RapidDescentWindowSecs   int

	// Geographic context.
	AirportsCSV    string
	HospitalsCSV   string
	NearAirportKm  float64
	NearHospitalKm float64

	// Persistence and output.
	AnomalyLogFile   string
	StateDBPath      string
	EMSRosterPath    string
	PoliceRosterPath string

	// Optional archive sinks.
	PostgresDSN   string
	ClickHouseDSN string
	NATSURL       string
}

// ConfigFromEnv builds a Config from environment variables, applying the
// documented defaults for anything unset.
func ConfigFromEnv() Config {
	cfg := Config{
		Credentials: opensky.Credentials{
			Username:     os.Getenv("OPENSKY_USERNAME"),
			Password:     os.Getenv("OPENSKY_PASSWORD"),
			ClientID:     os.Getenv("OPENSKY_CLIENT_ID"),
			ClientSecret: os.Getenv("OPENSKY_CLIENT_SECRET"),
		},
		RateLimit:  envOrDefaultInt("OPENSKY_RATE_LIMIT_CALLS", 10),
		RatePeriod: time.Duration(envOrDefaultFloat("OPENSKY_RATE_LIMIT_PERIOD", 1.0) * float64(time.Second)),

		CacheMaxAge: time.Duration(envOrDefaultInt("CACHE_MAX_AGE_SECONDS", 60)) * time.Second,

		Interval: time.Duration(envOrDefaultInt("MONITOR_INTERVAL_SECONDS", 60)) * time.Second,
		Region:   os.Getenv("MONITOR_REGION"),

		SpeedThresholdKnots:      envOrDefaultFloat("ANOMALY_SPEED_THRESHOLD_KNOTS", 150.0),
		MultiLaunchWindowSeconds: envOrDefaultInt("ANOMALY_MULTI_LAUNCH_WINDOW_SECONDS", 300),
		RapidClimbRateFtMin:      envOrDefaultFloat("ANOMALY_RAPID_CLIMB_RATE_FT_MIN", 2000.0),
		RapidDescentFt:           envOrDefaultFloat("ANOMALY_RAPID_DESCENT_FT", 1000.0),
		RapidDescentWindowSecs:   envOrDefaultInt("ANOMALY_RAPID_DESCENT_WINDOW_SECONDS", 30),

		AirportsCSV:    os.Getenv("AIRPORTS_CSV"),
		HospitalsCSV:   os.Getenv("HOSPITALS_CSV"),
		NearAirportKm:  envOrDefaultFloat("GEO_NEAR_AIRPORT_KM", 5.0),
		NearHospitalKm: envOrDefaultFloat("GEO_NEAR_HOSPITAL_KM", 3.0),

		AnomalyLogFile:   envOrDefault("ANOMALY_LOG_FILE", "data/anomalies.jsonl"),
		StateDBPath:      envOrDefault("MONITOR_STATE_DB", "data/monitor_state.db"),
		EMSRosterPath:    envOrDefault("EMS_DB_JSON", "data/ems_aircraft.json"),
		PoliceRosterPath: envOrDefault("POLICE_DB_JSON", "data/police_aircraft.json"),

		PostgresDSN:   os.Getenv("ANOMALY_ARCHIVE_POSTGRES_DSN"),
		ClickHouseDSN: os.Getenv("SNAPSHOT_ARCHIVE_CLICKHOUSE_DSN"),
		NATSURL:       os.Getenv("ANOMALY_NATS_URL"),
	}

	if envOrDefault("CACHE_ENABLED", "true") == "true" {
		cfg.CacheDir = envOrDefault("CACHE_DIR", "data/cache")
	}

	if csv := os.Getenv("MONITOR_STATE"); csv != "" {
		for _, s := range strings.Split(csv, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.States = append(cfg.States, strings.ToUpper(s))
			}
		}
	}

	if cfg.Interval < 10*time.Second {
		log.Printf("monitor: interval %s is below 10s; expect provider rate limiting", cfg.Interval)
	}
	return cfg
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
