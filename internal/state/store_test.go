package state

import (
	"testing"
	"time"
)

func f(v float64) *float64 { return &v }
func str(v string) *string { return &v }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveSnapshotUpsert(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().Unix()

	snap := Snapshot{
		ICAO24:    "a1b2c3",
		Timestamp: now,
		Latitude:  f(39.5),
		Longitude: f(-77.0),
		Altitude:  f(1200),
		Velocity:  f(60),
		Callsign:  str("LIFE1"),
	}
	if err := s.SaveSnapshot(snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	// Same aircraft, same second, different values: must replace not duplicate.
	snap.Velocity = f(75)
	if err := s.SaveSnapshot(snap); err != nil {
		t.Fatalf("SaveSnapshot replace: %v", err)
	}

	hist, err := s.History("A1B2C3", time.Unix(now-60, 0), 20)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("len(hist) = %d, want 1", len(hist))
	}
	if hist[0].ICAO24 != "A1B2C3" {
		t.Errorf("ICAO24 = %q, want A1B2C3 (uppercased)", hist[0].ICAO24)
	}
	if hist[0].Velocity == nil || *hist[0].Velocity != 75 {
		t.Errorf("Velocity = %v, want 75", hist[0].Velocity)
	}
	if hist[0].Callsign == nil || *hist[0].Callsign != "LIFE1" {
		t.Errorf("Callsign = %v, want LIFE1", hist[0].Callsign)
	}
}

func TestHistoryNewestFirstAndLimit(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().Unix()

	for i := 0; i < 5; i++ {
		snap := Snapshot{
			ICAO24:    "A1B2C3",
			Timestamp: base + int64(i*10),
			Velocity:  f(float64(50 + i)),
		}
		if err := s.SaveSnapshot(snap); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}

	hist, err := s.History("A1B2C3", time.Unix(base-1, 0), 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("len(hist) = %d, want 3", len(hist))
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].Timestamp >= hist[i-1].Timestamp {
			t.Errorf("history not newest-first: %d before %d", hist[i-1].Timestamp, hist[i].Timestamp)
		}
	}
	if *hist[0].Velocity != 54 {
		t.Errorf("newest Velocity = %v, want 54", *hist[0].Velocity)
	}
}

func TestLatestAll(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().Unix()

	for _, row := range []struct {
		hex string
		ts  int64
		vel float64
	}{
		{"A1B2C3", base, 50},
		{"A1B2C3", base + 10, 60},
		{"D4E5F6", base + 5, 120},
	} {
		err := s.SaveSnapshot(Snapshot{ICAO24: row.hex, Timestamp: row.ts, Velocity: f(row.vel)})
		if err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}

	latest, err := s.LatestAll(time.Unix(base-1, 0))
	if err != nil {
		t.Fatalf("LatestAll: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("len(latest) = %d, want 2", len(latest))
	}
	if got := *latest["A1B2C3"].Velocity; got != 60 {
		t.Errorf("A1B2C3 latest Velocity = %v, want 60", got)
	}
	if got := *latest["D4E5F6"].Velocity; got != 120 {
		t.Errorf("D4E5F6 latest Velocity = %v, want 120", got)
	}
}

func TestLogAndQueryAnomalies(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().Unix()

	id, err := s.LogAnomaly(Anomaly{
		Timestamp: now,
		ICAO24:    str("a1b2c3"),
		Type:      "high_speed",
		Severity:  "HIGH",
		Details:   map[string]any{"speed_knots": 165.3, "threshold": 150},
	})
	if err != nil {
		t.Fatalf("LogAnomaly: %v", err)
	}
	if id == 0 {
		t.Error("LogAnomaly id = 0, want > 0")
	}

	// Fleet-wide anomaly with no aircraft.
	if _, err := s.LogAnomaly(Anomaly{
		Timestamp: now + 1,
		Type:      "multiple_launch",
		Severity:  "CRITICAL",
		Details:   map[string]any{"aircraft_count": 3},
	}); err != nil {
		t.Fatalf("LogAnomaly fleet-wide: %v", err)
	}

	got, err := s.RecentAnomalies(time.Unix(now-10, 0), 10)
	if err != nil {
		t.Fatalf("RecentAnomalies: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(anomalies) = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].Type != "multiple_launch" {
		t.Errorf("first Type = %q, want multiple_launch", got[0].Type)
	}
	if got[0].ICAO24 != nil {
		t.Errorf("multiple_launch ICAO24 = %v, want nil", *got[0].ICAO24)
	}
	if got[1].ICAO24 == nil || *got[1].ICAO24 != "A1B2C3" {
		t.Errorf("high_speed ICAO24 = %v, want A1B2C3", got[1].ICAO24)
	}
	if got[1].Details["speed_knots"] != 165.3 {
		t.Errorf("Details[speed_knots] = %v, want 165.3", got[1].Details["speed_knots"])
	}

	if err := s.Acknowledge(id); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	got, err = s.RecentAnomalies(time.Unix(now-10, 0), 10)
	if err != nil {
		t.Fatalf("RecentAnomalies after ack: %v", err)
	}
	if !got[1].Acknowledged {
		t.Error("Acknowledged = false after Acknowledge")
	}
}

func TestAnomalyStats(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().Unix()

	for _, rec := range []struct{ typ, sev string }{
		{"high_speed", "HIGH"},
		{"high_speed", "HIGH"},
		{"emergency_squawk", "CRITICAL"},
	} {
		if _, err := s.LogAnomaly(Anomaly{Timestamp: now, ICAO24: str("A1B2C3"), Type: rec.typ, Severity: rec.sev}); err != nil {
			t.Fatalf("LogAnomaly: %v", err)
		}
	}

	byType, bySeverity, err := s.AnomalyStats(time.Unix(now-10, 0))
	if err != nil {
		t.Fatalf("AnomalyStats: %v", err)
	}
	if byType["high_speed"] != 2 {
		t.Errorf("byType[high_speed] = %d, want 2", byType["high_speed"])
	}
	if bySeverity["CRITICAL"] != 1 {
		t.Errorf("bySeverity[CRITICAL] = %d, want 1", bySeverity["CRITICAL"])
	}
}

func TestCleanup(t *testing.T) {
	s := openTestStore(t)
	old := time.Now().AddDate(0, 0, -40).Unix()
	now := time.Now().Unix()

	for _, ts := range []int64{old, old + 10, now} {
		if err := s.SaveSnapshot(Snapshot{ICAO24: "A1B2C3", Timestamp: ts}); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}
	if _, err := s.LogAnomaly(Anomaly{Timestamp: old, ICAO24: str("A1B2C3"), Type: "high_speed", Severity: "HIGH"}); err != nil {
		t.Fatalf("LogAnomaly: %v", err)
	}

	removed, err := s.Cleanup(30)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 2 {
		t.Errorf("Cleanup removed = %d, want 2", removed)
	}

	hist, err := s.History("A1B2C3", time.Unix(0, 0), 20)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Errorf("len(hist) after cleanup = %d, want 1", len(hist))
	}

	// The anomaly log is an audit record; cleanup must never touch it.
	anomalies, err := s.RecentAnomalies(time.Unix(old-10, 0), 10)
	if err != nil {
		t.Fatalf("RecentAnomalies: %v", err)
	}
	if len(anomalies) != 1 {
		t.Errorf("len(anomalies) after cleanup = %d, want 1", len(anomalies))
	}
}
