// Package state persists aircraft observation history and detected
// anomalies in SQLite.
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database holding aircraft history and the anomaly log.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. Empty path means in-memory.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot stores one observation. A snapshot for the same aircraft at
// the same timestamp replaces the previous row, so re-polling within a
// second is idempotent.
func (s *Store) SaveSnapshot(snap Snapshot) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO aircraft_history
			(icao24, timestamp, latitude, longitude, altitude, velocity,
			 on_ground, vertical_rate, callsign, heading, squawk, last_contact)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, strings.ToUpper(snap.ICAO24), snap.Timestamp,
		snap.Latitude, snap.Longitude, snap.Altitude, snap.Velocity,
		boolInt(snap.OnGround), snap.VerticalRate, snap.Callsign,
		snap.Heading, snap.Squawk, snap.LastContact)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// History returns up to limit snapshots for one aircraft since the given
// time, newest first.
func (s *Store) History(icao24 string, since time.Time, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT icao24, timestamp, latitude, longitude, altitude, velocity,
		       on_ground, vertical_rate, callsign, heading, squawk, last_contact
		FROM aircraft_history
		WHERE icao24 = ? AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, strings.ToUpper(icao24), since.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanSnapshots(rows)
}

// LatestAll returns the most recent snapshot per aircraft seen since the
// given time, keyed by upper-case hex.
func (s *Store) LatestAll(since time.Time) (map[string]Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT h.icao24, h.timestamp, h.latitude, h.longitude, h.altitude, h.velocity,
		       h.on_ground, h.vertical_rate, h.callsign, h.heading, h.squawk, h.last_contact
		FROM aircraft_history h
		JOIN (
			SELECT icao24, MAX(timestamp) AS ts
			FROM aircraft_history
			WHERE timestamp >= ?
			GROUP BY icao24
		) latest ON h.icao24 = latest.icao24 AND h.timestamp = latest.ts
	`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Snapshot, len(snaps))
	for _, snap := range snaps {
		out[snap.ICAO24] = snap
	}
	return out, nil
}

// LogAnomaly stores an anomaly record and returns its row ID.
func (s *Store) LogAnomaly(a Anomaly) (int64, error) {
	var details any
	if a.Details != nil {
		b, err := json.Marshal(a.Details)
		if err != nil {
			return 0, fmt.Errorf("marshal details: %w", err)
		}
		details = string(b)
	}

	var icao any
	if a.ICAO24 != nil {
		icao = strings.ToUpper(*a.ICAO24)
	}

	res, err := s.db.Exec(`
		INSERT INTO anomaly_log (timestamp, icao24, anomaly_type, severity, details, acknowledged)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.Timestamp, icao, a.Type, a.Severity, details, boolInt(a.Acknowledged))
	if err != nil {
		return 0, fmt.Errorf("log anomaly: %w", err)
	}
	return res.LastInsertId()
}

// RecentAnomalies returns up to limit anomalies since the given time,
// newest first.
func (s *Store) RecentAnomalies(since time.Time, limit int) ([]Anomaly, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, timestamp, icao24, anomaly_type, severity, details, acknowledged
		FROM anomaly_log
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, since.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Anomaly
	for rows.Next() {
		var a Anomaly
		var icao, details sql.NullString
		var ack int
		if err := rows.Scan(&a.ID, &a.Timestamp, &icao, &a.Type, &a.Severity, &details, &ack); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		if icao.Valid {
			v := icao.String
			a.ICAO24 = &v
		}
		if details.Valid && details.String != "" {
			// Corrupt details should not hide the record itself.
			_ = json.Unmarshal([]byte(details.String), &a.Details)
		}
		a.Acknowledged = ack != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// Acknowledge marks an anomaly as acknowledged.
func (s *Store) Acknowledge(id int64) error {
	_, err := s.db.Exec(`UPDATE anomaly_log SET acknowledged = 1 WHERE id = ?`, id)
	return err
}

// AnomalyStats returns anomaly counts by type and by severity since the
// given time.
func (s *Store) AnomalyStats(since time.Time) (byType, bySeverity map[string]int, err error) {
	byType = make(map[string]int)
	bySeverity = make(map[string]int)

	rows, err := s.db.Query(`
		SELECT anomaly_type, severity, COUNT(*)
		FROM anomaly_log
		WHERE timestamp >= ?
		GROUP BY anomaly_type, severity
	`, since.Unix())
	if err != nil {
		return nil, nil, fmt.Errorf("query stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var typ, sev string
		var n int
		if err := rows.Scan(&typ, &sev, &n); err != nil {
			return nil, nil, err
		}
		byType[typ] += n
		bySeverity[sev] += n
	}
	return byType, bySeverity, rows.Err()
}

// Cleanup deletes history rows older than the retention period and returns
// how many rows were removed. The anomaly log is an audit record and is
// never trimmed.
func (s *Store) Cleanup(retainDays int) (int64, error) {
	if retainDays <= 0 {
		retainDays = 30
	}
	cutoff := time.Now().AddDate(0, 0, -retainDays).Unix()

	res, err := s.db.Exec(`DELETE FROM aircraft_history WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup history: %w", err)
	}
	return res.RowsAffected()
}

func scanSnapshots(rows *sql.Rows) ([]Snapshot, error) {
	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var lat, lon, alt, vel, vr, hdg sql.NullFloat64
		var cs, sq sql.NullString
		var lc sql.NullInt64
		var og int

		err := rows.Scan(&snap.ICAO24, &snap.Timestamp, &lat, &lon, &alt, &vel,
			&og, &vr, &cs, &hdg, &sq, &lc)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}

		if lat.Valid {
			snap.Latitude = &lat.Float64
		}
		if lon.Valid {
			snap.Longitude = &lon.Float64
		}
		if alt.Valid {
			snap.Altitude = &alt.Float64
		}
		if vel.Valid {
			snap.Velocity = &vel.Float64
		}
		if vr.Valid {
			snap.VerticalRate = &vr.Float64
		}
		if hdg.Valid {
			snap.Heading = &hdg.Float64
		}
		if cs.Valid {
			snap.Callsign = &cs.String
		}
		if sq.Valid {
			snap.Squawk = &sq.String
		}
		if lc.Valid {
			snap.LastContact = lc.Int64
		}
		snap.OnGround = og != 0

		out = append(out, snap)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
