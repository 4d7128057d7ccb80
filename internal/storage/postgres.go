package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetwatch/internal/state"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool for the durable anomaly
// archive.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	return OpenPostgresDSN(ctx, connStr)
}

// OpenPostgresDSN opens a connection pool from a connection string.
func OpenPostgresDSN(ctx context.Context, connStr string) (*PostgresDB, error) {
	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the anomaly archive tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS anomalies (
		id              BIGSERIAL PRIMARY KEY,
		occurred_at     TIMESTAMPTZ NOT NULL,
		icao24          TEXT,
		anomaly_type    TEXT NOT NULL,
		severity        TEXT NOT NULL,
		details         JSONB,
		acknowledged    BOOLEAN NOT NULL DEFAULT FALSE,
		archived_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_anomalies_occurred ON anomalies(occurred_at DESC);
	CREATE INDEX IF NOT EXISTS idx_anomalies_icao24 ON anomalies(icao24);
	CREATE INDEX IF NOT EXISTS idx_anomalies_type ON anomalies(anomaly_type);
	`
	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ArchiveAnomaly stores one anomaly record, returning the archive row ID.
func (d *PostgresDB) ArchiveAnomaly(ctx context.Context, a state.Anomaly) (int64, error) {
	var details []byte
	if a.Details != nil {
		var err error
		details, err = json.Marshal(a.Details)
		if err != nil {
			return 0, fmt.Errorf("marshal details: %w", err)
		}
	}

	var id int64
	err := d.pool.QueryRow(ctx, `
		INSERT INTO anomalies (occurred_at, icao24, anomaly_type, severity, details, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, time.Unix(a.Timestamp, 0).UTC(), a.ICAO24, a.Type, a.Severity, details, a.Acknowledged).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert anomaly: %w", err)
	}
	return id, nil
}

// AnomalyQueryParams filters archive queries. Zero values mean no filter.
type AnomalyQueryParams struct {
	ICAO24   string
	Type     string
	Severity string
	Since    time.Time
	Limit    int
}

// QueryAnomalies retrieves archived anomalies, newest first.
func (d *PostgresDB) QueryAnomalies(ctx context.Context, p AnomalyQueryParams) ([]state.Anomaly, error) {
	query := `SELECT id, occurred_at, icao24, anomaly_type, severity, details, acknowledged FROM anomalies WHERE 1=1`
	var args []interface{}

	if p.ICAO24 != "" {
		args = append(args, p.ICAO24)
		query += fmt.Sprintf(" AND icao24 = $%d", len(args))
	}
	if p.Type != "" {
		args = append(args, p.Type)
		query += fmt.Sprintf(" AND anomaly_type = $%d", len(args))
	}
	if p.Severity != "" {
		args = append(args, p.Severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if !p.Since.IsZero() {
		args = append(args, p.Since)
		query += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	query += " ORDER BY occurred_at DESC"
	if p.Limit > 0 {
		args = append(args, p.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query anomalies: %w", err)
	}
	defer rows.Close()

	var out []state.Anomaly
	for rows.Next() {
		var (
			a          state.Anomaly
			occurredAt time.Time
			details    []byte
		)
		if err := rows.Scan(&a.ID, &occurredAt, &a.ICAO24, &a.Type, &a.Severity, &details, &a.Acknowledged); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		a.Timestamp = occurredAt.Unix()
		if len(details) > 0 {
			if err := json.Unmarshal(details, &a.Details); err != nil {
				return nil, fmt.Errorf("unmarshal details: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountBySeverity returns archived anomaly counts since a cutoff, keyed by
// severity.
func (d *PostgresDB) CountBySeverity(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT severity, COUNT(*) FROM anomalies
		WHERE occurred_at >= $1
		GROUP BY severity
	`, since)
	if err != nil {
		return nil, fmt.Errorf("count by severity: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var sev string
		var n int
		if err := rows.Scan(&sev, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[sev] = n
	}
	return out, rows.Err()
}

// AcknowledgeAnomaly marks an archived anomaly as reviewed.
func (d *PostgresDB) AcknowledgeAnomaly(ctx context.Context, id int64) error {
	tag, err := d.pool.Exec(ctx, `UPDATE anomalies SET acknowledged = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("acknowledge anomaly: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
