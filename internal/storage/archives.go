package storage

import (
	"context"
	"fmt"
	"log"

	"fleetwatch/internal/state"
)

// Archives bundles the optional long-term sinks. Either member may be nil;
// writes are best-effort and never fail the caller.
type Archives struct {
	PG *PostgresDB   // durable anomaly archive
	CH *ClickHouseDB // high-volume snapshot archive
}

// OpenArchives connects to whichever archive DSNs are set. An empty DSN
// disables that sink. Schemas are created on connect.
func OpenArchives(ctx context.Context, pgDSN, chDSN string) (*Archives, error) {
	a := &Archives{}

	if pgDSN != "" {
		pg, err := OpenPostgresDSN(ctx, pgDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres archive: %w", err)
		}
		if err := pg.CreateSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("postgres archive: %w", err)
		}
		a.PG = pg
	}

	if chDSN != "" {
		ch, err := OpenClickHouseDSN(ctx, chDSN)
		if err != nil {
			if a.PG != nil {
				a.PG.Close()
			}
			return nil, fmt.Errorf("clickhouse archive: %w", err)
		}
		if err := ch.CreateSchema(ctx); err != nil {
			_ = ch.Close()
			if a.PG != nil {
				a.PG.Close()
			}
			return nil, fmt.Errorf("clickhouse archive: %w", err)
		}
		a.CH = ch
	}

	return a, nil
}

// Close closes whichever connections are open.
func (a *Archives) Close() error {
	var firstErr error
	if a.CH != nil {
		if err := a.CH.Close(); err != nil {
			firstErr = fmt.Errorf("clickhouse: %w", err)
		}
	}
	if a.PG != nil {
		a.PG.Close()
	}
	return firstErr
}

// Anomaly forwards one anomaly to the durable archive, logging on failure.
func (a *Archives) Anomaly(ctx context.Context, rec state.Anomaly) {
	if a == nil || a.PG == nil {
		return
	}
	if _, err := a.PG.ArchiveAnomaly(ctx, rec); err != nil {
		log.Printf("storage: anomaly archive write failed: %v", err)
	}
}

// Snapshots forwards a tick's snapshots to the archive, logging on failure.
func (a *Archives) Snapshots(ctx context.Context, snaps []state.Snapshot) {
	if a == nil || a.CH == nil {
		return
	}
	if err := a.CH.ArchiveSnapshots(ctx, snaps); err != nil {
		log.Printf("storage: snapshot archive write failed: %v", err)
	}
}
