package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // register sqlite driver
)

const schemaVersion = 1

func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	if version < 1 {
		if _, err := db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS nodes (
				node_num            INTEGER PRIMARY KEY,
				short_name          TEXT NOT NULL DEFAULT '',
				long_name           TEXT NOT NULL DEFAULT '',
				hw_model            TEXT NOT NULL DEFAULT '',
				public_key          BLOB,
				snr                 REAL,
				hops_away           INTEGER,
				battery_level       INTEGER,
				voltage             REAL,
				channel_utilization REAL,
				air_util_tx         REAL,
				latitude_i          INTEGER,
				longitude_i         INTEGER,
				altitude            INTEGER,
				last_heard_at       INTEGER NOT NULL DEFAULT 0,
				is_favorite         INTEGER NOT NULL DEFAULT 0,
				is_ignored          INTEGER NOT NULL DEFAULT 0,
				updated_at          INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_nodes_last_heard ON nodes(last_heard_at DESC);
		`); err != nil {
			return fmt.Errorf("create nodes table: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, schemaVersion)); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}

	return nil
}
