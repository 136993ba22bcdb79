// Package sqlite provides a SQLite driver for the data layer.
//
// SQLite is used for single-node deployments and tests. The driver registers
// itself automatically when imported:
//
//	import _ "github.com/filedepot/filedepot/data/sqlite"
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/filedepot/filedepot/config"
	"github.com/filedepot/filedepot/data"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// driver implements data.DatabaseDriver for SQLite.
type driver struct{}

// Name returns the driver identifier used in configuration files.
func (d *driver) Name() string {
	return "sqlite"
}

// Connect opens a SQLite database file. WAL mode and a busy timeout are
// enabled so concurrent workers in one process do not trip over each other.
func (d *driver) Connect(ctx context.Context, cfg any) (any, error) {
	dbCfg, ok := cfg.(*config.Data)
	if !ok {
		return nil, fmt.Errorf("sqlite: invalid configuration type, expected *config.Data")
	}

	if dbCfg.Source == "" {
		return nil, fmt.Errorf("sqlite: connection source is empty")
	}

	db, err := sql.Open("sqlite3", dbCfg.Source)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open connection: %w", err)
	}

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to ping database: %w", err)
	}

	return db, nil
}

// Close terminates the SQLite connection and releases resources.
func (d *driver) Close(conn any) error {
	db, ok := conn.(*sql.DB)
	if !ok {
		return fmt.Errorf("sqlite: invalid connection type, expected *sql.DB")
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("sqlite: failed to close connection: %w", err)
	}

	return nil
}

// Ping verifies the SQLite connection is alive and functional.
func (d *driver) Ping(ctx context.Context, conn any) error {
	db, ok := conn.(*sql.DB)
	if !ok {
		return fmt.Errorf("sqlite: invalid connection type, expected *sql.DB")
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}

	return nil
}

func init() {
	data.RegisterDatabaseDriver(&driver{})
}
