// Package data provides the relational data layer: driver registration,
// connection lifecycle, transactions, and health checks.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/filedepot/filedepot/config"
)

type ContextKey string

const (
	ContextKeyTransaction ContextKey = "tx"
)

// Data represents the data layer implementation
type Data struct {
	driver DatabaseDriver
	db     *sql.DB

	mu     sync.RWMutex
	closed bool
}

// New connects the configured database driver and returns the data layer
// with a cleanup function.
func New(ctx context.Context, cfg *config.Data) (*Data, func(), error) {
	if cfg == nil {
		return nil, nil, errors.New("data: configuration is nil")
	}

	driver, err := GetDatabaseDriver(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}

	conn, err := driver.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	db, ok := conn.(*sql.DB)
	if !ok {
		_ = driver.Close(conn)
		return nil, nil, fmt.Errorf("data: driver %q returned unexpected connection type", cfg.Driver)
	}

	d := &Data{driver: driver, db: db}
	cleanup := func() {
		if err := d.Close(); err != nil {
			fmt.Printf("data cleanup error: %v\n", err)
		}
	}
	return d, cleanup, nil
}

// DB returns the underlying database handle.
func (d *Data) DB() *sql.DB {
	return d.db
}

// DriverName returns the name of the connected driver.
func (d *Data) DriverName() string {
	return d.driver.Name()
}

// Close closes the database connection.
func (d *Data) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.driver.Close(d.db)
}

// Ping verifies the database connection is alive.
func (d *Data) Ping(ctx context.Context) error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return errors.New("data layer is closed")
	}
	return d.driver.Ping(ctx, d.db)
}

// GetTx retrieves transaction from context
func GetTx(ctx context.Context) (*sql.Tx, error) {
	tx, ok := ctx.Value(ContextKeyTransaction).(*sql.Tx)
	if !ok {
		return nil, errors.New("transaction not found in context")
	}
	return tx, nil
}

// WithTx wraps function within transaction
func (d *Data) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return errors.New("data layer is closed")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, ContextKeyTransaction, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %v, rollback err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// Health checks the data layer and reports per-service status.
func (d *Data) Health(ctx context.Context) map[string]any {
	health := map[string]any{
		"timestamp": time.Now(),
		"services":  make(map[string]any),
	}
	services := health["services"].(map[string]any)

	start := time.Now()
	err := d.Ping(ctx)
	entry := map[string]any{
		"driver":  d.driver.Name(),
		"latency": time.Since(start).String(),
	}
	if err != nil {
		entry["status"] = "unhealthy"
		entry["error"] = err.Error()
		health["status"] = "degraded"
	} else {
		entry["status"] = "healthy"
		health["status"] = "healthy"
	}
	services["database"] = entry

	return health
}
