package data_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/filedepot/filedepot/config"
	"github.com/filedepot/filedepot/data"

	_ "github.com/filedepot/filedepot/data/sqlite"
)

func newTestData(t *testing.T) *data.Data {
	t.Helper()
	d, cleanup, err := data.New(context.Background(), &config.Data{
		Driver: "sqlite",
		Source: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(cleanup)
	return d
}

func TestNew_UnknownDriver(t *testing.T) {
	_, _, err := data.New(context.Background(), &config.Data{Driver: "oracle", Source: "x"})
	if err == nil {
		t.Error("expected error for unregistered driver")
	}
	if _, _, err := data.New(context.Background(), nil); err == nil {
		t.Error("expected error for nil configuration")
	}
}

func TestPing(t *testing.T) {
	d := newTestData(t)
	if err := d.Ping(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if d.DriverName() != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", d.DriverName())
	}
}

func TestWithTx(t *testing.T) {
	d := newTestData(t)
	ctx := context.Background()

	if _, err := d.DB().ExecContext(ctx, `CREATE TABLE items (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Committed transaction.
	err := d.WithTx(ctx, func(ctx context.Context) error {
		tx, err := data.GetTx(ctx)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO items (id) VALUES ('a')`)
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Failed transaction rolls back.
	boom := errors.New("boom")
	err = d.WithTx(ctx, func(ctx context.Context) error {
		tx, err := data.GetTx(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO items (id) VALUES ('b')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var count int
	if err := d.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 committed row, got %d", count)
	}
}

func TestHealth(t *testing.T) {
	d := newTestData(t)
	health := d.Health(context.Background())
	if health["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", health["status"])
	}
	services := health["services"].(map[string]any)
	db := services["database"].(map[string]any)
	if db["status"] != "healthy" || db["driver"] != "sqlite" {
		t.Errorf("unexpected database entry: %v", db)
	}
}

func TestClose(t *testing.T) {
	d := newTestData(t)
	if err := d.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Close is idempotent; Ping after close fails.
	if err := d.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := d.Ping(context.Background()); err == nil {
		t.Error("expected error after close")
	}
}
