package data

import (
	"context"
	"fmt"
	"sync"
)

// DatabaseDriver defines the interface for relational database drivers.
// Following the design pattern of database/sql, drivers register themselves
// using init() functions and are looked up at runtime based on configuration.
type DatabaseDriver interface {
	// Name returns the driver identifier (e.g., "postgres", "sqlite")
	Name() string

	// Connect establishes a new database connection using the provided configuration.
	// The returned connection should be ready for use or return an error.
	Connect(ctx context.Context, cfg any) (any, error)

	// Close terminates the database connection and releases resources.
	Close(conn any) error

	// Ping verifies the connection is alive and functional.
	Ping(ctx context.Context, conn any) error
}

var (
	databaseDrivers   = make(map[string]DatabaseDriver)
	databaseDriversMu sync.RWMutex
)

// RegisterDatabaseDriver registers a database driver.
// Panics if the driver is nil or already registered.
func RegisterDatabaseDriver(driver DatabaseDriver) {
	if driver == nil {
		panic("data: RegisterDatabaseDriver driver is nil")
	}

	databaseDriversMu.Lock()
	defer databaseDriversMu.Unlock()

	name := driver.Name()
	if _, dup := databaseDrivers[name]; dup {
		panic(fmt.Sprintf("data: RegisterDatabaseDriver called twice for driver %q", name))
	}
	databaseDrivers[name] = driver
}

// GetDatabaseDriver returns the registered driver with the given name.
func GetDatabaseDriver(name string) (DatabaseDriver, error) {
	databaseDriversMu.RLock()
	defer databaseDriversMu.RUnlock()

	driver, ok := databaseDrivers[name]
	if !ok {
		return nil, fmt.Errorf("data: unknown database driver %q (forgotten import?)", name)
	}
	return driver, nil
}

// RegisteredDatabaseDrivers returns the names of all registered drivers.
func RegisteredDatabaseDrivers() []string {
	databaseDriversMu.RLock()
	defer databaseDriversMu.RUnlock()

	names := make([]string, 0, len(databaseDrivers))
	for name := range databaseDrivers {
		names = append(names, name)
	}
	return names
}
