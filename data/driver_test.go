package data

import (
	"context"
	"testing"
)

// Mock driver for testing
type mockDatabaseDriver struct {
	name string
}

func (d *mockDatabaseDriver) Name() string { return d.name }
func (d *mockDatabaseDriver) Connect(ctx context.Context, cfg any) (any, error) {
	return "mock-connection", nil
}
func (d *mockDatabaseDriver) Close(conn any) error                     { return nil }
func (d *mockDatabaseDriver) Ping(ctx context.Context, conn any) error { return nil }

func TestRegisterDatabaseDriver(t *testing.T) {
	driver := &mockDatabaseDriver{name: "mock-register"}
	RegisterDatabaseDriver(driver)

	retrieved, err := GetDatabaseDriver("mock-register")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if retrieved.Name() != "mock-register" {
		t.Errorf("expected driver name 'mock-register', got %q", retrieved.Name())
	}
}

func TestRegisterDatabaseDriverPanicsOnNil(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic when registering nil driver")
		}
	}()

	RegisterDatabaseDriver(nil)
}

func TestRegisterDatabaseDriverPanicsOnDuplicate(t *testing.T) {
	driver := &mockDatabaseDriver{name: "mock-duplicate"}
	RegisterDatabaseDriver(driver)

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic when registering duplicate driver")
		}
	}()

	RegisterDatabaseDriver(driver)
}

func TestGetDatabaseDriverNotFound(t *testing.T) {
	if _, err := GetDatabaseDriver("nonexistent"); err == nil {
		t.Errorf("expected error when getting non-existent driver")
	}
}

func TestRegisteredDatabaseDrivers(t *testing.T) {
	RegisterDatabaseDriver(&mockDatabaseDriver{name: "mock-list"})

	found := false
	for _, name := range RegisteredDatabaseDrivers() {
		if name == "mock-list" {
			found = true
		}
	}
	if !found {
		t.Error("expected mock-list in registered drivers")
	}
}
