package app

import (
	"context"
	"io"
	"testing"

	log "github.com/sirupsen/logrus"
)

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger.WithField("component", "test")
}

func TestNewDependencies_Memory(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := NewDependencies(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}
	defer deps.Close()

	if deps.Customers == nil || deps.Orders == nil || deps.Products == nil {
		t.Fatal("expected all repositories to be initialized")
	}
	if deps.Outbox == nil || deps.Timeline == nil {
		t.Fatal("expected outbox and timeline repositories to be initialized")
	}
	if deps.Store != nil {
		t.Fatal("memory backend must not open a postgres store")
	}

	// Демо-данные должны быть на месте.
	customer, err := deps.Customers.Get("ALFKI")
	if err != nil {
		t.Fatalf("expected seeded customer ALFKI: %v", err)
	}
	if customer.Address == "" {
		t.Error("expected seeded customer to have an address")
	}

	product, err := deps.Products.Get(93)
	if err != nil {
		t.Fatalf("expected seeded product 93: %v", err)
	}
	if product.UnitsInStock <= 0 {
		t.Errorf("expected seeded product to have stock, got %d", product.UnitsInStock)
	}
}

func TestNewDependencies_EmptyStorageDefaultsToMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage = ""

	deps, err := NewDependencies(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("NewDependencies: %v", err)
	}
	defer deps.Close()

	if deps.Store != nil {
		t.Fatal("empty storage must default to memory backend")
	}
}

func TestNewDependencies_PostgresRequiresDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage = StoragePostgres
	cfg.PostgresDSN = ""

	if _, err := NewDependencies(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("expected error for postgres backend without DSN")
	}
}

func TestNewDependencies_UnsupportedStorage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage = "cassandra"

	if _, err := NewDependencies(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("expected error for unsupported storage backend")
	}
}
