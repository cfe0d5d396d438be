package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comptoirs/internal/domain"
	"github.com/vladislavdragonenkov/comptoirs/internal/storage/memory"
	"github.com/vladislavdragonenkov/comptoirs/internal/storage/postgres"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Customers domain.CustomerRepository
	Orders    domain.OrderRepository
	Products  domain.ProductRepository
	Outbox    domain.OutboxRepository
	Timeline  domain.TimelineRepository
	Store     *postgres.Store
	Logger    *log.Entry
}

// NewDependencies создаёт хранилище согласно конфигурации: in-memory с
// демо-данными или PostgreSQL с применением миграций.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage)) {
	case "", StorageMemory:
		orderRepo := memory.NewOrderRepository()
		customerRepo := memory.NewCustomerRepository(orderRepo)
		productRepo := memory.NewProductRepository()
		if err := memory.SeedDemo(customerRepo, productRepo, orderRepo); err != nil {
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		logger.Info("using in-memory storage with demo data")
		return &Dependencies{
			Customers: customerRepo,
			Orders:    orderRepo,
			Products:  productRepo,
			Outbox:    memory.NewOutboxRepository(),
			Timeline:  memory.NewTimelineRepository(),
			Logger:    logger,
		}, nil
	case StoragePostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, fmt.Errorf("postgres storage requires COMPTOIRS_POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("using postgres storage")
		return &Dependencies{
			Customers: postgres.NewCustomerRepository(store),
			Orders:    postgres.NewOrderRepository(store),
			Products:  postgres.NewProductRepository(store),
			Outbox:    postgres.NewOutboxRepository(store),
			Timeline:  postgres.NewTimelineRepository(store),
			Store:     store,
			Logger:    logger,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage)
	}
}

// Close освобождает ресурсы хранилища.
func (d *Dependencies) Close() {
	if d == nil || d.Store == nil {
		return
	}
	if err := d.Store.Close(); err != nil {
		d.Logger.WithError(err).Warn("failed to close postgres store")
	}
}
