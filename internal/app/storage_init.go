package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/foodorder/internal/health"
	"github.com/vladislavdragonenkov/foodorder/internal/service/outbox"
	"github.com/vladislavdragonenkov/foodorder/internal/storage/memory"
	"github.com/vladislavdragonenkov/foodorder/internal/storage/postgres"
)

// outboxStore — outbox с поддержкой очистки отправленных записей.
type outboxStore interface {
	domain.OutboxRepository
	outbox.Purger
}

// runtimeDependencies — хранилища выбранного драйвера.
type runtimeDependencies struct {
	repo           domain.OrderRepository
	restaurants    domain.RestaurantRepository
	outboxRepo     outboxStore
	timelineRepo   domain.TimelineRepository
	tx             domain.Transactor
	storageChecker healthcheck.Checker
	saveRestaurant func(ctx context.Context, restaurant domain.Restaurant) error
	closeFn        func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "", StorageDriverMemory:
		return initMemoryDependencies(), nil
	case StorageDriverPostgres:
		return initPostgresDependencies(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initMemoryDependencies() *runtimeDependencies {
	restaurants := memory.NewRestaurantRepository()
	return &runtimeDependencies{
		repo:         memory.NewOrderRepository(),
		restaurants:  restaurants,
		outboxRepo:   memory.NewOutboxRepository(),
		timelineRepo: memory.NewTimelineRepository(),
		saveRestaurant: func(_ context.Context, restaurant domain.Restaurant) error {
			restaurants.Put(restaurant)
			return nil
		},
	}
}

func initPostgresDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	dsn := strings.TrimSpace(cfg.PostgresDSN)
	if dsn == "" {
		return nil, fmt.Errorf("postgres storage driver requires a DSN")
	}

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		state, err := store.MigrationStatus(ctx)
		if err == nil {
			logger.WithField("schema_version", state.Version).Info("postgres schema is up to date")
		}
	}

	restaurants := postgres.NewRestaurantRepository(store)
	return &runtimeDependencies{
		repo:           postgres.NewOrderRepository(store),
		restaurants:    restaurants,
		outboxRepo:     postgres.NewOutboxRepository(store),
		timelineRepo:   postgres.NewTimelineRepository(store),
		tx:             store,
		storageChecker: healthcheck.NewSimpleChecker("postgres", store.Ping),
		saveRestaurant: restaurants.Upsert,
		closeFn:        store.Close,
	}, nil
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}
