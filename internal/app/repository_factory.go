package app

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	sharedApplication "github.com/manish0301/subscription-pro/internal/shared/application"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/database"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/outbox"
	sharedPersistence "github.com/manish0301/subscription-pro/internal/shared/infrastructure/persistence"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	subscriptionPersistence "github.com/manish0301/subscription-pro/internal/subscriptions/infrastructure/persistence"
)

// RepositoryFactory creates repositories based on the database driver.
type RepositoryFactory struct {
	driver database.Driver
	pool   *pgxpool.Pool
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepositoryFactory creates a factory backed by a pgx pool.
func NewPostgresRepositoryFactory(pool *pgxpool.Pool) *RepositoryFactory {
	return &RepositoryFactory{driver: database.DriverPostgres, pool: pool}
}

// NewSQLiteRepositoryFactory creates a factory backed by a SQLite handle.
func NewSQLiteRepositoryFactory(db *sql.DB) *RepositoryFactory {
	return &RepositoryFactory{driver: database.DriverSQLite, db: db}
}

// WithLogger sets the logger handed to repositories that log.
func (f *RepositoryFactory) WithLogger(logger *slog.Logger) *RepositoryFactory {
	f.logger = logger
	return f
}

// Driver returns the backend the factory builds for.
func (f *RepositoryFactory) Driver() database.Driver {
	return f.driver
}

// SubscriptionRepository creates a subscription repository for the configured driver.
func (f *RepositoryFactory) SubscriptionRepository() (domain.Repository, error) {
	switch f.driver {
	case database.DriverPostgres:
		return subscriptionPersistence.NewPostgresSubscriptionRepository(f.pool).WithLogger(f.logger), nil
	case database.DriverSQLite:
		return subscriptionPersistence.NewSQLiteSubscriptionRepository(f.db).WithLogger(f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// AttemptRepository creates the billing ledger for the configured driver.
func (f *RepositoryFactory) AttemptRepository() (domain.AttemptRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		return subscriptionPersistence.NewPostgresAttemptRepository(f.pool), nil
	case database.DriverSQLite:
		return subscriptionPersistence.NewSQLiteAttemptRepository(f.db), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// OutboxRepository creates an outbox repository for the configured driver.
func (f *RepositoryFactory) OutboxRepository() (outbox.Repository, error) {
	switch f.driver {
	case database.DriverPostgres:
		return outbox.NewPostgresRepository(f.pool), nil
	case database.DriverSQLite:
		return outbox.NewSQLiteRepository(f.db), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}

// UnitOfWork creates a unit of work for the configured driver.
func (f *RepositoryFactory) UnitOfWork() (sharedApplication.UnitOfWork, error) {
	switch f.driver {
	case database.DriverPostgres:
		return sharedPersistence.NewPostgresUnitOfWork(f.pool), nil
	case database.DriverSQLite:
		return sharedPersistence.NewSQLiteUnitOfWork(f.db), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", f.driver)
	}
}
