package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	sharedApplication "github.com/manish0301/subscription-pro/internal/shared/application"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/database"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/eventbus"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/lock"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/migrations"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/outbox"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/subscribers"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/internal/subscriptions/infrastructure/payment"
	"github.com/manish0301/subscription-pro/pkg/config"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.InMemoryMetrics
	Health  *observability.HealthRegistry

	// Database
	DB       *pgxpool.Pool
	SQLiteDB *sql.DB
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	// Repositories
	SubscriptionRepo domain.Repository
	AttemptRepo      domain.AttemptRepository
	OutboxRepo       outbox.Repository

	// Unit of Work
	UnitOfWork sharedApplication.UnitOfWork

	// Publishers
	EventPublisher    eventbus.Publisher
	InProcessEventBus *eventbus.InProcessBus

	// Billing collaborators
	PaymentGateway domain.PaymentGateway
	Locker         commands.Locker

	// Command Handlers
	CreateSubscriptionHandler *commands.CreateSubscriptionHandler
	PauseSubscriptionHandler  *commands.PauseSubscriptionHandler
	ResumeSubscriptionHandler *commands.ResumeSubscriptionHandler
	CancelSubscriptionHandler *commands.CancelSubscriptionHandler
	SkipDeliveryHandler       *commands.SkipDeliveryHandler
	ChangeScheduleHandler     *commands.ChangeScheduleHandler
	RunBillingCycleHandler    *commands.RunBillingCycleHandler

	// Query Handlers
	GetSubscriptionHandler     *queries.GetSubscriptionHandler
	ListSubscriptionsHandler   *queries.ListSubscriptionsHandler
	ListBillingAttemptsHandler *queries.ListBillingAttemptsHandler
	ListBillingFailuresHandler *queries.ListBillingFailuresHandler

	// Background loops
	OutboxProcessor  *outbox.Processor
	BillingScheduler *BillingScheduler
}

// Open builds the container for the configured backend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if cfg.LocalMode {
		return NewLocalContainer(ctx, cfg, logger)
	}
	return NewContainer(ctx, cfg, logger)
}

// NewContainer creates a container on PostgreSQL, with Redis leases and
// RabbitMQ publishing when configured.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := newBaseContainer(cfg, logger)

	pool, err := database.OpenPostgres(ctx, cfg.DatabaseURL, 0)
	if err != nil {
		return nil, err
	}
	c.DB = pool
	c.DBDriver = database.DriverPostgres
	c.Health.Register("database", observability.DatabaseHealthChecker(pool.Ping))
	logger.Info("connected to database")

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Connect to Redis (optional in development)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			if !cfg.IsDevelopment() {
				c.Close()
				return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
			}
			logger.Warn("invalid Redis URL, billing leases disabled", "error", err)
		} else {
			redisClient := redis.NewClient(opt)
			if err := redisClient.Ping(ctx).Err(); err != nil {
				redisClient.Close()
				if !cfg.IsDevelopment() {
					c.Close()
					return nil, fmt.Errorf("failed to connect to Redis: %w", err)
				}
				logger.Warn("Redis not available, billing leases disabled", "error", err)
			} else {
				c.RedisClient = redisClient
				c.Locker = lock.NewRedisLocker(redisClient)
				c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
					return redisClient.Ping(ctx).Err()
				}))
				logger.Info("connected to Redis")
			}
		}
	}

	// Create event publisher
	switch {
	case cfg.RabbitMQURL == "" && cfg.IsDevelopment():
		logger.Warn("RABBITMQ_URL not set, dispatching events in process")
		c.useInProcessBus()
	case cfg.RabbitMQURL == "":
		c.Close()
		return nil, fmt.Errorf("RABBITMQ_URL is required outside development")
	default:
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			if !cfg.IsDevelopment() {
				c.Close()
				return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			logger.Warn("RabbitMQ not available, dispatching events in process", "error", err)
			c.useInProcessBus()
		} else {
			c.EventPublisher = publisher
		}
	}

	if err := c.wire(NewPostgresRepositoryFactory(pool)); err != nil {
		c.Close()
		return nil, err
	}

	logger.Info("container initialized", "driver", c.DBDriver.String(), "provider", cfg.PaymentProvider)
	return c, nil
}

// NewLocalContainer creates a container for local mode with SQLite.
// It needs no PostgreSQL, Redis or RabbitMQ: leases are held in memory and
// events are dispatched in process.
func NewLocalContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := newBaseContainer(cfg, logger)

	db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	c.SQLiteDB = db
	c.DBDriver = database.DriverSQLite
	c.Health.Register("database", observability.DatabaseHealthChecker(db.PingContext))

	logger.Debug("running SQLite migrations")
	if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	c.Locker = lock.NewMemoryLocker()
	c.useInProcessBus()

	if err := c.wire(NewSQLiteRepositoryFactory(db)); err != nil {
		c.Close()
		return nil, err
	}

	logger.Debug("local mode container initialized", "database", cfg.SQLitePath, "driver", "sqlite")
	return c, nil
}

func newBaseContainer(cfg *config.Config, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	return &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
	}
}

func (c *Container) useInProcessBus() {
	bus := eventbus.NewInProcessBus(c.Logger)
	bus.Register(subscribers.NewLifecycleSubscriber(c.Logger, c.Metrics))
	c.InProcessEventBus = bus
	c.EventPublisher = bus
}

// wire creates repositories and handlers once the backend is connected.
func (c *Container) wire(factory *RepositoryFactory) error {
	factory.WithLogger(c.Logger)

	var err error
	if c.SubscriptionRepo, err = factory.SubscriptionRepository(); err != nil {
		return fmt.Errorf("failed to create subscription repository: %w", err)
	}
	if c.AttemptRepo, err = factory.AttemptRepository(); err != nil {
		return fmt.Errorf("failed to create billing attempt repository: %w", err)
	}
	if c.OutboxRepo, err = factory.OutboxRepository(); err != nil {
		return fmt.Errorf("failed to create outbox repository: %w", err)
	}
	if c.UnitOfWork, err = factory.UnitOfWork(); err != nil {
		return fmt.Errorf("failed to create unit of work: %w", err)
	}

	if c.PaymentGateway == nil {
		if c.PaymentGateway, err = payment.New(c.Config, c.Logger, c.Metrics); err != nil {
			return fmt.Errorf("failed to create payment gateway: %w", err)
		}
	}

	cfg := c.Config
	repo, outboxRepo, uow := c.SubscriptionRepo, c.OutboxRepo, c.UnitOfWork

	// Create command handlers
	c.CreateSubscriptionHandler = commands.NewCreateSubscriptionHandler(repo, outboxRepo, uow, c.Metrics, cfg.BillingCurrency)
	c.PauseSubscriptionHandler = commands.NewPauseSubscriptionHandler(repo, outboxRepo, uow, c.Metrics)
	c.ResumeSubscriptionHandler = commands.NewResumeSubscriptionHandler(repo, outboxRepo, uow, c.Metrics)
	c.CancelSubscriptionHandler = commands.NewCancelSubscriptionHandler(repo, outboxRepo, uow, c.Metrics)
	c.SkipDeliveryHandler = commands.NewSkipDeliveryHandler(repo, outboxRepo, uow, c.Metrics)
	c.ChangeScheduleHandler = commands.NewChangeScheduleHandler(repo, outboxRepo, uow, c.Metrics)
	c.RunBillingCycleHandler = commands.NewRunBillingCycleHandler(
		repo, c.AttemptRepo, c.PaymentGateway, outboxRepo, uow, c.Locker,
		commands.BillingConfig{
			Concurrency: cfg.BillingConcurrency,
			BatchLimit:  cfg.BillingBatchLimit,
			LockTTL:     cfg.BillingLockTTL,
		},
		c.Logger, c.Metrics,
	)

	// Create query handlers
	c.GetSubscriptionHandler = queries.NewGetSubscriptionHandler(repo)
	c.ListSubscriptionsHandler = queries.NewListSubscriptionsHandler(repo)
	c.ListBillingAttemptsHandler = queries.NewListBillingAttemptsHandler(repo, c.AttemptRepo)
	c.ListBillingFailuresHandler = queries.NewListBillingFailuresHandler(c.AttemptRepo)

	// Create outbox processor
	processorConfig := outbox.DefaultProcessorConfig()
	if cfg.OutboxPollInterval > 0 {
		processorConfig.PollInterval = cfg.OutboxPollInterval
	}
	if cfg.OutboxBatchSize > 0 {
		processorConfig.BatchSize = cfg.OutboxBatchSize
	}
	if cfg.OutboxMaxRetries > 0 {
		processorConfig.MaxRetries = cfg.OutboxMaxRetries
	}
	c.OutboxProcessor = outbox.NewProcessor(outboxRepo, c.EventPublisher, processorConfig, c.Logger, c.Metrics)
	c.BillingScheduler = NewBillingScheduler(c.RunBillingCycleHandler, cfg.BillingInterval, c.Logger)

	return nil
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.BillingScheduler != nil {
		c.BillingScheduler.Stop()
	}
	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Debug("Redis connection closed")
		}
	}

	if c.DB != nil {
		c.DB.Close()
		c.Logger.Debug("PostgreSQL connection closed")
	}

	if c.SQLiteDB != nil {
		if err := c.SQLiteDB.Close(); err != nil {
			c.Logger.Warn("error closing SQLite connection", "error", err)
		} else {
			c.Logger.Debug("SQLite connection closed")
		}
	}
}
