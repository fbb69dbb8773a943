package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/database"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/subscribers"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/internal/subscriptions/infrastructure/payment"
	"github.com/manish0301/subscription-pro/pkg/config"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

func newLocalConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:             "test",
		LocalMode:          true,
		DatabaseDriver:     "sqlite",
		SQLitePath:         filepath.Join(t.TempDir(), "subpro.db"),
		BillingConcurrency: 1,
		BillingBatchLimit:  100,
		BillingLockTTL:     time.Minute,
		BillingCurrency:    "INR",
		PaymentProvider:    config.ProviderMock,
	}
}

func setupLocalContainer(t *testing.T) *Container {
	t.Helper()
	c, err := NewLocalContainer(context.Background(), newLocalConfig(t), observability.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestLocalModeContainer(t *testing.T) {
	c := setupLocalContainer(t)

	assert.Equal(t, database.DriverSQLite, c.DBDriver)
	assert.NotNil(t, c.SQLiteDB)
	assert.Nil(t, c.DB)
	assert.NotNil(t, c.Locker)
	assert.NotNil(t, c.InProcessEventBus)
	assert.Equal(t, len(subscribers.NewLifecycleSubscriber(nil, nil).RoutingKeys()), c.InProcessEventBus.HandlerCount())
	assert.IsType(t, &payment.MockGateway{}, c.PaymentGateway)
	assert.NotNil(t, c.RunBillingCycleHandler)
	assert.NotNil(t, c.ListBillingFailuresHandler)

	health := c.Health.Check(context.Background())
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
}

func TestLocalModeBillingWorkflow(t *testing.T) {
	c := setupLocalContainer(t)
	ctx := context.Background()
	gateway := c.PaymentGateway.(*payment.MockGateway)

	owner := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	create := func(frequency string) *queries.SubscriptionDTO {
		dto, err := c.CreateSubscriptionHandler.Handle(ctx, commands.CreateSubscriptionCommand{
			Actor:     owner,
			ProductID: uuid.New(),
			Frequency: frequency,
			Quantity:  1,
			Amount:    "499.99",
			StartDate: start,
		})
		require.NoError(t, err)
		return dto
	}
	monthly := create("monthly")
	weekly := create("weekly")
	declined := create("weekly")
	gateway.Decline(declined.ID, "insufficient funds")

	asOf := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	result, err := c.RunBillingCycleHandler.Handle(ctx, commands.RunBillingCycleCommand{AsOf: asOf})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, declined.ID, result.Failures[0].SubscriptionID)
	assert.Equal(t, domain.KindGateway, result.Failures[0].Kind)

	got, err := c.GetSubscriptionHandler.Handle(ctx, queries.GetSubscriptionQuery{SubscriptionID: monthly.ID, Actor: owner})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", got.NextDeliveryDate)
	assert.Equal(t, 1, got.DeliveryCount)

	got, err = c.GetSubscriptionHandler.Handle(ctx, queries.GetSubscriptionQuery{SubscriptionID: weekly.ID, Actor: owner})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", got.NextDeliveryDate)

	// Rerunning the same day charges nothing new for the renewed subscriptions.
	again, err := c.RunBillingCycleHandler.Handle(ctx, commands.RunBillingCycleCommand{AsOf: asOf})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Total)

	failures, err := c.ListBillingFailuresHandler.Handle(ctx, queries.ListBillingFailuresQuery{
		Actor: domain.SystemActor(),
		Since: time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, declined.ID, failures[0].SubscriptionID)

	require.NoError(t, c.OutboxProcessor.ProcessOnce(ctx))
	stats := c.OutboxProcessor.GetStats()
	assert.Positive(t, stats.PublishedCount)
	assert.Equal(t, int64(2), c.Metrics.GetCounter(observability.MetricEventsHandled,
		observability.T("routing_key", domain.RoutingKeyBillingFail)))
}

// frozenDueRepo answers FindDue with a list read earlier.
type frozenDueRepo struct {
	domain.Repository
	due []*domain.Subscription
}

func (r frozenDueRepo) FindDue(context.Context, time.Time, int) ([]*domain.Subscription, error) {
	return r.due, nil
}

func TestLocalModeOverlappingRunsChargeOnce(t *testing.T) {
	c := setupLocalContainer(t)
	ctx := context.Background()
	gateway := c.PaymentGateway.(*payment.MockGateway)
	owner := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	_, err := c.CreateSubscriptionHandler.Handle(ctx, commands.CreateSubscriptionCommand{
		Actor:     owner,
		ProductID: uuid.New(),
		Frequency: "weekly",
		Quantity:  1,
		Amount:    "250",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	asOf := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	due, err := c.SubscriptionRepo.FindDue(ctx, asOf, 100)
	require.NoError(t, err)
	require.Len(t, due, 1)

	runA, err := c.RunBillingCycleHandler.Handle(ctx, commands.RunBillingCycleCommand{AsOf: asOf})
	require.NoError(t, err)
	assert.Equal(t, 1, runA.Succeeded)

	late := commands.NewRunBillingCycleHandler(
		frozenDueRepo{Repository: c.SubscriptionRepo, due: due},
		c.AttemptRepo, c.PaymentGateway, c.OutboxRepo, c.UnitOfWork, c.Locker,
		commands.BillingConfig{Concurrency: 1, BatchLimit: 100, LockTTL: time.Minute},
		c.Logger, c.Metrics,
	)
	runB, err := late.Handle(ctx, commands.RunBillingCycleCommand{AsOf: asOf})
	require.NoError(t, err)
	assert.Equal(t, 0, runB.Succeeded)
	assert.Equal(t, 1, runB.Failed)
	require.Len(t, runB.Failures, 1)
	assert.Equal(t, domain.KindConflict, runB.Failures[0].Kind)

	assert.Len(t, gateway.Charges(), 1)

	stored, err := c.SubscriptionRepo.FindByID(ctx, due[0].ID())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.DeliveryCount())
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), stored.NextDeliveryDate())
}

func TestLocalModeLifecycle(t *testing.T) {
	c := setupLocalContainer(t)
	ctx := context.Background()
	owner := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	dto, err := c.CreateSubscriptionHandler.Handle(ctx, commands.CreateSubscriptionCommand{
		Actor:     owner,
		ProductID: uuid.New(),
		Frequency: "weekly",
		Quantity:  2,
		Amount:    "100",
		StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	paused, err := c.PauseSubscriptionHandler.Handle(ctx, commands.PauseSubscriptionCommand{SubscriptionID: dto.ID, Actor: owner})
	require.NoError(t, err)
	assert.Equal(t, "paused", paused.Status)

	_, err = c.PauseSubscriptionHandler.Handle(ctx, commands.PauseSubscriptionCommand{SubscriptionID: dto.ID, Actor: owner})
	assert.Equal(t, domain.KindStateGuard, domain.KindOf(err))

	stranger := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}
	_, err = c.CancelSubscriptionHandler.Handle(ctx, commands.CancelSubscriptionCommand{SubscriptionID: dto.ID, Actor: stranger})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	canceled, err := c.CancelSubscriptionHandler.Handle(ctx, commands.CancelSubscriptionCommand{SubscriptionID: dto.ID, Actor: owner, Reason: "moving"})
	require.NoError(t, err)
	assert.Equal(t, "canceled", canceled.Status)

	list, err := c.ListSubscriptionsHandler.Handle(ctx, queries.ListSubscriptionsQuery{Actor: owner})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "canceled", list[0].Status)
}

func TestOpenSelectsBackend(t *testing.T) {
	cfg := newLocalConfig(t)
	c, err := Open(context.Background(), cfg, observability.NewNopLogger())
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, database.DriverSQLite, c.DBDriver)
}
