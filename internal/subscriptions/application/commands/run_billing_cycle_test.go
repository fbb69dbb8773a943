package commands

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/outbox"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type billingFixture struct {
	repo       *mockRepo
	attempts   *mockAttempts
	gateway    *mockGateway
	outboxRepo *mockOutboxRepo
	uow        *mockUnitOfWork
	metrics    *observability.InMemoryMetrics
	txCtx      context.Context
}

func newBillingFixture() *billingFixture {
	f := &billingFixture{
		repo:       new(mockRepo),
		attempts:   new(mockAttempts),
		gateway:    new(mockGateway),
		outboxRepo: new(mockOutboxRepo),
		uow:        new(mockUnitOfWork),
		metrics:    observability.NewInMemoryMetrics(),
		txCtx:      context.WithValue(context.Background(), "tx", "transaction"),
	}
	f.uow.On("Begin", mock.Anything).Return(f.txCtx, nil)
	f.uow.On("Commit", f.txCtx).Return(nil).Maybe()
	f.uow.On("Rollback", f.txCtx).Return(nil).Maybe()
	return f
}

func (f *billingFixture) handler(locker Locker, concurrency int) *RunBillingCycleHandler {
	return NewRunBillingCycleHandler(f.repo, f.attempts, f.gateway, f.outboxRepo, f.uow, locker,
		BillingConfig{Concurrency: concurrency, BatchLimit: 500, LockTTL: time.Minute}, nil, f.metrics)
}

// stored makes FindByID return each subscription as it is held in memory.
func (f *billingFixture) stored(subs ...*domain.Subscription) {
	for _, sub := range subs {
		f.repo.On("FindByID", mock.Anything, sub.ID()).Return(sub, nil)
	}
}

func attemptWithStatus(status domain.AttemptStatus) any {
	return mock.MatchedBy(func(a *domain.BillingAttempt) bool { return a.Status == status })
}

func routingKey(key string) any {
	return mock.MatchedBy(func(msgs []*outbox.Message) bool {
		return len(msgs) > 0 && msgs[0].RoutingKey == key
	})
}

func TestRunBillingCycleHandler_Success(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	asOf := date("2024-01-31")
	sub := newActiveSubscription(uuid.New())

	f.repo.On("FindDue", ctx, asOf, 500).Return([]*domain.Subscription{sub}, nil)
	f.stored(sub)
	f.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(req domain.ChargeRequest) bool {
		return req.AmountMinor == 49999 &&
			req.Currency == "INR" &&
			req.Reference == fmt.Sprintf("sub_%s_20240131", sub.ID())
	})).Return(domain.ChargeResult{TransactionID: "txn_1"}, nil)
	f.repo.On("ConditionalUpdate", f.txCtx, sub, domain.Precondition{
		Status:           domain.StatusActive,
		NextDeliveryDate: date("2024-01-31"),
	}).Return(true, nil)
	f.outboxRepo.On("SaveBatch", f.txCtx, routingKey(domain.RoutingKeyRenewed)).Return(nil)
	f.attempts.On("Record", mock.Anything, mock.MatchedBy(func(a *domain.BillingAttempt) bool {
		return a.Status == domain.AttemptSucceeded && a.TransactionID == "txn_1"
	})).Return(nil)

	result, err := f.handler(nil, 1).Handle(ctx, RunBillingCycleCommand{AsOf: asOf})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Empty(t, result.Failures)
	assert.Equal(t, "2024-01-31", result.AsOf)

	assert.Equal(t, date("2024-03-01"), sub.NextDeliveryDate())
	assert.Equal(t, 1, sub.DeliveryCount())
	require.NotNil(t, sub.LastDeliveryDate())
	assert.Equal(t, asOf, *sub.LastDeliveryDate())

	assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricBillingCharges, observability.T("status", "success")))
	f.repo.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.outboxRepo.AssertExpectations(t)
	f.attempts.AssertExpectations(t)
}

func TestRunBillingCycleHandler_AdvancesFromCurrentNextDate(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	asOf := date("2024-02-20") // billed three weeks late
	sub := newActiveSubscription(uuid.New())

	f.repo.On("FindDue", ctx, asOf, 500).Return([]*domain.Subscription{sub}, nil)
	f.stored(sub)
	f.gateway.On("Charge", mock.Anything, mock.Anything).Return(domain.ChargeResult{TransactionID: "txn_2"}, nil)
	f.repo.On("ConditionalUpdate", f.txCtx, sub, mock.Anything).Return(true, nil)
	f.outboxRepo.On("SaveBatch", f.txCtx, mock.Anything).Return(nil)
	f.attempts.On("Record", mock.Anything, mock.Anything).Return(nil)

	_, err := f.handler(nil, 1).Handle(ctx, RunBillingCycleCommand{AsOf: asOf})

	require.NoError(t, err)
	assert.Equal(t, date("2024-03-01"), sub.NextDeliveryDate())
	assert.Equal(t, asOf, *sub.LastDeliveryDate())
}

func TestRunBillingCycleHandler_GatewayFailure(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	asOf := date("2024-01-31")
	sub := newActiveSubscription(uuid.New())

	f.repo.On("FindDue", ctx, asOf, 500).Return([]*domain.Subscription{sub}, nil)
	f.stored(sub)
	f.gateway.On("Charge", mock.Anything, mock.Anything).Return(domain.ChargeResult{}, errors.New("card declined"))
	f.outboxRepo.On("SaveBatch", f.txCtx, routingKey(domain.RoutingKeyBillingFail)).Return(nil)
	f.attempts.On("Record", mock.Anything, attemptWithStatus(domain.AttemptFailed)).Return(nil)

	result, err := f.handler(nil, 1).Handle(ctx, RunBillingCycleCommand{AsOf: asOf})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, sub.ID(), result.Failures[0].SubscriptionID)
	assert.Equal(t, domain.KindGateway, result.Failures[0].Kind)
	assert.Contains(t, result.Failures[0].Reason, "card declined")

	assert.Equal(t, date("2024-01-31"), sub.NextDeliveryDate(), "a failed charge never advances")
	assert.Equal(t, 0, sub.DeliveryCount())
	f.repo.AssertNotCalled(t, "ConditionalUpdate", mock.Anything, mock.Anything, mock.Anything)
	f.outboxRepo.AssertExpectations(t)
	f.attempts.AssertExpectations(t)
}

func TestRunBillingCycleHandler_LostRaceIsConflict(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	asOf := date("2024-01-31")
	sub := newActiveSubscription(uuid.New())

	f.repo.On("FindDue", ctx, asOf, 500).Return([]*domain.Subscription{sub}, nil)
	f.stored(sub)
	f.gateway.On("Charge", mock.Anything, mock.Anything).Return(domain.ChargeResult{TransactionID: "txn_3"}, nil)
	f.repo.On("ConditionalUpdate", f.txCtx, sub, mock.Anything).Return(false, nil)
	f.attempts.On("Record", mock.Anything, attemptWithStatus(domain.AttemptConflict)).Return(nil)

	result, err := f.handler(nil, 1).Handle(ctx, RunBillingCycleCommand{AsOf: asOf})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, domain.KindConflict, result.Failures[0].Kind)
	f.outboxRepo.AssertNotCalled(t, "SaveBatch", mock.Anything, mock.Anything)
}

func TestRunBillingCycleHandler_StoreFailureAbortsRun(t *testing.T) {
	t.Run("due query fails", func(t *testing.T) {
		f := newBillingFixture()
		ctx := context.Background()
		asOf := date("2024-01-31")

		f.repo.On("FindDue", ctx, asOf, 500).Return(nil, errors.New("connection refused"))

		result, err := f.handler(nil, 1).Handle(ctx, RunBillingCycleCommand{AsOf: asOf})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))
		f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	})

	t.Run("conditional update fails", func(t *testing.T) {
		f := newBillingFixture()
		ctx := context.Background()
		asOf := date("2024-01-31")
		sub := newActiveSubscription(uuid.New())

		f.repo.On("FindDue", ctx, asOf, 500).Return([]*domain.Subscription{sub}, nil)
	f.stored(sub)
		f.gateway.On("Charge", mock.Anything, mock.Anything).Return(domain.ChargeResult{TransactionID: "txn_4"}, nil)
		f.repo.On("ConditionalUpdate", f.txCtx, sub, mock.Anything).Return(false, errors.New("connection reset"))

		result, err := f.handler(nil, 1).Handle(ctx, RunBillingCycleCommand{AsOf: asOf})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))
		f.attempts.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	})
}

func TestRunBillingCycleHandler_LeaseHeldElsewhere(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	asOf := date("2024-01-31")
	sub := newActiveSubscription(uuid.New())
	locker := new(mockLocker)

	f.repo.On("FindDue", ctx, asOf, 500).Return([]*domain.Subscription{sub}, nil)
	f.stored(sub)
	locker.On("TryLock", mock.Anything, "billing:"+sub.ID().String(), time.Minute).Return(false, nil)
	f.attempts.On("Record", mock.Anything, attemptWithStatus(domain.AttemptConflict)).Return(nil)

	result, err := f.handler(locker, 1).Handle(ctx, RunBillingCycleCommand{AsOf: asOf})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, domain.KindConflict, result.Failures[0].Kind)
	f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	locker.AssertExpectations(t)
}

func TestRunBillingCycleHandler_LeaseStoreDownStillBills(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	asOf := date("2024-01-31")
	sub := newActiveSubscription(uuid.New())
	locker := new(mockLocker)

	f.repo.On("FindDue", ctx, asOf, 500).Return([]*domain.Subscription{sub}, nil)
	f.stored(sub)
	locker.On("TryLock", mock.Anything, mock.Anything, mock.Anything).Return(false, errors.New("redis down"))
	f.gateway.On("Charge", mock.Anything, mock.Anything).Return(domain.ChargeResult{TransactionID: "txn_5"}, nil)
	f.repo.On("ConditionalUpdate", f.txCtx, sub, mock.Anything).Return(true, nil)
	f.outboxRepo.On("SaveBatch", f.txCtx, mock.Anything).Return(nil)
	f.attempts.On("Record", mock.Anything, mock.Anything).Return(nil)

	result, err := f.handler(locker, 1).Handle(ctx, RunBillingCycleCommand{AsOf: asOf})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
}

func TestRunBillingCycleHandler_LedgerFailureIsNotFatal(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	asOf := date("2024-01-31")
	sub := newActiveSubscription(uuid.New())

	f.repo.On("FindDue", ctx, asOf, 500).Return([]*domain.Subscription{sub}, nil)
	f.stored(sub)
	f.gateway.On("Charge", mock.Anything, mock.Anything).Return(domain.ChargeResult{TransactionID: "txn_6"}, nil)
	f.repo.On("ConditionalUpdate", f.txCtx, sub, mock.Anything).Return(true, nil)
	f.outboxRepo.On("SaveBatch", f.txCtx, mock.Anything).Return(nil)
	f.attempts.On("Record", mock.Anything, mock.Anything).Return(errors.New("ledger offline"))

	result, err := f.handler(nil, 1).Handle(ctx, RunBillingCycleCommand{AsOf: asOf})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
}

func TestRunBillingCycleHandler_MixedBatchConcurrently(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	asOf := date("2024-01-31")

	var subs []*domain.Subscription
	for i := 0; i < 6; i++ {
		subs = append(subs, newActiveSubscription(uuid.New()))
	}
	declined := subs[2]

	f.repo.On("FindDue", ctx, asOf, 10).Return(subs, nil)
	f.stored(subs...)
	f.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(req domain.ChargeRequest) bool {
		return req.SubscriptionID == declined.ID()
	})).Return(domain.ChargeResult{}, domain.ErrPaymentDeclined)
	f.gateway.On("Charge", mock.Anything, mock.Anything).Return(domain.ChargeResult{TransactionID: "txn"}, nil)
	f.repo.On("ConditionalUpdate", f.txCtx, mock.Anything, mock.Anything).Return(true, nil)
	f.outboxRepo.On("SaveBatch", f.txCtx, mock.Anything).Return(nil)
	f.attempts.On("Record", mock.Anything, mock.Anything).Return(nil)

	result, err := f.handler(nil, 4).Handle(ctx, RunBillingCycleCommand{AsOf: asOf, Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, 6, result.Total)
	assert.Equal(t, 5, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, declined.ID(), result.Failures[0].SubscriptionID)
	assert.Equal(t, domain.KindGateway, result.Failures[0].Kind)
	assert.Equal(t, "payment declined", result.Failures[0].Reason)

	for _, sub := range subs {
		if sub == declined {
			assert.Equal(t, 0, sub.DeliveryCount())
			continue
		}
		assert.Equal(t, 1, sub.DeliveryCount())
	}
}

func TestRunBillingCycleHandler_StaleDueListIsNotCharged(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	asOf := date("2024-01-31")
	stale := newActiveSubscription(uuid.New())

	// Another run billed this cycle after the due list was read.
	current := domain.RehydrateSubscription(stale.Snapshot())
	require.NoError(t, current.RecordDelivery(asOf, domain.ChargeResult{TransactionID: "txn_other"}, current.Price()))
	current.PullDomainEvents()

	f.repo.On("FindDue", ctx, asOf, 500).Return([]*domain.Subscription{stale}, nil)
	f.repo.On("FindByID", mock.Anything, stale.ID()).Return(current, nil)
	f.attempts.On("Record", mock.Anything, attemptWithStatus(domain.AttemptConflict)).Return(nil)
	locker := new(mockLocker)
	locker.On("TryLock", mock.Anything, "billing:"+stale.ID().String(), time.Minute).Return(true, nil)

	result, err := f.handler(locker, 1).Handle(ctx, RunBillingCycleCommand{AsOf: asOf})

	require.NoError(t, err)
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, domain.KindConflict, result.Failures[0].Kind)
	f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "ConditionalUpdate", mock.Anything, mock.Anything, mock.Anything)
	locker.AssertExpectations(t)
}

func TestRunBillingCycleHandler_RereadFailures(t *testing.T) {
	t.Run("subscription gone", func(t *testing.T) {
		f := newBillingFixture()
		ctx := context.Background()
		asOf := date("2024-01-31")
		sub := newActiveSubscription(uuid.New())

		f.repo.On("FindDue", ctx, asOf, 500).Return([]*domain.Subscription{sub}, nil)
		f.repo.On("FindByID", mock.Anything, sub.ID()).Return(nil, domain.ErrSubscriptionNotFound)
		f.attempts.On("Record", mock.Anything, attemptWithStatus(domain.AttemptConflict)).Return(nil)

		result, err := f.handler(nil, 1).Handle(ctx, RunBillingCycleCommand{AsOf: asOf})

		require.NoError(t, err)
		assert.Equal(t, 1, result.Failed)
		f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	})

	t.Run("store down aborts", func(t *testing.T) {
		f := newBillingFixture()
		ctx := context.Background()
		asOf := date("2024-01-31")
		sub := newActiveSubscription(uuid.New())

		f.repo.On("FindDue", ctx, asOf, 500).Return([]*domain.Subscription{sub}, nil)
		f.repo.On("FindByID", mock.Anything, sub.ID()).Return(nil, errors.New("connection reset"))

		result, err := f.handler(nil, 1).Handle(ctx, RunBillingCycleCommand{AsOf: asOf})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, domain.KindUnavailable, domain.KindOf(err))
		f.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	})
}

func TestRunBillingCycleHandler_NothingDue(t *testing.T) {
	f := newBillingFixture()
	ctx := context.Background()
	asOf := date("2024-01-15")

	f.repo.On("FindDue", ctx, asOf, 500).Return([]*domain.Subscription{}, nil)

	result, err := f.handler(nil, 1).Handle(ctx, RunBillingCycleCommand{AsOf: asOf})

	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	assert.NotNil(t, result.Failures)
}
