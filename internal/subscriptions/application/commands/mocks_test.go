package commands

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/outbox"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Save(ctx context.Context, s *domain.Subscription) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *mockRepo) FindByUserID(ctx context.Context, userID uuid.UUID, status *domain.Status) ([]*domain.Subscription, error) {
	args := m.Called(ctx, userID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockRepo) FindDue(ctx context.Context, asOf time.Time, limit int) ([]*domain.Subscription, error) {
	args := m.Called(ctx, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockRepo) ConditionalUpdate(ctx context.Context, s *domain.Subscription, expected domain.Precondition) (bool, error) {
	args := m.Called(ctx, s, expected)
	return args.Bool(0), args.Error(1)
}

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	return nil, args.Error(1)
}

func (m *mockOutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	return m.Called(ctx, id, errMsg, nextRetryAt).Error(0)
}

func (m *mockOutboxRepo) MarkDead(ctx context.Context, id int64, reason string) error {
	return m.Called(ctx, id, reason).Error(0)
}

func (m *mockOutboxRepo) DeleteOld(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return 0, args.Error(1)
}

type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Charge(ctx context.Context, req domain.ChargeRequest) (domain.ChargeResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.ChargeResult), args.Error(1)
}

type mockAttempts struct {
	mock.Mock
}

func (m *mockAttempts) Record(ctx context.Context, attempt *domain.BillingAttempt) error {
	return m.Called(ctx, attempt).Error(0)
}

func (m *mockAttempts) ListBySubscription(ctx context.Context, id uuid.UUID, limit int) ([]*domain.BillingAttempt, error) {
	args := m.Called(ctx, id, limit)
	return nil, args.Error(1)
}

func (m *mockAttempts) ListFailed(ctx context.Context, since time.Time, limit int) ([]*domain.BillingAttempt, error) {
	args := m.Called(ctx, since, limit)
	return nil, args.Error(1)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	args := m.Called(ctx, key, ttl)
	unlock := func(context.Context) error { return nil }
	return unlock, args.Bool(0), args.Error(1)
}

func date(s string) time.Time {
	t, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// newActiveSubscription returns a monthly subscription started on 2024-01-01,
// next due 2024-01-31, with no pending events.
func newActiveSubscription(userID uuid.UUID) *domain.Subscription {
	price, err := domain.ParseMoney("499.99", "INR")
	if err != nil {
		panic(err)
	}
	sub, err := domain.NewSubscription(domain.NewSubscriptionParams{
		UserID:    userID,
		ProductID: uuid.New(),
		Schedule:  domain.MustSchedule(domain.FrequencyMonthly),
		Quantity:  1,
		Price:     price,
		StartDate: date("2024-01-01"),
	})
	if err != nil {
		panic(err)
	}
	sub.PullDomainEvents()
	return sub
}
