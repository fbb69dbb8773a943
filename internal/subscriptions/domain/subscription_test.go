package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscription(t *testing.T, frequency Frequency, start string) *Subscription {
	t.Helper()
	price, err := ParseMoney("499.50", "INR")
	require.NoError(t, err)

	s, err := NewSubscription(NewSubscriptionParams{
		UserID:    uuid.New(),
		ProductID: uuid.New(),
		Schedule:  MustSchedule(frequency),
		Quantity:  2,
		Price:     price,
		StartDate: date(t, start),
	})
	require.NoError(t, err)
	s.PullDomainEvents()
	return s
}

func routingKeys(s *Subscription) []string {
	var keys []string
	for _, e := range s.PullDomainEvents() {
		keys = append(keys, e.RoutingKey())
	}
	return keys
}

func TestNewSubscription(t *testing.T) {
	price, _ := ParseMoney("100", "INR")
	valid := NewSubscriptionParams{
		UserID:    uuid.New(),
		ProductID: uuid.New(),
		Schedule:  MustSchedule(FrequencyMonthly),
		Quantity:  1,
		Price:     price,
		StartDate: date(t, "2024-01-01"),
	}

	t.Run("computes first delivery from start and frequency", func(t *testing.T) {
		s, err := NewSubscription(valid)
		require.NoError(t, err)

		assert.Equal(t, StatusActive, s.Status())
		assert.Equal(t, date(t, "2024-01-31"), s.NextDeliveryDate())
		assert.Equal(t, 0, s.DeliveryCount())
		assert.Nil(t, s.LastDeliveryDate())

		events := s.DomainEvents()
		require.Len(t, events, 1)
		created, ok := events[0].(*SubscriptionCreated)
		require.True(t, ok)
		assert.Equal(t, "2024-01-31", created.NextDeliveryDate)
		assert.Equal(t, "100.00", created.Amount)
	})

	t.Run("accepts an explicit first delivery date", func(t *testing.T) {
		p := valid
		first := date(t, "2024-01-01")
		p.FirstDeliveryDate = &first

		s, err := NewSubscription(p)
		require.NoError(t, err)
		assert.Equal(t, first, s.NextDeliveryDate())
	})

	tests := []struct {
		name   string
		mutate func(p *NewSubscriptionParams)
		want   error
	}{
		{"missing user", func(p *NewSubscriptionParams) { p.UserID = uuid.Nil }, ErrMissingUser},
		{"missing product", func(p *NewSubscriptionParams) { p.ProductID = uuid.Nil }, ErrMissingProduct},
		{"missing schedule", func(p *NewSubscriptionParams) { p.Schedule = Schedule{} }, ErrInvalidFrequency},
		{"zero quantity", func(p *NewSubscriptionParams) { p.Quantity = 0 }, ErrInvalidQuantity},
		{"missing price", func(p *NewSubscriptionParams) { p.Price = Money{} }, ErrInvalidCurrency},
		{"missing start", func(p *NewSubscriptionParams) { p.StartDate = time.Time{} }, ErrMissingStartDate},
		{"first delivery before start", func(p *NewSubscriptionParams) {
			d := p.StartDate.AddDate(0, 0, -1)
			p.FirstDeliveryDate = &d
		}, ErrFirstDeliveryBeforeStart},
		{"end before start", func(p *NewSubscriptionParams) {
			d := p.StartDate.AddDate(0, 0, -1)
			p.EndDate = &d
		}, ErrEndBeforeStart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)

			_, err := NewSubscription(p)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestSubscription_PauseResume(t *testing.T) {
	s := newTestSubscription(t, FrequencyWeekly, "2024-01-01")
	next := s.NextDeliveryDate()

	require.NoError(t, s.Pause())
	assert.Equal(t, StatusPaused, s.Status())

	err := s.Pause()
	assert.ErrorIs(t, err, ErrCannotPause)
	assert.Equal(t, KindStateGuard, KindOf(err))

	require.NoError(t, s.Resume())
	assert.Equal(t, StatusActive, s.Status())
	assert.Equal(t, next, s.NextDeliveryDate())

	assert.ErrorIs(t, s.Resume(), ErrCannotResume)
	assert.Equal(t, []string{RoutingKeyPaused, RoutingKeyResumed}, routingKeys(s))
}

func TestSubscription_Cancel(t *testing.T) {
	t.Run("from active", func(t *testing.T) {
		s := newTestSubscription(t, FrequencyWeekly, "2024-01-01")

		require.NoError(t, s.Cancel("moving abroad"))
		assert.Equal(t, StatusCanceled, s.Status())

		events := s.PullDomainEvents()
		require.Len(t, events, 1)
		changed := events[0].(*SubscriptionStatusChanged)
		assert.Equal(t, StatusActive, changed.From)
		assert.Equal(t, StatusCanceled, changed.To)
		assert.Equal(t, "moving abroad", changed.Reason)
	})

	t.Run("from paused", func(t *testing.T) {
		s := newTestSubscription(t, FrequencyWeekly, "2024-01-01")
		require.NoError(t, s.Pause())

		require.NoError(t, s.Cancel(""))
		assert.Equal(t, StatusCanceled, s.Status())
	})

	t.Run("canceled is terminal", func(t *testing.T) {
		s := newTestSubscription(t, FrequencyWeekly, "2024-01-01")
		require.NoError(t, s.Cancel(""))

		assert.ErrorIs(t, s.Cancel(""), ErrTerminal)
		assert.ErrorIs(t, s.Pause(), ErrCannotPause)
		assert.ErrorIs(t, s.Resume(), ErrCannotResume)
		assert.ErrorIs(t, s.Skip(), ErrCannotSkip)
		assert.ErrorIs(t, s.ChangeSchedule(MustSchedule(FrequencyDaily), date(t, "2024-01-02")), ErrTerminal)
	})
}

func TestSubscription_Skip(t *testing.T) {
	s := newTestSubscription(t, FrequencyMonthly, "2024-01-01")
	require.Equal(t, date(t, "2024-01-31"), s.NextDeliveryDate())

	require.NoError(t, s.Skip())

	assert.Equal(t, date(t, "2024-03-01"), s.NextDeliveryDate())
	assert.Equal(t, StatusActive, s.Status())
	assert.Equal(t, 0, s.DeliveryCount())

	events := s.PullDomainEvents()
	require.Len(t, events, 1)
	skipped := events[0].(*SubscriptionSkipped)
	assert.Equal(t, "2024-01-31", skipped.SkippedDate)
	assert.Equal(t, "2024-03-01", skipped.NextDeliveryDate)

	require.NoError(t, s.Pause())
	assert.ErrorIs(t, s.Skip(), ErrCannotSkip)
}

func TestSubscription_RecordDelivery(t *testing.T) {
	t.Run("advances from the current next date, not from asOf", func(t *testing.T) {
		s := newTestSubscription(t, FrequencyWeekly, "2024-01-01")
		require.Equal(t, date(t, "2024-01-08"), s.NextDeliveryDate())
		asOf := date(t, "2024-01-10")

		err := s.RecordDelivery(asOf, ChargeResult{TransactionID: "txn_1"}, s.Price())
		require.NoError(t, err)

		assert.Equal(t, date(t, "2024-01-15"), s.NextDeliveryDate())
		assert.Equal(t, 1, s.DeliveryCount())
		require.NotNil(t, s.LastDeliveryDate())
		assert.Equal(t, asOf, *s.LastDeliveryDate())

		events := s.PullDomainEvents()
		require.Len(t, events, 1)
		renewed := events[0].(*SubscriptionRenewed)
		assert.Equal(t, "2024-01-08", renewed.BilledDate)
		assert.Equal(t, int64(49950), renewed.AmountMinor)
		assert.Equal(t, "txn_1", renewed.TransactionID)
	})

	t.Run("rejects subscriptions that are not due", func(t *testing.T) {
		s := newTestSubscription(t, FrequencyWeekly, "2024-01-01")

		err := s.RecordDelivery(date(t, "2024-01-07"), ChargeResult{}, s.Price())
		assert.ErrorIs(t, err, ErrNotDue)
		assert.Equal(t, 0, s.DeliveryCount())
	})

	t.Run("rejects paused subscriptions", func(t *testing.T) {
		s := newTestSubscription(t, FrequencyWeekly, "2024-01-01")
		require.NoError(t, s.Pause())

		err := s.RecordDelivery(date(t, "2024-02-01"), ChargeResult{}, s.Price())
		assert.ErrorIs(t, err, ErrNotBillable)
	})

	t.Run("completes once the next delivery passes the end date", func(t *testing.T) {
		price, _ := ParseMoney("10", "INR")
		end := date(t, "2024-01-20")
		s, err := NewSubscription(NewSubscriptionParams{
			UserID:    uuid.New(),
			ProductID: uuid.New(),
			Schedule:  MustSchedule(FrequencyWeekly),
			Quantity:  1,
			Price:     price,
			StartDate: date(t, "2024-01-01"),
			EndDate:   &end,
		})
		require.NoError(t, err)
		s.PullDomainEvents()

		require.NoError(t, s.RecordDelivery(date(t, "2024-01-08"), ChargeResult{}, price))
		assert.Equal(t, StatusActive, s.Status())

		require.NoError(t, s.RecordDelivery(date(t, "2024-01-15"), ChargeResult{}, price))
		assert.Equal(t, StatusCompleted, s.Status())
		assert.Equal(t, 2, s.DeliveryCount())
		assert.Equal(t, []string{RoutingKeyRenewed, RoutingKeyRenewed, RoutingKeyCompleted}, routingKeys(s))
	})
}

func TestSubscription_ChangeSchedule(t *testing.T) {
	s := newTestSubscription(t, FrequencyMonthly, "2024-01-01")
	require.NoError(t, s.RecordDelivery(date(t, "2024-01-31"), ChargeResult{}, s.Price()))
	s.PullDomainEvents()

	require.NoError(t, s.ChangeSchedule(MustSchedule(FrequencyWeekly), date(t, "2024-01-31")))

	assert.Equal(t, FrequencyWeekly, s.Frequency())
	assert.Equal(t, date(t, "2024-02-07"), s.NextDeliveryDate())
	assert.Equal(t, []string{RoutingKeyRescheduled}, routingKeys(s))

	assert.ErrorIs(t, s.ChangeSchedule(MustSchedule(FrequencyWeekly), date(t, "2024-01-31")), ErrScheduleUnchanged)
}

func TestSubscription_ChangeSchedule_NeverOverdue(t *testing.T) {
	t.Run("never billed, started long ago", func(t *testing.T) {
		s := newTestSubscription(t, FrequencyYearly, "2023-01-01")

		require.NoError(t, s.ChangeSchedule(MustSchedule(FrequencyWeekly), date(t, "2024-05-10")))

		assert.Equal(t, date(t, "2024-05-17"), s.NextDeliveryDate())
		assert.False(t, s.IsDue(date(t, "2024-05-10")))
	})

	t.Run("last delivery long ago", func(t *testing.T) {
		s := newTestSubscription(t, FrequencyMonthly, "2024-01-01")
		require.NoError(t, s.RecordDelivery(date(t, "2024-01-31"), ChargeResult{}, s.Price()))

		require.NoError(t, s.ChangeSchedule(MustSchedule(FrequencyWeekly), date(t, "2024-02-20")))

		assert.Equal(t, date(t, "2024-02-27"), s.NextDeliveryDate())
	})

	t.Run("future start keeps the start as reference", func(t *testing.T) {
		s := newTestSubscription(t, FrequencyMonthly, "2024-06-01")

		require.NoError(t, s.ChangeSchedule(MustSchedule(FrequencyWeekly), date(t, "2024-05-10")))

		assert.Equal(t, date(t, "2024-06-08"), s.NextDeliveryDate())
	})
}

func TestSubscription_IsDue(t *testing.T) {
	s := newTestSubscription(t, FrequencyWeekly, "2024-01-01")

	assert.False(t, s.IsDue(date(t, "2024-01-07")))
	assert.True(t, s.IsDue(date(t, "2024-01-08")))
	assert.True(t, s.IsDue(time.Date(2024, 1, 8, 18, 0, 0, 0, time.UTC)))

	require.NoError(t, s.Pause())
	assert.False(t, s.IsDue(date(t, "2024-02-01")))
}

func TestSubscription_SnapshotRoundTrip(t *testing.T) {
	s := newTestSubscription(t, FrequencyQuarterly, "2024-01-01")
	require.NoError(t, s.RecordDelivery(date(t, "2024-04-01"), ChargeResult{}, s.Price()))

	restored := RehydrateSubscription(s.Snapshot())

	assert.Equal(t, s.ID(), restored.ID())
	assert.Equal(t, s.NextDeliveryDate(), restored.NextDeliveryDate())
	assert.Equal(t, s.DeliveryCount(), restored.DeliveryCount())
	assert.Equal(t, s.Price().MinorUnits(), restored.Price().MinorUnits())
	assert.Empty(t, restored.DomainEvents())
}

func TestActor_CanManage(t *testing.T) {
	s := newTestSubscription(t, FrequencyWeekly, "2024-01-01")

	assert.True(t, Actor{UserID: s.UserID(), Role: RoleUser}.CanManage(s))
	assert.False(t, Actor{UserID: uuid.New(), Role: RoleUser}.CanManage(s))
	assert.False(t, Actor{Role: RoleUser}.CanManage(s))
	assert.True(t, Actor{UserID: uuid.New(), Role: RoleAdmin}.CanManage(s))
	assert.True(t, SystemActor().CanManage(s))
}

func TestChargeReference(t *testing.T) {
	id := uuid.MustParse("6f1f3c4e-8a43-4d8e-9c55-3b8f1f0b1a2c")

	ref := ChargeReference(id, time.Date(2024, 3, 31, 15, 0, 0, 0, time.UTC))

	assert.Equal(t, "sub_6f1f3c4e-8a43-4d8e-9c55-3b8f1f0b1a2c_20240331", ref)
}
