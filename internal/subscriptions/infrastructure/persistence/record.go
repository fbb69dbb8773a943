package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

// subscriptionColumns is the select list shared by both backends.
const subscriptionColumns = `id, user_id, product_id, status, frequency, weekdays, quantity,
	price_amount, price_currency, start_date, next_delivery_date, end_date,
	delivery_count, last_delivery_date, created_at, updated_at`

// subscriptionRecord is a backend-neutral row.
type subscriptionRecord struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	ProductID        uuid.UUID
	Status           string
	Frequency        string
	Weekdays         string
	Quantity         int
	Amount           string
	Currency         string
	StartDate        time.Time
	NextDeliveryDate time.Time
	EndDate          *time.Time
	DeliveryCount    int
	LastDeliveryDate *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// corruptRowError marks a row that was read but no longer decodes into a
// subscription, e.g. an unknown frequency written by an older release.
type corruptRowError struct {
	id  string
	err error
}

func (e *corruptRowError) Error() string {
	return fmt.Sprintf("subscription %s: undecodable row: %v", e.id, e.err)
}

func (e *corruptRowError) Unwrap() error { return e.err }

func corruptRow(id string, err error) error {
	return &corruptRowError{id: id, err: err}
}

// skipCorrupt reports whether err is a corrupt row, logging it when so.
// Batch reads drop such rows so one bad record cannot stall every other
// subscription.
func skipCorrupt(ctx context.Context, logger *slog.Logger, err error) bool {
	var corrupt *corruptRowError
	if !errors.As(err, &corrupt) {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(ctx, "skipping undecodable subscription row",
		"subscription_id", corrupt.id,
		"error", corrupt.err,
	)
	return true
}

func (r subscriptionRecord) toDomain() (*domain.Subscription, error) {
	sub, err := r.decode()
	if err != nil {
		return nil, corruptRow(r.ID.String(), err)
	}
	return sub, nil
}

func (r subscriptionRecord) decode() (*domain.Subscription, error) {
	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return nil, err
	}
	frequency, err := domain.ParseFrequency(r.Frequency)
	if err != nil {
		return nil, err
	}
	weekdays, err := domain.ParseWeekdays(r.Weekdays)
	if err != nil {
		return nil, err
	}
	schedule, err := domain.NewSchedule(frequency, weekdays)
	if err != nil {
		return nil, err
	}
	price, err := domain.ParseMoney(r.Amount, r.Currency)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateSubscription(domain.Snapshot{
		ID:               r.ID,
		UserID:           r.UserID,
		ProductID:        r.ProductID,
		Status:           status,
		Schedule:         schedule,
		Quantity:         r.Quantity,
		Price:            price,
		StartDate:        r.StartDate,
		NextDeliveryDate: r.NextDeliveryDate,
		EndDate:          r.EndDate,
		DeliveryCount:    r.DeliveryCount,
		LastDeliveryDate: r.LastDeliveryDate,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}), nil
}
