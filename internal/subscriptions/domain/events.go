package domain

import (
	"time"

	"github.com/google/uuid"
	sharedDomain "github.com/manish0301/subscription-pro/internal/shared/domain"
)

const aggregateType = "Subscription"

// Routing keys for subscription events.
const (
	RoutingKeyCreated     = "subscriptions.subscription.created"
	RoutingKeyPaused      = "subscriptions.subscription.paused"
	RoutingKeyResumed     = "subscriptions.subscription.resumed"
	RoutingKeyCanceled    = "subscriptions.subscription.canceled"
	RoutingKeyCompleted   = "subscriptions.subscription.completed"
	RoutingKeySkipped     = "subscriptions.subscription.skipped"
	RoutingKeyRenewed     = "subscriptions.subscription.renewed"
	RoutingKeyRescheduled = "subscriptions.subscription.rescheduled"
	RoutingKeyBillingFail = "subscriptions.billing.failed"
)

// SubscriptionCreated is emitted when a subscription is created.
type SubscriptionCreated struct {
	sharedDomain.BaseEvent
	SubscriptionID   uuid.UUID `json:"subscription_id"`
	UserID           uuid.UUID `json:"user_id"`
	ProductID        uuid.UUID `json:"product_id"`
	Frequency        string    `json:"frequency"`
	Quantity         int       `json:"quantity"`
	Amount           string    `json:"amount"`
	Currency         string    `json:"currency"`
	NextDeliveryDate string    `json:"next_delivery_date"`
}

// NewSubscriptionCreated creates a SubscriptionCreated event.
func NewSubscriptionCreated(s *Subscription) *SubscriptionCreated {
	return &SubscriptionCreated{
		BaseEvent:        sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeyCreated),
		SubscriptionID:   s.ID(),
		UserID:           s.UserID(),
		ProductID:        s.ProductID(),
		Frequency:        string(s.Frequency()),
		Quantity:         s.Quantity(),
		Amount:           s.Price().Amount().StringFixed(2),
		Currency:         s.Price().Currency(),
		NextDeliveryDate: s.NextDeliveryDate().Format(DateLayout),
	}
}

// SubscriptionStatusChanged is emitted for pause, resume, cancel and completion.
type SubscriptionStatusChanged struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	From           Status    `json:"from"`
	To             Status    `json:"to"`
	Reason         string    `json:"reason,omitempty"`
}

func newStatusChanged(s *Subscription, routingKey string, from Status) *SubscriptionStatusChanged {
	return &SubscriptionStatusChanged{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, routingKey),
		SubscriptionID: s.ID(),
		UserID:         s.UserID(),
		From:           from,
		To:             s.Status(),
	}
}

// SubscriptionSkipped is emitted when a delivery is skipped.
type SubscriptionSkipped struct {
	sharedDomain.BaseEvent
	SubscriptionID   uuid.UUID `json:"subscription_id"`
	UserID           uuid.UUID `json:"user_id"`
	SkippedDate      string    `json:"skipped_date"`
	NextDeliveryDate string    `json:"next_delivery_date"`
}

// NewSubscriptionSkipped creates a SubscriptionSkipped event.
func NewSubscriptionSkipped(s *Subscription, skipped time.Time) *SubscriptionSkipped {
	return &SubscriptionSkipped{
		BaseEvent:        sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeySkipped),
		SubscriptionID:   s.ID(),
		UserID:           s.UserID(),
		SkippedDate:      skipped.Format(DateLayout),
		NextDeliveryDate: s.NextDeliveryDate().Format(DateLayout),
	}
}

// SubscriptionRenewed is emitted after a successful billing cycle.
type SubscriptionRenewed struct {
	sharedDomain.BaseEvent
	SubscriptionID   uuid.UUID `json:"subscription_id"`
	UserID           uuid.UUID `json:"user_id"`
	BilledDate       string    `json:"billed_date"`
	NextDeliveryDate string    `json:"next_delivery_date"`
	DeliveryCount    int       `json:"delivery_count"`
	AmountMinor      int64     `json:"amount_minor"`
	Currency         string    `json:"currency"`
	TransactionID    string    `json:"transaction_id"`
}

// NewSubscriptionRenewed creates a SubscriptionRenewed event.
func NewSubscriptionRenewed(s *Subscription, billed time.Time, charge ChargeResult, amount Money) *SubscriptionRenewed {
	return &SubscriptionRenewed{
		BaseEvent:        sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeyRenewed),
		SubscriptionID:   s.ID(),
		UserID:           s.UserID(),
		BilledDate:       billed.Format(DateLayout),
		NextDeliveryDate: s.NextDeliveryDate().Format(DateLayout),
		DeliveryCount:    s.DeliveryCount(),
		AmountMinor:      amount.MinorUnits(),
		Currency:         amount.Currency(),
		TransactionID:    charge.TransactionID,
	}
}

// SubscriptionRescheduled is emitted when the schedule changes.
type SubscriptionRescheduled struct {
	sharedDomain.BaseEvent
	SubscriptionID   uuid.UUID `json:"subscription_id"`
	UserID           uuid.UUID `json:"user_id"`
	FromFrequency    string    `json:"from_frequency"`
	ToFrequency      string    `json:"to_frequency"`
	Weekdays         string    `json:"weekdays,omitempty"`
	NextDeliveryDate string    `json:"next_delivery_date"`
}

// NewSubscriptionRescheduled creates a SubscriptionRescheduled event.
func NewSubscriptionRescheduled(s *Subscription, from Frequency) *SubscriptionRescheduled {
	return &SubscriptionRescheduled{
		BaseEvent:        sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeyRescheduled),
		SubscriptionID:   s.ID(),
		UserID:           s.UserID(),
		FromFrequency:    string(from),
		ToFrequency:      string(s.Frequency()),
		Weekdays:         FormatWeekdays(s.Schedule().Weekdays()),
		NextDeliveryDate: s.NextDeliveryDate().Format(DateLayout),
	}
}

// BillingFailed is emitted when a due subscription could not be charged.
type BillingFailed struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	Reference      string    `json:"reference"`
	Reason         string    `json:"reason"`
	AsOf           string    `json:"as_of"`
	DueDate        string    `json:"due_date"`
}

// NewBillingFailed creates a BillingFailed event.
func NewBillingFailed(s *Subscription, reference, reason string, asOf time.Time) *BillingFailed {
	return &BillingFailed{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, RoutingKeyBillingFail),
		SubscriptionID: s.ID(),
		UserID:         s.UserID(),
		Reference:      reference,
		Reason:         reason,
		AsOf:           DateOf(asOf).Format(DateLayout),
		DueDate:        s.NextDeliveryDate().Format(DateLayout),
	}
}
