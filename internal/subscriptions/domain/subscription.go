package domain

import (
	"time"

	"github.com/google/uuid"
	sharedDomain "github.com/manish0301/subscription-pro/internal/shared/domain"
)

// Subscription is a recurring delivery of a product billed once per cycle.
type Subscription struct {
	sharedDomain.BaseAggregateRoot
	userID           uuid.UUID
	productID        uuid.UUID
	status           Status
	schedule         Schedule
	quantity         int
	price            Money
	startDate        time.Time
	nextDeliveryDate time.Time
	endDate          *time.Time
	deliveryCount    int
	lastDeliveryDate *time.Time
}

// NewSubscriptionParams holds the inputs for NewSubscription.
type NewSubscriptionParams struct {
	UserID            uuid.UUID
	ProductID         uuid.UUID
	Schedule          Schedule
	Quantity          int
	Price             Money
	StartDate         time.Time
	FirstDeliveryDate *time.Time
	EndDate           *time.Time
}

// NewSubscription creates an active subscription. The first delivery is one
// period after the start date unless an explicit first delivery date is given.
func NewSubscription(p NewSubscriptionParams) (*Subscription, error) {
	if p.UserID == uuid.Nil {
		return nil, ErrMissingUser
	}
	if p.ProductID == uuid.Nil {
		return nil, ErrMissingProduct
	}
	if !p.Schedule.Frequency().IsValid() {
		return nil, ErrInvalidFrequency
	}
	if p.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if p.Price.Currency() == "" {
		return nil, ErrInvalidCurrency
	}
	if p.StartDate.IsZero() {
		return nil, ErrMissingStartDate
	}

	start := DateOf(p.StartDate)
	next := p.Schedule.Next(start)
	if p.FirstDeliveryDate != nil {
		first := DateOf(*p.FirstDeliveryDate)
		if first.Before(start) {
			return nil, ErrFirstDeliveryBeforeStart
		}
		next = first
	}

	var end *time.Time
	if p.EndDate != nil {
		e := DateOf(*p.EndDate)
		if e.Before(start) {
			return nil, ErrEndBeforeStart
		}
		end = &e
	}

	s := &Subscription{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		userID:            p.UserID,
		productID:         p.ProductID,
		status:            StatusActive,
		schedule:          p.Schedule,
		quantity:          p.Quantity,
		price:             p.Price,
		startDate:         start,
		nextDeliveryDate:  next,
		endDate:           end,
	}
	s.AddDomainEvent(NewSubscriptionCreated(s))

	return s, nil
}

// Snapshot is the persisted form of a subscription.
type Snapshot struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	ProductID        uuid.UUID
	Status           Status
	Schedule         Schedule
	Quantity         int
	Price            Money
	StartDate        time.Time
	NextDeliveryDate time.Time
	EndDate          *time.Time
	DeliveryCount    int
	LastDeliveryDate *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// RehydrateSubscription recreates a subscription from persisted state.
func RehydrateSubscription(s Snapshot) *Subscription {
	entity := sharedDomain.RehydrateBaseEntity(s.ID, s.CreatedAt, s.UpdatedAt)
	return &Subscription{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(entity),
		userID:            s.UserID,
		productID:         s.ProductID,
		status:            s.Status,
		schedule:          s.Schedule,
		quantity:          s.Quantity,
		price:             s.Price,
		startDate:         DateOf(s.StartDate),
		nextDeliveryDate:  DateOf(s.NextDeliveryDate),
		endDate:           datePtr(s.EndDate),
		deliveryCount:     s.DeliveryCount,
		lastDeliveryDate:  datePtr(s.LastDeliveryDate),
	}
}

// Snapshot returns the persisted form of the subscription.
func (s *Subscription) Snapshot() Snapshot {
	return Snapshot{
		ID:               s.ID(),
		UserID:           s.userID,
		ProductID:        s.productID,
		Status:           s.status,
		Schedule:         s.schedule,
		Quantity:         s.quantity,
		Price:            s.price,
		StartDate:        s.startDate,
		NextDeliveryDate: s.nextDeliveryDate,
		EndDate:          datePtr(s.endDate),
		DeliveryCount:    s.deliveryCount,
		LastDeliveryDate: datePtr(s.lastDeliveryDate),
		CreatedAt:        s.CreatedAt(),
		UpdatedAt:        s.UpdatedAt(),
	}
}

// Getters
func (s *Subscription) UserID() uuid.UUID            { return s.userID }
func (s *Subscription) ProductID() uuid.UUID         { return s.productID }
func (s *Subscription) Status() Status               { return s.status }
func (s *Subscription) Schedule() Schedule           { return s.schedule }
func (s *Subscription) Frequency() Frequency         { return s.schedule.Frequency() }
func (s *Subscription) Quantity() int                { return s.quantity }
func (s *Subscription) Price() Money                 { return s.price }
func (s *Subscription) StartDate() time.Time         { return s.startDate }
func (s *Subscription) NextDeliveryDate() time.Time  { return s.nextDeliveryDate }
func (s *Subscription) EndDate() *time.Time          { return datePtr(s.endDate) }
func (s *Subscription) DeliveryCount() int           { return s.deliveryCount }
func (s *Subscription) LastDeliveryDate() *time.Time { return datePtr(s.lastDeliveryDate) }

// Precondition captures the state a conditional update must still find in
// storage for the write to apply.
type Precondition struct {
	Status           Status
	NextDeliveryDate time.Time
}

// Equal reports whether both preconditions expect the same stored state.
func (p Precondition) Equal(o Precondition) bool {
	return p.Status == o.Status && p.NextDeliveryDate.Equal(o.NextDeliveryDate)
}

// Precondition returns the current status and next delivery date.
func (s *Subscription) Precondition() Precondition {
	return Precondition{Status: s.status, NextDeliveryDate: s.nextDeliveryDate}
}

// IsDue reports whether the subscription should be billed on asOf.
func (s *Subscription) IsDue(asOf time.Time) bool {
	return s.status == StatusActive && !s.nextDeliveryDate.After(DateOf(asOf))
}

// Pause moves an active subscription to paused.
func (s *Subscription) Pause() error {
	if s.status != StatusActive {
		return ErrCannotPause
	}
	s.status = StatusPaused
	s.Touch()
	s.AddDomainEvent(newStatusChanged(s, RoutingKeyPaused, StatusActive))
	return nil
}

// Resume moves a paused subscription back to active. The next delivery
// date is left as it was.
func (s *Subscription) Resume() error {
	if s.status != StatusPaused {
		return ErrCannotResume
	}
	s.status = StatusActive
	s.Touch()
	s.AddDomainEvent(newStatusChanged(s, RoutingKeyResumed, StatusPaused))
	return nil
}

// Cancel ends an active or paused subscription permanently.
func (s *Subscription) Cancel(reason string) error {
	if s.status.IsTerminal() {
		return ErrTerminal
	}
	previous := s.status
	s.status = StatusCanceled
	s.Touch()
	event := newStatusChanged(s, RoutingKeyCanceled, previous)
	event.Reason = reason
	s.AddDomainEvent(event)
	return nil
}

// Skip advances the next delivery by one period without charging.
func (s *Subscription) Skip() error {
	if s.status != StatusActive {
		return ErrCannotSkip
	}
	skipped := s.nextDeliveryDate
	s.nextDeliveryDate = s.schedule.Next(skipped)
	s.Touch()
	s.AddDomainEvent(NewSubscriptionSkipped(s, skipped))
	s.completeIfEnded()
	return nil
}

// RecordDelivery applies a successful charge for the cycle due on the
// current next delivery date: the schedule advances from that date, not
// from asOf.
func (s *Subscription) RecordDelivery(asOf time.Time, charge ChargeResult, amount Money) error {
	if s.status != StatusActive {
		return ErrNotBillable
	}
	if !s.IsDue(asOf) {
		return ErrNotDue
	}

	billed := s.nextDeliveryDate
	delivered := DateOf(asOf)
	s.nextDeliveryDate = s.schedule.Next(billed)
	s.deliveryCount++
	s.lastDeliveryDate = &delivered
	s.Touch()
	s.AddDomainEvent(NewSubscriptionRenewed(s, billed, charge, amount))
	s.completeIfEnded()
	return nil
}

// ChangeSchedule switches to a new schedule and recomputes the next delivery
// from the last delivery, or from the start date if nothing was delivered yet.
// A reference before today is replaced by today, so the new next delivery is
// never already overdue.
func (s *Subscription) ChangeSchedule(schedule Schedule, today time.Time) error {
	if s.status.IsTerminal() {
		return ErrTerminal
	}
	if s.schedule.Equal(schedule) {
		return ErrScheduleUnchanged
	}

	previous := s.schedule.Frequency()
	reference := s.startDate
	if s.lastDeliveryDate != nil {
		reference = *s.lastDeliveryDate
	}
	if today = DateOf(today); reference.Before(today) {
		reference = today
	}
	s.schedule = schedule
	s.nextDeliveryDate = schedule.Next(reference)
	s.Touch()
	s.AddDomainEvent(NewSubscriptionRescheduled(s, previous))
	return nil
}

// RecordBillingFailure raises a BillingFailed event. The subscription state
// is unchanged so the cycle is retried by the next run.
func (s *Subscription) RecordBillingFailure(reference, reason string, asOf time.Time) {
	s.AddDomainEvent(NewBillingFailed(s, reference, reason, asOf))
}

// completeIfEnded finishes a subscription whose next delivery falls after its end date.
func (s *Subscription) completeIfEnded() {
	if s.endDate == nil || s.status != StatusActive || !s.nextDeliveryDate.After(*s.endDate) {
		return
	}
	s.status = StatusCompleted
	s.AddDomainEvent(newStatusChanged(s, RoutingKeyCompleted, StatusActive))
}

func datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := DateOf(*t)
	return &d
}
