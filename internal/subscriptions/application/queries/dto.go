package queries

import (
	"time"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

// SubscriptionDTO is the read model returned by commands and queries.
type SubscriptionDTO struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	ProductID        uuid.UUID `json:"product_id"`
	Status           string    `json:"status"`
	Frequency        string    `json:"frequency"`
	Weekdays         string    `json:"weekdays,omitempty"`
	Quantity         int       `json:"quantity"`
	Amount           string    `json:"amount"`
	Currency         string    `json:"currency"`
	StartDate        string    `json:"start_date"`
	NextDeliveryDate string    `json:"next_delivery_date"`
	EndDate          string    `json:"end_date,omitempty"`
	LastDeliveryDate string    `json:"last_delivery_date,omitempty"`
	DeliveryCount    int       `json:"delivery_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ToSubscriptionDTO maps an aggregate to its read model.
func ToSubscriptionDTO(s *domain.Subscription) *SubscriptionDTO {
	return &SubscriptionDTO{
		ID:               s.ID(),
		UserID:           s.UserID(),
		ProductID:        s.ProductID(),
		Status:           string(s.Status()),
		Frequency:        string(s.Frequency()),
		Weekdays:         domain.FormatWeekdays(s.Schedule().Weekdays()),
		Quantity:         s.Quantity(),
		Amount:           s.Price().Amount().StringFixed(2),
		Currency:         s.Price().Currency(),
		StartDate:        s.StartDate().Format(domain.DateLayout),
		NextDeliveryDate: s.NextDeliveryDate().Format(domain.DateLayout),
		EndDate:          formatOptionalDate(s.EndDate()),
		LastDeliveryDate: formatOptionalDate(s.LastDeliveryDate()),
		DeliveryCount:    s.DeliveryCount(),
		CreatedAt:        s.CreatedAt(),
		UpdatedAt:        s.UpdatedAt(),
	}
}

// BillingAttemptDTO is one ledger row.
type BillingAttemptDTO struct {
	ID             uuid.UUID `json:"id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	AmountMinor    int64     `json:"amount_minor"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	Reference      string    `json:"reference"`
	TransactionID  string    `json:"transaction_id,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	DueDate        string    `json:"due_date"`
	AsOf           string    `json:"as_of"`
	AttemptedAt    time.Time `json:"attempted_at"`
}

func toAttemptDTOs(attempts []*domain.BillingAttempt) []BillingAttemptDTO {
	out := make([]BillingAttemptDTO, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, BillingAttemptDTO{
			ID:             a.ID,
			SubscriptionID: a.SubscriptionID,
			UserID:         a.UserID,
			AmountMinor:    a.AmountMinor,
			Currency:       a.Currency,
			Status:         string(a.Status),
			Reference:      a.Reference,
			TransactionID:  a.TransactionID,
			Reason:         a.Reason,
			DueDate:        a.DueDate.Format(domain.DateLayout),
			AsOf:           a.AsOf.Format(domain.DateLayout),
			AttemptedAt:    a.AttemptedAt,
		})
	}
	return out
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(domain.DateLayout)
}
