package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
)

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintSubscription writes a subscription's details.
func PrintSubscription(w io.Writer, s *queries.SubscriptionDTO) {
	fmt.Fprintf(w, "Subscription %s\n", s.ID)
	fmt.Fprintf(w, "  status:        %s\n", s.Status)
	fmt.Fprintf(w, "  user:          %s\n", s.UserID)
	fmt.Fprintf(w, "  product:       %s x%d\n", s.ProductID, s.Quantity)
	frequency := s.Frequency
	if s.Weekdays != "" {
		frequency += " (" + s.Weekdays + ")"
	}
	fmt.Fprintf(w, "  frequency:     %s\n", frequency)
	fmt.Fprintf(w, "  price:         %s %s\n", s.Amount, s.Currency)
	fmt.Fprintf(w, "  next delivery: %s\n", s.NextDeliveryDate)
	if s.LastDeliveryDate != "" {
		fmt.Fprintf(w, "  last delivery: %s (%d delivered)\n", s.LastDeliveryDate, s.DeliveryCount)
	}
	if s.EndDate != "" {
		fmt.Fprintf(w, "  ends:          %s\n", s.EndDate)
	}
}

// PrintSubscriptionRows writes one line per subscription.
func PrintSubscriptionRows(w io.Writer, subs []*queries.SubscriptionDTO) {
	fmt.Fprintf(w, "Subscriptions (%d):\n", len(subs))
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for _, s := range subs {
		fmt.Fprintf(w, "%s  %-9s %-9s next %s  %s %s\n",
			s.ID.String()[:8], s.Status, s.Frequency, s.NextDeliveryDate, s.Amount, s.Currency)
	}
}

// PrintAttemptRows writes one line per billing attempt.
func PrintAttemptRows(w io.Writer, attempts []queries.BillingAttemptDTO) {
	fmt.Fprintln(w, strings.Repeat("-", 78))
	for _, a := range attempts {
		line := fmt.Sprintf("%s  %s  %-8s due %s  %d %s",
			a.AttemptedAt.Format("2006-01-02 15:04"), a.SubscriptionID.String()[:8], a.Status, a.DueDate, a.AmountMinor, a.Currency)
		if a.TransactionID != "" {
			line += "  txn " + a.TransactionID
		}
		if a.Reason != "" {
			line += "  (" + a.Reason + ")"
		}
		fmt.Fprintln(w, line)
	}
}
