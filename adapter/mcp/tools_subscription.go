package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

type subscriptionCreateInput struct {
	UserID            string `json:"user_id" jsonschema:"required"`
	ProductID         string `json:"product_id" jsonschema:"required"`
	Frequency         string `json:"frequency" jsonschema:"required"`
	Weekdays          string `json:"weekdays,omitempty"`
	Quantity          int    `json:"quantity,omitempty"`
	Amount            string `json:"amount" jsonschema:"required"`
	Currency          string `json:"currency,omitempty"`
	StartDate         string `json:"start_date,omitempty"`
	FirstDeliveryDate string `json:"first_delivery_date,omitempty"`
	EndDate           string `json:"end_date,omitempty"`
}

type subscriptionListInput struct {
	UserID string `json:"user_id,omitempty"`
	Status string `json:"status,omitempty"`
}

type subscriptionIDInput struct {
	SubscriptionID string `json:"subscription_id" jsonschema:"required"`
}

type subscriptionCancelInput struct {
	SubscriptionID string `json:"subscription_id" jsonschema:"required"`
	Reason         string `json:"reason,omitempty"`
}

type subscriptionRescheduleInput struct {
	SubscriptionID string `json:"subscription_id" jsonschema:"required"`
	Frequency      string `json:"frequency" jsonschema:"required"`
	Weekdays       string `json:"weekdays,omitempty"`
}

type subscriptionAttemptsInput struct {
	SubscriptionID string `json:"subscription_id" jsonschema:"required"`
	Limit          int    `json:"limit,omitempty"`
}

func (t *toolset) registerSubscriptionTools(srv *mcp.Server) {
	srv.Tool("subscription_create").
		Description("Create a subscription. Frequency is daily, weekly, monthly, quarterly, yearly or custom; custom needs weekdays such as \"mon,thu\".").
		Handler(t.subscriptionCreate)

	srv.Tool("subscription_get").
		Description("Get a subscription by ID").
		Handler(t.subscriptionGet)

	srv.Tool("subscription_list").
		Description("List a customer's subscriptions, optionally filtered by status").
		Handler(t.subscriptionList)

	srv.Tool("subscription_pause").
		Description("Pause an active subscription").
		Handler(t.subscriptionPause)

	srv.Tool("subscription_resume").
		Description("Resume a paused subscription").
		Handler(t.subscriptionResume)

	srv.Tool("subscription_cancel").
		Description("Cancel a subscription permanently").
		Handler(t.subscriptionCancel)

	srv.Tool("subscription_skip").
		Description("Skip the next delivery of an active subscription without charging for it").
		Handler(t.subscriptionSkip)

	srv.Tool("subscription_reschedule").
		Description("Change a subscription's delivery frequency").
		Handler(t.subscriptionReschedule)

	srv.Tool("subscription_attempts").
		Description("List billing attempts for a subscription, newest first").
		Handler(t.subscriptionAttempts)
}

func (t *toolset) subscriptionCreate(ctx context.Context, input subscriptionCreateInput) (*queries.SubscriptionDTO, error) {
	app := t.app
	if app.CreateSubscriptionHandler == nil {
		return nil, fmt.Errorf("subscription creation %w", errNoDatabase)
	}

	userID, err := parseUUID(input.UserID)
	if err != nil {
		return nil, err
	}
	productID, err := parseUUID(input.ProductID)
	if err != nil {
		return nil, err
	}
	weekdays, err := domain.ParseWeekdays(input.Weekdays)
	if err != nil {
		return nil, err
	}
	start, err := parseDate(input.StartDate, domain.DateOf(time.Now()))
	if err != nil {
		return nil, err
	}
	first, err := parseOptionalDate(input.FirstDeliveryDate)
	if err != nil {
		return nil, err
	}
	end, err := parseOptionalDate(input.EndDate)
	if err != nil {
		return nil, err
	}
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}

	return app.CreateSubscriptionHandler.Handle(ctx, commands.CreateSubscriptionCommand{
		Actor:             app.Actor,
		UserID:            userID,
		ProductID:         productID,
		Frequency:         input.Frequency,
		Weekdays:          weekdays,
		Quantity:          quantity,
		Amount:            input.Amount,
		Currency:          input.Currency,
		StartDate:         start,
		FirstDeliveryDate: first,
		EndDate:           end,
	})
}

func (t *toolset) subscriptionGet(ctx context.Context, input subscriptionIDInput) (*queries.SubscriptionDTO, error) {
	if t.app.GetSubscriptionHandler == nil {
		return nil, fmt.Errorf("subscription lookup %w", errNoDatabase)
	}
	id, err := parseUUID(input.SubscriptionID)
	if err != nil {
		return nil, err
	}
	return t.app.GetSubscriptionHandler.Handle(ctx, queries.GetSubscriptionQuery{SubscriptionID: id, Actor: t.app.Actor})
}

func (t *toolset) subscriptionList(ctx context.Context, input subscriptionListInput) ([]*queries.SubscriptionDTO, error) {
	if t.app.ListSubscriptionsHandler == nil {
		return nil, fmt.Errorf("subscription listing %w", errNoDatabase)
	}
	userID, err := parseOptionalUUID(input.UserID)
	if err != nil {
		return nil, err
	}
	query := queries.ListSubscriptionsQuery{Actor: t.app.Actor, UserID: userID}
	if input.Status != "" {
		status, err := domain.ParseStatus(input.Status)
		if err != nil {
			return nil, err
		}
		query.Status = &status
	}
	return t.app.ListSubscriptionsHandler.Handle(ctx, query)
}

func (t *toolset) subscriptionPause(ctx context.Context, input subscriptionIDInput) (*queries.SubscriptionDTO, error) {
	if t.app.PauseSubscriptionHandler == nil {
		return nil, fmt.Errorf("pausing %w", errNoDatabase)
	}
	id, err := parseUUID(input.SubscriptionID)
	if err != nil {
		return nil, err
	}
	return t.app.PauseSubscriptionHandler.Handle(ctx, commands.PauseSubscriptionCommand{SubscriptionID: id, Actor: t.app.Actor})
}

func (t *toolset) subscriptionResume(ctx context.Context, input subscriptionIDInput) (*queries.SubscriptionDTO, error) {
	if t.app.ResumeSubscriptionHandler == nil {
		return nil, fmt.Errorf("resuming %w", errNoDatabase)
	}
	id, err := parseUUID(input.SubscriptionID)
	if err != nil {
		return nil, err
	}
	return t.app.ResumeSubscriptionHandler.Handle(ctx, commands.ResumeSubscriptionCommand{SubscriptionID: id, Actor: t.app.Actor})
}

func (t *toolset) subscriptionCancel(ctx context.Context, input subscriptionCancelInput) (*queries.SubscriptionDTO, error) {
	if t.app.CancelSubscriptionHandler == nil {
		return nil, fmt.Errorf("canceling %w", errNoDatabase)
	}
	id, err := parseUUID(input.SubscriptionID)
	if err != nil {
		return nil, err
	}
	return t.app.CancelSubscriptionHandler.Handle(ctx, commands.CancelSubscriptionCommand{
		SubscriptionID: id,
		Actor:          t.app.Actor,
		Reason:         input.Reason,
	})
}

func (t *toolset) subscriptionSkip(ctx context.Context, input subscriptionIDInput) (*queries.SubscriptionDTO, error) {
	if t.app.SkipDeliveryHandler == nil {
		return nil, fmt.Errorf("skipping %w", errNoDatabase)
	}
	id, err := parseUUID(input.SubscriptionID)
	if err != nil {
		return nil, err
	}
	return t.app.SkipDeliveryHandler.Handle(ctx, commands.SkipDeliveryCommand{SubscriptionID: id, Actor: t.app.Actor})
}

func (t *toolset) subscriptionReschedule(ctx context.Context, input subscriptionRescheduleInput) (*queries.SubscriptionDTO, error) {
	if t.app.ChangeScheduleHandler == nil {
		return nil, fmt.Errorf("rescheduling %w", errNoDatabase)
	}
	id, err := parseUUID(input.SubscriptionID)
	if err != nil {
		return nil, err
	}
	weekdays, err := domain.ParseWeekdays(input.Weekdays)
	if err != nil {
		return nil, err
	}
	return t.app.ChangeScheduleHandler.Handle(ctx, commands.ChangeScheduleCommand{
		SubscriptionID: id,
		Actor:          t.app.Actor,
		Frequency:      input.Frequency,
		Weekdays:       weekdays,
	})
}

func (t *toolset) subscriptionAttempts(ctx context.Context, input subscriptionAttemptsInput) ([]queries.BillingAttemptDTO, error) {
	if t.app.ListBillingAttemptsHandler == nil {
		return nil, fmt.Errorf("billing attempts %w", errNoDatabase)
	}
	id, err := parseUUID(input.SubscriptionID)
	if err != nil {
		return nil, err
	}
	return t.app.ListBillingAttemptsHandler.Handle(ctx, queries.ListBillingAttemptsQuery{
		SubscriptionID: id,
		Actor:          t.app.Actor,
		Limit:          input.Limit,
	})
}
