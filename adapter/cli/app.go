package cli

import (
	"errors"

	internalApp "github.com/manish0301/subscription-pro/internal/app"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

// ErrNotInitialized is returned by commands run before the application is wired.
var ErrNotInitialized = errors.New("application not initialized - database connection required")

// App holds the CLI application dependencies.
type App struct {
	// Subscription Command Handlers
	CreateSubscriptionHandler *commands.CreateSubscriptionHandler
	PauseSubscriptionHandler  *commands.PauseSubscriptionHandler
	ResumeSubscriptionHandler *commands.ResumeSubscriptionHandler
	CancelSubscriptionHandler *commands.CancelSubscriptionHandler
	SkipDeliveryHandler       *commands.SkipDeliveryHandler
	ChangeScheduleHandler     *commands.ChangeScheduleHandler

	// Billing
	RunBillingCycleHandler *commands.RunBillingCycleHandler

	// Query Handlers
	GetSubscriptionHandler     *queries.GetSubscriptionHandler
	ListSubscriptionsHandler   *queries.ListSubscriptionsHandler
	ListBillingAttemptsHandler *queries.ListBillingAttemptsHandler
	ListBillingFailuresHandler *queries.ListBillingFailuresHandler

	Health *observability.HealthRegistry

	// Actor is the principal commands act as.
	Actor domain.Actor
}

// NewApp creates the CLI application from a wired container. Commands act
// as the system administrator until flags say otherwise.
func NewApp(c *internalApp.Container) *App {
	return &App{
		CreateSubscriptionHandler:  c.CreateSubscriptionHandler,
		PauseSubscriptionHandler:   c.PauseSubscriptionHandler,
		ResumeSubscriptionHandler:  c.ResumeSubscriptionHandler,
		CancelSubscriptionHandler:  c.CancelSubscriptionHandler,
		SkipDeliveryHandler:        c.SkipDeliveryHandler,
		ChangeScheduleHandler:      c.ChangeScheduleHandler,
		RunBillingCycleHandler:     c.RunBillingCycleHandler,
		GetSubscriptionHandler:     c.GetSubscriptionHandler,
		ListSubscriptionsHandler:   c.ListSubscriptionsHandler,
		ListBillingAttemptsHandler: c.ListBillingAttemptsHandler,
		ListBillingFailuresHandler: c.ListBillingFailuresHandler,
		Health:                     c.Health,
		Actor:                      domain.SystemActor(),
	}
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
