package subscription

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/manish0301/subscription-pro/adapter/cli"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

var cancelReason string

var pauseCmd = &cobra.Command{
	Use:   "pause [subscription-id]",
	Short: "Pause an active subscription",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunE("paused", func(app *cli.App) bool { return app.PauseSubscriptionHandler != nil },
		func(cmd *cobra.Command, app *cli.App, id uuid.UUID, actor domain.Actor) (*queries.SubscriptionDTO, error) {
			return app.PauseSubscriptionHandler.Handle(cmd.Context(), commands.PauseSubscriptionCommand{SubscriptionID: id, Actor: actor})
		}),
}

var resumeCmd = &cobra.Command{
	Use:   "resume [subscription-id]",
	Short: "Resume a paused subscription",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunE("resumed", func(app *cli.App) bool { return app.ResumeSubscriptionHandler != nil },
		func(cmd *cobra.Command, app *cli.App, id uuid.UUID, actor domain.Actor) (*queries.SubscriptionDTO, error) {
			return app.ResumeSubscriptionHandler.Handle(cmd.Context(), commands.ResumeSubscriptionCommand{SubscriptionID: id, Actor: actor})
		}),
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [subscription-id]",
	Short: "Cancel a subscription permanently",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunE("canceled", func(app *cli.App) bool { return app.CancelSubscriptionHandler != nil },
		func(cmd *cobra.Command, app *cli.App, id uuid.UUID, actor domain.Actor) (*queries.SubscriptionDTO, error) {
			return app.CancelSubscriptionHandler.Handle(cmd.Context(), commands.CancelSubscriptionCommand{
				SubscriptionID: id,
				Actor:          actor,
				Reason:         cancelReason,
			})
		}),
}

var skipCmd = &cobra.Command{
	Use:   "skip [subscription-id]",
	Short: "Skip the next delivery",
	Long: `Skip the next delivery without charging for it. The next delivery date
moves forward by one period.`,
	Args: cobra.ExactArgs(1),
	RunE: transitionRunE("skipped to next delivery", func(app *cli.App) bool { return app.SkipDeliveryHandler != nil },
		func(cmd *cobra.Command, app *cli.App, id uuid.UUID, actor domain.Actor) (*queries.SubscriptionDTO, error) {
			return app.SkipDeliveryHandler.Handle(cmd.Context(), commands.SkipDeliveryCommand{SubscriptionID: id, Actor: actor})
		}),
}

type transitionFunc func(cmd *cobra.Command, app *cli.App, id uuid.UUID, actor domain.Actor) (*queries.SubscriptionDTO, error)

func transitionRunE(verb string, ready func(*cli.App) bool, apply transitionFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || !ready(app) {
			return cli.ErrNotInitialized
		}

		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		sub, err := apply(cmd, app, id, app.Actor)
		if err != nil {
			return fmt.Errorf("subscription %s not %s: %w", id, verb, err)
		}

		out := cmd.OutOrStdout()
		if cli.JSONOutput() {
			return cli.PrintJSON(out, sub)
		}
		fmt.Fprintf(out, "Subscription %s %s\n", sub.ID, verb)
		fmt.Fprintf(out, "  status: %s\n", sub.Status)
		fmt.Fprintf(out, "  next delivery: %s\n", sub.NextDeliveryDate)
		return nil
	}
}

func init() {
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "", "cancellation reason")
}
