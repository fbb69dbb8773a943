package subscription

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manish0301/subscription-pro/adapter/cli"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
)

var showCmd = &cobra.Command{
	Use:     "show [subscription-id]",
	Aliases: []string{"get"},
	Short:   "Show a subscription",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.GetSubscriptionHandler == nil {
			return cli.ErrNotInitialized
		}

		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		sub, err := app.GetSubscriptionHandler.Handle(cmd.Context(), queries.GetSubscriptionQuery{
			SubscriptionID: id,
			Actor:          app.Actor,
		})
		if err != nil {
			return fmt.Errorf("failed to get subscription: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(cmd.OutOrStdout(), sub)
		}
		cli.PrintSubscription(cmd.OutOrStdout(), sub)
		return nil
	},
}
