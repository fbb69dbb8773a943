package subscription

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manish0301/subscription-pro/adapter/cli"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
)

var attemptsLimit int

var attemptsCmd = &cobra.Command{
	Use:   "attempts [subscription-id]",
	Short: "Show the billing attempts for a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ListBillingAttemptsHandler == nil {
			return cli.ErrNotInitialized
		}

		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		attempts, err := app.ListBillingAttemptsHandler.Handle(cmd.Context(), queries.ListBillingAttemptsQuery{
			SubscriptionID: id,
			Actor:          app.Actor,
			Limit:          attemptsLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to list billing attempts: %w", err)
		}

		out := cmd.OutOrStdout()
		if cli.JSONOutput() {
			return cli.PrintJSON(out, attempts)
		}
		if len(attempts) == 0 {
			fmt.Fprintln(out, "No billing attempts.")
			return nil
		}
		fmt.Fprintf(out, "Billing attempts (%d):\n", len(attempts))
		cli.PrintAttemptRows(out, attempts)
		return nil
	},
}

func init() {
	attemptsCmd.Flags().IntVarP(&attemptsLimit, "limit", "n", 20, "maximum attempts to show")
}
