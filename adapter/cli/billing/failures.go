package billing

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/manish0301/subscription-pro/adapter/cli"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

var (
	since         string
	failuresLimit int
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List recent failed charges",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ListBillingFailuresHandler == nil {
			return cli.ErrNotInitialized
		}

		query := queries.ListBillingFailuresQuery{
			Actor: app.Actor,
			Since: time.Now().UTC().AddDate(0, 0, -7),
			Limit: failuresLimit,
		}
		if since != "" {
			parsed, err := domain.ParseDate(since)
			if err != nil {
				return fmt.Errorf("invalid --since format (use YYYY-MM-DD): %w", err)
			}
			query.Since = parsed
		}

		failures, err := app.ListBillingFailuresHandler.Handle(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("failed to list billing failures: %w", err)
		}

		out := cmd.OutOrStdout()
		if cli.JSONOutput() {
			return cli.PrintJSON(out, failures)
		}
		if len(failures) == 0 {
			fmt.Fprintln(out, "No failed charges.")
			return nil
		}
		fmt.Fprintf(out, "Failed charges since %s (%d):\n", query.Since.Format(domain.DateLayout), len(failures))
		cli.PrintAttemptRows(out, failures)
		return nil
	},
}

func init() {
	failuresCmd.Flags().StringVar(&since, "since", "", "earliest attempt date (YYYY-MM-DD, default 7 days ago)")
	failuresCmd.Flags().IntVarP(&failuresLimit, "limit", "n", 100, "maximum failures to show")
}
