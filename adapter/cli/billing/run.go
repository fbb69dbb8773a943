package billing

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/manish0301/subscription-pro/adapter/cli"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

var (
	asOf     string
	runLimit int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Charge every subscription due on or before a date",
	Long: `Run one billing cycle. Each active subscription whose next delivery is on
or before --as-of is charged once and moved to its next delivery date.
Declined charges leave the subscription due so the next run retries it.

Examples:
  subpro billing run
  subpro billing run --as-of 2024-03-31
  subpro billing run --limit 100 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.RunBillingCycleHandler == nil {
			return cli.ErrNotInitialized
		}

		runCmd := commands.RunBillingCycleCommand{AsOf: time.Now().UTC(), Limit: runLimit}
		if asOf != "" {
			parsed, err := domain.ParseDate(asOf)
			if err != nil {
				return fmt.Errorf("invalid --as-of format (use YYYY-MM-DD): %w", err)
			}
			runCmd.AsOf = parsed
		}

		result, err := app.RunBillingCycleHandler.Handle(cmd.Context(), runCmd)
		if err != nil {
			return fmt.Errorf("billing run aborted: %w", err)
		}

		out := cmd.OutOrStdout()
		if cli.JSONOutput() {
			return cli.PrintJSON(out, result)
		}
		fmt.Fprintf(out, "Billing run as of %s\n", result.AsOf)
		fmt.Fprintf(out, "  due:       %d\n", result.Total)
		fmt.Fprintf(out, "  succeeded: %d\n", result.Succeeded)
		fmt.Fprintf(out, "  failed:    %d\n", result.Failed)
		for _, f := range result.Failures {
			fmt.Fprintf(out, "  - %s [%s] %s\n", f.SubscriptionID, f.Kind, f.Reason)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&asOf, "as-of", "", "billing date (YYYY-MM-DD, default today)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "maximum subscriptions to bill (default BILLING_BATCH_LIMIT)")
}
