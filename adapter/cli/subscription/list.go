package subscription

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/manish0301/subscription-pro/adapter/cli"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

var (
	listCustomer string
	listStatus   string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List a customer's subscriptions",
	Long: `List subscriptions belonging to a customer, optionally filtered by status
(active, paused, canceled, completed).

Examples:
  subpro --user-id 2a1e... subscription list
  subpro subscription list --customer 2a1e... --status paused`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ListSubscriptionsHandler == nil {
			return cli.ErrNotInitialized
		}

		query := queries.ListSubscriptionsQuery{Actor: app.Actor}
		if listCustomer != "" {
			id, err := uuid.Parse(listCustomer)
			if err != nil {
				return fmt.Errorf("invalid --customer: %w", err)
			}
			query.UserID = id
		}
		if listStatus != "" {
			status, err := domain.ParseStatus(listStatus)
			if err != nil {
				return err
			}
			query.Status = &status
		}

		subs, err := app.ListSubscriptionsHandler.Handle(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("failed to list subscriptions: %w", err)
		}

		out := cmd.OutOrStdout()
		if cli.JSONOutput() {
			return cli.PrintJSON(out, subs)
		}
		if len(subs) == 0 {
			fmt.Fprintln(out, "No subscriptions found.")
			return nil
		}
		cli.PrintSubscriptionRows(out, subs)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listCustomer, "customer", "", "customer ID (defaults to --user-id)")
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "filter by status")
}
