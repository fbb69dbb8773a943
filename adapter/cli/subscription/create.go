package subscription

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/manish0301/subscription-pro/adapter/cli"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

var (
	customerID    string
	frequency     string
	weekdays      string
	quantity      int
	amount        string
	currency      string
	startDate     string
	firstDelivery string
	endDate       string
)

var createCmd = &cobra.Command{
	Use:   "create [product-id]",
	Short: "Create a subscription",
	Long: `Create a subscription to a product.

Frequencies: daily, weekly, monthly, quarterly, yearly, custom.
A custom frequency delivers on the weekdays given with --weekdays.

Examples:
  subpro subscription create 7f0c... --customer 2a1e... -f monthly -a 499
  subpro subscription create 7f0c... -f custom --weekdays mon,thu -a 120 --start 2024-01-01`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.CreateSubscriptionHandler == nil {
			return cli.ErrNotInitialized
		}

		productID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid product ID: %w", err)
		}

		createCmd := commands.CreateSubscriptionCommand{
			Actor:     app.Actor,
			ProductID: productID,
			Frequency: frequency,
			Quantity:  quantity,
			Amount:    amount,
			Currency:  currency,
		}
		if customerID != "" {
			if createCmd.UserID, err = uuid.Parse(customerID); err != nil {
				return fmt.Errorf("invalid --customer: %w", err)
			}
		}
		if createCmd.Weekdays, err = domain.ParseWeekdays(weekdays); err != nil {
			return err
		}
		if createCmd.StartDate, err = domain.ParseDate(startDate); err != nil {
			return fmt.Errorf("invalid --start format (use YYYY-MM-DD): %w", err)
		}
		if firstDelivery != "" {
			d, err := domain.ParseDate(firstDelivery)
			if err != nil {
				return fmt.Errorf("invalid --first-delivery format (use YYYY-MM-DD): %w", err)
			}
			createCmd.FirstDeliveryDate = &d
		}
		if endDate != "" {
			d, err := domain.ParseDate(endDate)
			if err != nil {
				return fmt.Errorf("invalid --end format (use YYYY-MM-DD): %w", err)
			}
			createCmd.EndDate = &d
		}

		result, err := app.CreateSubscriptionHandler.Handle(cmd.Context(), createCmd)
		if err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(cmd.OutOrStdout(), result)
		}
		cli.PrintSubscription(cmd.OutOrStdout(), result)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&customerID, "customer", "", "customer ID (defaults to --user-id)")
	createCmd.Flags().StringVarP(&frequency, "frequency", "f", "monthly", "delivery frequency")
	createCmd.Flags().StringVar(&weekdays, "weekdays", "", "weekdays for a custom frequency, e.g. mon,thu")
	createCmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "units per delivery")
	createCmd.Flags().StringVarP(&amount, "amount", "a", "", "price per delivery, e.g. 499.99")
	createCmd.Flags().StringVar(&currency, "currency", "", "ISO 4217 currency (defaults to BILLING_CURRENCY)")
	createCmd.Flags().StringVar(&startDate, "start", domain.DateOf(timeNow()).Format(domain.DateLayout), "start date (YYYY-MM-DD)")
	createCmd.Flags().StringVar(&firstDelivery, "first-delivery", "", "first delivery date (YYYY-MM-DD)")
	createCmd.Flags().StringVar(&endDate, "end", "", "end date (YYYY-MM-DD)")
	_ = createCmd.MarkFlagRequired("amount")
}
