package subscription

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manish0301/subscription-pro/adapter/cli"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/commands"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

var (
	newFrequency string
	newWeekdays  string
)

var rescheduleCmd = &cobra.Command{
	Use:   "reschedule [subscription-id]",
	Short: "Change a subscription's delivery schedule",
	Long: `Change the delivery frequency. The next delivery is recomputed from the
last delivery, or from the start date when nothing has been delivered yet.
A reference date in the past is replaced by today.

Examples:
  subpro subscription reschedule 9b2d... -f weekly
  subpro subscription reschedule 9b2d... -f custom --weekdays tue,fri`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ChangeScheduleHandler == nil {
			return cli.ErrNotInitialized
		}

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		days, err := domain.ParseWeekdays(newWeekdays)
		if err != nil {
			return err
		}

		sub, err := app.ChangeScheduleHandler.Handle(cmd.Context(), commands.ChangeScheduleCommand{
			SubscriptionID: id,
			Actor:          app.Actor,
			Frequency:      newFrequency,
			Weekdays:       days,
		})
		if err != nil {
			return fmt.Errorf("failed to reschedule subscription: %w", err)
		}

		if cli.JSONOutput() {
			return cli.PrintJSON(cmd.OutOrStdout(), sub)
		}
		cli.PrintSubscription(cmd.OutOrStdout(), sub)
		return nil
	},
}

func init() {
	rescheduleCmd.Flags().StringVarP(&newFrequency, "frequency", "f", "", "new delivery frequency")
	rescheduleCmd.Flags().StringVar(&newWeekdays, "weekdays", "", "weekdays for a custom frequency")
	_ = rescheduleCmd.MarkFlagRequired("frequency")
}
