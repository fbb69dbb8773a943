package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manish0301/subscription-pro/pkg/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check database and dependency health",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Health == nil {
			return ErrNotInitialized
		}

		health := app.Health.Check(cmd.Context())
		if JSONOutput() {
			return PrintJSON(cmd.OutOrStdout(), health)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "status: %s\n", health.Status)
		for _, name := range app.Health.Names() {
			check, ok := health.Checks[name]
			if !ok {
				continue
			}
			fmt.Fprintf(out, "  %-10s %-9s %s\n", name, check.Status, check.Message)
		}
		if health.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
