package billing

import "github.com/spf13/cobra"

// Cmd is the billing command group.
var Cmd = &cobra.Command{
	Use:   "billing",
	Short: "Run billing cycles and inspect failures",
	Long:  `Charge due subscriptions and review failed charges for dunning.`,
}

func init() {
	Cmd.AddCommand(runCmd)
	Cmd.AddCommand(failuresCmd)
}
