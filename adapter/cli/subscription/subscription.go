package subscription

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Cmd is the subscription command group
var Cmd = &cobra.Command{
	Use:     "subscription",
	Aliases: []string{"sub"},
	Short:   "Manage subscriptions",
	Long:    `Create, inspect, pause, resume, skip, reschedule and cancel subscriptions.`,
}

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(pauseCmd)
	Cmd.AddCommand(resumeCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(skipCmd)
	Cmd.AddCommand(rescheduleCmd)
	Cmd.AddCommand(attemptsCmd)
}

var timeNow = time.Now

func parseID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subscription ID: %w", err)
	}
	return id, nil
}
