package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agora-market/agora/internal/daemon"
	"github.com/agora-market/agora/internal/domain"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status TASK_ID STATUS",
	Short: "Update an ongoing delivery's status",
	Long: `Update the status of a delivery you are carrying.
Valid statuses: ASSIGNED, PICKED_UP, ON_THE_WAY, NEAR_DESTINATION.
DELIVERED is only reachable through 'agora complete'.`,
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := domain.ParseStatus(args[1])
	if err != nil {
		return err
	}

	d, err := daemon.New()
	if err != nil {
		return fmt.Errorf("initialize daemon: %w", err)
	}
	defer d.Close()

	if err := d.Engine.SetStatus(cmd.Context(), args[0], status); err != nil {
		return err
	}
	fmt.Printf("Task %s is now %s\n", args[0], status)
	return nil
}
