package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agora-market/agora/internal/daemon"
	"github.com/agora-market/agora/internal/domain"
)

func init() {
	rootCmd.AddCommand(acceptCmd)
}

var acceptCmd = &cobra.Command{
	Use:   "accept TASK_ID",
	Short: "Accept an available delivery task",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccept,
}

func runAccept(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return fmt.Errorf("initialize daemon: %w", err)
	}
	defer d.Close()

	// Hydrate the available partition first so a fresh session can accept
	// a task it has not listed yet.
	d.Engine.ListAvailable(cmd.Context())

	task, err := d.Engine.Accept(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrAlreadyAssigned) {
		return fmt.Errorf("task %s was taken by another partner", args[0])
	}
	if err != nil {
		return err
	}

	fmt.Printf("Accepted %s (%s → %s, ₹%d)\n",
		task.ID, task.PickupLocation, task.DropLocation, task.DeliveryFee)
	fmt.Printf("Confirmation code: %s — ask the recipient for it on delivery.\n",
		task.ConfirmationCode)
	return nil
}
