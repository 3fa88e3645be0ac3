package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agora-market/agora/internal/daemon"
	"github.com/agora-market/agora/internal/domain"
)

func init() {
	rootCmd.AddCommand(completeCmd)
}

var completeCmd = &cobra.Command{
	Use:   "complete TASK_ID CODE",
	Short: "Confirm a delivery with the recipient's code",
	Args:  cobra.ExactArgs(2),
	RunE:  runComplete,
}

func runComplete(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return fmt.Errorf("initialize daemon: %w", err)
	}
	defer d.Close()

	receipt, err := d.Engine.Complete(cmd.Context(), args[0], args[1])
	switch {
	case errors.Is(err, domain.ErrCodeMismatch):
		return fmt.Errorf("wrong confirmation code for task %s — ask the recipient again", args[0])
	case errors.Is(err, domain.ErrTaskNotFound):
		return fmt.Errorf("task %s is not in your ongoing deliveries", args[0])
	case err != nil:
		return err
	}

	fmt.Printf("Delivered! ₹%d credited.\n", receipt.FeeCredited)
	snap := d.Earnings.Snapshot()
	fmt.Printf("Earnings today: ₹%d  (all time: ₹%d)\n", snap.Today, snap.AllTime)
	return nil
}
