package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agora-market/agora/internal/daemon"
	"github.com/agora-market/agora/internal/domain"
)

var tasksBucket string

func init() {
	tasksCmd.Flags().StringVar(&tasksBucket, "bucket", "available", "which partition to list: available, ongoing, completed")
	rootCmd.AddCommand(tasksCmd)
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List delivery tasks",
	RunE:  runTasks,
}

func runTasks(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return fmt.Errorf("initialize daemon: %w", err)
	}
	defer d.Close()

	var tasks []domain.Task
	switch tasksBucket {
	case "available":
		tasks = d.Engine.ListAvailable(cmd.Context())
	case "ongoing":
		tasks = d.Engine.Ongoing()
	case "completed":
		tasks = d.Engine.Completed()
	default:
		return fmt.Errorf("unknown bucket %q (want available, ongoing, or completed)", tasksBucket)
	}

	if len(tasks) == 0 {
		fmt.Printf("No %s tasks.\n", tasksBucket)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORDER\tPICKUP\tDROP\tFEE\tSTATUS")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t₹%d\t%s\n",
			t.ID, t.OrderID, t.PickupLocation, t.DropLocation, t.DeliveryFee, t.Status)
	}
	return w.Flush()
}
