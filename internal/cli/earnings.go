package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agora-market/agora/internal/daemon"
)

func init() {
	rootCmd.AddCommand(earningsCmd)
	rootCmd.AddCommand(payoutCmd)
}

var earningsCmd = &cobra.Command{
	Use:   "earnings",
	Short: "Show earnings totals and pending balance",
	RunE:  runEarnings,
}

func runEarnings(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return fmt.Errorf("initialize daemon: %w", err)
	}
	defer d.Close()

	snap := d.Earnings.Snapshot()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Today\t₹%d\n", snap.Today)
	fmt.Fprintf(w, "This week\t₹%d\n", snap.ThisWeek)
	fmt.Fprintf(w, "This month\t₹%d\n", snap.ThisMonth)
	fmt.Fprintf(w, "All time\t₹%d\n", snap.AllTime)
	fmt.Fprintf(w, "Transferred\t₹%d\n", snap.Transferred)
	fmt.Fprintf(w, "Pending\t₹%d\n", snap.PendingBalance)
	return w.Flush()
}

var payoutCmd = &cobra.Command{
	Use:   "payout AMOUNT",
	Short: "Record a transfer out of the pending balance",
	Args:  cobra.ExactArgs(1),
	RunE:  runPayout,
}

func runPayout(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("amount must be a positive whole number of rupees, got %q", args[0])
	}

	d, err := daemon.New()
	if err != nil {
		return fmt.Errorf("initialize daemon: %w", err)
	}
	defer d.Close()

	p := d.Earnings.RecordPayout(amount, time.Now())
	snap := d.Earnings.Snapshot()
	fmt.Printf("Recorded payout of ₹%d on %s. Pending balance: ₹%d\n",
		p.Amount, p.Date.Format("2006-01-02"), snap.PendingBalance)
	return nil
}
