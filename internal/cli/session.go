package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agora-market/agora/internal/daemon"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the current partner session",
	RunE:  runSession,
}

func runSession(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return fmt.Errorf("initialize daemon: %w", err)
	}
	defer d.Close()

	mode := "online"
	if !d.Engine.Online() {
		mode = "offline"
	}
	fmt.Printf("Partner: %s (%s)\n", d.Config.Actor.Name, d.Config.Actor.ID)
	fmt.Printf("Mode:    %s\n", mode)
	fmt.Printf("Ongoing: %d  Completed: %d\n", len(d.Engine.Ongoing()), len(d.Engine.Completed()))
	return nil
}
