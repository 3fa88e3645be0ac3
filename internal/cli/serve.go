package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agora-market/agora/internal/daemon"
)

var serveOffline bool

func init() {
	serveCmd.Flags().BoolVar(&serveOffline, "offline", false, "start with the gateway disabled")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the delivery engine daemon with its HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return fmt.Errorf("initialize daemon: %w", err)
	}
	defer d.Close()

	if serveOffline {
		d.Engine.GoOffline()
	}
	return d.Serve(cmd.Context())
}
