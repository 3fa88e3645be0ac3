// Package cli implements the agora command-line interface using Cobra.
// Each subcommand drives the same lifecycle engine the dashboard API uses.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agora",
	Short: "Agora — delivery partner engine",
	Long: `Agora runs the delivery-task engine for a partner: list open tasks,
accept them, track progress, and confirm deliveries with the recipient's
code. State mirrors to local storage so everything keeps working offline.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
