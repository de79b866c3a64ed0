package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "updown-bot",
	Short: "Polymarket Up/Down window trading bot",
	Long: `Polymarket Up/Down window trading bot that watches 5-minute
binary-outcome windows, enters when one side's price crosses an entry
threshold, and reconciles positions against on-chain settlement.

The bot derives the active window from wall-clock time, resolves it via the
Gamma API, streams prices over WebSocket, and records every position in a
ledger with an exactly-once settlement transition.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
