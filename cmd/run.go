package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mselser95/updown-bot/internal/app"
	"github.com/mselser95/updown-bot/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Up/Down trading bot",
	Long: `Starts the Up/Down trading bot, which will:
1. Derive the active 5-minute window from wall-clock time
2. Resolve the window's market via the Gamma API
3. Stream both outcome prices over WebSocket
4. Enter once per window when a price crosses the entry threshold
5. Reconcile open positions against on-chain settlement

Paper mode records entries without placing orders; live mode races limit
orders on both sides and keeps the first fill.

Use --single-window to trade only one window slug for debugging.`,
	RunE: runBot,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringP("single-window", "w", "", "Trade only a single window by slug (for debugging)")
}

func runBot(cmd *cobra.Command, args []string) error {
	// Load .env file if exists
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	singleWindow, _ := cmd.Flags().GetString("single-window")

	opts := &app.Options{
		SingleWindow: singleWindow,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
