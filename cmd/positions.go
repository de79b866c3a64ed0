package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mselser95/updown-bot/internal/ledger"
	"github.com/mselser95/updown-bot/pkg/config"
	"github.com/mselser95/updown-bot/pkg/types"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "Display ledger positions with outcome and P&L",
	Long: `Lists positions from the ledger, newest first.

For each position, displays:
- Window slug and side
- Entry price, size and cost basis
- Outcome: pending, win, lose or timeout
- Payout and profit

Requires STORAGE_MODE=postgres; the in-memory ledger does not outlive the
bot process.

Examples:
  # Show the 50 most recent positions (default table format)
  go run . positions

  # Show only unresolved positions
  go run . positions --pending-only

  # Show every position of one window
  go run . positions --window btc-updown-5m-1700000100

  # Export to JSON
  go run . positions --format json > positions.json`,
	Args: cobra.NoArgs,
	RunE: runPositions,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	positionsLimit  int
	positionsWindow string
	positionsFormat string
	pendingOnly     bool
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(positionsCmd)

	positionsCmd.Flags().IntVar(&positionsLimit, "limit", 50, "Maximum positions to list")
	positionsCmd.Flags().StringVar(&positionsWindow, "window", "", "List only positions of this window slug")
	positionsCmd.Flags().StringVar(&positionsFormat, "format", "table", "Output format: table, json")
	positionsCmd.Flags().BoolVar(&pendingOnly, "pending-only", false, "Show only unresolved positions")
}

func runPositions(cmd *cobra.Command, args []string) (err error) {
	store, err := openPositionsStore()
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var positions []*types.Position
	if positionsWindow != "" {
		positions, err = store.ListByWindow(ctx, positionsWindow)
	} else {
		positions, err = store.ListRecent(ctx, positionsLimit)
	}
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}

	if pendingOnly {
		pending := positions[:0]
		for _, pos := range positions {
			if !pos.Outcome.Terminal() {
				pending = append(pending, pos)
			}
		}
		positions = pending
	}

	if len(positions) == 0 {
		fmt.Println("No positions found.")
		return nil
	}

	if positionsFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(positions)
	}

	displayPositionsTable(positions)
	displayPositionsSummary(positions)
	return nil
}

func openPositionsStore() (ledger.Store, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.StorageMode != "postgres" {
		return nil, fmt.Errorf("positions requires STORAGE_MODE=postgres, got %q", cfg.StorageMode)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := ledger.NewPostgresStore(&ledger.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		Database: cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	return store, nil
}

func displayPositionsTable(positions []*types.Position) {
	fmt.Printf("%-28s %-5s %-7s %8s %8s %9s %8s %8s\n",
		"WINDOW", "SIDE", "MODE", "ENTRY", "SIZE", "OUTCOME", "PAYOUT", "PROFIT")
	fmt.Println("────────────────────────────────────────────────────────────────────────────────────────")

	for _, pos := range positions {
		outcome := string(pos.Outcome)
		if outcome == "" {
			outcome = "pending"
		}
		fmt.Printf("%-28s %-5s %-7s %8.4f %8.2f %9s %8.2f %8.2f\n",
			pos.WindowSlug, pos.Side, pos.Mode,
			pos.EntryPrice, pos.Size, outcome, pos.Payout, pos.Profit)
	}
}

func displayPositionsSummary(positions []*types.Position) {
	var wins, losses, timeouts, pending int
	var totalProfit float64

	for _, pos := range positions {
		switch pos.Outcome {
		case types.OutcomeWin:
			wins++
		case types.OutcomeLose:
			losses++
		case types.OutcomeTimeout:
			timeouts++
		default:
			pending++
		}
		totalProfit += pos.Profit
	}

	fmt.Println("────────────────────────────────────────────────────────────────────────────────────────")
	fmt.Printf("Total: %d  |  Wins: %d  Losses: %d  Timeouts: %d  Pending: %d  |  Net P&L: $%.2f\n",
		len(positions), wins, losses, timeouts, pending, totalProfit)
}
