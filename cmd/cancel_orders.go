package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mselser95/updown-bot/internal/execution"
	"github.com/mselser95/updown-bot/pkg/config"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var cancelOrdersCmd = &cobra.Command{
	Use:   "cancel-orders",
	Short: "Cancel all open orders on the exchange",
	Long: `Cancel all open orders atomically using the /cancel-all endpoint.

After a crash mid-race, this clears any limit orders left resting on the
book before restarting the bot.

Use --dry-run to preview orders without canceling.

Examples:
  # Preview orders without canceling
  go run . cancel-orders --dry-run

  # Cancel all orders immediately
  go run . cancel-orders`,
	Args: cobra.NoArgs,
	RunE: runCancelOrders,
}

//nolint:gochecknoglobals // Cobra boilerplate
var dryRunFlag bool

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(cancelOrdersCmd)
	cancelOrdersCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Preview orders without canceling")
}

func runCancelOrders(cmd *cobra.Command, args []string) (err error) {
	client, err := createExchangeClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	orders, err := client.GetOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("fetch open orders: %w", err)
	}

	if len(orders) == 0 {
		fmt.Println("No open orders found.")
		return nil
	}

	displayOpenOrders(orders)

	if dryRunFlag {
		fmt.Println("\n[DRY RUN] No orders were canceled.")
		return nil
	}

	fmt.Println("\nCanceling all orders...")
	result, err := client.CancelAllOrders(ctx)
	if err != nil {
		return fmt.Errorf("cancel orders: %w", err)
	}

	fmt.Printf("Canceled %d order(s).\n", len(result.Canceled))
	for orderID, reason := range result.NotCanceled {
		fmt.Printf("  not canceled: %s (%s)\n", orderID, reason)
	}

	return nil
}

func createExchangeClient() (*execution.Client, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.PolymarketAPIKey == "" || cfg.PolymarketSecret == "" || cfg.PolymarketPassphrase == "" {
		return nil, fmt.Errorf("cancel-orders requires POLYMARKET_API_KEY, POLYMARKET_SECRET and POLYMARKET_PASSPHRASE")
	}
	if cfg.PolymarketPrivateKey == "" {
		return nil, fmt.Errorf("cancel-orders requires POLYMARKET_PRIVATE_KEY")
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	client, err := execution.NewClient(&execution.ClientConfig{
		BaseURL:       cfg.PolymarketCLOBURL,
		APIKey:        cfg.PolymarketAPIKey,
		Secret:        cfg.PolymarketSecret,
		Passphrase:    cfg.PolymarketPassphrase,
		PrivateKey:    cfg.PolymarketPrivateKey,
		ProxyAddress:  cfg.PolymarketProxyAddr,
		SignatureType: cfg.SignatureType,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create exchange client: %w", err)
	}

	return client, nil
}

func displayOpenOrders(orders []execution.OpenOrder) {
	fmt.Printf("%-32s %-6s %8s %8s %8s\n", "ORDER ID", "SIDE", "PRICE", "SIZE", "FILLED")
	fmt.Println("──────────────────────────────────────────────────────────────────")

	for _, order := range orders {
		id := order.OrderID
		if len(id) > 30 {
			id = id[:30] + ".."
		}
		fmt.Printf("%-32s %-6s %8.4f %8.2f %8.2f\n",
			id, order.Side, order.Price, order.OriginalSize, order.SizeMatched)
	}

	fmt.Printf("\n%d open order(s).\n", len(orders))
}
