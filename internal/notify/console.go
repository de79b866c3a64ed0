package notify

import (
	"fmt"
	"strings"

	"github.com/mselser95/updown-bot/pkg/types"
	"go.uber.org/zap"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// ConsoleNotifier pretty-prints trade lifecycle events to stdout.
type ConsoleNotifier struct {
	logger *zap.Logger
}

// NewConsoleNotifier creates a new console notifier.
func NewConsoleNotifier(logger *zap.Logger) *ConsoleNotifier {
	logger.Info("console-notifier-initialized")
	return &ConsoleNotifier{
		logger: logger,
	}
}

// NotifyEntry pretty-prints a freshly opened position.
func (c *ConsoleNotifier) NotifyEntry(pos *types.Position) {
	fmt.Println("\n" + rule)
	fmt.Printf("🎯 POSITION OPENED [%s]\n", strings.ToUpper(pos.Mode))
	fmt.Println(rule)
	fmt.Printf("ID:       %s\n", shortID(pos.ID))
	fmt.Printf("Window:   %s\n", pos.WindowSlug)
	fmt.Printf("Side:     %s\n", pos.Side)
	fmt.Printf("Time:     %s\n", pos.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Println(rule)
	fmt.Printf("📊 ENTRY\n")
	fmt.Printf("  Price:       %.4f\n", pos.EntryPrice)
	fmt.Printf("  Size:        %.2f shares\n", pos.Size)
	fmt.Printf("  Cost Basis:  $%.2f\n", pos.CostBasis())
	fmt.Printf("  Max Payout:  $%.2f\n", pos.Size*types.WinPayout)
	fmt.Println(rule)
}

// NotifyResolution pretty-prints a settled position.
func (c *ConsoleNotifier) NotifyResolution(pos *types.Position) {
	fmt.Println("\n" + rule)
	fmt.Printf("%s WINDOW RESOLVED [%s]\n", outcomeEmoji(pos.Outcome), strings.ToUpper(string(pos.Outcome)))
	fmt.Println(rule)
	fmt.Printf("ID:       %s\n", shortID(pos.ID))
	fmt.Printf("Window:   %s\n", pos.WindowSlug)
	fmt.Printf("Side:     %s\n", pos.Side)
	if !pos.ResolvedAt.IsZero() {
		fmt.Printf("Time:     %s\n", pos.ResolvedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Println(rule)
	fmt.Printf("💰 RESULT\n")
	fmt.Printf("  Entry:       %.4f x %.2f ($%.2f)\n", pos.EntryPrice, pos.Size, pos.CostBasis())
	fmt.Printf("  Payout:      $%.2f\n", pos.Payout)
	if pos.Profit >= 0 {
		fmt.Printf("  ✅ Profit:    $%.2f\n", pos.Profit)
	} else {
		fmt.Printf("  ❌ Loss:      $%.2f\n", -pos.Profit)
	}
	fmt.Println(rule)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func outcomeEmoji(outcome types.Outcome) string {
	switch outcome {
	case types.OutcomeWin:
		return "🏆"
	case types.OutcomeLose:
		return "💸"
	default:
		return "⏱️"
	}
}
