package race

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mselser95/updown-bot/internal/execution"
	"github.com/mselser95/updown-bot/pkg/types"
	"go.uber.org/zap"
)

// ExchangeClient is the slice of the exchange the race engine needs.
// *execution.Client implements it; tests substitute a scripted fake.
type ExchangeClient interface {
	PlaceLimitBuy(ctx context.Context, tokenID string, price, size float64) (string, error)
	GetOrderStatus(ctx context.Context, orderID string) (*execution.OrderStatus, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// Result is the outcome of a won race: one filled leg, one cancelled leg.
type Result struct {
	Side             types.Side
	TokenID          string
	FillPrice        float64
	FillSize         float64
	FilledOrderID    string
	CancelledOrderID string
}

// Engine converts one entry decision into a filled position on exactly one
// of two economically exclusive outcomes, never both, within a bounded
// number of status polls.
//
// Both legs are placed at the same limit price; whichever leg the poller
// first observes filled wins and the other leg is cancelled best-effort.
// If both legs report nonzero fill in the same poll cycle, Up is inspected
// first and wins; the exchange cannot honor both at these prices, so the
// losing cancel resolves whatever remains.
type Engine struct {
	client       ExchangeClient
	pollInterval time.Duration
	maxPolls     int
	logger       *zap.Logger
}

// Config holds race engine configuration.
type Config struct {
	Client       ExchangeClient
	PollInterval time.Duration
	MaxPolls     int
	Logger       *zap.Logger
}

// New creates a race engine.
func New(cfg *Config) *Engine {
	return &Engine{
		client:       cfg.Client,
		pollInterval: cfg.PollInterval,
		maxPolls:     cfg.MaxPolls,
		logger:       cfg.Logger,
	}
}

// Run places both legs and races them to first fill.
//
// Returns (nil, nil) when the race ends without a position: poll budget
// exhausted, or both orders observed cancelled externally. Returns
// (nil, ctx.Err()) when the caller's cancellation signal fired; both orders
// are cancelled before returning. Any other error aborted the race before
// both legs existed; no orders are left behind.
//
// Cancellation is cooperative: the signal is checked at each poll boundary,
// never mid-network-call, and cleanup runs before Run returns.
func (e *Engine) Run(ctx context.Context, market *types.Market, price, size float64) (*Result, error) {
	start := time.Now()

	upOrderID, err := e.client.PlaceLimitBuy(ctx, market.UpTokenID, price, size)
	if err != nil {
		RacesTotal.WithLabelValues("place-failed").Inc()
		return nil, fmt.Errorf("place up order: %w", err)
	}

	downOrderID, err := e.client.PlaceLimitBuy(ctx, market.DownTokenID, price, size)
	if err != nil {
		// Leg two failed: release leg one before giving up on the window.
		e.cleanupCancel(upOrderID)
		RacesTotal.WithLabelValues("place-failed").Inc()
		return nil, fmt.Errorf("place down order: %w", err)
	}

	e.logger.Info("race-started",
		zap.String("window-slug", market.Slug),
		zap.String("up-order-id", upOrderID),
		zap.String("down-order-id", downOrderID),
		zap.Float64("price", price),
		zap.Float64("size", size))

	legs := []struct {
		side    types.Side
		tokenID string
		orderID string
	}{
		{types.SideUp, market.UpTokenID, upOrderID},
		{types.SideDown, market.DownTokenID, downOrderID},
	}

	for attempt := 1; attempt <= e.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			e.logger.Info("race-aborted",
				zap.String("window-slug", market.Slug),
				zap.Int("attempt", attempt))
			e.cleanupCancel(upOrderID, downOrderID)
			RacesTotal.WithLabelValues("aborted").Inc()
			return nil, ctx.Err()
		default:
		}

		statuses := e.pollBoth(ctx, upOrderID, downOrderID)

		// First observed fill wins; Up is index 0 and is inspected first.
		for i, status := range statuses {
			if status == nil || status.SizeFilled <= 0 {
				continue
			}

			winner := legs[i]
			loser := legs[1-i]

			e.cleanupCancel(loser.orderID)

			fillPrice := status.Price
			if fillPrice == 0 {
				fillPrice = price
			}

			RacesTotal.WithLabelValues("filled").Inc()
			RaceDurationSeconds.Observe(time.Since(start).Seconds())

			e.logger.Info("race-won",
				zap.String("window-slug", market.Slug),
				zap.String("side", string(winner.side)),
				zap.String("filled-order-id", winner.orderID),
				zap.String("cancelled-order-id", loser.orderID),
				zap.Float64("fill-price", fillPrice),
				zap.Float64("fill-size", status.SizeFilled),
				zap.Int("attempt", attempt))

			return &Result{
				Side:             winner.side,
				TokenID:          winner.tokenID,
				FillPrice:        fillPrice,
				FillSize:         status.SizeFilled,
				FilledOrderID:    winner.orderID,
				CancelledOrderID: loser.orderID,
			}, nil
		}

		// Both legs cancelled exchange-side before either filled: some
		// other actor ended the race for us.
		if statuses[0] != nil && statuses[1] != nil &&
			statuses[0].Cancelled() && statuses[1].Cancelled() {
			e.logger.Warn("race-orders-cancelled-externally",
				zap.String("window-slug", market.Slug),
				zap.Int("attempt", attempt))
			RacesTotal.WithLabelValues("cancelled-external").Inc()
			return nil, nil
		}

		if attempt == e.maxPolls {
			break
		}

		select {
		case <-ctx.Done():
			// Handled at the top of the next iteration.
		case <-time.After(e.pollInterval):
		}
	}

	// Poll budget exhausted with no fill: a defined outcome, not an error.
	e.logger.Info("race-timeout",
		zap.String("window-slug", market.Slug),
		zap.Int("polls", e.maxPolls))
	e.cleanupCancel(upOrderID, downOrderID)
	RacesTotal.WithLabelValues("timeout").Inc()
	return nil, nil
}

// pollBoth queries both order statuses concurrently: issued together,
// awaited together. A failed query yields a nil slot, treated as "no
// information yet" for that leg this cycle.
func (e *Engine) pollBoth(ctx context.Context, upOrderID, downOrderID string) [2]*execution.OrderStatus {
	var statuses [2]*execution.OrderStatus
	var wg sync.WaitGroup

	for i, orderID := range []string{upOrderID, downOrderID} {
		wg.Add(1)
		go func(i int, orderID string) {
			defer wg.Done()
			status, err := e.client.GetOrderStatus(ctx, orderID)
			if err != nil {
				e.logger.Warn("order-status-query-failed",
					zap.String("order-id", orderID),
					zap.Error(err))
				return
			}
			statuses[i] = status
		}(i, orderID)
	}

	wg.Wait()
	return statuses
}

// cleanupCancel best-effort cancels the given orders. It runs on a detached
// context so cleanup still happens when the race's own context is already
// done; a failed cancel on an already matched or cancelled order is expected
// and only logged.
func (e *Engine) cleanupCancel(orderIDs ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, orderID := range orderIDs {
		err := e.client.CancelOrder(ctx, orderID)
		if err != nil {
			e.logger.Warn("order-cancel-failed",
				zap.String("order-id", orderID),
				zap.Error(err))
		}
	}
}
