package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mselser95/updown-bot/internal/gate"
	"github.com/mselser95/updown-bot/internal/windows"
	"github.com/mselser95/updown-bot/pkg/types"
	"go.uber.org/zap"
)

// resolveRetryDelay paces window lookups while the market is not yet listed.
const resolveRetryDelay = 3 * time.Second

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("mode", a.cfg.ExecutionMode),
		zap.String("window-prefix", a.cfg.WindowSlugPrefix),
		zap.Duration("window-period", a.cfg.WindowPeriod),
		zap.Float64("entry-threshold", a.cfg.EntryThreshold),
		zap.Float64("reject-ceiling", a.cfg.RejectCeiling),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("ws-url", a.cfg.PolymarketWSURL))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	err := a.wsManager.Start()
	if err != nil {
		return fmt.Errorf("start websocket manager: %w", err)
	}

	a.wg.Add(1)
	go a.runReconciler()

	a.wg.Add(1)
	go a.runTradingLoop()

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runReconciler() {
	defer a.wg.Done()
	a.reconciler.Run(a.ctx)
}

// runTradingLoop trades one window after another until shutdown, or until
// the session guard trips, which ends entries for good while the reconciler
// keeps draining open positions. Each iteration resolves the active window,
// watches its prices through the gate and sleeps out the remainder of the
// period.
func (a *App) runTradingLoop() {
	defer a.wg.Done()

	if a.singleWindow != "" {
		a.tradeSingleWindow()
		return
	}

	for {
		select {
		case <-a.ctx.Done():
			return
		default:
		}

		if !a.guard.AllowEntry() {
			a.logger.Warn("trading-loop-halted",
				zap.String("reason", "session loss limit breached"))
			return
		}

		window := a.clock.Current(time.Now())
		a.tradeWindow(window)
		a.sleepUntil(window.End)
	}
}

// tradeSingleWindow handles the debugging path: one named window, then idle
// so the reconciler can still settle it.
func (a *App) tradeSingleWindow() {
	end, err := a.clock.EndTime(a.singleWindow)
	if err != nil {
		a.logger.Error("single-window-slug-invalid",
			zap.String("window-slug", a.singleWindow),
			zap.Error(err))
		return
	}

	a.logger.Info("single-window-mode", zap.String("window-slug", a.singleWindow))
	a.tradeWindow(windows.Window{Slug: a.singleWindow, Start: end.Add(-a.clock.Period()), End: end})

	<-a.ctx.Done()
}

func (a *App) tradeWindow(window windows.Window) {
	// Entries after this point could not be raced to a fill before the
	// window closes.
	deadline := window.End.Add(-a.cfg.WindowEndMargin)
	if !time.Now().Before(deadline) {
		return
	}

	market, ok := a.resolveWindow(window, deadline)
	if !ok {
		return
	}

	err := a.wsManager.Subscribe(a.ctx, []string{market.UpTokenID, market.DownTokenID})
	if err != nil {
		a.logger.Error("window-subscribe-failed",
			zap.String("window-slug", window.Slug),
			zap.Error(err))
		return
	}

	a.watchWindow(market, deadline)

	err = a.wsManager.Unsubscribe(a.ctx, []string{market.UpTokenID, market.DownTokenID})
	if err != nil {
		a.logger.Warn("window-unsubscribe-failed",
			zap.String("window-slug", window.Slug),
			zap.Error(err))
	}
	a.priceGate.ForgetWindow(market)
}

// resolveWindow looks the window up in the directory, retrying while the
// market is not listed yet. Gives up at the entry deadline.
func (a *App) resolveWindow(window windows.Window, deadline time.Time) (*types.Market, bool) {
	for {
		market, err := a.directory.ResolveWindow(a.ctx, window.Slug)
		if err == nil {
			return market, true
		}

		switch {
		case errors.Is(err, types.ErrWindowClosed):
			a.logger.Info("window-already-closed", zap.String("window-slug", window.Slug))
			return nil, false
		case errors.Is(err, types.ErrWindowNotFound):
			a.logger.Debug("window-not-listed-yet", zap.String("window-slug", window.Slug))
		default:
			a.logger.Warn("window-resolve-failed",
				zap.String("window-slug", window.Slug),
				zap.Error(err))
		}

		if time.Now().Add(resolveRetryDelay).After(deadline) {
			a.logger.Info("window-skipped",
				zap.String("window-slug", window.Slug),
				zap.String("reason", "could not resolve before entry deadline"))
			return nil, false
		}

		select {
		case <-a.ctx.Done():
			return nil, false
		case <-time.After(resolveRetryDelay):
		}
	}
}

// watchWindow feeds ticks through the gate until the window produces an
// entry, settles early, reaches its deadline, or the session guard trips.
func (a *App) watchWindow(market *types.Market, deadline time.Time) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return

		case <-timer.C:
			return

		case tick, open := <-a.wsManager.Ticks():
			if !open {
				return
			}

			if !a.guard.AllowEntry() {
				return
			}

			decision, fired := a.priceGate.OnTick(market, *tick, time.Now())
			if !fired {
				if a.priceGate.SettledEarly(market.Slug) {
					a.logger.Info("window-decided-before-entry",
						zap.String("window-slug", market.Slug))
					return
				}
				continue
			}

			a.enterWindow(market, decision, deadline)
			return
		}
	}
}

// enterWindow converts a gate decision into a ledger position.
func (a *App) enterWindow(market *types.Market, decision *gate.Decision, deadline time.Time) {
	var pos *types.Position

	if a.raceEngine != nil {
		pos = a.enterLive(market, decision, deadline)
	} else {
		pos = a.enterPaper(market, decision)
	}

	if pos == nil {
		return
	}

	// The entry may already be live on the exchange; persist it even if
	// shutdown started while the race was running.
	createCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := a.store.Create(createCtx, pos)
	if err != nil {
		a.logger.Error("position-create-failed",
			zap.String("window-slug", pos.WindowSlug),
			zap.Error(err))
		return
	}
	pos.ID = id

	a.guard.RecordEntry(pos)
	a.notifier.NotifyEntry(pos)

	a.logger.Info("position-opened",
		zap.String("position-id", pos.ID),
		zap.String("window-slug", pos.WindowSlug),
		zap.String("side", string(pos.Side)),
		zap.Float64("entry-price", pos.EntryPrice),
		zap.Float64("size", pos.Size),
		zap.String("mode", pos.Mode))
}

// enterPaper records the entry at the observed price without touching the
// exchange.
func (a *App) enterPaper(market *types.Market, decision *gate.Decision) *types.Position {
	return &types.Position{
		WindowSlug:  decision.WindowSlug,
		ConditionID: market.ConditionID,
		TokenID:     decision.TokenID,
		Side:        decision.Side,
		EntryPrice:  decision.Price,
		Size:        a.cfg.OrderSize,
		Mode:        types.ModePaper,
		CreatedAt:   time.Now().UTC(),
	}
}

// enterLive races both sides of the window on the exchange. The race is
// bounded by the entry deadline so no order outlives its window unwatched.
func (a *App) enterLive(market *types.Market, decision *gate.Decision, deadline time.Time) *types.Position {
	raceCtx, cancel := context.WithDeadline(a.ctx, deadline)
	defer cancel()

	result, err := a.raceEngine.Run(raceCtx, market, decision.Price, a.cfg.OrderSize)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			a.logger.Info("race-cut-off",
				zap.String("window-slug", market.Slug),
				zap.Error(err))
		} else {
			a.logger.Error("race-failed",
				zap.String("window-slug", market.Slug),
				zap.Error(err))
		}
		return nil
	}
	if result == nil {
		// Raced to no fill; the window stays bet-marked so it is not retried.
		return nil
	}

	pos := &types.Position{
		WindowSlug:       market.Slug,
		ConditionID:      market.ConditionID,
		TokenID:          result.TokenID,
		Side:             result.Side,
		EntryPrice:       result.FillPrice,
		Size:             result.FillSize,
		Mode:             types.ModeLive,
		FilledOrderID:    result.FilledOrderID,
		CancelledOrderID: result.CancelledOrderID,
		CreatedAt:        time.Now().UTC(),
	}
	return pos
}

func (a *App) sleepUntil(t time.Time) {
	wait := time.Until(t)
	if wait <= 0 {
		return
	}

	select {
	case <-a.ctx.Done():
	case <-time.After(wait):
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
