package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mselser95/updown-bot/internal/ledger"
	"github.com/mselser95/updown-bot/pkg/types"
	"go.uber.org/zap"
)

// SettlementChecker answers which side won a closed window.
// *windows.Directory implements it.
type SettlementChecker interface {
	CheckSettlement(ctx context.Context, slug string) (types.Side, error)
}

// Notifier receives resolved positions for reporting. Both hooks are
// optional and must not block.
type Notifier interface {
	NotifyResolution(pos *types.Position)
}

// SessionRecorder receives resolved positions for session accounting.
type SessionRecorder interface {
	RecordResolution(pos *types.Position)
}

// Config holds reconciler configuration.
type Config struct {
	Store       ledger.Store
	Checker     SettlementChecker
	Notifier    Notifier
	Session     SessionRecorder
	Interval    time.Duration
	Freshness   time.Duration
	MaxAttempts int
	Logger      *zap.Logger
}

// Reconciler sweeps pending positions on a fixed cadence and finalizes
// them against on-chain settlement. Positions sharing a window are checked
// with a single settlement query per sweep.
//
// A window that stays unsettled past the attempt budget is finalized as a
// timeout with zero payout so the ledger cannot accumulate positions that
// never terminate. Settlement query failures and still-pending windows
// only consume an attempt; they never stop the sweep or crash the loop.
type Reconciler struct {
	store       ledger.Store
	checker     SettlementChecker
	notifier    Notifier
	session     SessionRecorder
	interval    time.Duration
	freshness   time.Duration
	maxAttempts int
	logger      *zap.Logger

	mu       sync.Mutex
	attempts map[string]int
}

// New creates a reconciler.
func New(cfg *Config) *Reconciler {
	return &Reconciler{
		store:       cfg.Store,
		checker:     cfg.Checker,
		notifier:    cfg.Notifier,
		session:     cfg.Session,
		interval:    cfg.Interval,
		freshness:   cfg.Freshness,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
	}
}

// Run sweeps until ctx is cancelled. One sweep runs immediately on start
// so restart recovery does not wait a full interval.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("reconciler-started",
		zap.Duration("interval", r.interval),
		zap.Int("max-attempts", r.maxAttempts))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler-stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs a single reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) {
	SweepsTotal.Inc()

	pending, err := r.store.ListUnresolved(ctx, r.freshness)
	if err != nil {
		r.logger.Error("reconcile-list-failed", zap.Error(err))
		SweepErrorsTotal.Inc()
		return
	}
	PendingPositions.Set(float64(len(pending)))

	byWindow := make(map[string][]*types.Position)
	for _, pos := range pending {
		byWindow[pos.WindowSlug] = append(byWindow[pos.WindowSlug], pos)
	}
	r.pruneAttempts(byWindow)

	for slug, positions := range byWindow {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.reconcileWindow(ctx, slug, positions)
	}
}

func (r *Reconciler) reconcileWindow(ctx context.Context, slug string, positions []*types.Position) {
	winner, err := r.checker.CheckSettlement(ctx, slug)
	if err != nil {
		attempt := r.bumpAttempt(slug)

		if errors.Is(err, types.ErrSettlementPending) {
			r.logger.Debug("settlement-pending",
				zap.String("window-slug", slug),
				zap.Int("attempt", attempt))
		} else {
			r.logger.Warn("settlement-check-failed",
				zap.String("window-slug", slug),
				zap.Int("attempt", attempt),
				zap.Error(err))
			SettlementErrorsTotal.Inc()
		}

		if attempt >= r.maxAttempts {
			r.expireWindow(ctx, slug, positions)
		}
		return
	}

	for _, pos := range positions {
		outcome := types.OutcomeLose
		payout := 0.0
		if pos.Side == winner {
			outcome = types.OutcomeWin
			payout = pos.Size * types.WinPayout
		}
		r.finalize(ctx, pos, outcome, payout)
	}
	r.clearAttempts(slug)

	r.logger.Info("window-reconciled",
		zap.String("window-slug", slug),
		zap.String("winner", string(winner)),
		zap.Int("positions", len(positions)))
}

// expireWindow finalizes every position as a timeout. Applies in paper and
// live mode alike: a window the chain never settles for us is a realized
// loss of the cost basis, not a position worth carrying forever.
func (r *Reconciler) expireWindow(ctx context.Context, slug string, positions []*types.Position) {
	r.logger.Warn("window-reconcile-expired",
		zap.String("window-slug", slug),
		zap.Int("attempts", r.maxAttempts),
		zap.Int("positions", len(positions)))
	WindowsExpiredTotal.Inc()

	for _, pos := range positions {
		r.finalize(ctx, pos, types.OutcomeTimeout, 0)
	}
	r.clearAttempts(slug)
}

func (r *Reconciler) finalize(ctx context.Context, pos *types.Position, outcome types.Outcome, payout float64) {
	err := r.store.Finalize(ctx, pos.ID, outcome, payout)
	if err != nil {
		// A concurrent finalize already settled this one; nothing to redo.
		if errors.Is(err, types.ErrAlreadyFinalized) {
			return
		}
		r.logger.Error("position-finalize-failed",
			zap.String("position-id", pos.ID),
			zap.String("outcome", string(outcome)),
			zap.Error(err))
		FinalizeErrorsTotal.Inc()
		return
	}

	pos.Outcome = outcome
	pos.Payout = payout
	pos.Profit = pos.ProfitFor(payout)
	pos.ResolvedAt = time.Now().UTC()

	ResolutionsTotal.WithLabelValues(string(outcome)).Inc()
	RealizedProfitDollars.Add(pos.Profit)

	if r.session != nil {
		r.session.RecordResolution(pos)
	}
	if r.notifier != nil {
		r.notifier.NotifyResolution(pos)
	}
}

func (r *Reconciler) bumpAttempt(slug string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attempts == nil {
		r.attempts = make(map[string]int)
	}
	r.attempts[slug]++
	return r.attempts[slug]
}

func (r *Reconciler) clearAttempts(slug string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, slug)
}

// pruneAttempts drops counters for windows no longer pending, such as
// windows whose positions aged past the freshness cutoff before the attempt
// budget ran out.
func (r *Reconciler) pruneAttempts(active map[string][]*types.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for slug := range r.attempts {
		if _, ok := active[slug]; !ok {
			delete(r.attempts, slug)
		}
	}
}
