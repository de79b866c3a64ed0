package session

import (
	"sync"
	"time"

	"github.com/mselser95/updown-bot/pkg/types"
	"go.uber.org/zap"
)

// Status is a snapshot of the session's running estimate.
type Status struct {
	StartedAt    time.Time `json:"started_at"`
	Entries      int       `json:"entries"`
	Resolutions  int       `json:"resolutions"`
	NetPnl       float64   `json:"net_pnl"`
	LossLimit    float64   `json:"loss_limit"`
	EntryAllowed bool      `json:"entry_allowed"`
}

// Guard keeps a running session profit estimate and latches new entries off
// once cumulative losses breach a configured floor. It is advisory only: it
// gates future entries, it never touches orders already in flight, and open
// positions still reconcile after a breach.
//
// The estimate debits full cost basis at entry time and credits payout at
// resolution, so open positions count as losses until they resolve. The
// guard therefore errs toward stopping early rather than late. A breach is
// final for the session: later wins keep updating the estimate but never
// re-enable entries. Only a restart resets the guard.
type Guard struct {
	mu          sync.Mutex
	startedAt   time.Time
	lossLimit   float64
	netPnl      float64
	entries     int
	resolutions int
	tripped     bool
	logger      *zap.Logger
}

// NewGuard creates a guard with the given loss limit in dollars.
// A limit of zero or below disables the floor entirely.
func NewGuard(lossLimit float64, logger *zap.Logger) *Guard {
	return &Guard{
		startedAt: time.Now().UTC(),
		lossLimit: lossLimit,
		logger:    logger,
	}
}

// AllowEntry reports whether new entries are permitted. Once the loss floor
// has been breached this stays false for the rest of the session.
func (g *Guard) AllowEntry() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.tripped
}

// RecordEntry debits the position's cost basis from the session estimate.
func (g *Guard) RecordEntry(pos *types.Position) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entries++
	g.netPnl -= pos.CostBasis()
	g.publishLocked()
}

// RecordResolution credits the payout of a resolved position.
func (g *Guard) RecordResolution(pos *types.Position) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resolutions++
	g.netPnl += pos.Payout
	g.publishLocked()
}

// Snapshot returns the current session state for reporting.
func (g *Guard) Snapshot() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Status{
		StartedAt:    g.startedAt,
		Entries:      g.entries,
		Resolutions:  g.resolutions,
		NetPnl:       g.netPnl,
		LossLimit:    g.lossLimit,
		EntryAllowed: !g.tripped,
	}
}

func (g *Guard) publishLocked() {
	SessionNetPnl.Set(g.netPnl)

	if !g.tripped && g.lossLimit > 0 && g.netPnl < -g.lossLimit {
		g.tripped = true
		g.logger.Warn("session-loss-limit-reached",
			zap.Float64("net-pnl", g.netPnl),
			zap.Float64("loss-limit", g.lossLimit))
	}

	if g.tripped {
		SessionGuardBlocked.Set(1)
	} else {
		SessionGuardBlocked.Set(0)
	}
}
