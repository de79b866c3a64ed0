package gate

import (
	"sync"
	"time"

	"github.com/mselser95/updown-bot/pkg/types"
	"go.uber.org/zap"
)

// Decision is one entry signal: buy one side of one window at the tick price.
type Decision struct {
	WindowSlug string
	Side       types.Side
	TokenID    string
	Price      float64
}

// Gate turns price ticks into at-most-one entry decision per window.
//
// The gate owns all per-window mutable state: the already-bet set (seeded
// from the ledger at startup so a restart cannot re-enter a window bet in a
// prior process), the latest-price map, and the settled-early flags. A price
// qualifies when it lies in [entryThreshold, rejectCeiling); prices at or
// above the ceiling mean one side is already trading near settlement and are
// never acted on.
type Gate struct {
	entryThreshold float64
	rejectCeiling  float64
	filter         FilterFunc
	logger         *zap.Logger

	mu      sync.Mutex
	betted  map[string]bool    // window slug -> entry already fired
	latest  map[string]float64 // token id -> last observed price
	settled map[string]bool    // window slug -> both sides above ceiling
}

// Config holds gate configuration.
type Config struct {
	EntryThreshold float64
	RejectCeiling  float64

	// BetWindows seeds the already-bet set, typically from
	// ledger.BetWindows at startup.
	BetWindows []string

	// Filter optionally restricts entries to historically favorable hours.
	// Nil means no restriction.
	Filter FilterFunc

	Logger *zap.Logger
}

// New creates a price gate.
func New(cfg *Config) *Gate {
	betted := make(map[string]bool, len(cfg.BetWindows))
	for _, slug := range cfg.BetWindows {
		betted[slug] = true
	}

	return &Gate{
		entryThreshold: cfg.EntryThreshold,
		rejectCeiling:  cfg.RejectCeiling,
		filter:         cfg.Filter,
		logger:         cfg.Logger,
		betted:         betted,
		latest:         make(map[string]float64),
		settled:        make(map[string]bool),
	}
}

// OnTick consumes one price tick for the given market. It returns a decision
// exactly once per window: the first qualifying tick fires, every later tick
// for that window is a no-op. Ticks for unknown token ids are ignored.
func (g *Gate) OnTick(market *types.Market, tick types.PriceTick, now time.Time) (*Decision, bool) {
	side := market.SideOf(tick.TokenID)
	if side == types.SideNone {
		TicksRejectedTotal.WithLabelValues("unknown-token").Inc()
		return nil, false
	}

	TicksTotal.Inc()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.latest[tick.TokenID] = tick.Price

	// A price at or above the ceiling is evidence the market has settled,
	// not an entry signal, even though it exceeds the threshold. Both sides
	// up there simultaneously means the window is decided: stop waiting.
	if tick.Price >= g.rejectCeiling {
		if g.bothAboveCeiling(market) && !g.settled[market.Slug] {
			g.settled[market.Slug] = true
			SettledEarlyTotal.Inc()
			g.logger.Info("window-settled-early",
				zap.String("window-slug", market.Slug),
				zap.Float64("up-price", g.latest[market.UpTokenID]),
				zap.Float64("down-price", g.latest[market.DownTokenID]))
		}
		TicksRejectedTotal.WithLabelValues("above-ceiling").Inc()
		return nil, false
	}

	if tick.Price < g.entryThreshold {
		TicksRejectedTotal.WithLabelValues("below-threshold").Inc()
		return nil, false
	}

	if g.betted[market.Slug] {
		TicksRejectedTotal.WithLabelValues("already-bet").Inc()
		return nil, false
	}

	if g.filter != nil && !g.filter(now) {
		TicksRejectedTotal.WithLabelValues("filtered").Inc()
		return nil, false
	}

	// Qualifying tick: mark before returning so no later tick can fire.
	g.betted[market.Slug] = true
	EntriesTotal.WithLabelValues(string(side)).Inc()

	g.logger.Info("entry-decision",
		zap.String("window-slug", market.Slug),
		zap.String("side", string(side)),
		zap.Float64("price", tick.Price))

	return &Decision{
		WindowSlug: market.Slug,
		Side:       side,
		TokenID:    tick.TokenID,
		Price:      tick.Price,
	}, true
}

// SettledEarly reports whether both sides of the window have been observed
// at or above the reject ceiling, i.e. the market is effectively decided and
// the caller need not wait for the window to end naturally.
func (g *Gate) SettledEarly(slug string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settled[slug]
}

// HasBet reports whether an entry has already fired for the window.
func (g *Gate) HasBet(slug string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.betted[slug]
}

// LatestPrice returns the last observed price for a token id.
func (g *Gate) LatestPrice(tokenID string) (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	price, ok := g.latest[tokenID]
	return price, ok
}

// ForgetWindow drops per-window tick state once a window is over. The
// already-bet marker is kept: it backs the at-most-once guarantee.
func (g *Gate) ForgetWindow(market *types.Market) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.latest, market.UpTokenID)
	delete(g.latest, market.DownTokenID)
	delete(g.settled, market.Slug)
}

func (g *Gate) bothAboveCeiling(market *types.Market) bool {
	up, okUp := g.latest[market.UpTokenID]
	down, okDown := g.latest[market.DownTokenID]
	return okUp && okDown && up >= g.rejectCeiling && down >= g.rejectCeiling
}
