package types

import "time"

// Outcome is the terminal state of a position. A position transitions from
// OutcomePending to exactly one terminal value and is never re-resolved.
type Outcome string

const (
	OutcomePending Outcome = ""
	OutcomeWin     Outcome = "win"
	OutcomeLose    Outcome = "lose"
	OutcomeTimeout Outcome = "timeout"
)

// Terminal reports whether the outcome is a final state.
func (o Outcome) Terminal() bool {
	return o != OutcomePending
}

// Execution modes.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// WinPayout is the settlement value of one share of the winning side.
const WinPayout = 1.0

// Position is the central entity of the ledger: one speculative entry into
// one window, from creation through settlement.
type Position struct {
	ID          string  `json:"id"`
	WindowSlug  string  `json:"window_slug"`
	ConditionID string  `json:"condition_id"`
	TokenID     string  `json:"token_id"`
	Side        Side    `json:"side"`
	EntryPrice  float64 `json:"entry_price"`
	Size        float64 `json:"size"`
	Mode        string  `json:"mode"` // "paper" or "live"

	// Live-mode order identifiers. The filled order bought the position;
	// the cancelled order was the losing leg of the race.
	FilledOrderID    string `json:"filled_order_id,omitempty"`
	CancelledOrderID string `json:"cancelled_order_id,omitempty"`

	// ResolvedAt stays zero until the position reaches a terminal outcome.
	Outcome    Outcome   `json:"outcome"`
	Payout     float64   `json:"payout"`
	Profit     float64   `json:"profit"`
	CreatedAt  time.Time `json:"created_at"`
	ResolvedAt time.Time `json:"resolved_at,omitzero"`
}

// CostBasis is what the position cost to open.
func (p *Position) CostBasis() float64 {
	return p.EntryPrice * p.Size
}

// ProfitFor computes the deterministic profit for a given payout.
// Called exactly once, at the pending-to-terminal transition.
func (p *Position) ProfitFor(payout float64) float64 {
	return payout - p.CostBasis()
}
