package types

import "errors"

// Sentinel errors for ordinary, expected conditions. Callers branch on these
// with errors.Is; none of them indicate a fault in the process itself.
var (
	// ErrWindowNotFound means the directory has no market for the slug.
	ErrWindowNotFound = errors.New("window not found")

	// ErrWindowClosed means the window exists but is no longer tradable.
	// Distinct from not-found: the slug was valid, trading is over.
	ErrWindowClosed = errors.New("window closed")

	// ErrSettlementPending means the exchange has not yet declared a winner.
	ErrSettlementPending = errors.New("settlement pending")

	// ErrAlreadyFinalized means a position's outcome was already terminal
	// when a finalize was attempted. Finalization is exactly-once.
	ErrAlreadyFinalized = errors.New("position already finalized")

	// ErrPositionNotFound means the ledger has no row for the given id.
	ErrPositionNotFound = errors.New("position not found")
)

// Known Polymarket CLOB API error codes observed during order handling.
const (
	ErrCodeNotEnoughBalance = "INVALID_ORDER_NOT_ENOUGH_BALANCE"
	ErrCodeMarketNotReady   = "MARKET_NOT_READY"
	ErrCodeOrderNotFound    = "ORDER_NOT_FOUND"
	ErrCodeUnmatched        = "UNMATCHED"
)
