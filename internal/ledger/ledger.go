package ledger

import (
	"context"
	"time"

	"github.com/mselser95/updown-bot/pkg/types"
)

// Store is the durable record of every position. It is the only mutable
// state shared between the entry loop and the reconciler; every mutation is
// a single-row atomic update keyed by position id.
type Store interface {
	// Create persists a new position and returns its id. A missing id is
	// assigned. The position's outcome must be pending.
	Create(ctx context.Context, pos *types.Position) (string, error)

	// Finalize transitions a position from pending to a terminal outcome,
	// computing profit from payout and cost basis at that moment. It is
	// exactly-once: finalizing an already-terminal position returns
	// types.ErrAlreadyFinalized and changes nothing.
	Finalize(ctx context.Context, id string, outcome types.Outcome, payout float64) error

	// ListUnresolved returns pending positions created within the freshness
	// window. Older pending positions are considered abandoned and excluded
	// from active reconciliation.
	ListUnresolved(ctx context.Context, freshness time.Duration) ([]*types.Position, error)

	// ListByWindow returns every position for one window slug.
	ListByWindow(ctx context.Context, slug string) ([]*types.Position, error)

	// ListRecent returns the most recently created positions, newest first.
	ListRecent(ctx context.Context, limit int) ([]*types.Position, error)

	// BetWindows returns the distinct window slugs that have a position,
	// regardless of outcome. Used to rebuild the at-most-once entry guard
	// after a restart.
	BetWindows(ctx context.Context) ([]string, error)

	// Close releases the underlying storage handle.
	Close() error
}
