package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mselser95/updown-bot/pkg/types"
	"go.uber.org/zap"
)

// MemoryStore implements Store in memory. Used for paper runs without a
// database; semantics match the postgres store, durability does not.
type MemoryStore struct {
	mu        sync.Mutex
	positions map[string]*types.Position
	logger    *zap.Logger
}

// NewMemoryStore creates a new in-memory ledger.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	logger.Info("memory-ledger-initialized")
	return &MemoryStore{
		positions: make(map[string]*types.Position),
		logger:    logger,
	}
}

// Create persists a new position.
func (m *MemoryStore) Create(ctx context.Context, pos *types.Position) (string, error) {
	if pos.ID == "" {
		pos.ID = uuid.New().String()
	}
	if pos.CreatedAt.IsZero() {
		pos.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.positions[pos.ID]; exists {
		return "", fmt.Errorf("position %s already exists", pos.ID)
	}

	stored := *pos
	m.positions[pos.ID] = &stored

	PositionsCreatedTotal.WithLabelValues(pos.Mode).Inc()

	return pos.ID, nil
}

// Finalize transitions a pending position to a terminal outcome.
func (m *MemoryStore) Finalize(ctx context.Context, id string, outcome types.Outcome, payout float64) error {
	if !outcome.Terminal() {
		return fmt.Errorf("finalize with non-terminal outcome %q", outcome)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, exists := m.positions[id]
	if !exists {
		return fmt.Errorf("position %s: %w", id, types.ErrPositionNotFound)
	}
	if pos.Outcome.Terminal() {
		return fmt.Errorf("position %s: %w", id, types.ErrAlreadyFinalized)
	}

	pos.Outcome = outcome
	pos.Payout = payout
	pos.Profit = pos.ProfitFor(payout)
	pos.ResolvedAt = time.Now().UTC()

	PositionsFinalizedTotal.WithLabelValues(string(outcome)).Inc()

	return nil
}

// ListUnresolved returns pending positions created within the freshness window.
func (m *MemoryStore) ListUnresolved(ctx context.Context, freshness time.Duration) ([]*types.Position, error) {
	cutoff := time.Now().UTC().Add(-freshness)

	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*types.Position
	for _, pos := range m.positions {
		if pos.Outcome == types.OutcomePending && !pos.CreatedAt.Before(cutoff) {
			copied := *pos
			result = append(result, &copied)
		}
	}

	sortByCreated(result, false)
	return result, nil
}

// ListByWindow returns every position for one window slug.
func (m *MemoryStore) ListByWindow(ctx context.Context, slug string) ([]*types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*types.Position
	for _, pos := range m.positions {
		if pos.WindowSlug == slug {
			copied := *pos
			result = append(result, &copied)
		}
	}

	sortByCreated(result, false)
	return result, nil
}

// ListRecent returns the most recently created positions, newest first.
func (m *MemoryStore) ListRecent(ctx context.Context, limit int) ([]*types.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]*types.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		copied := *pos
		result = append(result, &copied)
	}

	sortByCreated(result, true)
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// BetWindows returns the distinct window slugs that have a position.
func (m *MemoryStore) BetWindows(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	var slugs []string
	for _, pos := range m.positions {
		if !seen[pos.WindowSlug] {
			seen[pos.WindowSlug] = true
			slugs = append(slugs, pos.WindowSlug)
		}
	}

	sort.Strings(slugs)
	return slugs, nil
}

// Close is a no-op for the in-memory ledger.
func (m *MemoryStore) Close() error {
	m.logger.Info("closing-memory-ledger")
	return nil
}

func sortByCreated(positions []*types.Position, newestFirst bool) {
	sort.Slice(positions, func(i, j int) bool {
		if newestFirst {
			return positions[i].CreatedAt.After(positions[j].CreatedAt)
		}
		return positions[i].CreatedAt.Before(positions[j].CreatedAt)
	})
}
