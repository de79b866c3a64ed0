package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/mselser95/updown-bot/pkg/types"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS positions (
    id                 TEXT PRIMARY KEY,
    window_slug        TEXT NOT NULL,
    condition_id       TEXT NOT NULL,
    token_id           TEXT NOT NULL,
    side               TEXT NOT NULL,
    entry_price        DOUBLE PRECISION NOT NULL,
    size               DOUBLE PRECISION NOT NULL,
    mode               TEXT NOT NULL,
    filled_order_id    TEXT NOT NULL DEFAULT '',
    cancelled_order_id TEXT NOT NULL DEFAULT '',
    outcome            TEXT NOT NULL DEFAULT '',
    payout             DOUBLE PRECISION NOT NULL DEFAULT 0,
    profit             DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at         TIMESTAMPTZ NOT NULL,
    resolved_at        TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_positions_window  ON positions(window_slug);
CREATE INDEX IF NOT EXISTS idx_positions_pending ON positions(outcome, created_at);
`

const positionColumns = `id, window_slug, condition_id, token_id, side, entry_price, size, mode,
	filled_order_id, cancelled_order_id, outcome, payout, profit, created_at, resolved_at`

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStore opens the database, applies the schema and returns the store.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	cfg.Logger.Info("postgres-ledger-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// Create persists a new position.
func (p *PostgresStore) Create(ctx context.Context, pos *types.Position) (string, error) {
	if pos.ID == "" {
		pos.ID = uuid.New().String()
	}
	if pos.CreatedAt.IsZero() {
		pos.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO positions (
			id, window_slug, condition_id, token_id, side, entry_price, size, mode,
			filled_order_id, cancelled_order_id, outcome, payout, profit, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, '', 0, 0, $11
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		pos.ID,
		pos.WindowSlug,
		pos.ConditionID,
		pos.TokenID,
		string(pos.Side),
		pos.EntryPrice,
		pos.Size,
		pos.Mode,
		pos.FilledOrderID,
		pos.CancelledOrderID,
		pos.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert position: %w", err)
	}

	PositionsCreatedTotal.WithLabelValues(pos.Mode).Inc()

	p.logger.Debug("position-created",
		zap.String("position-id", pos.ID),
		zap.String("window-slug", pos.WindowSlug),
		zap.String("side", string(pos.Side)))

	return pos.ID, nil
}

// Finalize transitions a pending position to a terminal outcome. The update
// is guarded by outcome = '' so a concurrent or repeated finalize touches
// nothing and is reported as ErrAlreadyFinalized.
func (p *PostgresStore) Finalize(ctx context.Context, id string, outcome types.Outcome, payout float64) error {
	if !outcome.Terminal() {
		return fmt.Errorf("finalize with non-terminal outcome %q", outcome)
	}

	query := `
		UPDATE positions
		SET outcome = $2,
		    payout = $3,
		    profit = $3 - (entry_price * size),
		    resolved_at = $4
		WHERE id = $1 AND outcome = ''
	`

	result, err := p.db.ExecContext(ctx, query, id, string(outcome), payout, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("finalize position: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		var exists bool
		err = p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM positions WHERE id = $1)`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check position: %w", err)
		}
		if !exists {
			return fmt.Errorf("position %s: %w", id, types.ErrPositionNotFound)
		}
		return fmt.Errorf("position %s: %w", id, types.ErrAlreadyFinalized)
	}

	PositionsFinalizedTotal.WithLabelValues(string(outcome)).Inc()

	return nil
}

// ListUnresolved returns pending positions created within the freshness window.
func (p *PostgresStore) ListUnresolved(ctx context.Context, freshness time.Duration) ([]*types.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE outcome = '' AND created_at >= $1
		ORDER BY created_at
	`

	cutoff := time.Now().UTC().Add(-freshness)
	rows, err := p.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list unresolved: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// ListByWindow returns every position for one window slug.
func (p *PostgresStore) ListByWindow(ctx context.Context, slug string) ([]*types.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE window_slug = $1
		ORDER BY created_at
	`

	rows, err := p.db.QueryContext(ctx, query, slug)
	if err != nil {
		return nil, fmt.Errorf("list by window: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// ListRecent returns the most recently created positions, newest first.
func (p *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*types.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// BetWindows returns the distinct window slugs that have a position.
func (p *PostgresStore) BetWindows(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT DISTINCT window_slug FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("list bet windows: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("scan window slug: %w", err)
		}
		slugs = append(slugs, slug)
	}

	return slugs, rows.Err()
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-ledger")
	return p.db.Close()
}

func scanPositions(rows *sql.Rows) ([]*types.Position, error) {
	var positions []*types.Position

	for rows.Next() {
		pos := &types.Position{}
		var side, outcome string
		var resolvedAt sql.NullTime

		err := rows.Scan(
			&pos.ID,
			&pos.WindowSlug,
			&pos.ConditionID,
			&pos.TokenID,
			&side,
			&pos.EntryPrice,
			&pos.Size,
			&pos.Mode,
			&pos.FilledOrderID,
			&pos.CancelledOrderID,
			&outcome,
			&pos.Payout,
			&pos.Profit,
			&pos.CreatedAt,
			&resolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}

		pos.Side = types.Side(side)
		pos.Outcome = types.Outcome(outcome)
		if resolvedAt.Valid {
			pos.ResolvedAt = resolvedAt.Time
		}

		positions = append(positions, pos)
	}

	return positions, rows.Err()
}
