package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mselser95/updown-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := &PostgresStore{
		db:     db,
		logger: zap.NewNop(),
	}
	return store, mock
}

func TestPostgresStore_Create(t *testing.T) {
	store, mock := newMockStore(t)

	pos := newPosition("btc-updown-5m-1700000100", types.SideUp, 0.62)

	mock.ExpectExec("INSERT INTO positions").
		WithArgs(
			sqlmock.AnyArg(), // generated id
			pos.WindowSlug,
			pos.ConditionID,
			pos.TokenID,
			string(pos.Side),
			pos.EntryPrice,
			pos.Size,
			pos.Mode,
			pos.FilledOrderID,
			pos.CancelledOrderID,
			sqlmock.AnyArg(), // created_at
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := store.Create(context.Background(), pos)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Finalize(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE positions").
		WithArgs("pos-1", string(types.OutcomeWin), 1.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Finalize(context.Background(), "pos-1", types.OutcomeWin, 1.0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinalizeAlreadyFinalized(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE positions").
		WithArgs("pos-1", string(types.OutcomeLose), 0.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("pos-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := store.Finalize(context.Background(), "pos-1", types.OutcomeLose, 0)
	assert.ErrorIs(t, err, types.ErrAlreadyFinalized)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinalizeNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE positions").
		WithArgs("ghost", string(types.OutcomeTimeout), 0.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := store.Finalize(context.Background(), "ghost", types.OutcomeTimeout, 0)
	assert.ErrorIs(t, err, types.ErrPositionNotFound)
}

func TestPostgresStore_FinalizeRejectsPendingOutcome(t *testing.T) {
	store, _ := newMockStore(t)

	err := store.Finalize(context.Background(), "pos-1", types.OutcomePending, 0)
	assert.Error(t, err)
}

func positionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "window_slug", "condition_id", "token_id", "side", "entry_price", "size", "mode",
		"filled_order_id", "cancelled_order_id", "outcome", "payout", "profit", "created_at", "resolved_at",
	})
}

func TestPostgresStore_ListUnresolved(t *testing.T) {
	store, mock := newMockStore(t)

	created := time.Now().UTC().Add(-time.Minute)
	mock.ExpectQuery("SELECT (.+) FROM positions").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(positionRows().
			AddRow("pos-1", "w-100", "0xcond", "tok-up", "UP", 0.62, 1.0, "live",
				"ord-1", "ord-2", "", 0.0, 0.0, created, nil))

	positions, err := store.ListUnresolved(context.Background(), time.Hour)
	require.NoError(t, err)
	require.Len(t, positions, 1)

	pos := positions[0]
	assert.Equal(t, "pos-1", pos.ID)
	assert.Equal(t, types.SideUp, pos.Side)
	assert.Equal(t, types.OutcomePending, pos.Outcome)
	assert.Equal(t, "ord-1", pos.FilledOrderID)
	assert.True(t, pos.ResolvedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BetWindows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT DISTINCT window_slug FROM positions").
		WillReturnRows(sqlmock.NewRows([]string{"window_slug"}).
			AddRow("w-100").
			AddRow("w-200"))

	slugs, err := store.BetWindows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"w-100", "w-200"}, slugs)
}
