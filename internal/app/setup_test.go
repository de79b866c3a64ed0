package app

import (
	"context"
	"testing"
	"time"

	"github.com/mselser95/updown-bot/internal/gate"
	"github.com/mselser95/updown-bot/internal/ledger"
	"github.com/mselser95/updown-bot/pkg/config"
	"github.com/mselser95/updown-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAppConfig() *config.Config {
	return &config.Config{
		LogLevel:             "info",
		HTTPPort:             "8080",
		WindowPeriod:         5 * time.Minute,
		WindowSlugPrefix:     "btc-updown-5m",
		WindowEndMargin:      2 * time.Second,
		EntryThreshold:       0.60,
		RejectCeiling:        0.85,
		OrderSize:            10,
		RacePollInterval:     2 * time.Second,
		RaceMaxPolls:         15,
		HourFilterMinTrades:  5,
		HourFilterMinWinRate: 0.5,
		HourFilterHistory:    500,
		ReconcileInterval:    10 * time.Second,
		ReconcileFreshness:   time.Hour,
		ReconcileMaxAttempts: 60,
		SessionLossLimit:     25,
		ExecutionMode:        "paper",
		StorageMode:          "memory",
	}
}

func TestSetupLedgerMemoryMode(t *testing.T) {
	store, err := setupLedger(testAppConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &ledger.MemoryStore{}, store)
}

func TestSetupGateSeedsBetWindows(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	_, err := store.Create(context.Background(), &types.Position{
		WindowSlug: "btc-updown-5m-1700000100",
		Side:       types.SideUp,
		EntryPrice: 0.62,
		Size:       10,
		Mode:       types.ModePaper,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	priceGate, err := setupGate(context.Background(), testAppConfig(), zap.NewNop(), store)
	require.NoError(t, err)

	assert.True(t, priceGate.HasBet("btc-updown-5m-1700000100"))
	assert.False(t, priceGate.HasBet("btc-updown-5m-1700000400"))
}

func TestSetupHourFilterBlocksLosingBucket(t *testing.T) {
	cfg := testAppConfig()
	cfg.HourFilterEnabled = true
	cfg.HourFilterMinTrades = 3

	store := ledger.NewMemoryStore(zap.NewNop())

	// Six losses on Monday 14:00 UTC; the bucket must block.
	badHour := time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC) // a Monday
	for i := 0; i < 6; i++ {
		id, err := store.Create(context.Background(), &types.Position{
			WindowSlug: "btc-updown-5m-1704119400",
			Side:       types.SideUp,
			EntryPrice: 0.62,
			Size:       10,
			Mode:       types.ModePaper,
			CreatedAt:  badHour,
		})
		require.NoError(t, err)
		require.NoError(t, store.Finalize(context.Background(), id, types.OutcomeLose, 0))
	}

	filter, err := setupHourFilter(context.Background(), cfg, zap.NewNop(), store)
	require.NoError(t, err)
	require.NotNil(t, filter)

	assert.False(t, filter(badHour))
	assert.True(t, filter(badHour.Add(3*time.Hour)))
}

func TestSetupHourFilterDisabled(t *testing.T) {
	store := ledger.NewMemoryStore(zap.NewNop())
	filter, err := setupHourFilter(context.Background(), testAppConfig(), zap.NewNop(), store)
	require.NoError(t, err)
	assert.Nil(t, filter)
}

func TestSetupRaceEngineDisabledInPaperMode(t *testing.T) {
	engine, err := setupRaceEngine(testAppConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, engine)
}

func TestEnterPaperBuildsPosition(t *testing.T) {
	a := &App{cfg: testAppConfig()}

	market := &types.Market{
		Slug:        "btc-updown-5m-1700000100",
		ConditionID: "0xcond",
		UpTokenID:   "tok-up",
		DownTokenID: "tok-down",
	}
	decision := &gate.Decision{
		WindowSlug: market.Slug,
		Side:       types.SideUp,
		TokenID:    "tok-up",
		Price:      0.62,
	}

	pos := a.enterPaper(market, decision)
	require.NotNil(t, pos)
	assert.Equal(t, market.Slug, pos.WindowSlug)
	assert.Equal(t, "0xcond", pos.ConditionID)
	assert.Equal(t, types.SideUp, pos.Side)
	assert.Equal(t, 0.62, pos.EntryPrice)
	assert.Equal(t, 10.0, pos.Size)
	assert.Equal(t, types.ModePaper, pos.Mode)
	assert.False(t, pos.CreatedAt.IsZero())
}
