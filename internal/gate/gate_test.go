package gate

import (
	"testing"
	"time"

	"github.com/mselser95/updown-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMarket() *types.Market {
	return &types.Market{
		Slug:        "btc-updown-5m-1700000100",
		ConditionID: "0xcond",
		UpTokenID:   "tok-up",
		DownTokenID: "tok-down",
	}
}

func newTestGate(betWindows ...string) *Gate {
	return New(&Config{
		EntryThreshold: 0.60,
		RejectCeiling:  0.85,
		BetWindows:     betWindows,
		Logger:         zap.NewNop(),
	})
}

func tick(tokenID string, price float64) types.PriceTick {
	return types.PriceTick{TokenID: tokenID, Price: price, Timestamp: time.Now()}
}

func TestOnTick_ThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name    string
		price   float64
		qualify bool
	}{
		{name: "below-threshold", price: 0.59, qualify: false},
		{name: "exactly-at-threshold", price: 0.60, qualify: true},
		{name: "inside-band", price: 0.70, qualify: true},
		{name: "just-below-ceiling", price: 0.84999, qualify: true},
		{name: "exactly-at-ceiling", price: 0.85, qualify: false},
		{name: "above-ceiling", price: 0.99, qualify: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGate()
			decision, ok := g.OnTick(testMarket(), tick("tok-up", tt.price), time.Now())
			assert.Equal(t, tt.qualify, ok)
			if tt.qualify {
				require.NotNil(t, decision)
				assert.Equal(t, tt.price, decision.Price)
				assert.Equal(t, types.SideUp, decision.Side)
			}
		})
	}
}

func TestOnTick_AtMostOncePerWindow(t *testing.T) {
	g := newTestGate()
	market := testMarket()

	_, ok := g.OnTick(market, tick("tok-up", 0.62), time.Now())
	require.True(t, ok)

	// Any number of further qualifying ticks, on either side, are no-ops.
	for i := 0; i < 10; i++ {
		_, ok = g.OnTick(market, tick("tok-up", 0.65), time.Now())
		assert.False(t, ok)
		_, ok = g.OnTick(market, tick("tok-down", 0.70), time.Now())
		assert.False(t, ok)
	}
}

func TestOnTick_SeededFromLedgerOnRestart(t *testing.T) {
	// A restart reconstructs the gate with the windows already bet on; new
	// qualifying ticks for those windows must not fire again.
	g := newTestGate("btc-updown-5m-1700000100")

	_, ok := g.OnTick(testMarket(), tick("tok-up", 0.62), time.Now())
	assert.False(t, ok)
	assert.True(t, g.HasBet("btc-updown-5m-1700000100"))
}

func TestOnTick_UnknownTokenIsNoOp(t *testing.T) {
	g := newTestGate()

	decision, ok := g.OnTick(testMarket(), tick("tok-other", 0.70), time.Now())
	assert.False(t, ok)
	assert.Nil(t, decision)
	assert.False(t, g.HasBet("btc-updown-5m-1700000100"))
}

func TestOnTick_SideDerivedFromToken(t *testing.T) {
	g := newTestGate()

	decision, ok := g.OnTick(testMarket(), tick("tok-down", 0.61), time.Now())
	require.True(t, ok)
	assert.Equal(t, types.SideDown, decision.Side)
	assert.Equal(t, "tok-down", decision.TokenID)
}

func TestSettledEarly(t *testing.T) {
	g := newTestGate()
	market := testMarket()

	// One side above the ceiling is not enough.
	g.OnTick(market, tick("tok-up", 0.97), time.Now())
	assert.False(t, g.SettledEarly(market.Slug))

	// Both sides above the ceiling flips the flag.
	g.OnTick(market, tick("tok-down", 0.91), time.Now())
	assert.True(t, g.SettledEarly(market.Slug))

	// And no entry fired along the way.
	assert.False(t, g.HasBet(market.Slug))
}

func TestSettledEarly_RequiresSimultaneouslyAbove(t *testing.T) {
	g := newTestGate()
	market := testMarket()

	g.OnTick(market, tick("tok-up", 0.97), time.Now())
	g.OnTick(market, tick("tok-up", 0.50), time.Now()) // Up drops back
	g.OnTick(market, tick("tok-down", 0.91), time.Now())

	assert.False(t, g.SettledEarly(market.Slug))
}

func TestOnTick_HourFilterBlocksEntry(t *testing.T) {
	at := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC) // Monday 14:00 bucket

	filter := NewHourFilter([]FilterCell{
		{Hour: 14, Weekday: time.Monday, Trades: 50, Wins: 10},
	}, 20, 0.5)

	g := New(&Config{
		EntryThreshold: 0.60,
		RejectCeiling:  0.85,
		Filter:         filter,
		Logger:         zap.NewNop(),
	})

	_, ok := g.OnTick(testMarket(), tick("tok-up", 0.62), at)
	assert.False(t, ok)
	// A blocked tick must not consume the window's single entry.
	assert.False(t, g.HasBet("btc-updown-5m-1700000100"))
}

func TestHourFilter(t *testing.T) {
	cells := []FilterCell{
		{Hour: 14, Weekday: time.Monday, Trades: 50, Wins: 10},  // bad hour
		{Hour: 15, Weekday: time.Monday, Trades: 50, Wins: 40},  // good hour
		{Hour: 16, Weekday: time.Monday, Trades: 3, Wins: 0},    // too few samples
	}
	filter := NewHourFilter(cells, 20, 0.5)

	monday := func(hour int) time.Time {
		return time.Date(2024, 3, 4, hour, 0, 0, 0, time.UTC)
	}

	assert.False(t, filter(monday(14)))
	assert.True(t, filter(monday(15)))
	assert.True(t, filter(monday(16))) // sparse bucket allowed
	assert.True(t, filter(monday(20))) // unknown bucket allowed
}

func TestForgetWindow(t *testing.T) {
	g := newTestGate()
	market := testMarket()

	g.OnTick(market, tick("tok-up", 0.97), time.Now())
	g.OnTick(market, tick("tok-down", 0.91), time.Now())
	require.True(t, g.SettledEarly(market.Slug))

	g.ForgetWindow(market)

	assert.False(t, g.SettledEarly(market.Slug))
	_, ok := g.LatestPrice("tok-up")
	assert.False(t, ok)
}
