package race

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mselser95/updown-bot/internal/execution"
	"github.com/mselser95/updown-bot/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExchange struct {
	mu        sync.Mutex
	placeErr  map[string]error
	statusFn  func(orderID string, call int) (*execution.OrderStatus, error)
	placed    []string
	cancelled []string
	calls     map[string]int
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		placeErr: make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeExchange) PlaceLimitBuy(_ context.Context, tokenID string, _, _ float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.placeErr[tokenID]; err != nil {
		return "", err
	}
	f.placed = append(f.placed, tokenID)
	return "order-" + tokenID, nil
}

func (f *fakeExchange) GetOrderStatus(_ context.Context, orderID string) (*execution.OrderStatus, error) {
	f.mu.Lock()
	f.calls[orderID]++
	call := f.calls[orderID]
	f.mu.Unlock()
	return f.statusFn(orderID, call)
}

func (f *fakeExchange) CancelOrder(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakeExchange) cancelledOrders() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.cancelled))
	copy(out, f.cancelled)
	return out
}

func liveStatus(orderID string) *execution.OrderStatus {
	return &execution.OrderStatus{OrderID: orderID, Status: "LIVE"}
}

func filledStatus(orderID string, price, size float64) *execution.OrderStatus {
	return &execution.OrderStatus{
		OrderID:    orderID,
		Status:     execution.StatusMatched,
		Price:      price,
		SizeFilled: size,
	}
}

func cancelledStatus(orderID string) *execution.OrderStatus {
	return &execution.OrderStatus{OrderID: orderID, Status: execution.StatusCancelled}
}

func testMarket() *types.Market {
	return &types.Market{
		Slug:        "btc-updown-5m-1700000100",
		ConditionID: "0xcond",
		UpTokenID:   "tok-up",
		DownTokenID: "tok-down",
	}
}

func testEngine(client ExchangeClient, maxPolls int) *Engine {
	return New(&Config{
		Client:       client,
		PollInterval: time.Millisecond,
		MaxPolls:     maxPolls,
		Logger:       zap.NewNop(),
	})
}

func TestRunUpFillsFirst(t *testing.T) {
	fake := newFakeExchange()
	fake.statusFn = func(orderID string, call int) (*execution.OrderStatus, error) {
		if orderID == "order-tok-up" && call >= 2 {
			return filledStatus(orderID, 0.62, 10), nil
		}
		return liveStatus(orderID), nil
	}

	result, err := testEngine(fake, 5).Run(context.Background(), testMarket(), 0.62, 10)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, types.SideUp, result.Side)
	assert.Equal(t, "tok-up", result.TokenID)
	assert.Equal(t, 0.62, result.FillPrice)
	assert.Equal(t, 10.0, result.FillSize)
	assert.Equal(t, "order-tok-up", result.FilledOrderID)
	assert.Equal(t, "order-tok-down", result.CancelledOrderID)

	// Exactly one cancellation, for the losing leg only.
	assert.Equal(t, []string{"order-tok-down"}, fake.cancelledOrders())
}

func TestRunDownFillsFirst(t *testing.T) {
	fake := newFakeExchange()
	fake.statusFn = func(orderID string, _ int) (*execution.OrderStatus, error) {
		if orderID == "order-tok-down" {
			return filledStatus(orderID, 0.61, 10), nil
		}
		return liveStatus(orderID), nil
	}

	result, err := testEngine(fake, 5).Run(context.Background(), testMarket(), 0.62, 10)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, types.SideDown, result.Side)
	assert.Equal(t, "order-tok-down", result.FilledOrderID)
	assert.Equal(t, []string{"order-tok-up"}, fake.cancelledOrders())
}

func TestRunBothFilledSameCycleUpWins(t *testing.T) {
	fake := newFakeExchange()
	fake.statusFn = func(orderID string, _ int) (*execution.OrderStatus, error) {
		return filledStatus(orderID, 0.62, 10), nil
	}

	result, err := testEngine(fake, 5).Run(context.Background(), testMarket(), 0.62, 10)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, types.SideUp, result.Side)
	assert.Equal(t, []string{"order-tok-down"}, fake.cancelledOrders())
}

func TestRunFillPriceFallsBackToLimitPrice(t *testing.T) {
	fake := newFakeExchange()
	fake.statusFn = func(orderID string, _ int) (*execution.OrderStatus, error) {
		if orderID == "order-tok-up" {
			return filledStatus(orderID, 0, 10), nil
		}
		return liveStatus(orderID), nil
	}

	result, err := testEngine(fake, 5).Run(context.Background(), testMarket(), 0.64, 10)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 0.64, result.FillPrice)
}

func TestRunUpPlacementFails(t *testing.T) {
	fake := newFakeExchange()
	fake.placeErr["tok-up"] = errors.New("insufficient balance")

	result, err := testEngine(fake, 5).Run(context.Background(), testMarket(), 0.62, 10)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, fake.placed)
	assert.Empty(t, fake.cancelledOrders())
}

func TestRunDownPlacementFailsCancelsUp(t *testing.T) {
	fake := newFakeExchange()
	fake.placeErr["tok-down"] = errors.New("rejected")

	result, err := testEngine(fake, 5).Run(context.Background(), testMarket(), 0.62, 10)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, []string{"order-tok-up"}, fake.cancelledOrders())
}

func TestRunPollBudgetExhausted(t *testing.T) {
	fake := newFakeExchange()
	fake.statusFn = func(orderID string, _ int) (*execution.OrderStatus, error) {
		return liveStatus(orderID), nil
	}

	result, err := testEngine(fake, 3).Run(context.Background(), testMarket(), 0.62, 10)
	require.NoError(t, err)
	assert.Nil(t, result)

	// Both legs released, each leg polled exactly the budget.
	assert.ElementsMatch(t, []string{"order-tok-up", "order-tok-down"}, fake.cancelledOrders())
	assert.Equal(t, 3, fake.calls["order-tok-up"])
	assert.Equal(t, 3, fake.calls["order-tok-down"])
}

func TestRunBothCancelledExternally(t *testing.T) {
	fake := newFakeExchange()
	fake.statusFn = func(orderID string, _ int) (*execution.OrderStatus, error) {
		return cancelledStatus(orderID), nil
	}

	result, err := testEngine(fake, 5).Run(context.Background(), testMarket(), 0.62, 10)
	require.NoError(t, err)
	assert.Nil(t, result)

	// Nothing left to cancel on our side.
	assert.Empty(t, fake.cancelledOrders())
}

func TestRunContextCancelledBeforeFill(t *testing.T) {
	fake := newFakeExchange()
	fake.statusFn = func(orderID string, _ int) (*execution.OrderStatus, error) {
		return liveStatus(orderID), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := testEngine(fake, 5).Run(ctx, testMarket(), 0.62, 10)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
	assert.ElementsMatch(t, []string{"order-tok-up", "order-tok-down"}, fake.cancelledOrders())
}

func TestRunStatusErrorTreatedAsNoInformation(t *testing.T) {
	fake := newFakeExchange()
	fake.statusFn = func(orderID string, call int) (*execution.OrderStatus, error) {
		if orderID == "order-tok-up" {
			return nil, errors.New("gateway timeout")
		}
		if call >= 2 {
			return filledStatus(orderID, 0.62, 10), nil
		}
		return liveStatus(orderID), nil
	}

	result, err := testEngine(fake, 5).Run(context.Background(), testMarket(), 0.62, 10)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, types.SideDown, result.Side)
}
