package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trbinh/crypto-margin-bot/internal/exchange"
	"github.com/trbinh/crypto-margin-bot/internal/position"
	"github.com/trbinh/crypto-margin-bot/internal/risk"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// fakeExchange scripts order flow for executor tests.
type fakeExchange struct {
	placed        []exchange.OrderRequest
	fillPrice     float64
	tradingStopOK bool
	stopCalls     int
}

func (f *fakeExchange) GetName() string               { return "fake" }
func (f *fakeExchange) GetEnvironment() string        { return "test" }
func (f *fakeExchange) Connect(context.Context) error { return nil }
func (f *fakeExchange) Disconnect() error             { return nil }

func (f *fakeExchange) GetKlines(context.Context, string, string, int) ([]types.OHLCV, error) {
	return nil, nil
}
func (f *fakeExchange) GetTicker(context.Context, string) (*types.Ticker, error) { return nil, nil }
func (f *fakeExchange) GetOrderBook(context.Context, string, int) (*types.OrderBook, error) {
	return nil, nil
}
func (f *fakeExchange) GetBalance(context.Context, string) (*types.Balance, error) { return nil, nil }
func (f *fakeExchange) GetMarginStatus(context.Context) (*types.MarginStatus, error) {
	return nil, nil
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	f.placed = append(f.placed, req)
	return &exchange.OrderResult{
		OrderID: "order-1",
		Symbol:  req.Symbol,
		Side:    req.Side,
		Type:    req.Type,
		Status:  exchange.OrderStatusNew,
		Qty:     req.Qty,
		Price:   req.Price,
	}, nil
}

func (f *fakeExchange) CancelOrder(context.Context, string, string) error { return nil }

func (f *fakeExchange) GetOrderStatus(ctx context.Context, symbol, orderID string) (*exchange.OrderResult, error) {
	return &exchange.OrderResult{
		OrderID:   orderID,
		Symbol:    symbol,
		Status:    exchange.OrderStatusFilled,
		FilledQty: f.placed[len(f.placed)-1].Qty,
		AvgPrice:  f.fillPrice,
	}, nil
}

func (f *fakeExchange) GetOpenOrders(context.Context, string) ([]exchange.OrderResult, error) {
	return nil, nil
}
func (f *fakeExchange) GetOpenPositions(context.Context, string) ([]exchange.RemotePosition, error) {
	return nil, nil
}

func (f *fakeExchange) SetTradingStop(context.Context, string, float64, float64) error {
	f.stopCalls++
	if f.tradingStopOK {
		return nil
	}
	return errors.New("trading stop rejected")
}

func TestLiveExecutePlacesLimitAndArmsStops(t *testing.T) {
	tracker, err := position.NewTracker(nil, "BTCUSDT")
	require.NoError(t, err)
	fake := &fakeExchange{fillPrice: 50005, tradingStopOK: true}
	executor := NewLiveExecutor(fake, tracker, nil, "BTCUSDT")

	result := executor.Execute(context.Background(), approvedEval(risk.ActionBuy, 0.01), paperSnapshot(time.Now()))
	require.True(t, result.Success)
	assert.Equal(t, ModeLive, result.Mode)
	assert.Equal(t, 50005.0, result.FilledPrice)

	// Entry is a price-improved limit: below the 50010 ask.
	require.NotEmpty(t, fake.placed)
	entry := fake.placed[0]
	assert.Equal(t, exchange.OrderTypeLimit, entry.Type)
	assert.Less(t, entry.Price, 50010.0)
	assert.NotEmpty(t, entry.OrderLink)

	assert.Equal(t, 1, fake.stopCalls)
	assert.Equal(t, 1, tracker.OpenCount())
	assert.False(t, result.Position.Degraded)
}

func TestLiveExecuteKeepsPositionWhenStopsFail(t *testing.T) {
	tracker, err := position.NewTracker(nil, "BTCUSDT")
	require.NoError(t, err)
	fake := &fakeExchange{fillPrice: 50005, tradingStopOK: false}
	executor := NewLiveExecutor(fake, tracker, nil, "BTCUSDT")

	result := executor.Execute(context.Background(), approvedEval(risk.ActionBuy, 0.01), paperSnapshot(time.Now()))

	// The entry filled: the position must survive the TP/SL failure,
	// flagged degraded instead of being dropped.
	require.True(t, result.Success)
	assert.Equal(t, 1, tracker.OpenCount())

	tracked, ok := tracker.Get(result.Position.ID)
	require.True(t, ok)
	assert.True(t, tracked.Degraded)
	assert.Equal(t, position.StatusOpen, tracked.Status)
}

func TestLiveCloseIsReduceOnlyMarket(t *testing.T) {
	tracker, err := position.NewTracker(nil, "BTCUSDT")
	require.NoError(t, err)
	fake := &fakeExchange{fillPrice: 51000, tradingStopOK: true}
	executor := NewLiveExecutor(fake, tracker, nil, "BTCUSDT")
	now := time.Now()

	p := position.NewPosition("BTCUSDT", exchange.SideBuy, 50000, 0.01, 49000, 52000, "test", 0.9, now)
	require.NoError(t, tracker.Register(p, now))

	result := executor.ClosePosition(context.Background(), p, 51000)
	require.True(t, result.Success)
	assert.Equal(t, 51000.0, result.FilledPrice)

	closeOrder := fake.placed[len(fake.placed)-1]
	assert.Equal(t, exchange.OrderTypeMarket, closeOrder.Type)
	assert.Equal(t, exchange.SideSell, closeOrder.Side)
	assert.True(t, closeOrder.ReduceOnly)
}
