package bybit

import (
	"context"

	"github.com/trbinh/crypto-margin-bot/internal/exchange"
	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// Adapter implements exchange.Exchange on top of Client, adding the bounded
// retry budget around every call so callers never loop on transient failures
// themselves.
type Adapter struct {
	client *Client
	symbol string // connectivity-probe symbol
	retry  RetryConfig
}

// NewAdapter wraps a Client for the core. symbol is only used for the
// connectivity probe in Connect.
func NewAdapter(client *Client, symbol string) *Adapter {
	return &Adapter{
		client: client,
		symbol: symbol,
		retry:  DefaultRetryConfig(),
	}
}

func (a *Adapter) GetName() string {
	return "bybit"
}

func (a *Adapter) GetEnvironment() string {
	return a.client.Environment()
}

// Connect probes public market data to verify connectivity. Credentials are
// validated lazily on the first signed call so public-data-only modes work
// without keys.
func (a *Adapter) Connect(ctx context.Context) error {
	return a.client.RetryWithConfig(ctx, func() error {
		_, err := a.client.GetTicker(ctx, a.symbol)
		return err
	}, a.retry)
}

func (a *Adapter) Disconnect() error {
	return nil
}

func (a *Adapter) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	var klines []types.OHLCV
	err := a.client.RetryWithConfig(ctx, func() error {
		var err error
		klines, err = a.client.GetKlines(ctx, symbol, interval, limit)
		return err
	}, a.retry)
	return klines, err
}

func (a *Adapter) GetTicker(ctx context.Context, symbol string) (*types.Ticker, error) {
	var ticker *types.Ticker
	err := a.client.RetryWithConfig(ctx, func() error {
		var err error
		ticker, err = a.client.GetTicker(ctx, symbol)
		return err
	}, a.retry)
	return ticker, err
}

func (a *Adapter) GetOrderBook(ctx context.Context, symbol string, depth int) (*types.OrderBook, error) {
	var book *types.OrderBook
	err := a.client.RetryWithConfig(ctx, func() error {
		var err error
		book, err = a.client.GetOrderBook(ctx, symbol, depth)
		return err
	}, a.retry)
	return book, err
}

func (a *Adapter) GetBalance(ctx context.Context, asset string) (*types.Balance, error) {
	var balance *types.Balance
	err := a.client.RetryWithConfig(ctx, func() error {
		var err error
		balance, err = a.client.GetBalance(ctx, asset)
		return err
	}, a.retry)
	return balance, err
}

func (a *Adapter) GetMarginStatus(ctx context.Context) (*types.MarginStatus, error) {
	var status *types.MarginStatus
	err := a.client.RetryWithConfig(ctx, func() error {
		var err error
		status, err = a.client.GetMarginStatus(ctx)
		return err
	}, a.retry)
	return status, err
}

// PlaceOrder is NOT retried blindly: the order link ID makes a resubmission
// idempotent on the exchange side, so retries are safe only when the request
// carries one.
func (a *Adapter) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	if req.OrderLink == "" {
		return a.client.PlaceOrder(ctx, req)
	}
	var result *exchange.OrderResult
	err := a.client.RetryWithConfig(ctx, func() error {
		var err error
		result, err = a.client.PlaceOrder(ctx, req)
		return err
	}, a.retry)
	return result, err
}

func (a *Adapter) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return a.client.RetryWithConfig(ctx, func() error {
		return a.client.CancelOrder(ctx, symbol, orderID)
	}, a.retry)
}

func (a *Adapter) GetOrderStatus(ctx context.Context, symbol, orderID string) (*exchange.OrderResult, error) {
	var result *exchange.OrderResult
	err := a.client.RetryWithConfig(ctx, func() error {
		var err error
		result, err = a.client.GetOrderStatus(ctx, symbol, orderID)
		return err
	}, a.retry)
	return result, err
}

func (a *Adapter) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OrderResult, error) {
	var orders []exchange.OrderResult
	err := a.client.RetryWithConfig(ctx, func() error {
		var err error
		orders, err = a.client.GetOpenOrders(ctx, symbol)
		return err
	}, a.retry)
	return orders, err
}

func (a *Adapter) GetOpenPositions(ctx context.Context, symbol string) ([]exchange.RemotePosition, error) {
	var positions []exchange.RemotePosition
	err := a.client.RetryWithConfig(ctx, func() error {
		var err error
		positions, err = a.client.GetPositions(ctx, symbol)
		return err
	}, a.retry)
	return positions, err
}

func (a *Adapter) SetTradingStop(ctx context.Context, symbol string, takeProfit, stopLoss float64) error {
	return a.client.RetryWithConfig(ctx, func() error {
		return a.client.SetTradingStop(ctx, symbol, takeProfit, stopLoss)
	}, a.retry)
}
