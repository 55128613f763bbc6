package exchange

import (
	"context"
	"time"

	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// Side of an order, string-valued for API compatibility.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Opposite returns the closing side for a position opened with s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderType string

const (
	OrderTypeMarket OrderType = "Market"
	OrderTypeLimit  OrderType = "Limit"
)

type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "New"
	OrderStatusPartiallyFilled OrderStatus = "PartiallyFilled"
	OrderStatusFilled          OrderStatus = "Filled"
	OrderStatusCancelled       OrderStatus = "Cancelled"
	OrderStatusRejected        OrderStatus = "Rejected"
)

// OrderRequest is the exchange-agnostic order shape the execution layer
// produces.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Type       OrderType
	Qty        float64
	Price      float64 // limit orders only
	TakeProfit float64 // optional paired TP
	StopLoss   float64 // optional paired SL
	ReduceOnly bool
	OrderLink  string // idempotency key; retries reuse it
}

// OrderResult is the normalized order state returned by the exchange.
type OrderResult struct {
	OrderID   string
	Symbol    string
	Side      Side
	Type      OrderType
	Status    OrderStatus
	Qty       float64
	Price     float64
	FilledQty float64
	AvgPrice  float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemotePosition is a position as reported by the exchange, used by the
// cleanup pass to detect orphans.
type RemotePosition struct {
	Symbol        string
	Side          Side
	Size          float64
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
	UpdatedAt     time.Time
}

// Exchange is the wire boundary consumed by the core. Implementations map
// raw API errors into the typed categories of internal/errors; the core
// never inspects raw exchange errors.
type Exchange interface {
	GetName() string
	GetEnvironment() string
	Connect(ctx context.Context) error
	Disconnect() error

	// Market data
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error)
	GetTicker(ctx context.Context, symbol string) (*types.Ticker, error)
	GetOrderBook(ctx context.Context, symbol string, depth int) (*types.OrderBook, error)

	// Account
	GetBalance(ctx context.Context, asset string) (*types.Balance, error)
	GetMarginStatus(ctx context.Context) (*types.MarginStatus, error)

	// Trading
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	GetOrderStatus(ctx context.Context, symbol, orderID string) (*OrderResult, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]OrderResult, error)
	GetOpenPositions(ctx context.Context, symbol string) ([]RemotePosition, error)
	SetTradingStop(ctx context.Context, symbol string, takeProfit, stopLoss float64) error
}
