package types

import "time"

type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

type Ticker struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	Volume    float64
	Timestamp time.Time
}

// Spread returns the absolute bid/ask spread, 0 if the book side is missing.
func (t Ticker) Spread() float64 {
	if t.Bid <= 0 || t.Ask <= 0 {
		return 0
	}
	return t.Ask - t.Bid
}

// SpreadRatio returns the spread relative to the mid price.
func (t Ticker) SpreadRatio() float64 {
	if t.Bid <= 0 || t.Ask <= 0 {
		return 0
	}
	mid := (t.Bid + t.Ask) / 2
	return (t.Ask - t.Bid) / mid
}

type Balance struct {
	Asset     string
	Total     float64
	Available float64
	Locked    float64
}

// MarginStatus describes the account-level margin health reported by the
// exchange. Ratio is collateral / maintenance requirement; below 1.0 the
// account is at liquidation risk.
type MarginStatus struct {
	Equity            float64
	MaintenanceMargin float64
	InitialMargin     float64
	Ratio             float64
	UpdatedAt         time.Time
}

// OrderBookLevel is a single price level of the order book.
type OrderBookLevel struct {
	Price float64
	Size  float64
}

type OrderBook struct {
	Symbol    string
	Bids      []OrderBookLevel // descending by price
	Asks      []OrderBookLevel // ascending by price
	Timestamp time.Time
}

// BestBid returns the top bid, 0 if the book is empty.
func (ob *OrderBook) BestBid() float64 {
	if len(ob.Bids) == 0 {
		return 0
	}
	return ob.Bids[0].Price
}

// BestAsk returns the top ask, 0 if the book is empty.
func (ob *OrderBook) BestAsk() float64 {
	if len(ob.Asks) == 0 {
		return 0
	}
	return ob.Asks[0].Price
}

// Snapshot is the per-cycle market view handed to the risk engine. It is a
// value type on purpose: evaluation must be a pure function over it.
type Snapshot struct {
	Symbol     string
	Ticker     Ticker
	Candles    []OHLCV // most recent last; bounded view, never the full series
	ATR        float64
	Volatility float64 // ATR / last close
	AvgVolume  float64 // rolling average volume of the window
	APILatency time.Duration
	Timestamp  time.Time
}

// LastClose returns the close of the most recent candle, 0 when empty.
func (s Snapshot) LastClose() float64 {
	if len(s.Candles) == 0 {
		return 0
	}
	return s.Candles[len(s.Candles)-1].Close
}
