package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// GetKlines fetches candlestick data, most recent candle last.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]types.OHLCV, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"interval": interval,
		"limit":    limit,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, Categorize(err, "get_klines")
	}

	klines, err := c.parseKlineResponse(result)
	if err != nil {
		return nil, Categorize(err, "get_klines")
	}
	return klines, nil
}

func (c *Client) parseKlineResponse(response interface{}) ([]types.OHLCV, error) {
	result, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var klineResult struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"`
	}
	if err := json.Unmarshal(result, &klineResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal kline result: %w", err)
	}

	// Bybit returns newest first: [startTime, open, high, low, close, volume, turnover]
	candles := make([]types.OHLCV, 0, len(klineResult.List))
	for i := len(klineResult.List) - 1; i >= 0; i-- {
		item := klineResult.List[i]
		if len(item) < 6 {
			continue
		}
		candles = append(candles, types.OHLCV{
			Timestamp: time.UnixMilli(parseInt64(item[0])),
			Open:      parseFloat(item[1]),
			High:      parseFloat(item[2]),
			Low:       parseFloat(item[3]),
			Close:     parseFloat(item[4]),
			Volume:    parseFloat(item[5]),
		})
	}
	return candles, nil
}

// GetTicker fetches the current bid/ask/last for a symbol.
func (c *Client) GetTicker(ctx context.Context, symbol string) (*types.Ticker, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return nil, Categorize(err, "get_ticker")
	}

	ticker, err := c.parseTickerResponse(result, symbol)
	if err != nil {
		return nil, Categorize(err, "get_ticker")
	}
	return ticker, nil
}

func (c *Client) parseTickerResponse(response interface{}, symbol string) (*types.Ticker, error) {
	result, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var tickerResult struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
			Volume24h string `json:"volume24h"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &tickerResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticker result: %w", err)
	}
	if len(tickerResult.List) == 0 {
		return nil, fmt.Errorf("no ticker data for %s", symbol)
	}

	t := tickerResult.List[0]
	return &types.Ticker{
		Symbol:    t.Symbol,
		Last:      parseFloat(t.LastPrice),
		Bid:       parseFloat(t.Bid1Price),
		Ask:       parseFloat(t.Ask1Price),
		Volume:    parseFloat(t.Volume24h),
		Timestamp: time.Now().UTC(),
	}, nil
}

// GetOrderBook fetches the order book up to depth levels per side.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (*types.OrderBook, error) {
	if depth <= 0 {
		depth = 25
	}

	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"limit":    depth,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderBookInfo(ctx)
	if err != nil {
		return nil, Categorize(err, "get_order_book")
	}

	book, err := c.parseOrderBookResponse(result)
	if err != nil {
		return nil, Categorize(err, "get_order_book")
	}
	return book, nil
}

func (c *Client) parseOrderBookResponse(response interface{}) (*types.OrderBook, error) {
	result, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var bookResult struct {
		Symbol string     `json:"s"`
		Bids   [][]string `json:"b"`
		Asks   [][]string `json:"a"`
		Ts     int64      `json:"ts"`
	}
	if err := json.Unmarshal(result, &bookResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order book result: %w", err)
	}

	book := &types.OrderBook{
		Symbol:    bookResult.Symbol,
		Timestamp: time.UnixMilli(bookResult.Ts),
	}
	for _, level := range bookResult.Bids {
		if len(level) < 2 {
			continue
		}
		book.Bids = append(book.Bids, types.OrderBookLevel{Price: parseFloat(level[0]), Size: parseFloat(level[1])})
	}
	for _, level := range bookResult.Asks {
		if len(level) < 2 {
			continue
		}
		book.Asks = append(book.Asks, types.OrderBookLevel{Price: parseFloat(level[0]), Size: parseFloat(level[1])})
	}
	return book, nil
}

// unwrapResult validates the ServerResponse envelope and re-marshals the
// result payload for typed decoding.
func unwrapResult(response interface{}) ([]byte, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}
	if err := parseRetCode(serverResp.RetCode, serverResp.RetMsg); err != nil {
		return nil, err
	}
	return json.Marshal(serverResp.Result)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseTimestamp(s string) time.Time {
	ms := parseInt64(s)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
