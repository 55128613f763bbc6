package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/trbinh/crypto-margin-bot/internal/exchange"
)

// PlaceOrder submits an order, attaching TP/SL in the same request when set
// so a partial failure cannot leave the position unprotected at the API level.
func (c *Client) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	params := map[string]interface{}{
		"category":  c.category,
		"symbol":    req.Symbol,
		"side":      string(req.Side),
		"orderType": string(req.Type),
		"qty":       formatQty(req.Qty),
	}
	if req.Type == exchange.OrderTypeLimit {
		params["price"] = formatQty(req.Price)
		params["timeInForce"] = "GTC"
	}
	if req.TakeProfit > 0 {
		params["takeProfit"] = formatQty(req.TakeProfit)
	}
	if req.StopLoss > 0 {
		params["stopLoss"] = formatQty(req.StopLoss)
	}
	if req.ReduceOnly {
		params["reduceOnly"] = true
	}
	if req.OrderLink != "" {
		params["orderLinkId"] = req.OrderLink
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).PlaceOrder(ctx)
	if err != nil {
		return nil, Categorize(err, "place_order")
	}

	payload, err := unwrapResult(result)
	if err != nil {
		return nil, Categorize(err, "place_order")
	}

	var orderResult struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	}
	if err := json.Unmarshal(payload, &orderResult); err != nil {
		return nil, Categorize(fmt.Errorf("failed to unmarshal order result: %w", err), "place_order")
	}

	return &exchange.OrderResult{
		OrderID: orderResult.OrderID,
		Symbol:  req.Symbol,
		Side:    req.Side,
		Type:    req.Type,
		Status:  exchange.OrderStatusNew,
		Qty:     req.Qty,
		Price:   req.Price,
	}, nil
}

// CancelOrder cancels an open order by ID.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).CancelOrder(ctx)
	if err != nil {
		return Categorize(err, "cancel_order")
	}
	if _, err := unwrapResult(result); err != nil {
		return Categorize(err, "cancel_order")
	}
	return nil
}

// GetOrderStatus resolves the current state of one order. Open orders are
// checked first; filled and cancelled ones fall through to history.
func (c *Client) GetOrderStatus(ctx context.Context, symbol, orderID string) (*exchange.OrderResult, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
	if err == nil {
		if orders, perr := parseOrderList(result); perr == nil && len(orders) > 0 {
			return &orders[0], nil
		}
	}

	result, err = c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
	if err != nil {
		return nil, Categorize(err, "get_order_status")
	}
	orders, err := parseOrderList(result)
	if err != nil {
		return nil, Categorize(err, "get_order_status")
	}
	if len(orders) == 0 {
		return nil, Categorize(&APIError{Code: ErrCodeOrderNotFound, Message: "order not found: " + orderID}, "get_order_status")
	}
	return &orders[0], nil
}

// GetOpenOrders lists all currently open orders for a symbol.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OrderResult, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
		"openOnly": 0,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
	if err != nil {
		return nil, Categorize(err, "get_open_orders")
	}
	orders, err := parseOrderList(result)
	if err != nil {
		return nil, Categorize(err, "get_open_orders")
	}
	return orders, nil
}

func parseOrderList(response interface{}) ([]exchange.OrderResult, error) {
	payload, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var listResult struct {
		List []struct {
			OrderID     string `json:"orderId"`
			Symbol      string `json:"symbol"`
			Side        string `json:"side"`
			OrderType   string `json:"orderType"`
			OrderStatus string `json:"orderStatus"`
			Qty         string `json:"qty"`
			Price       string `json:"price"`
			CumExecQty  string `json:"cumExecQty"`
			AvgPrice    string `json:"avgPrice"`
			CreatedTime string `json:"createdTime"`
			UpdatedTime string `json:"updatedTime"`
		} `json:"list"`
	}
	if err := json.Unmarshal(payload, &listResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order list: %w", err)
	}

	orders := make([]exchange.OrderResult, 0, len(listResult.List))
	for _, o := range listResult.List {
		orders = append(orders, exchange.OrderResult{
			OrderID:   o.OrderID,
			Symbol:    o.Symbol,
			Side:      exchange.Side(o.Side),
			Type:      exchange.OrderType(o.OrderType),
			Status:    mapOrderStatus(o.OrderStatus),
			Qty:       parseFloat(o.Qty),
			Price:     parseFloat(o.Price),
			FilledQty: parseFloat(o.CumExecQty),
			AvgPrice:  parseFloat(o.AvgPrice),
			CreatedAt: parseTimestamp(o.CreatedTime),
			UpdatedAt: parseTimestamp(o.UpdatedTime),
		})
	}
	return orders, nil
}

func mapOrderStatus(status string) exchange.OrderStatus {
	switch status {
	case "New", "Untriggered", "Created":
		return exchange.OrderStatusNew
	case "PartiallyFilled":
		return exchange.OrderStatusPartiallyFilled
	case "Filled":
		return exchange.OrderStatusFilled
	case "Cancelled", "PartiallyFilledCanceled", "Deactivated":
		return exchange.OrderStatusCancelled
	case "Rejected":
		return exchange.OrderStatusRejected
	default:
		return exchange.OrderStatus(status)
	}
}

// GetPositions lists the open positions the exchange reports for a symbol.
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]exchange.RemotePosition, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
	if err != nil {
		return nil, Categorize(err, "get_positions")
	}

	payload, err := unwrapResult(result)
	if err != nil {
		return nil, Categorize(err, "get_positions")
	}

	var listResult struct {
		List []struct {
			Symbol        string `json:"symbol"`
			Side          string `json:"side"`
			Size          string `json:"size"`
			AvgPrice      string `json:"avgPrice"`
			MarkPrice     string `json:"markPrice"`
			UnrealisedPnl string `json:"unrealisedPnl"`
			UpdatedTime   string `json:"updatedTime"`
		} `json:"list"`
	}
	if err := json.Unmarshal(payload, &listResult); err != nil {
		return nil, Categorize(fmt.Errorf("failed to unmarshal position list: %w", err), "get_positions")
	}

	positions := make([]exchange.RemotePosition, 0, len(listResult.List))
	for _, p := range listResult.List {
		size := parseFloat(p.Size)
		if size == 0 {
			continue
		}
		positions = append(positions, exchange.RemotePosition{
			Symbol:        p.Symbol,
			Side:          exchange.Side(p.Side),
			Size:          size,
			EntryPrice:    parseFloat(p.AvgPrice),
			MarkPrice:     parseFloat(p.MarkPrice),
			UnrealizedPnL: parseFloat(p.UnrealisedPnl),
			UpdatedAt:     parseTimestamp(p.UpdatedTime),
		})
	}
	return positions, nil
}

// SetTradingStop updates the position-level TP/SL. A zero value clears the
// corresponding stop.
func (c *Client) SetTradingStop(ctx context.Context, symbol string, takeProfit, stopLoss float64) error {
	params := map[string]interface{}{
		"category":    c.category,
		"symbol":      symbol,
		"positionIdx": 0,
	}
	if takeProfit > 0 {
		params["takeProfit"] = formatQty(takeProfit)
	}
	if stopLoss > 0 {
		params["stopLoss"] = formatQty(stopLoss)
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).SetPositionTradingStop(ctx)
	if err != nil {
		return Categorize(err, "set_trading_stop")
	}
	if _, err := unwrapResult(result); err != nil {
		return Categorize(err, "set_trading_stop")
	}
	return nil
}

// formatQty renders a float for the API without scientific notation or
// trailing zeros.
func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
