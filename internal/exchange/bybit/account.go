package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

// GetBalance fetches the unified-account balance for one coin.
func (c *Client) GetBalance(ctx context.Context, asset string) (*types.Balance, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
		"coin":        asset,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return nil, Categorize(err, "get_balance")
	}

	balance, err := parseBalanceResponse(result, asset)
	if err != nil {
		return nil, Categorize(err, "get_balance")
	}
	return balance, nil
}

func parseBalanceResponse(response interface{}, asset string) (*types.Balance, error) {
	result, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var walletResult struct {
		List []struct {
			Coin []struct {
				Coin            string `json:"coin"`
				WalletBalance   string `json:"walletBalance"`
				AvailableToDraw string `json:"availableToWithdraw"`
				Locked          string `json:"locked"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &walletResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wallet result: %w", err)
	}

	for _, account := range walletResult.List {
		for _, coin := range account.Coin {
			if coin.Coin != asset {
				continue
			}
			total := parseFloat(coin.WalletBalance)
			locked := parseFloat(coin.Locked)
			available := parseFloat(coin.AvailableToDraw)
			if available == 0 && total > locked {
				available = total - locked
			}
			return &types.Balance{
				Asset:     asset,
				Total:     total,
				Available: available,
				Locked:    locked,
			}, nil
		}
	}
	return nil, fmt.Errorf("no balance entry for %s", asset)
}

// GetMarginStatus fetches the account-level margin figures used by the risk
// gate: equity, maintenance margin, initial margin, and the ratio
// equity/maintenance (below 1.0 the account is at liquidation risk).
func (c *Client) GetMarginStatus(ctx context.Context) (*types.MarginStatus, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
	if err != nil {
		return nil, Categorize(err, "get_margin_status")
	}

	status, err := parseMarginResponse(result)
	if err != nil {
		return nil, Categorize(err, "get_margin_status")
	}
	return status, nil
}

func parseMarginResponse(response interface{}) (*types.MarginStatus, error) {
	result, err := unwrapResult(response)
	if err != nil {
		return nil, err
	}

	var walletResult struct {
		List []struct {
			TotalEquity            string `json:"totalEquity"`
			TotalMaintenanceMargin string `json:"totalMaintenanceMargin"`
			TotalInitialMargin     string `json:"totalInitialMargin"`
			TotalAvailableBalance  string `json:"totalAvailableBalance"`
		} `json:"list"`
	}
	if err := json.Unmarshal(result, &walletResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal margin result: %w", err)
	}
	if len(walletResult.List) == 0 {
		return nil, fmt.Errorf("no unified account in wallet response")
	}

	account := walletResult.List[0]
	status := &types.MarginStatus{
		Equity:            parseFloat(account.TotalEquity),
		MaintenanceMargin: parseFloat(account.TotalMaintenanceMargin),
		InitialMargin:     parseFloat(account.TotalInitialMargin),
		UpdatedAt:         time.Now().UTC(),
	}
	if status.MaintenanceMargin > 0 {
		status.Ratio = status.Equity / status.MaintenanceMargin
	} else if status.Equity > 0 {
		// No open positions: no maintenance requirement, margin is unbounded.
		status.Ratio = math.Inf(1)
	}
	return status, nil
}
