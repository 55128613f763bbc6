package bybit

import (
	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// Client wraps the Bybit V5 unified-trading API client.
type Client struct {
	httpClient *bybit_api.Client
	category   string
	testnet    bool
	demo       bool
}

// Config holds the connection settings for the Bybit client.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool   // demo trading environment (paper account on real feeds)
	Category  string // linear, inverse
}

// NewClient creates a Bybit client for the configured environment.
func NewClient(config Config) *Client {
	var baseURL string
	switch {
	case config.Demo:
		baseURL = "https://api-demo.bybit.com"
	case config.Testnet:
		baseURL = bybit_api.TESTNET
	default:
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	category := config.Category
	if category == "" {
		category = "linear"
	}

	return &Client{
		httpClient: httpClient,
		category:   category,
		testnet:    config.Testnet,
		demo:       config.Demo,
	}
}

func (c *Client) IsTestnet() bool {
	return c.testnet
}

func (c *Client) IsDemo() bool {
	return c.demo
}

// Environment returns a string describing the configured endpoint.
func (c *Client) Environment() string {
	switch {
	case c.demo:
		return "demo"
	case c.testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}
