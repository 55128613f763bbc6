package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/trbinh/crypto-margin-bot/pkg/types"
)

const (
	streamHandshakeTimeout = 10 * time.Second
	streamPingInterval     = 20 * time.Second
	streamReadTimeout      = 60 * time.Second
	streamReconnectDelay   = 5 * time.Second
)

// TickerStream maintains a public websocket subscription to a symbol's
// ticker channel and exposes the latest quote. It reconnects on read
// failures and tracks message latency so the staleness gate can see feed
// health without an extra REST round trip.
type TickerStream struct {
	url    string
	symbol string

	mu      sync.RWMutex
	latest  *types.Ticker
	latency time.Duration

	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTickerStream creates a stream for one symbol. url is the public
// websocket endpoint (e.g. Bybit's /v5/public/linear).
func NewTickerStream(url, symbol string) *TickerStream {
	return &TickerStream{url: url, symbol: symbol}
}

// Start connects and begins consuming ticker updates until ctx is cancelled
// or Stop is called.
func (s *TickerStream) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	if err := s.connect(ctx); err != nil {
		cancel()
		close(s.done)
		return err
	}

	go s.run(ctx)
	return nil
}

// Stop closes the connection and waits for the reader to exit.
func (s *TickerStream) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	if s.done != nil {
		<-s.done
	}
}

// Latest returns the most recent ticker, or nil before the first update.
func (s *TickerStream) Latest() *types.Ticker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Latency returns the exchange-to-local delay of the last update.
func (s *TickerStream) Latency() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latency
}

func (s *TickerStream) connect(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = streamHandshakeTimeout

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to ticker stream: %w", err)
	}

	sub := map[string]interface{}{
		"op":   "subscribe",
		"args": []string{"tickers." + s.symbol},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to ticker stream: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

func (s *TickerStream) run(ctx context.Context) {
	defer close(s.done)

	go s.pingLoop(ctx)

	for {
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()

		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(streamReconnectDelay):
			}
			if err := s.connect(ctx); err != nil {
				continue
			}
			continue
		}
		s.handleMessage(message)
	}
}

func (s *TickerStream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn != nil {
				conn.WriteJSON(map[string]string{"op": "ping"})
			}
		}
	}
}

func (s *TickerStream) handleMessage(message []byte) {
	var update struct {
		Topic string `json:"topic"`
		Ts    int64  `json:"ts"`
		Data  struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
			Volume24h string `json:"volume24h"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &update); err != nil || update.Data.Symbol == "" {
		return
	}

	now := time.Now().UTC()
	sent := time.UnixMilli(update.Ts)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Ticker deltas may omit unchanged fields; carry the previous values
	// forward so the snapshot never regresses to zero.
	next := types.Ticker{Symbol: update.Data.Symbol, Timestamp: now}
	if s.latest != nil {
		next = *s.latest
		next.Timestamp = now
	}
	if v := parseStreamFloat(update.Data.LastPrice); v > 0 {
		next.Last = v
	}
	if v := parseStreamFloat(update.Data.Bid1Price); v > 0 {
		next.Bid = v
	}
	if v := parseStreamFloat(update.Data.Ask1Price); v > 0 {
		next.Ask = v
	}
	if v := parseStreamFloat(update.Data.Volume24h); v > 0 {
		next.Volume = v
	}
	s.latest = &next
	if update.Ts > 0 {
		s.latency = now.Sub(sent)
	}
}

func parseStreamFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
