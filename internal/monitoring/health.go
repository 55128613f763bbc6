package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker tracks liveness signals from the trading cycle and serves
// them as a JSON health endpoint.
type HealthChecker struct {
	mu           sync.RWMutex
	lastCycle    time.Time
	lastPrice    float64
	tradingState string
	isConnected  bool
	errors       []string

	// Cycles older than this mark the bot degraded.
	staleCycleAfter time.Duration
}

type HealthStatus struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	LastCycle    time.Time `json:"last_cycle"`
	LastPrice    float64   `json:"last_price"`
	TradingState string    `json:"trading_state"`
	IsConnected  bool      `json:"is_connected"`
	Uptime       string    `json:"uptime"`
	Errors       []string  `json:"errors,omitempty"`
}

func NewHealthChecker(staleCycleAfter time.Duration) *HealthChecker {
	if staleCycleAfter <= 0 {
		staleCycleAfter = 5 * time.Minute
	}
	return &HealthChecker{
		errors:          make([]string, 0),
		staleCycleAfter: staleCycleAfter,
	}
}

// MarkCycle records a completed trading cycle.
func (h *HealthChecker) MarkCycle(price float64, tradingState string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = time.Now()
	h.lastPrice = price
	h.tradingState = tradingState
}

// SetConnected records the exchange connection state.
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = connected
}

// RecordError appends an error to the health report, keeping the last few.
func (h *HealthChecker) RecordError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, fmt.Sprintf("%s: %v", time.Now().Format(time.RFC3339), err))
	if len(h.errors) > 10 {
		h.errors = h.errors[len(h.errors)-10:]
	}
}

// ClearErrors resets the error list after recovery.
func (h *HealthChecker) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = h.errors[:0]
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.isConnected || time.Since(h.lastCycle) > h.staleCycleAfter {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:       status,
		Timestamp:    time.Now(),
		LastCycle:    h.lastCycle,
		LastPrice:    h.lastPrice,
		TradingState: h.tradingState,
		IsConnected:  h.isConnected,
		Uptime:       time.Since(startTime).String(),
		Errors:       h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}

// Serve starts the metrics and health HTTP listeners in the background.
// Errors from the listeners are reported through the returned channel.
func Serve(metricsPort, healthPort int, health *HealthChecker) <-chan error {
	errCh := make(chan error, 2)

	if metricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", NewMetricsHandler())
		go func() {
			errCh <- http.ListenAndServe(fmt.Sprintf(":%d", metricsPort), mux)
		}()
	}
	if healthPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/health", health)
		go func() {
			errCh <- http.ListenAndServe(fmt.Sprintf(":%d", healthPort), mux)
		}()
	}
	return errCh
}
