package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	boterrors "github.com/trbinh/crypto-margin-bot/internal/errors"
)

// TradingMode selects the executor implementation.
type TradingMode string

const (
	ModePaper    TradingMode = "paper"
	ModeLive     TradingMode = "live"
	ModeBacktest TradingMode = "backtest"
)

type Config struct {
	Environment string      `json:"environment"`
	Mode        TradingMode `json:"mode"`

	Exchange ExchangeConfig `json:"exchange"`
	Trading  TradingConfig  `json:"trading"`
	Strategy StrategyConfig `json:"strategy"`
	Risk     RiskConfig     `json:"risk"`
	Sizing   SizingConfig   `json:"sizing"`
	Limits   LimitsConfig   `json:"limits"`

	Monitoring MonitoringConfig `json:"monitoring"`

	StateDir string `json:"state_dir"`
	LogDir   string `json:"log_dir"`
}

type ExchangeConfig struct {
	Name      string `json:"name"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	Testnet   bool   `json:"testnet"`
	Demo      bool   `json:"demo"`
	Category  string `json:"category"` // linear, inverse
}

type TradingConfig struct {
	Symbol         string        `json:"symbol"`
	Interval       string        `json:"interval"` // kline interval, e.g. "5"
	CycleInterval  time.Duration `json:"cycle_interval"`
	InitialBalance float64       `json:"initial_balance"` // paper/backtest ledger seed
	Commission     float64       `json:"commission"`
	WindowSize     int           `json:"window_size"` // candles fed to each evaluation
}

// StrategyConfig selects and parameterizes the signal generator.
type StrategyConfig struct {
	Name       string `json:"name"`
	FastPeriod int    `json:"fast_period"`
	SlowPeriod int    `json:"slow_period"`
}

// RiskWeights combine the normalized risk factors into one score. They must
// sum to 1.
type RiskWeights struct {
	Confidence float64 `json:"confidence"`
	Anomaly    float64 `json:"anomaly"`
	Drawdown   float64 `json:"drawdown"`
	LossStreak float64 `json:"loss_streak"`
	Volatility float64 `json:"volatility"`
}

func (w RiskWeights) Sum() float64 {
	return w.Confidence + w.Anomaly + w.Drawdown + w.LossStreak + w.Volatility
}

type RiskConfig struct {
	Weights RiskWeights `json:"weights"`

	// Margin ratio thresholds; ratio below critical is a hard deny.
	MarginCriticalRatio float64 `json:"margin_critical_ratio"`
	MarginWarningRatio  float64 `json:"margin_warning_ratio"`

	// Decision bands on the aggregate risk score.
	ApproveBelow float64 `json:"approve_below"`
	DenyAtOrOver float64 `json:"deny_at_or_over"`

	// CONDITIONAL decisions get this size multiplier.
	ConditionalHaircut float64 `json:"conditional_haircut"`

	// Stop placement: sl_ratio = ATR/price * multiplier, tp at rr * sl.
	StopATRMultiplier float64 `json:"stop_atr_multiplier"`
	RewardRiskRatio   float64 `json:"reward_risk_ratio"`

	// Drawdown pause machine.
	MaxDrawdownPct      float64       `json:"max_drawdown_pct"`
	RecoveryDrawdownPct float64       `json:"recovery_drawdown_pct"`
	ConsecutiveLossMax  int           `json:"consecutive_loss_max"`
	LossPauseCooldown   time.Duration `json:"loss_pause_cooldown"`

	// Anomaly thresholds.
	SpreadWarningRatio  float64       `json:"spread_warning_ratio"`
	SpreadCriticalRatio float64       `json:"spread_critical_ratio"`
	LatencyWarning      time.Duration `json:"latency_warning"`
	LatencyCritical     time.Duration `json:"latency_critical"`
	PriceSpikeWarning   float64       `json:"price_spike_warning"`
	PriceSpikeCritical  float64       `json:"price_spike_critical"`
	VolumeWarningRatio  float64       `json:"volume_warning_ratio"`
	VolumeCriticalRatio float64       `json:"volume_critical_ratio"`

	// Snapshots older than this deny the cycle.
	MaxDataAge time.Duration `json:"max_data_age"`

	// Normalization cap for the volatility factor.
	VolatilityCap float64 `json:"volatility_cap"`
}

type SizingConfig struct {
	// Exchange-minimum lot in base units; Kelly and the dynamic sizer
	// never go below it.
	MinLot float64 `json:"min_lot"`

	// Kelly fraction is clamped to [0, MaxKellyFraction] of balance.
	MaxKellyFraction float64 `json:"max_kelly_fraction"`
	KellyWindow      int     `json:"kelly_window"`

	// Confidence tiers for the dynamic sizer, as %-of-balance ranges.
	LowTierMaxPct  float64 `json:"low_tier_max_pct"`
	MidTierMaxPct  float64 `json:"mid_tier_max_pct"`
	HighTierMaxPct float64 `json:"high_tier_max_pct"`

	// Hard baseline cap in quote units.
	BaselineQuote float64 `json:"baseline_quote"`
}

type LimitsConfig struct {
	MaxPositions          int           `json:"max_positions"`
	DailyTradeCap         int           `json:"daily_trade_cap"`
	Cooldown              time.Duration `json:"cooldown"`
	CooldownOverrideTrend float64       `json:"cooldown_override_trend"`
}

type MonitoringConfig struct {
	MetricsPort int `json:"metrics_port"`
	HealthPort  int `json:"health_port"`
}

// Default returns the configuration used when no file is supplied. Every
// numeric threshold is tunable; these are the documented defaults.
func Default() *Config {
	return &Config{
		Environment: "development",
		Mode:        ModePaper,
		Exchange: ExchangeConfig{
			Name:     "bybit",
			Testnet:  true,
			Category: "linear",
		},
		Trading: TradingConfig{
			Symbol:         "BTCUSDT",
			Interval:       "5",
			CycleInterval:  time.Minute,
			InitialBalance: 10000,
			Commission:     0.0006,
			WindowSize:     50,
		},
		Strategy: StrategyConfig{
			Name:       "ma_cross",
			FastPeriod: 10,
			SlowPeriod: 30,
		},
		Risk: RiskConfig{
			Weights: RiskWeights{
				Confidence: 0.30,
				Anomaly:    0.20,
				Drawdown:   0.20,
				LossStreak: 0.15,
				Volatility: 0.15,
			},
			MarginCriticalRatio: 1.0,
			MarginWarningRatio:  1.5,
			ApproveBelow:        0.6,
			DenyAtOrOver:        0.8,
			ConditionalHaircut:  0.5,
			StopATRMultiplier:   2.0,
			RewardRiskRatio:     2.0,
			MaxDrawdownPct:      0.20,
			RecoveryDrawdownPct: 0.10,
			ConsecutiveLossMax:  5,
			LossPauseCooldown:   4 * time.Hour,
			SpreadWarningRatio:  0.001,
			SpreadCriticalRatio: 0.005,
			LatencyWarning:      2 * time.Second,
			LatencyCritical:     10 * time.Second,
			PriceSpikeWarning:   0.03,
			PriceSpikeCritical:  0.08,
			VolumeWarningRatio:  3.0,
			VolumeCriticalRatio: 10.0,
			MaxDataAge:          5 * time.Minute,
			VolatilityCap:       0.05,
		},
		Sizing: SizingConfig{
			MinLot:           0.001,
			MaxKellyFraction: 0.10,
			KellyWindow:      50,
			LowTierMaxPct:    0.02,
			MidTierMaxPct:    0.05,
			HighTierMaxPct:   0.10,
			BaselineQuote:    500,
		},
		Limits: LimitsConfig{
			MaxPositions:          3,
			DailyTradeCap:         10,
			Cooldown:              15 * time.Minute,
			CooldownOverrideTrend: 30.0,
		},
		Monitoring: MonitoringConfig{
			MetricsPort: 8080,
			HealthPort:  8081,
		},
		StateDir: "state",
		LogDir:   "logs",
	}
}

// Load reads the JSON config file (optional), then applies environment
// overrides. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, boterrors.Wrap(err, boterrors.ErrorCategoryConfig, "config", "load")
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, boterrors.Wrap(err, boterrors.ErrorCategoryConfig, "config", "parse")
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("ENV", c.Environment)
	c.Exchange.APIKey = getEnv("BYBIT_API_KEY", c.Exchange.APIKey)
	c.Exchange.APISecret = getEnv("BYBIT_API_SECRET", c.Exchange.APISecret)
	c.Exchange.Testnet = getEnvBool("BYBIT_TESTNET", c.Exchange.Testnet)
	c.Exchange.Demo = getEnvBool("BYBIT_DEMO", c.Exchange.Demo)
	c.Trading.Symbol = getEnv("TRADING_SYMBOL", c.Trading.Symbol)
	if mode := os.Getenv("TRADING_MODE"); mode != "" {
		c.Mode = TradingMode(mode)
	}
}

// Validate checks every threshold the risk engine depends on. Violations are
// fatal at startup.
func (c *Config) Validate() error {
	if c.Mode != ModePaper && c.Mode != ModeLive && c.Mode != ModeBacktest {
		return boterrors.NewConfigError("config", "validate", fmt.Sprintf("unknown trading mode %q", c.Mode))
	}
	if c.Mode == ModeLive && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return boterrors.NewConfigError("config", "validate", "live mode requires API credentials")
	}
	if c.Trading.Symbol == "" {
		return boterrors.NewConfigError("config", "validate", "trading symbol is required")
	}
	if math.Abs(c.Risk.Weights.Sum()-1.0) > 1e-6 {
		return boterrors.NewConfigError("config", "validate",
			fmt.Sprintf("risk weights must sum to 1, got %.6f", c.Risk.Weights.Sum()))
	}
	if c.Risk.MarginCriticalRatio <= 0 || c.Risk.MarginWarningRatio < c.Risk.MarginCriticalRatio {
		return boterrors.NewConfigError("config", "validate", "margin thresholds must satisfy 0 < critical <= warning")
	}
	if c.Risk.ApproveBelow <= 0 || c.Risk.DenyAtOrOver <= c.Risk.ApproveBelow || c.Risk.DenyAtOrOver > 1 {
		return boterrors.NewConfigError("config", "validate", "risk score bands must satisfy 0 < approve < deny <= 1")
	}
	if c.Risk.ConditionalHaircut <= 0 || c.Risk.ConditionalHaircut > 1 {
		return boterrors.NewConfigError("config", "validate", "conditional haircut must be in (0, 1]")
	}
	if c.Risk.RewardRiskRatio <= 0 || c.Risk.StopATRMultiplier <= 0 {
		return boterrors.NewConfigError("config", "validate", "stop parameters must be positive")
	}
	if c.Risk.MaxDrawdownPct <= 0 || c.Risk.MaxDrawdownPct >= 1 {
		return boterrors.NewConfigError("config", "validate", "max drawdown must be in (0, 1)")
	}
	if c.Risk.RecoveryDrawdownPct >= c.Risk.MaxDrawdownPct {
		return boterrors.NewConfigError("config", "validate", "recovery drawdown must be below max drawdown")
	}
	if c.Risk.ConsecutiveLossMax < 1 {
		return boterrors.NewConfigError("config", "validate", "consecutive loss limit must be at least 1")
	}
	if c.Sizing.MinLot <= 0 {
		return boterrors.NewConfigError("config", "validate", "minimum lot must be positive")
	}
	if c.Sizing.MaxKellyFraction <= 0 || c.Sizing.MaxKellyFraction > 1 {
		return boterrors.NewConfigError("config", "validate", "max kelly fraction must be in (0, 1]")
	}
	if c.Limits.MaxPositions < 1 || c.Limits.DailyTradeCap < 1 {
		return boterrors.NewConfigError("config", "validate", "position and daily trade limits must be at least 1")
	}
	if c.Trading.WindowSize < 15 {
		return boterrors.NewConfigError("config", "validate", "window size must cover at least one ATR period")
	}
	if c.Strategy.FastPeriod < 1 || c.Strategy.SlowPeriod < 1 {
		return boterrors.NewConfigError("config", "validate", "strategy periods must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
