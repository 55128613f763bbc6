package bot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trbinh/crypto-margin-bot/internal/config"
	"github.com/trbinh/crypto-margin-bot/internal/execution"
	"github.com/trbinh/crypto-margin-bot/internal/strategy"
)

func paperConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Mode = config.ModePaper
	cfg.StateDir = filepath.Join(t.TempDir(), "state")
	cfg.LogDir = filepath.Join(t.TempDir(), "logs")
	return cfg
}

func TestNewPaperBotWiring(t *testing.T) {
	cfg := paperConfig(t)

	b, err := New(cfg, strategy.NewMACross(cfg.Strategy.FastPeriod, cfg.Strategy.SlowPeriod))
	require.NoError(t, err)
	defer b.log.Close()

	assert.Equal(t, execution.ModePaper, b.executor.Mode())
	assert.NotNil(t, b.ledger, "paper mode trades against the simulated ledger")
	assert.Nil(t, b.cleaner, "paper mode has no remote positions to reconcile")
	assert.Equal(t, cfg.Trading.InitialBalance, b.ledger.Balance())
	assert.Equal(t, cfg.Trading.Symbol, b.symbol)
}

func TestNewLiveBotWiring(t *testing.T) {
	cfg := paperConfig(t)
	cfg.Mode = config.ModeLive
	cfg.Exchange.APIKey = "key"
	cfg.Exchange.APISecret = "secret"

	b, err := New(cfg, strategy.NewMACross(cfg.Strategy.FastPeriod, cfg.Strategy.SlowPeriod))
	require.NoError(t, err)
	defer b.log.Close()

	assert.Equal(t, execution.ModeLive, b.executor.Mode())
	assert.Nil(t, b.ledger, "live mode reads the real account, not a ledger")
	assert.NotNil(t, b.cleaner)
}

func TestNewRejectsBacktestMode(t *testing.T) {
	cfg := paperConfig(t)
	cfg.Mode = config.ModeBacktest

	_, err := New(cfg, strategy.NewMACross(10, 30))
	assert.Error(t, err)
}
