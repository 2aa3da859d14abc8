// Package config loads the bot configuration from file, environment and
// defaults, in that order of increasing precedence for the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/oakmont-labs/tradebot/internal/api"
	"github.com/oakmont-labs/tradebot/internal/bot"
	"github.com/oakmont-labs/tradebot/internal/events"
	"github.com/oakmont-labs/tradebot/internal/exchange"
	"github.com/oakmont-labs/tradebot/internal/recovery"
	"github.com/oakmont-labs/tradebot/internal/risk"
	"github.com/oakmont-labs/tradebot/pkg/types"
)

// Config is the full application configuration.
type Config struct {
	LogLevel       string
	InitialBalance decimal.Decimal

	Exchange  exchange.Config
	Risk      risk.Config
	Bot       bot.Config
	Server    api.Config
	Bus       events.BusConfig
	Breaker   recovery.BreakerConfig
	Retry     recovery.RetryConfig
	RateLimit recovery.RateLimitConfig
}

// Load reads configuration from the given file (optional), the TRADEBOT_*
// environment and built-in defaults. A missing file is not an error; a
// malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRADEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		LogLevel:       v.GetString("log.level"),
		InitialBalance: decimal.NewFromFloat(v.GetFloat64("portfolio.initial_balance")),
		Exchange: exchange.Config{
			Name:         v.GetString("exchange.name"),
			PaperTrading: v.GetBool("exchange.paper_trading"),
			APIKey:       v.GetString("exchange.api_key"),
			APISecret:    v.GetString("exchange.api_secret"),
		},
		Risk: risk.Config{
			RiskPerTrade:     decimal.NewFromFloat(v.GetFloat64("risk.risk_per_trade")),
			MaxPositionValue: decimal.NewFromFloat(v.GetFloat64("risk.max_position_value")),
			MaxDailyLoss:     decimal.NewFromFloat(v.GetFloat64("risk.max_daily_loss")),
			MaxOpenPositions: v.GetInt("risk.max_open_positions"),
			StopLossPct:      decimal.NewFromFloat(v.GetFloat64("risk.stop_loss_pct")),
			TakeProfitPct:    decimal.NewFromFloat(v.GetFloat64("risk.take_profit_pct")),
		},
		Bot: bot.Config{
			Timeframe:          types.Timeframe(v.GetString("bot.timeframe")),
			CandleLimit:        v.GetInt("bot.candle_limit"),
			ExecutionInterval:  v.GetDuration("bot.execution_interval"),
			MonitorInterval:    v.GetDuration("bot.monitor_interval"),
			SnapshotInterval:   v.GetDuration("bot.snapshot_interval"),
			AutoPauseThreshold: v.GetInt("bot.auto_pause_threshold"),
			DegradedThreshold:  v.GetInt("bot.degraded_threshold"),
			UnhealthyAfter:     v.GetDuration("bot.unhealthy_after"),
			ErrorWindow:        v.GetDuration("bot.error_window"),
		},
		Server: api.Config{
			Host:         v.GetString("server.host"),
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Bus: events.BusConfig{
			NumWorkers: v.GetInt("events.num_workers"),
			BufferSize: v.GetInt("events.buffer_size"),
		},
		Breaker: recovery.BreakerConfig{
			FailureThreshold: v.GetInt("recovery.breaker.failure_threshold"),
			RecoveryTimeout:  v.GetDuration("recovery.breaker.recovery_timeout"),
		},
		Retry: recovery.RetryConfig{
			MaxAttempts:  v.GetInt("recovery.retry.max_attempts"),
			InitialDelay: v.GetDuration("recovery.retry.initial_delay"),
			MaxDelay:     v.GetDuration("recovery.retry.max_delay"),
			Base:         v.GetFloat64("recovery.retry.base"),
		},
		RateLimit: recovery.RateLimitConfig{
			MaxCalls: v.GetInt("recovery.rate_limit.max_calls"),
			Window:   v.GetDuration("recovery.rate_limit.window"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("portfolio.initial_balance", 10000)

	v.SetDefault("exchange.name", "paper")
	v.SetDefault("exchange.paper_trading", true)

	riskDefaults := risk.DefaultConfig()
	v.SetDefault("risk.risk_per_trade", riskDefaults.RiskPerTrade.InexactFloat64())
	v.SetDefault("risk.max_position_value", riskDefaults.MaxPositionValue.InexactFloat64())
	v.SetDefault("risk.max_daily_loss", riskDefaults.MaxDailyLoss.InexactFloat64())
	v.SetDefault("risk.max_open_positions", riskDefaults.MaxOpenPositions)
	v.SetDefault("risk.stop_loss_pct", riskDefaults.StopLossPct.InexactFloat64())
	v.SetDefault("risk.take_profit_pct", riskDefaults.TakeProfitPct.InexactFloat64())

	botDefaults := bot.DefaultConfig()
	v.SetDefault("bot.timeframe", string(botDefaults.Timeframe))
	v.SetDefault("bot.candle_limit", botDefaults.CandleLimit)
	v.SetDefault("bot.execution_interval", botDefaults.ExecutionInterval)
	v.SetDefault("bot.monitor_interval", botDefaults.MonitorInterval)
	v.SetDefault("bot.snapshot_interval", botDefaults.SnapshotInterval)
	v.SetDefault("bot.auto_pause_threshold", botDefaults.AutoPauseThreshold)
	v.SetDefault("bot.degraded_threshold", botDefaults.DegradedThreshold)
	v.SetDefault("bot.unhealthy_after", botDefaults.UnhealthyAfter)
	v.SetDefault("bot.error_window", botDefaults.ErrorWindow)

	serverDefaults := api.DefaultConfig()
	v.SetDefault("server.host", serverDefaults.Host)
	v.SetDefault("server.port", serverDefaults.Port)
	v.SetDefault("server.read_timeout", serverDefaults.ReadTimeout)
	v.SetDefault("server.write_timeout", serverDefaults.WriteTimeout)

	busDefaults := events.DefaultBusConfig()
	v.SetDefault("events.num_workers", busDefaults.NumWorkers)
	v.SetDefault("events.buffer_size", busDefaults.BufferSize)

	breakerDefaults := recovery.DefaultBreakerConfig()
	v.SetDefault("recovery.breaker.failure_threshold", breakerDefaults.FailureThreshold)
	v.SetDefault("recovery.breaker.recovery_timeout", breakerDefaults.RecoveryTimeout)

	retryDefaults := recovery.DefaultRetryConfig()
	v.SetDefault("recovery.retry.max_attempts", retryDefaults.MaxAttempts)
	v.SetDefault("recovery.retry.initial_delay", retryDefaults.InitialDelay)
	v.SetDefault("recovery.retry.max_delay", retryDefaults.MaxDelay)
	v.SetDefault("recovery.retry.base", retryDefaults.Base)

	rateDefaults := recovery.DefaultRateLimitConfig()
	v.SetDefault("recovery.rate_limit.max_calls", rateDefaults.MaxCalls)
	v.SetDefault("recovery.rate_limit.window", rateDefaults.Window)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.InitialBalance.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("config: initial balance must be positive, got %s", c.InitialBalance)
	}
	if !c.Exchange.PaperTrading && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("config: live trading requires exchange.api_key and exchange.api_secret")
	}
	if c.Bot.ExecutionInterval <= 0 || c.Bot.MonitorInterval <= 0 || c.Bot.SnapshotInterval <= 0 {
		return fmt.Errorf("config: bot intervals must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}
	return nil
}
