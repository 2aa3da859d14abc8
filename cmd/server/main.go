// Package main is the entry point for the autonomous trading bot server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oakmont-labs/tradebot/internal/api"
	"github.com/oakmont-labs/tradebot/internal/bot"
	"github.com/oakmont-labs/tradebot/internal/config"
	"github.com/oakmont-labs/tradebot/internal/events"
	"github.com/oakmont-labs/tradebot/internal/exchange"
	"github.com/oakmont-labs/tradebot/internal/metrics"
	"github.com/oakmont-labs/tradebot/internal/portfolio"
	"github.com/oakmont-labs/tradebot/internal/risk"
	"github.com/oakmont-labs/tradebot/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	strategies := flag.String("strategies", "", "Comma-separated strategy:symbol bindings, e.g. ma_crossover:BTC/USDT,rsi:ETH/USDT")
	autostart := flag.Bool("autostart", false, "Start trading immediately")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// No logger yet.
		panic(err)
	}

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting tradebot",
		zap.String("exchange", cfg.Exchange.Name),
		zap.Bool("paper_trading", cfg.Exchange.PaperTrading),
		zap.String("initial_balance", cfg.InitialBalance.String()))

	gateway, err := exchange.New(logger, cfg.Exchange)
	if err != nil {
		logger.Fatal("failed to initialize exchange gateway", zap.Error(err))
	}

	riskManager := risk.NewManager(logger, cfg.Risk)
	portfolioManager := portfolio.NewManager(logger, riskManager, cfg.InitialBalance)
	bus := events.NewBus(logger, cfg.Bus)
	registry := strategy.NewRegistry(logger)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	botMetrics := metrics.New(promRegistry)

	tradingBot := bot.New(bot.Options{
		Logger:          logger,
		Config:          cfg.Bot,
		Gateway:         gateway,
		Portfolio:       portfolioManager,
		Registry:        registry,
		Bus:             bus,
		Metrics:         botMetrics,
		BreakerConfig:   cfg.Breaker,
		RetryConfig:     cfg.Retry,
		RateLimitConfig: cfg.RateLimit,
	})

	if err := bindStrategies(tradingBot, *strategies); err != nil {
		logger.Fatal("failed to bind strategies", zap.Error(err))
	}

	metricsHandler := promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
	server := api.NewServer(logger, cfg.Server, tradingBot, bus, metricsHandler)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", zap.Error(err))
		}
	}()

	if *autostart {
		if err := tradingBot.Start(); err != nil {
			logger.Fatal("failed to start bot", zap.Error(err))
		}
	}

	logger.Info("server ready",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("autostart", *autostart))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	if err := tradingBot.Stop(); err != nil {
		logger.Error("error stopping bot", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}
	bus.Stop()

	logger.Info("server stopped")
}

// bindStrategies parses the -strategies flag and binds each entry.
func bindStrategies(b *bot.TradingBot, list string) error {
	if list == "" {
		return nil
	}
	for _, entry := range strings.Split(list, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), ":", 2)
		if len(parts) != 2 {
			continue
		}
		if _, err := b.AddStrategy(parts[0], parts[1], nil); err != nil {
			return err
		}
	}
	return nil
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
