package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"
	"time"

	"github.com/gosensan/algo-trading/config"
	"github.com/gosensan/algo-trading/internal/adapters/binanceclient"
	"github.com/gosensan/algo-trading/internal/adapters/logger"
	"github.com/gosensan/algo-trading/internal/adapters/sqlite"
	"github.com/gosensan/algo-trading/internal/engine"
	"github.com/gosensan/algo-trading/internal/journal"
	"github.com/gosensan/algo-trading/internal/ports"
	"github.com/gosensan/algo-trading/internal/risk"
	"github.com/gosensan/algo-trading/internal/strategy"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize History Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trade history repository")
		log.Fatalf("FATAL: Failed to initialize trade history repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing trade history repository")
		}
	}()

	// 4. Initialize Trade Journal
	tradeJournal, err := journal.NewCSVJournal(cfg.JournalPath)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trade journal")
		log.Fatalf("FATAL: Failed to initialize trade journal: %v", err)
	}
	appLogger.Info(context.Background(), "Trade journal initialized", map[string]interface{}{"path": cfg.JournalPath})

	// 5. Initialize Venue Client (Binance Adapter)
	venueClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize venue client")
		log.Fatalf("FATAL: Failed to initialize venue client: %v", err)
	}

	// Fail fast: the engine must not start without a working session.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := venueClient.Connect(ctx); err != nil {
		appLogger.Error(ctx, err, "FATAL: Could not connect to venue")
		log.Fatalf("FATAL: Could not connect to venue: %v", err)
	}
	defer venueClient.Disconnect()

	if account, err := venueClient.GetAccountInfo(ctx); err == nil {
		appLogger.Info(ctx, "Account snapshot", map[string]interface{}{
			"balance":  account.Balance,
			"equity":   account.Equity,
			"currency": account.Currency,
		})
	}

	// 6. Risk Configuration, Gate and Daily Stats
	riskCfg := risk.LoadConfig(cfg.RiskConfigPath, appLogger)
	gate := risk.NewGate(riskCfg, appLogger, nil)
	stats := risk.NewDailyStats(appLogger, time.Now())

	// 7. Signal Providers
	breakout := strategy.NewBreakout(strategy.BreakoutConfig{
		Symbol:    cfg.BreakoutSymbol,
		Timeframe: cfg.StrategyTimeframe,
		Period:    cfg.BreakoutPeriod,
	}, appLogger)
	reversion := strategy.NewReversion(strategy.ReversionConfig{
		Symbol:    cfg.ReversionSymbol,
		Timeframe: cfg.StrategyTimeframe,
	}, appLogger)

	// The one-entry-per-day guard survives restarts through the recorded
	// history.
	if count, err := repo.CountEntriesToday(ctx, reversion.Magic()); err != nil {
		appLogger.Warn(ctx, "Could not count today's entries, daily guard starts fresh", map[string]interface{}{
			"error": err.Error(),
		})
	} else if count > 0 {
		reversion.MarkEnteredToday(time.Now().UTC())
		appLogger.Info(ctx, "Daily entry guard restored from history", map[string]interface{}{
			"entries_today": count,
		})
	}

	providers := []ports.SignalProvider{breakout, reversion}

	// 8. Engine
	volumes := map[string]float64{}
	for _, p := range providers {
		volumes[p.Name()] = cfg.VolumeFor(p.Name(), p.Symbol())
	}

	eng, err := engine.New(engine.Deps{
		Logger:        appLogger,
		Venue:         venueClient,
		Journal:       tradeJournal,
		History:       repo,
		Gate:          gate,
		Stats:         stats,
		RiskCfg:       riskCfg,
		Providers:     providers,
		CycleInterval: cfg.CycleInterval,
		CandleWindow:  cfg.CandleWindow,
		DefaultVolume: cfg.DefaultVolume,
		Volumes:       volumes,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize engine")
		log.Fatalf("FATAL: Failed to initialize engine: %v", err)
	}

	// 9. Run until SIGINT/SIGTERM
	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Error(ctx, err, "Engine exited with error")
		log.Fatalf("FATAL: Engine exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
