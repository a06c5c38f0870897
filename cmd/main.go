package main

import (
	"MarketSimService/api"
	"MarketSimService/internal/config"
	"MarketSimService/internal/core"
	"MarketSimService/internal/data"
	"MarketSimService/internal/logger"
	"MarketSimService/internal/metrics"
	"MarketSimService/internal/mock"
	"MarketSimService/internal/service"
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.App.Name, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// Create a context that is cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()

	// 1. Random source; a fixed seed makes every generated sequence reproducible
	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	generator := mock.NewMarketDataGeneratorWithConfig(mock.DefaultGeneratorConfig(), rand.New(rand.NewSource(seed)), nil)

	// 2. Snapshot storage for the selected instrument
	storageConfig := data.DefaultStorageConfig()
	storageConfig.FeedLength = cfg.Sim.FeedLength
	storage := data.NewInMemoryMarketStorageWithConfig(storageConfig)

	// 3. Session driving the candle refresh and trade tick timers
	instruments := mock.DefaultInstrumentTable()
	session := core.NewMarketSession(generator, storage, instruments, m, core.SessionConfig{
		CandleCount:   cfg.Sim.CandleCount,
		InitialTrades: cfg.Sim.InitialTrades,
		CandleRefresh: cfg.Sim.CandleRefresh,
		TradeInterval: cfg.Sim.TradeInterval,
	}, zl)

	if err := session.Start(ctx, cfg.Sim.DefaultSymbol); err != nil {
		zl.Fatal("failed to start market session", zap.Error(err))
	}
	defer session.Stop()

	// 4. Read service and API
	marketService := service.NewMarketService(storage, session, generator, instruments)

	streamConfig := api.DefaultStreamConfig()
	streamConfig.QueueSize = cfg.Sim.StreamQueueSize
	streamConfig.Clients = m.StreamClients

	apiHandler := api.NewAPIHandler(marketService, zl.Named("api"),
		api.WithTradeStream(session, streamConfig),
		api.WithMetrics(m))
	server := apiHandler.NewServer(cfg.App.Port)

	serverErr := make(chan error, 1)
	go func() {
		zl.Info("market simulator listening",
			zap.Int("port", cfg.App.Port),
			zap.String("environment", cfg.App.Environment),
			zap.String("symbol", cfg.Sim.DefaultSymbol),
			zap.Int64("seed", seed))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		zl.Info("received shutdown signal, stopping services")
	case err := <-serverErr:
		if err != nil {
			zl.Error("server failed", zap.Error(err))
		}
	}

	// Stop the session first so websocket streams see their channels closed
	session.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
	zl.Info("market simulator stopped")
}
