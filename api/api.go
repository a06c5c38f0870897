package api

import (
	"MarketSimService/internal/core"
	sim "MarketSimService/internal/mock"
	"MarketSimService/internal/model"
	"MarketSimService/internal/service"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// This file serves as the main entry point for the API package. It defines the APIHandler struct and its dependencies.
// The package structure is as follows:
// - api.go: Main API handler and dependencies (this file)
// - handler.go: HTTP request handlers
// - stream.go: websocket trade stream
// - middleware.go: Middleware functions
// - validator.go: Request validation

// Constants
const (
	DefaultTimeout      = 30 * time.Second
	DefaultInterval     = "1d"
	ServiceVersion      = "1.0.0"
	ServiceName         = "market-sim-service"
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"
)

// MarketService is an interface defining methods to read and drive the simulated market
type MarketService interface {
	GetTrades(ctx context.Context, symbol string) ([]model.Trade, error)
	GetCandles(ctx context.Context, symbol, interval string, limit int64) ([]model.Candle, error)
	GetInstruments(ctx context.Context) []sim.Instrument
	CurrentInstrument(ctx context.Context) sim.Instrument
	SelectInstrument(ctx context.Context, symbol string) (sim.Instrument, error)
	GetTicker(ctx context.Context) (service.Ticker, error)
	GenerateCandles(ctx context.Context, length int, basePrice float64) ([]model.Candle, error)
	GenerateTrades(ctx context.Context, symbol string, count int) ([]model.Trade, error)
}

// TradeStream publishes feed updates to websocket clients
type TradeStream interface {
	Subscribe(buffer int) (<-chan core.TradeUpdate, func())
}

// MetricsHandler serves collected metrics
type MetricsHandler interface {
	Handler() http.Handler
}

// APIHandler handles HTTP requests using Gin framework
type APIHandler struct {
	marketService MarketService
	stream        TradeStream
	metrics       MetricsHandler
	validator     *Validator
	logger        *zap.Logger
	streamConfig  StreamConfig
}

// Option customizes an APIHandler
type Option func(*APIHandler)

// WithTradeStream enables GET /stream/trades
func WithTradeStream(stream TradeStream, config StreamConfig) Option {
	return func(h *APIHandler) {
		h.stream = stream
		h.streamConfig = config
	}
}

// WithMetrics enables GET /metrics
func WithMetrics(m MetricsHandler) Option {
	return func(h *APIHandler) {
		h.metrics = m
	}
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(marketService MarketService, logger *zap.Logger, opts ...Option) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &APIHandler{
		marketService: marketService,
		validator:     GetValidator(),
		logger:        logger,
		streamConfig:  DefaultStreamConfig(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewServer wraps the routes in an http.Server so callers control shutdown
func (h *APIHandler) NewServer(port int) *http.Server {
	return &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           h.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// SetupRoutes configures all API routes
func (h *APIHandler) SetupRoutes() *gin.Engine {
	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Add middleware
	router.Use(requestIDMiddleware())
	router.Use(accessLogMiddleware(h.logger.Named("http")))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// API routes
	router.GET("/trades", h.GetTrades)
	router.GET("/candles", h.GetCandles)
	router.GET("/ticker", h.GetTicker)
	router.GET("/instruments", h.GetInstruments)
	router.GET("/instrument", h.GetCurrentInstrument)
	router.PUT("/instrument", h.SelectInstrument)
	router.GET("/generate/candles", h.GenerateCandles)
	router.GET("/generate/trades", h.GenerateTrades)
	router.GET("/health", h.HealthCheck)

	if h.stream != nil {
		router.GET("/stream/trades", h.StreamTrades)
	}
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	return router
}
