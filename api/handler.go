package api

import (
	sim "MarketSimService/internal/mock"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SelectInstrumentRequest is the body of PUT /instrument
type SelectInstrumentRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

// GetTrades handles GET /trades requests
func (h *APIHandler) GetTrades(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	symbol := c.Query("symbol")

	cleanSymbol, err := h.validator.ValidateTradesRequest(symbol)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	trades, err := h.marketService.GetTrades(ctx, cleanSymbol)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, trades)
}

// GetCandles handles GET /candles requests
func (h *APIHandler) GetCandles(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	symbol := c.Query("symbol")
	interval := c.DefaultQuery("interval", DefaultInterval)
	limit := c.Query("limit")

	cleanSymbol, cleanInterval, validLimit, err := h.validator.ValidateCandlesRequest(symbol, interval, limit)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	candles, err := h.marketService.GetCandles(ctx, cleanSymbol, cleanInterval, validLimit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, candles)
}

// GetTicker handles GET /ticker requests
func (h *APIHandler) GetTicker(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	ticker, err := h.marketService.GetTicker(ctx)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticker)
}

// GetInstruments handles GET /instruments requests
func (h *APIHandler) GetInstruments(c *gin.Context) {
	c.JSON(http.StatusOK, h.marketService.GetInstruments(c.Request.Context()))
}

// GetCurrentInstrument handles GET /instrument requests
func (h *APIHandler) GetCurrentInstrument(c *gin.Context) {
	c.JSON(http.StatusOK, h.marketService.CurrentInstrument(c.Request.Context()))
}

// SelectInstrument handles PUT /instrument requests
func (h *APIHandler) SelectInstrument(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	var req SelectInstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, err, http.StatusBadRequest, "request body must be {\"symbol\": \"BASE-QUOTE\"}")
		return
	}

	cleanSymbol, err := h.validator.ValidateSelectRequest(req.Symbol)
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	inst, err := h.marketService.SelectInstrument(ctx, cleanSymbol)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.logger.Info("instrument selected",
		zap.String("request_id", requestIDFrom(c)),
		zap.String("symbol", inst.ID))

	c.JSON(http.StatusOK, inst)
}

// GenerateCandles handles GET /generate/candles requests
func (h *APIHandler) GenerateCandles(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	length, basePrice, err := h.validator.ValidateGenerateCandlesRequest(c.Query("length"), c.Query("base_price"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	candles, err := h.marketService.GenerateCandles(ctx, length, basePrice)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, candles)
}

// GenerateTrades handles GET /generate/trades requests
func (h *APIHandler) GenerateTrades(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	symbol, count, err := h.validator.ValidateGenerateTradesRequest(c.Query("symbol"), c.Query("count"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	trades, err := h.marketService.GenerateTrades(ctx, symbol, count)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, trades)
}

// HealthCheck handles GET /health requests
func (h *APIHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "OK",
		"service":    ServiceName,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"version":    ServiceVersion,
		"instrument": h.marketService.CurrentInstrument(c.Request.Context()).ID,
	})
}

func requestIDFrom(c *gin.Context) string {
	if requestID, exists := c.Get(RequestIDContextKey); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return "unknown"
}

// handleError logs the error and sends appropriate HTTP response
func (h *APIHandler) handleError(c *gin.Context, err error, statusCode int, userMessage string) {
	requestID := requestIDFrom(c)

	h.logger.Error("API error",
		zap.String("request_id", requestID),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
		zap.Int("status_code", statusCode),
	)

	c.JSON(statusCode, gin.H{
		"error":      userMessage,
		"request_id": requestID,
	})
}

// handleValidationError handles validation errors specifically
func (h *APIHandler) handleValidationError(c *gin.Context, err error) {
	h.handleError(c, err, http.StatusBadRequest, err.Error())
}

// handleServiceError maps invalid arguments to 400 and everything else to 500
func (h *APIHandler) handleServiceError(c *gin.Context, err error) {
	if errors.Is(err, sim.ErrInvalidArgument) {
		h.handleValidationError(c, err)
		return
	}
	h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
}
