package api

import (
	"MarketSimService/internal/core"
	"MarketSimService/internal/model"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// StreamConfig tunes the websocket trade stream
type StreamConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
	Clients      prometheus.Gauge // optional
}

// DefaultStreamConfig returns the stream settings used by the dashboard
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		QueueSize:    16,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamTrades handles GET /stream/trades. The first message is a reset carrying the
// current feed; every later feed change is pushed as it happens.
func (h *APIHandler) StreamTrades(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			zap.String("request_id", requestIDFrom(c)),
			zap.Error(err))
		return
	}

	updates, unsubscribe := h.stream.Subscribe(h.streamConfig.QueueSize)
	defer unsubscribe()

	if g := h.streamConfig.Clients; g != nil {
		g.Inc()
		defer g.Dec()
	}

	log := h.logger.With(zap.String("request_id", requestIDFrom(c)))
	log.Info("trade stream client connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go h.readPump(conn, cancel)
	h.writePump(ctx, conn, h.initialUpdate(ctx), updates)

	log.Info("trade stream client disconnected")
}

func (h *APIHandler) initialUpdate(ctx context.Context) core.TradeUpdate {
	inst := h.marketService.CurrentInstrument(ctx)
	trades, err := h.marketService.GetTrades(ctx, inst.ID)
	if err != nil {
		h.logger.Warn("failed to read feed for stream snapshot", zap.String("symbol", inst.ID), zap.Error(err))
	}
	return core.TradeUpdate{Symbol: inst.ID, Reset: true, Trades: trades}
}

// readPump discards client messages and cancels the stream once the peer goes away
func (h *APIHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(h.streamConfig.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.streamConfig.PongTimeout))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *APIHandler) writePump(ctx context.Context, conn *websocket.Conn, first core.TradeUpdate, updates <-chan core.TradeUpdate) {
	ticker := time.NewTicker(h.streamConfig.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	if err := h.writeUpdate(conn, first); err != nil {
		return
	}

	// Ticks queued between Subscribe and the snapshot read are already in first
	dedup := newSnapshotFilter(first)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(h.streamConfig.WriteTimeout))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "market session stopped"))
				return
			}
			update, ok = dedup.filter(update)
			if !ok {
				continue
			}
			if err := h.writeUpdate(conn, update); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.streamConfig.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (h *APIHandler) writeUpdate(conn *websocket.Conn, update core.TradeUpdate) error {
	conn.SetWriteDeadline(time.Now().Add(h.streamConfig.WriteTimeout))
	if err := conn.WriteJSON(update); err != nil {
		h.logger.Debug("failed to write trade update", zap.String("symbol", update.Symbol), zap.Error(err))
		return err
	}
	return nil
}

// snapshotFilter drops pushed ticks already sent in the initial snapshot.
// It disarms at the first reset or the first update carrying a new tick.
type snapshotFilter struct {
	symbol string
	seen   map[string]struct{}
}

func newSnapshotFilter(first core.TradeUpdate) *snapshotFilter {
	seen := make(map[string]struct{}, len(first.Trades))
	for _, trade := range first.Trades {
		seen[trade.TradeID] = struct{}{}
	}
	return &snapshotFilter{symbol: first.Symbol, seen: seen}
}

// filter returns the update to send, or false when nothing in it is new
func (f *snapshotFilter) filter(update core.TradeUpdate) (core.TradeUpdate, bool) {
	if f.seen == nil {
		return update, true
	}
	if update.Reset || update.Symbol != f.symbol {
		f.seen = nil
		return update, true
	}

	fresh := make([]model.Trade, 0, len(update.Trades))
	for _, trade := range update.Trades {
		if _, dup := f.seen[trade.TradeID]; !dup {
			fresh = append(fresh, trade)
		}
	}
	if len(fresh) == 0 {
		return update, false
	}

	f.seen = nil
	update.Trades = fresh
	return update, true
}
