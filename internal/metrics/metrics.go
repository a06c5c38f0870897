package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the market simulator
type Metrics struct {
	CandlesGenerated   *prometheus.CounterVec // labels: symbol
	TradesGenerated    *prometheus.CounterVec // labels: symbol
	InstrumentSwitches prometheus.Counter
	CandleRefreshes    prometheus.Counter
	FeedLength         prometheus.Gauge
	StreamClients      prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		CandlesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsim_candles_generated_total",
			Help: "Total synthetic candles generated",
		}, []string{"symbol"}),
		TradesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsim_trades_generated_total",
			Help: "Total synthetic trade ticks generated",
		}, []string{"symbol"}),
		InstrumentSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_instrument_switches_total",
			Help: "Total instrument selections that reset the session",
		}),
		CandleRefreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsim_candle_refreshes_total",
			Help: "Total scheduled candle sequence refreshes",
		}),
		FeedLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketsim_trade_feed_length",
			Help: "Current number of ticks in the recent-trades feed",
		}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketsim_stream_clients",
			Help: "Connected websocket trade stream clients",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.CandlesGenerated,
		m.TradesGenerated,
		m.InstrumentSwitches,
		m.CandleRefreshes,
		m.FeedLength,
		m.StreamClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
