package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	App AppConfig `envPrefix:"APP_"`
	Sim SimConfig `envPrefix:"SIM_"`
}

// AppConfig represents the service configuration.
type AppConfig struct {
	Name        string `env:"NAME" envDefault:"market-sim-service"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// SimConfig represents the market simulation configuration.
type SimConfig struct {
	// Seed for the random source; 0 seeds from the clock
	Seed            int64         `env:"SEED" envDefault:"0"`
	DefaultSymbol   string        `env:"DEFAULT_SYMBOL" envDefault:"BTC-USD"`
	CandleCount     int           `env:"CANDLE_COUNT" envDefault:"100"`
	InitialTrades   int           `env:"INITIAL_TRADES" envDefault:"20"`
	FeedLength      int           `env:"FEED_LENGTH" envDefault:"50"`
	CandleRefresh   time.Duration `env:"CANDLE_REFRESH" envDefault:"60s"`
	TradeInterval   time.Duration `env:"TRADE_INTERVAL" envDefault:"5s"`
	StreamQueueSize int           `env:"STREAM_QUEUE_SIZE" envDefault:"16"`
}

// Validate checks the values that would otherwise break the scheduler.
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid APP_PORT %d", c.App.Port)
	}
	if c.Sim.CandleCount < 0 || c.Sim.InitialTrades < 0 {
		return fmt.Errorf("SIM_CANDLE_COUNT and SIM_INITIAL_TRADES must not be negative")
	}
	if c.Sim.FeedLength <= 0 {
		return fmt.Errorf("SIM_FEED_LENGTH must be positive, got %d", c.Sim.FeedLength)
	}
	if c.Sim.CandleRefresh <= 0 || c.Sim.TradeInterval <= 0 {
		return fmt.Errorf("SIM_CANDLE_REFRESH and SIM_TRADE_INTERVAL must be positive")
	}
	if c.Sim.StreamQueueSize <= 0 {
		return fmt.Errorf("SIM_STREAM_QUEUE_SIZE must be positive, got %d", c.Sim.StreamQueueSize)
	}
	return nil
}

// Load loads the configuration from the environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
