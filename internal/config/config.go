// Package config loads and validates the bot configuration from a JSON
// file, with exchange credentials supplied through the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gorkemacar/signalbot/internal/strategy"
)

// ExchangeConfig selects the trading environment. Credentials are never
// stored in the config file; they come from BYBIT_API_KEY and
// BYBIT_API_SECRET.
type ExchangeConfig struct {
	Name    string `json:"name"`
	Testnet bool   `json:"testnet"`
	Demo    bool   `json:"demo"`
}

// RiskConfig bounds every position a strategy opens.
type RiskConfig struct {
	Leverage        int     `json:"leverage"`
	SLPct           float64 `json:"sl_pct"`
	TPPct           float64 `json:"tp_pct"`
	ExpireSeconds   int     `json:"expire_seconds"`
	CapitalPerTrade float64 `json:"capital_per_trade"`
	MaxConcurrent   int     `json:"max_concurrent"`
}

// MaxHolding converts the expiry to a duration, zero meaning no expiry.
func (r RiskConfig) MaxHolding() time.Duration {
	return time.Duration(r.ExpireSeconds) * time.Second
}

// StrategyConfig binds one strategy instance to a timeframe. Risk fields
// left at zero inherit the top-level risk defaults.
type StrategyConfig struct {
	Name      string          `json:"name"`
	Timeframe string          `json:"timeframe"`
	Params    strategy.Params `json:"params"`
	Risk      *RiskConfig     `json:"risk,omitempty"`
}

// PreloadConfig shapes the historical backfill performed before the
// stream starts.
type PreloadConfig struct {
	Bars         int `json:"bars"`
	ChunkSize    int `json:"chunk_size"`
	ChunkDelayMs int `json:"chunk_delay_ms"`
}

func (p PreloadConfig) ChunkDelay() time.Duration {
	return time.Duration(p.ChunkDelayMs) * time.Millisecond
}

type QueueConfig struct {
	Capacity int `json:"capacity"`
}

type MonitoringConfig struct {
	Addr string `json:"addr"`
}

// Config is the complete bot configuration.
type Config struct {
	Exchange   ExchangeConfig   `json:"exchange"`
	Coins      []string         `json:"coins"`
	Strategies []StrategyConfig `json:"strategies"`
	Risk       RiskConfig       `json:"risk"`
	Preload    PreloadConfig    `json:"preload"`
	Queue      QueueConfig      `json:"queue"`
	Monitoring MonitoringConfig `json:"monitoring"`
	TradeLog   string           `json:"trade_log"`
	Debug      bool             `json:"debug"`
}

// Load reads, defaults, and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields and propagates the top-level risk
// block into strategies that did not override it.
func (c *Config) ApplyDefaults() {
	if c.Exchange.Name == "" {
		c.Exchange.Name = "bybit"
	}
	if c.Risk.Leverage == 0 {
		c.Risk.Leverage = 10
	}
	if c.Risk.SLPct == 0 {
		c.Risk.SLPct = 3
	}
	if c.Risk.TPPct == 0 {
		c.Risk.TPPct = 6
	}
	if c.Risk.CapitalPerTrade == 0 {
		c.Risk.CapitalPerTrade = 50
	}
	if c.Risk.MaxConcurrent == 0 {
		c.Risk.MaxConcurrent = 5
	}
	if c.Preload.Bars == 0 {
		c.Preload.Bars = 250
	}
	if c.Preload.ChunkSize == 0 {
		c.Preload.ChunkSize = 10
	}
	if c.Preload.ChunkDelayMs == 0 {
		c.Preload.ChunkDelayMs = 500
	}
	if c.Queue.Capacity == 0 {
		c.Queue.Capacity = 1024
	}
	if c.TradeLog == "" {
		c.TradeLog = "trades.csv"
	}

	for i := range c.Strategies {
		if c.Strategies[i].Risk == nil {
			risk := c.Risk
			c.Strategies[i].Risk = &risk
			continue
		}
		r := c.Strategies[i].Risk
		if r.Leverage == 0 {
			r.Leverage = c.Risk.Leverage
		}
		if r.SLPct == 0 {
			r.SLPct = c.Risk.SLPct
		}
		if r.TPPct == 0 {
			r.TPPct = c.Risk.TPPct
		}
		if r.ExpireSeconds == 0 {
			r.ExpireSeconds = c.Risk.ExpireSeconds
		}
		if r.CapitalPerTrade == 0 {
			r.CapitalPerTrade = c.Risk.CapitalPerTrade
		}
		if r.MaxConcurrent == 0 {
			r.MaxConcurrent = c.Risk.MaxConcurrent
		}
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	if c.Exchange.Name != "bybit" {
		return fmt.Errorf("unsupported exchange %q", c.Exchange.Name)
	}
	if len(c.Coins) == 0 {
		return fmt.Errorf("coins list is empty")
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("strategies list is empty")
	}

	registry := strategy.NewRegistry()
	for i, sc := range c.Strategies {
		if sc.Name == "" {
			return fmt.Errorf("strategy %d: name is required", i)
		}
		if sc.Timeframe == "" {
			return fmt.Errorf("strategy %q: timeframe is required", sc.Name)
		}
		if _, err := registry.Create(sc.Name, sc.Params); err != nil {
			return fmt.Errorf("strategy %q: %w", sc.Name, err)
		}
		if sc.Risk.Leverage < 1 || sc.Risk.Leverage > 100 {
			return fmt.Errorf("strategy %q: leverage %d out of range [1,100]", sc.Name, sc.Risk.Leverage)
		}
		if sc.Risk.SLPct <= 0 || sc.Risk.TPPct <= 0 {
			return fmt.Errorf("strategy %q: sl_pct and tp_pct must be positive", sc.Name)
		}
		if sc.Risk.CapitalPerTrade <= 0 {
			return fmt.Errorf("strategy %q: capital_per_trade must be positive", sc.Name)
		}
	}
	return nil
}

// Credentials pulls the exchange API keys from the environment.
func Credentials() (key, secret string, err error) {
	key = os.Getenv("BYBIT_API_KEY")
	secret = os.Getenv("BYBIT_API_SECRET")
	if key == "" || secret == "" {
		return "", "", fmt.Errorf("BYBIT_API_KEY and BYBIT_API_SECRET must be set")
	}
	return key, secret, nil
}
