// Package bybit implements the exchange.Broker interface against the
// Bybit v5 unified trading API for linear perpetual contracts.
package bybit

import (
	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

const category = "linear"

// Config holds the credentials and environment selection for the client.
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool // demo trading environment (paper trading)
}

// Broker is the Bybit-backed implementation of exchange.Broker.
type Broker struct {
	httpClient *bybit_api.Client
	demo       bool
	testnet    bool
}

// NewBroker creates a Bybit broker for the configured environment.
func NewBroker(config Config) *Broker {
	var baseURL string
	switch {
	case config.Demo:
		baseURL = "https://api-demo.bybit.com"
	case config.Testnet:
		baseURL = bybit_api.TESTNET
	default:
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Broker{
		httpClient: httpClient,
		demo:       config.Demo,
		testnet:    config.Testnet,
	}
}

// Environment describes which Bybit environment the broker talks to.
func (b *Broker) Environment() string {
	switch {
	case b.demo:
		return "demo"
	case b.testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}

// StreamURL returns the public websocket endpoint matching the environment.
func (b *Broker) StreamURL() string {
	if b.testnet {
		return "wss://stream-testnet.bybit.com/v5/public/linear"
	}
	return "wss://stream.bybit.com/v5/public/linear"
}
