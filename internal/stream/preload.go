package stream

import (
	"context"
	"time"

	"github.com/gorkemacar/signalbot/internal/exchange"
	"github.com/gorkemacar/signalbot/internal/logger"
	"github.com/gorkemacar/signalbot/internal/market"
	"github.com/gorkemacar/signalbot/internal/safety"
)

// WildcardAllUSDT selects every actively trading USDT-quoted contract.
const WildcardAllUSDT = "ALL_USDT"

// Preloader backfills the bar store with recent closed candles before the
// live stream starts, so strategies have lookback on their first signal.
// Requests are chunked through a rate limiter with inter-chunk delays to
// stay under exchange request-weight quotas.
type Preloader struct {
	broker     exchange.Broker
	store      *market.BarStore
	log        *logger.Logger
	limiter    *safety.RateLimiter
	chunkSize  int
	chunkDelay time.Duration
}

// NewPreloader creates a preloader using the shared rate limiter manager.
func NewPreloader(broker exchange.Broker, store *market.BarStore, log *logger.Logger, limiters *safety.Manager, chunkSize int, chunkDelay time.Duration) *Preloader {
	if chunkSize <= 0 {
		chunkSize = 10
	}
	if chunkDelay <= 0 {
		chunkDelay = time.Second
	}
	return &Preloader{
		broker:     broker,
		store:      store,
		log:        log,
		limiter:    limiters.GetOrCreate("preload", chunkSize, chunkSize),
		chunkSize:  chunkSize,
		chunkDelay: chunkDelay,
	}
}

// Preload fetches the last bars closed candles for every subscription.
// Failures on individual symbols are logged and skipped; only context
// cancellation aborts the whole preload.
func (p *Preloader) Preload(ctx context.Context, subs []Subscription, bars int) error {
	loaded := 0
	for i, sub := range subs {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		klines, err := p.broker.GetKlines(ctx, sub.Symbol, sub.Timeframe, bars)
		if err != nil {
			p.log.LogWarning("preload", "%s %s failed: %v", sub.Symbol, sub.Timeframe, err)
			continue
		}

		for _, bar := range klines {
			p.store.AddBar(sub.Symbol, sub.Timeframe, bar)
		}
		loaded++
		p.log.Debug("preloaded %d bars for %s %s", len(klines), sub.Symbol, sub.Timeframe)

		// Sleep between chunks, not after the final one.
		if (i+1)%p.chunkSize == 0 && i+1 < len(subs) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.chunkDelay):
			}
		}
	}

	p.log.Info("preload complete: %d/%d subscriptions backfilled", loaded, len(subs))
	return nil
}

// ResolveSymbols expands the configured coin list. The ALL_USDT wildcard is
// resolved against the exchange instrument listing; an empty result is an
// error because the engine would have nothing to do.
func ResolveSymbols(ctx context.Context, broker exchange.Broker, coins []string) ([]string, error) {
	if len(coins) == 1 && coins[0] == WildcardAllUSDT {
		symbols, err := broker.ListSymbols(ctx, "USDT")
		if err != nil {
			return nil, err
		}
		return symbols, nil
	}

	symbols := make([]string, 0, len(coins))
	for _, coin := range coins {
		if coin == "" {
			continue
		}
		symbols = append(symbols, normalizeSymbol(coin))
	}
	return symbols, nil
}

// normalizeSymbol strips the pair separator: "BTC/USDT" becomes "BTCUSDT".
func normalizeSymbol(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			continue
		}
		c := s[i]
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
