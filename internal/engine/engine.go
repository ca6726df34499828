// Package engine wires the broker, bar store, streamer, strategies, and
// position manager into the live trading loop.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/gorkemacar/signalbot/internal/config"
	"github.com/gorkemacar/signalbot/internal/exchange"
	"github.com/gorkemacar/signalbot/internal/exchange/bybit"
	"github.com/gorkemacar/signalbot/internal/logger"
	"github.com/gorkemacar/signalbot/internal/market"
	"github.com/gorkemacar/signalbot/internal/monitoring"
	"github.com/gorkemacar/signalbot/internal/position"
	"github.com/gorkemacar/signalbot/internal/strategy"
	"github.com/gorkemacar/signalbot/internal/stream"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// Streamer feeds closed bars into the event queue between Start and Stop.
type Streamer interface {
	Start(ctx context.Context) error
	Stop()
}

// binding attaches one strategy instance to a timeframe with its risk
// limits. Each binding watches every resolved symbol on its timeframe.
type binding struct {
	strat     strategy.Strategy
	timeframe string
	risk      config.RiskConfig
}

// Engine runs the live trading loop. All bar processing, signal
// evaluation, and position bookkeeping happen on the single goroutine
// inside Run; only the streamer runs concurrently.
type Engine struct {
	broker    exchange.Broker
	store     *market.BarStore
	queue     *stream.Queue
	streamer  Streamer
	preloader *stream.Preloader
	manager   *position.Manager
	health    *monitoring.HealthChecker
	log       *logger.Logger

	coins       []string
	bindings    []binding
	preloadBars int
	newStreamer func(subs []stream.Subscription) Streamer

	forceCloseTimeout time.Duration
}

// Options collects the engine's collaborators. Streamer construction is
// deferred to the caller because it needs the resolved subscriptions.
type Options struct {
	Broker      exchange.Broker
	Store       *market.BarStore
	Queue       *stream.Queue
	Preloader   *stream.Preloader
	Manager     *position.Manager
	Health      *monitoring.HealthChecker
	Log         *logger.Logger
	Coins       []string
	PreloadBars int

	// NewStreamer builds the streamer once subscriptions are known.
	NewStreamer func(subs []stream.Subscription) Streamer
}

func New(opts Options, cfgs []config.StrategyConfig, registry *strategy.Registry) (*Engine, error) {
	e := &Engine{
		broker:            opts.Broker,
		store:             opts.Store,
		queue:             opts.Queue,
		preloader:         opts.Preloader,
		manager:           opts.Manager,
		health:            opts.Health,
		log:               opts.Log,
		coins:             opts.Coins,
		preloadBars:       opts.PreloadBars,
		forceCloseTimeout: 30 * time.Second,
	}

	for _, sc := range cfgs {
		strat, err := registry.Create(sc.Name, sc.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to build strategy %q: %w", sc.Name, err)
		}
		e.bindings = append(e.bindings, binding{
			strat:     strat,
			timeframe: sc.Timeframe,
			risk:      *sc.Risk,
		})
	}
	if len(e.bindings) == 0 {
		return nil, fmt.Errorf("no strategies configured")
	}

	e.newStreamer = opts.NewStreamer
	return e, nil
}

// SetStreamer overrides streamer construction, used by tests to feed the
// queue directly.
func (e *Engine) SetStreamer(s Streamer) { e.streamer = s }

// Run resolves symbols, preloads history, starts the stream, and
// processes bar events until ctx is cancelled. On the way out it stops
// the streamer first and then force-closes every open position, so no
// event can open a position after flattening has begun.
func (e *Engine) Run(ctx context.Context) error {
	symbols, err := stream.ResolveSymbols(ctx, e.broker, e.coins)
	if err != nil {
		return fmt.Errorf("failed to resolve symbols: %w", err)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no tradable symbols resolved")
	}
	e.log.Info("trading %d symbols across %d strategies", len(symbols), len(e.bindings))

	subs := e.subscriptions(symbols)
	if err := e.preloader.Preload(ctx, subs, e.preloadBars); err != nil {
		return fmt.Errorf("failed to preload history: %w", err)
	}

	streamer := e.streamer
	if streamer == nil {
		streamer = e.newStreamer(subs)
	}
	if err := streamer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start streamer: %w", err)
	}
	if e.health != nil {
		e.health.SetConnected(true)
	}

	defer func() {
		streamer.Stop()
		if e.health != nil {
			e.health.SetConnected(false)
		}
		// The run context is usually already cancelled here; flattening
		// gets its own deadline.
		closeCtx, cancel := context.WithTimeout(context.Background(), e.forceCloseTimeout)
		defer cancel()
		e.manager.ForceCloseAll(closeCtx)
		e.log.Info("shutdown complete, %d trades this session", len(e.manager.History()))
	}()

	for {
		ev, err := e.queue.Pop(ctx)
		if err != nil {
			return nil
		}
		e.handleBar(ctx, ev.Bar)
	}
}

// subscriptions builds the deduplicated (symbol, timeframe) set the
// stream and preloader operate on.
func (e *Engine) subscriptions(symbols []string) []stream.Subscription {
	seen := make(map[stream.Subscription]bool)
	var subs []stream.Subscription
	for _, b := range e.bindings {
		for _, sym := range symbols {
			sub := stream.Subscription{Symbol: sym, Timeframe: b.timeframe}
			if !seen[sub] {
				seen[sub] = true
				subs = append(subs, sub)
			}
		}
	}
	return subs
}

// handleBar is one iteration of the event loop: store the bar, let every
// strategy on this timeframe see the updated window, then sweep exits.
// The exit sweep runs even when no strategy fires.
func (e *Engine) handleBar(ctx context.Context, bar types.Bar) {
	e.store.AddBar(bar.Symbol, bar.Timeframe, bar)
	monitoring.RecordBar(bar.Symbol, bar.Timeframe, bar.Close)
	if e.health != nil {
		e.health.RecordBar()
	}

	series := e.store.OHLCV(bar.Symbol, bar.Timeframe)
	if series == nil {
		return
	}
	for _, b := range e.bindings {
		if b.timeframe != bar.Timeframe {
			continue
		}
		sig := b.strat.LiveSignal(series.Open, series.High, series.Low, series.Close, series.Volume)
		if sig == types.SignalNone {
			continue
		}
		monitoring.RecordSignal(b.strat.Name(), sig.String())
		e.log.Info("%s %s signal on %s/%s", b.strat.Name(), sig, bar.Symbol, bar.Timeframe)

		opened, err := e.manager.OpenPosition(ctx, position.OpenRequest{
			Symbol:     bar.Symbol,
			Side:       sig.Side(),
			StrategyID: b.strat.Name(),
			Capital:    b.risk.CapitalPerTrade,
			Leverage:   b.risk.Leverage,
			SLPct:      b.risk.SLPct,
			TPPct:      b.risk.TPPct,
			MaxHolding: b.risk.MaxHolding(),
		})
		if err != nil {
			// Transient exchange failures are warnings; the signal will
			// recur if the setup is still valid on a later bar.
			switch {
			case bybit.IsInsufficientBalance(err):
				e.log.Warning("%s open on %s skipped, insufficient balance: %v", b.strat.Name(), bar.Symbol, err)
			case bybit.IsRetryable(err):
				e.log.Warning("%s open on %s deferred: %v", b.strat.Name(), bar.Symbol, err)
			default:
				e.log.Error("%s open on %s failed: %v", b.strat.Name(), bar.Symbol, err)
				monitoring.RecordError("open_position")
			}
		} else if !opened {
			e.log.Debug("%s open on %s declined", b.strat.Name(), bar.Symbol)
		}
	}

	e.manager.UpdateAll(ctx)
}
