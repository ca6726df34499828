package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/gorkemacar/signalbot/internal/backtest"
	"github.com/gorkemacar/signalbot/internal/exchange/bybit"
	"github.com/gorkemacar/signalbot/internal/strategy"
	"github.com/gorkemacar/signalbot/pkg/reporting"
	"github.com/gorkemacar/signalbot/pkg/types"
)

func main() {
	var (
		strategyName = flag.String("strategy", "rsi_threshold", "Strategy to replay")
		symbol       = flag.String("symbol", "BTCUSDT", "Symbol to backtest")
		timeframe    = flag.String("timeframe", "5m", "Candle timeframe")
		bars         = flag.Int("bars", 1000, "Number of historical bars to fetch")
		balance      = flag.Float64("balance", 1000, "Initial balance")
		capital      = flag.Float64("capital", 50, "Capital per trade")
		leverage     = flag.Int("leverage", 10, "Leverage")
		slPct        = flag.Float64("sl", 3, "Stop-loss percent (of capital)")
		tpPct        = flag.Float64("tp", 6, "Take-profit percent (of capital)")
		expireBars   = flag.Int("expire-bars", 0, "Close positions after N bars (0 = never)")
		output       = flag.String("output", "", "Optional .xlsx report path")
		envFile      = flag.String("env", ".env", "Environment file path")
		testnet      = flag.Bool("testnet", false, "Fetch data from testnet")
	)
	flag.Parse()

	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			log.Printf("Warning: could not load %s: %v", *envFile, err)
		}
	}

	registry := strategy.NewRegistry()
	strat, err := registry.Create(*strategyName, strategy.Params{})
	if err != nil {
		log.Fatalf("Failed to build strategy: %v", err)
	}

	// Market data endpoints are public; credentials are optional here.
	broker := bybit.NewBroker(bybit.Config{
		APIKey:    os.Getenv("BYBIT_API_KEY"),
		APISecret: os.Getenv("BYBIT_API_SECRET"),
		Testnet:   *testnet,
	})

	ctx := context.Background()
	klines, err := broker.GetKlines(ctx, *symbol, *timeframe, *bars)
	if err != nil {
		log.Fatalf("Failed to fetch klines: %v", err)
	}
	if len(klines) < strat.MinBars() {
		log.Fatalf("Fetched %d bars, strategy %s needs at least %d",
			len(klines), strat.Name(), strat.MinBars())
	}
	fmt.Printf("📊 Replaying %s over %d %s bars of %s\n",
		strat.Name(), len(klines), *timeframe, *symbol)

	data := make([]types.OHLCV, len(klines))
	for i, bar := range klines {
		data[i] = bar.OHLCV()
	}

	inst, err := broker.GetInstrument(ctx, *symbol)
	if err != nil {
		log.Fatalf("Failed to fetch instrument: %v", err)
	}

	res, err := backtest.Run(strat, data, backtest.Config{
		InitialBalance:  *balance,
		CapitalPerTrade: *capital,
		Leverage:        *leverage,
		SLPct:           *slPct,
		TPPct:           *tpPct,
		ExpireBars:      *expireBars,
		TickSize:        inst.TickSize,
		QtyStep:         inst.QtyStep,
	})
	if err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}

	reporting.PrintBacktestResults(os.Stdout, strat.Name(), *symbol, res)

	if *output != "" {
		if err := reporting.WriteBacktestXLSX(res, strat.Name(), *symbol, *output); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		fmt.Printf("💾 Report saved to %s\n", *output)
	}
}
