package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/gorkemacar/signalbot/internal/config"
	"github.com/gorkemacar/signalbot/internal/engine"
	"github.com/gorkemacar/signalbot/internal/exchange"
	"github.com/gorkemacar/signalbot/internal/exchange/bybit"
	"github.com/gorkemacar/signalbot/internal/logger"
	"github.com/gorkemacar/signalbot/internal/market"
	"github.com/gorkemacar/signalbot/internal/monitoring"
	"github.com/gorkemacar/signalbot/internal/position"
	"github.com/gorkemacar/signalbot/internal/safety"
	"github.com/gorkemacar/signalbot/internal/strategy"
	"github.com/gorkemacar/signalbot/internal/stream"
	"github.com/gorkemacar/signalbot/internal/tradelog"
	"github.com/gorkemacar/signalbot/pkg/reporting"
)

func main() {
	var (
		configFile = flag.String("config", "config.json", "Configuration file")
		envFile    = flag.String("env", ".env", "Environment file path")
		debug      = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		log.Printf("Warning: could not load %s (%v), using existing environment", *envFile, err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	key, secret, err := config.Credentials()
	if err != nil {
		log.Fatalf("Missing credentials: %v", err)
	}

	botLog, err := logger.NewLoggerWithDebug("live_bot", cfg.Debug || *debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer botLog.Close()

	bybitBroker := bybit.NewBroker(bybit.Config{
		APIKey:    key,
		APISecret: secret,
		Testnet:   cfg.Exchange.Testnet,
		Demo:      cfg.Exchange.Demo,
	})
	limiters := safety.NewManager()
	broker := exchange.NewProtectedBroker(bybitBroker, limiters)
	botLog.Info("connected to bybit (%s)", bybitBroker.Environment())

	recorder, err := tradelog.NewWriter(cfg.TradeLog)
	if err != nil {
		log.Fatalf("Failed to open trade log: %v", err)
	}
	defer recorder.Close()

	store := market.NewBarStore(cfg.Preload.Bars + 50)
	queue := stream.NewQueue(cfg.Queue.Capacity)
	manager := position.NewManager(broker, botLog, position.ManagerConfig{
		CapitalPerTrade: cfg.Risk.CapitalPerTrade,
		MaxConcurrent:   cfg.Risk.MaxConcurrent,
	}, recorder)
	preloader := stream.NewPreloader(broker, store, botLog, limiters,
		cfg.Preload.ChunkSize, cfg.Preload.ChunkDelay())

	health := monitoring.NewHealthChecker()
	if cfg.Monitoring.Addr != "" {
		go func() {
			if err := monitoring.Serve(cfg.Monitoring.Addr, health); err != nil {
				botLog.Error("monitoring server: %v", err)
			}
		}()
	}

	eng, err := engine.New(engine.Options{
		Broker:      broker,
		Store:       store,
		Queue:       queue,
		Preloader:   preloader,
		Manager:     manager,
		Health:      health,
		Log:         botLog,
		Coins:       cfg.Coins,
		PreloadBars: cfg.Preload.Bars,
		NewStreamer: func(subs []stream.Subscription) engine.Streamer {
			return stream.NewKlineStreamer(bybitBroker.StreamURL(), subs, queue, botLog)
		},
	}, cfg.Strategies, strategy.NewRegistry())
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		fmt.Println("\n🛑 Shutdown signal received...")
		cancel()
	}()

	if err := eng.Run(ctx); err != nil {
		botLog.Error("engine: %v", err)
		log.Fatalf("Engine failed: %v", err)
	}

	reporting.PrintSessionTrades(os.Stdout, manager.History())
	fmt.Println("✅ Bot stopped successfully")
}

func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); err == nil {
		return godotenv.Load(envFile)
	}
	return fmt.Errorf("env file %s not found", envFile)
}
