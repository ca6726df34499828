package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gorkemacar/signalbot/internal/exchange/bybit"
	"github.com/gorkemacar/signalbot/internal/logger"
	"github.com/gorkemacar/signalbot/pkg/types"
)

// Subscription is one (symbol, timeframe) pair to stream.
type Subscription struct {
	Symbol    string
	Timeframe string
}

// KlineStreamer subscribes to Bybit v5 public kline topics and pushes one
// event per confirmed (closed) bar onto the queue. Bar closure is marked
// by the exchange, so no client-side aggregation is needed.
type KlineStreamer struct {
	url   string
	subs  []Subscription
	queue *Queue
	log   *logger.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	stopped bool
	done    chan struct{}

	// timeframe lookup by Bybit interval code, built from subs
	timeframes map[string]string
}

// NewKlineStreamer creates a streamer for the given subscriptions.
func NewKlineStreamer(url string, subs []Subscription, queue *Queue, log *logger.Logger) *KlineStreamer {
	return &KlineStreamer{
		url:        url,
		subs:       subs,
		queue:      queue,
		log:        log,
		done:       make(chan struct{}),
		timeframes: make(map[string]string),
	}
}

// Start connects, subscribes every topic, and launches the read and
// keepalive loops. Returns once the initial connection is up.
func (s *KlineStreamer) Start(ctx context.Context) error {
	if len(s.subs) == 0 {
		return fmt.Errorf("no subscriptions to stream")
	}

	for _, sub := range s.subs {
		code, err := bybit.Interval(sub.Timeframe)
		if err != nil {
			return err
		}
		s.timeframes[code] = sub.Timeframe
	}

	if err := s.connect(ctx); err != nil {
		return err
	}

	go s.readLoop(ctx)
	go s.keepalive(ctx)
	return nil
}

// Stop closes the connection and stops the loops. The in-flight candle of
// every topic is discarded: only the exchange may close a bar.
func (s *KlineStreamer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.done)
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.log.Info("kline streamer stopped")
}

func (s *KlineStreamer) connect(ctx context.Context) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to market stream: %w", err)
	}

	args := make([]string, 0, len(s.subs))
	for _, sub := range s.subs {
		code, _ := bybit.Interval(sub.Timeframe)
		args = append(args, fmt.Sprintf("kline.%s.%s", code, sub.Symbol))
	}

	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": args,
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.log.Info("subscribed to %d kline topics", len(args))
	return nil
}

func (s *KlineStreamer) readLoop(ctx context.Context) {
	for {
		s.mu.Lock()
		conn := s.conn
		stopped := s.stopped
		s.mu.Unlock()
		if stopped || conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return
			case <-ctx.Done():
				return
			default:
			}
			s.log.LogWarning("stream", "read error, reconnecting: %v", err)
			s.reconnect(ctx)
			continue
		}

		s.handleMessage(message)
	}
}

func (s *KlineStreamer) reconnect(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}

		if err := s.connect(ctx); err != nil {
			s.log.LogWarning("stream", "reconnect failed: %v", err)
			continue
		}
		return
	}
}

func (s *KlineStreamer) keepalive(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			conn := s.conn
			s.mu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteJSON(map[string]string{"op": "ping"}); err != nil {
				s.log.LogWarning("stream", "ping failed: %v", err)
			}
		}
	}
}

type klineMessage struct {
	Topic string `json:"topic"`
	Data  []struct {
		Start    int64  `json:"start"`
		End      int64  `json:"end"`
		Interval string `json:"interval"`
		Open     string `json:"open"`
		Close    string `json:"close"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Volume   string `json:"volume"`
		Confirm  bool   `json:"confirm"`
	} `json:"data"`
}

func (s *KlineStreamer) handleMessage(message []byte) {
	var msg klineMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return // subscription acks and pong replies
	}
	if len(msg.Data) == 0 {
		return
	}

	symbol := topicSymbol(msg.Topic)
	if symbol == "" {
		return
	}

	for _, k := range msg.Data {
		if !k.Confirm {
			continue // bar still forming
		}
		timeframe := s.timeframes[k.Interval]
		if timeframe == "" {
			continue
		}

		s.queue.Push(Event{Bar: types.Bar{
			Symbol:    symbol,
			Timeframe: timeframe,
			OpenTime:  time.UnixMilli(k.Start),
			CloseTime: time.UnixMilli(k.End),
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			Closed:    true,
		}})
	}
}

// topicSymbol extracts the symbol from a topic like "kline.1.BTCUSDT".
func topicSymbol(topic string) string {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '.' {
			return topic[i+1:]
		}
	}
	return ""
}
