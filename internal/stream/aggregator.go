package stream

import (
	"strconv"
	"time"

	"github.com/gorkemacar/signalbot/pkg/types"
)

// TradeAggregator buckets raw trade ticks into epoch-aligned candles for
// one timeframe and emits a closed bar when a tick arrives in a new bucket.
// It is the client-side alternative to exchange-marked kline closure: the
// previous bucket is finalized on boundary crossing, and the in-flight
// bucket at shutdown is never implicitly closed.
type TradeAggregator struct {
	timeframe string
	span      time.Duration
	queue     *Queue

	current map[string]*bucket // per symbol
}

type bucket struct {
	openTime time.Time
	open     float64
	high     float64
	low      float64
	close    float64
	volume   float64
}

// NewTradeAggregator creates an aggregator for one timeframe.
func NewTradeAggregator(timeframe string, span time.Duration, queue *Queue) *TradeAggregator {
	return &TradeAggregator{
		timeframe: timeframe,
		span:      span,
		queue:     queue,
		current:   make(map[string]*bucket),
	}
}

// OnTick folds one trade into the aggregation. A tick whose bucket differs
// from the current one finalizes and emits the previous bucket first.
func (a *TradeAggregator) OnTick(symbol string, price, size float64, ts time.Time) {
	openTime := ts.Truncate(a.span)

	cur, ok := a.current[symbol]
	if ok && openTime.After(cur.openTime) {
		a.emit(symbol, cur)
		ok = false
	}

	if !ok {
		a.current[symbol] = &bucket{
			openTime: openTime,
			open:     price,
			high:     price,
			low:      price,
			close:    price,
			volume:   size,
		}
		return
	}

	if price > cur.high {
		cur.high = price
	}
	if price < cur.low {
		cur.low = price
	}
	cur.close = price
	cur.volume += size
}

// Pending reports whether an unfinished bucket exists for symbol. Used by
// tests and diagnostics; pending buckets are dropped at shutdown.
func (a *TradeAggregator) Pending(symbol string) bool {
	_, ok := a.current[symbol]
	return ok
}

func (a *TradeAggregator) emit(symbol string, b *bucket) {
	a.queue.Push(Event{Bar: types.Bar{
		Symbol:    symbol,
		Timeframe: a.timeframe,
		OpenTime:  b.openTime,
		CloseTime: b.openTime.Add(a.span),
		Open:      b.open,
		High:      b.high,
		Low:       b.low,
		Close:     b.close,
		Volume:    b.volume,
		Closed:    true,
	}})
	delete(a.current, symbol)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
