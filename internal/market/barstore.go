package market

import (
	"time"

	"github.com/gorkemacar/signalbot/pkg/types"
)

// Series holds the parallel OHLCV buffers for one (symbol, timeframe) pair.
// Consumers receive the live slices, not copies, and must treat them as
// read-only. Only the engine goroutine writes.
type Series struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64

	lastClose time.Time
}

// Len returns the number of bars currently buffered.
func (s *Series) Len() int {
	return len(s.Close)
}

// Candles materializes the buffer as a candle slice for vectorized consumers.
func (s *Series) Candles() []types.OHLCV {
	out := make([]types.OHLCV, len(s.Close))
	for i := range s.Close {
		out[i] = types.OHLCV{
			Open:   s.Open[i],
			High:   s.High[i],
			Low:    s.Low[i],
			Close:  s.Close[i],
			Volume: s.Volume[i],
		}
	}
	return out
}

// BarStore is the shared append-only candle buffer for every
// (symbol, timeframe) combination. The streamer fills it, strategies read
// from it. It is owned by the engine's event loop; writes and the reads they
// trigger are serialized there, so no locking is needed.
type BarStore struct {
	maxLen int
	data   map[key]*Series
}

type key struct {
	symbol    string
	timeframe string
}

// NewBarStore creates a bar store that retains at most maxLen bars per
// (symbol, timeframe) pair, evicting the oldest bars first.
func NewBarStore(maxLen int) *BarStore {
	if maxLen <= 0 {
		maxLen = 600
	}
	return &BarStore{
		maxLen: maxLen,
		data:   make(map[key]*Series),
	}
}

// AddBar appends a closed bar to the buffer for (symbol, timeframe).
// Bars that are still forming are ignored, as are bars whose close time does
// not advance past the last buffered bar (duplicates from a websocket
// reconnect, or preload overlap).
func (bs *BarStore) AddBar(symbol, timeframe string, bar types.Bar) {
	if !bar.Closed {
		return
	}

	buf := bs.series(symbol, timeframe)
	if !buf.lastClose.IsZero() && !bar.CloseTime.After(buf.lastClose) {
		return
	}

	buf.Open = append(buf.Open, bar.Open)
	buf.High = append(buf.High, bar.High)
	buf.Low = append(buf.Low, bar.Low)
	buf.Close = append(buf.Close, bar.Close)
	buf.Volume = append(buf.Volume, bar.Volume)
	buf.lastClose = bar.CloseTime

	if over := len(buf.Close) - bs.maxLen; over > 0 {
		buf.Open = buf.Open[over:]
		buf.High = buf.High[over:]
		buf.Low = buf.Low[over:]
		buf.Close = buf.Close[over:]
		buf.Volume = buf.Volume[over:]
	}
}

// OHLCV returns the live buffer for (symbol, timeframe). Callers must not
// mutate the returned slices.
func (bs *BarStore) OHLCV(symbol, timeframe string) *Series {
	return bs.series(symbol, timeframe)
}

// Len reports how many bars are buffered for (symbol, timeframe).
func (bs *BarStore) Len(symbol, timeframe string) int {
	if buf, ok := bs.data[key{symbol, timeframe}]; ok {
		return buf.Len()
	}
	return 0
}

func (bs *BarStore) series(symbol, timeframe string) *Series {
	k := key{symbol, timeframe}
	buf, ok := bs.data[k]
	if !ok {
		buf = &Series{}
		bs.data[k] = buf
	}
	return buf
}
