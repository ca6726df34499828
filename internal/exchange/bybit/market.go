package bybit

import (
	"context"
	"fmt"
	"time"

	"github.com/gorkemacar/signalbot/pkg/types"
)

// klineRequestLimit returns the limit parameter to send: one extra candle
// so the count survives dropping the forming one, capped at 1000 because
// the endpoint rejects anything larger. At the cap the caller gets one
// fewer closed bar than asked for.
func klineRequestLimit(limit int) int {
	if limit >= 1000 {
		return 1000
	}
	return limit + 1
}

// GetKlines fetches up to limit closed candles for symbol, oldest first.
// The still-forming candle Bybit returns at the head of the list is dropped
// so callers only ever see closed bars.
func (b *Broker) GetKlines(ctx context.Context, symbol, timeframe string, limit int) ([]types.Bar, error) {
	code, err := Interval(timeframe)
	if err != nil {
		return nil, err
	}
	span, err := IntervalDuration(timeframe)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"interval": code,
		"limit":    klineRequestLimit(limit),
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines for %s: %w", symbol, err)
	}

	var klineResult struct {
		Symbol string     `json:"symbol"`
		List   [][]string `json:"list"`
	}
	if err := unpackResult(result, &klineResult); err != nil {
		return nil, fmt.Errorf("failed to parse kline response: %w", err)
	}

	now := time.Now()
	var bars []types.Bar
	// Bybit returns newest first: [startTime, open, high, low, close, volume, turnover]
	for i := len(klineResult.List) - 1; i >= 0; i-- {
		item := klineResult.List[i]
		if len(item) < 6 {
			continue
		}
		openTime := time.UnixMilli(parseInt64(item[0]))
		closeTime := openTime.Add(span)
		if closeTime.After(now) {
			continue // still forming
		}
		bars = append(bars, types.Bar{
			Symbol:    symbol,
			Timeframe: timeframe,
			OpenTime:  openTime,
			CloseTime: closeTime,
			Open:      parseFloat64(item[1]),
			High:      parseFloat64(item[2]),
			Low:       parseFloat64(item[3]),
			Close:     parseFloat64(item[4]),
			Volume:    parseFloat64(item[5]),
			Closed:    true,
		})
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// GetMarkPrice returns the current mark price for symbol.
func (b *Broker) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
	}

	result, err := b.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get tickers for %s: %w", symbol, err)
	}

	var tickerResult struct {
		List []struct {
			Symbol    string `json:"symbol"`
			MarkPrice string `json:"markPrice"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := unpackResult(result, &tickerResult); err != nil {
		return 0, fmt.Errorf("failed to parse ticker response: %w", err)
	}
	if len(tickerResult.List) == 0 {
		return 0, fmt.Errorf("no ticker data for %s", symbol)
	}

	t := tickerResult.List[0]
	if t.MarkPrice != "" {
		return parseFloat64(t.MarkPrice), nil
	}
	return parseFloat64(t.LastPrice), nil
}
