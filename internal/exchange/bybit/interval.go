package bybit

import (
	"fmt"
	"time"
)

// interval maps the bot's timeframe notation to Bybit's kline interval codes.
var intervals = map[string]string{
	"1m":  "1",
	"3m":  "3",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"6h":  "360",
	"12h": "720",
	"1d":  "D",
}

var durations = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

// Interval converts a timeframe like "1m" or "4h" to the Bybit API code.
func Interval(timeframe string) (string, error) {
	code, ok := intervals[timeframe]
	if !ok {
		return "", fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	return code, nil
}

// IntervalDuration returns the wall-clock span of a timeframe.
func IntervalDuration(timeframe string) (time.Duration, error) {
	d, ok := durations[timeframe]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	return d, nil
}
