package tradelog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorkemacar/signalbot/internal/position"
	"github.com/gorkemacar/signalbot/pkg/types"
)

func closedPosition(symbol string, pnlDirection float64) *position.Position {
	entry := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := &position.Position{
		Symbol:     symbol,
		StrategyID: "rsi_threshold",
		Side:       types.SideLong,
		Qty:        0.5,
		Entry:      100,
		EntryTime:  entry,
		Leverage:   10,
		Closed:     true,
		ExitPrice:  100 + pnlDirection,
		ExitTime:   entry.Add(30 * time.Minute),
		ExitReason: position.ExitTP,
	}
	return p
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriterRecordsTrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	w, err := NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, w.Record(closedPosition("BTCUSDT", 2)))
	require.NoError(t, w.Record(closedPosition("ETHUSDT", -1)))
	require.NoError(t, w.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "BTCUSDT", rows[1][2])
	assert.Equal(t, "rsi_threshold", rows[1][3])
	assert.Equal(t, "LONG", rows[1][4])
	assert.Equal(t, "TP", rows[1][9])
	assert.Equal(t, "1.00000000", rows[1][10])
	assert.Equal(t, "-0.50000000", rows[2][10])
}

func TestWriterAppendsAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Record(closedPosition("BTCUSDT", 2)))
	require.NoError(t, w.Close())

	w, err = NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Record(closedPosition("ETHUSDT", 1)))
	require.NoError(t, w.Close())

	rows := readRows(t, path)
	require.Len(t, rows, 3, "header must not repeat on reopen")
	assert.Equal(t, header, rows[0])
}

func TestWriterCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "trades.csv")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
