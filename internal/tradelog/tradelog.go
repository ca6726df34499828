// Package tradelog persists closed trades to an append-only CSV file so a
// session's results survive restarts and feed the reporting tools.
package tradelog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorkemacar/signalbot/internal/position"
)

var header = []string{
	"entry_time", "exit_time", "symbol", "strategy", "side",
	"qty", "entry_price", "exit_price", "leverage", "exit_reason", "pnl",
}

// Writer appends one CSV row per closed position. The header is written
// only when the file is created, so restarts keep appending to the same
// session file.
type Writer struct {
	path string
	file *os.File
	csv  *csv.Writer
}

func NewWriter(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create trade log directory: %w", err)
		}
	}

	info, err := os.Stat(path)
	fresh := os.IsNotExist(err) || (err == nil && info.Size() == 0)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trade log %s: %w", path, err)
	}

	w := &Writer{path: path, file: file, csv: csv.NewWriter(file)}
	if fresh {
		if err := w.csv.Write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write trade log header: %w", err)
		}
		w.csv.Flush()
	}
	return w, nil
}

// Record implements position.Recorder. Each row is flushed immediately so
// a crash loses at most the trade being written.
func (w *Writer) Record(p *position.Position) error {
	row := []string{
		p.EntryTime.UTC().Format(time.RFC3339),
		p.ExitTime.UTC().Format(time.RFC3339),
		p.Symbol,
		p.StrategyID,
		p.Side.String(),
		strconv.FormatFloat(p.Qty, 'f', -1, 64),
		strconv.FormatFloat(p.Entry, 'f', -1, 64),
		strconv.FormatFloat(p.ExitPrice, 'f', -1, 64),
		strconv.Itoa(p.Leverage),
		string(p.ExitReason),
		strconv.FormatFloat(p.RealizedPnL(), 'f', 8, 64),
	}
	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("failed to append trade row: %w", err)
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Path returns the log file location.
func (w *Writer) Path() string { return w.path }

func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
