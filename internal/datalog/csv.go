// Package datalog appends spread samples and trade records to per-session
// CSV files for offline analysis.
package datalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wuyutanhongyuxin-cell/01-lighter/internal/domain"
)

var spreadHeader = []string{
	"timestamp", "o1_bid", "o1_ask", "lighter_bid", "lighter_ask",
	"diff_long", "diff_short", "avg_long", "avg_short", "sample_count", "signal",
}

var tradeHeader = []string{
	"timestamp", "trade_id", "direction",
	"maker_side", "maker_price", "maker_qty",
	"taker_side", "taker_price", "taker_qty",
	"spread_captured", "detect_latency_ms",
	"o1_position", "lighter_position", "net_position",
}

// CSVWriter writes one spreads file and one trades file per process run,
// named with the start timestamp so restarts never clobber history. Every row
// is flushed immediately; a crash loses at most the row being written.
type CSVWriter struct {
	mu sync.Mutex

	spreadFile *os.File
	spreads    *csv.Writer
	tradeFile  *os.File
	trades     *csv.Writer
}

// NewCSVWriter creates the session's files under dir.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("datalog: create dir: %w", err)
	}
	stamp := time.Now().Format("20060102_150405")

	w := &CSVWriter{}
	var err error
	if w.spreadFile, w.spreads, err = openCSV(filepath.Join(dir, "spreads_"+stamp+".csv"), spreadHeader); err != nil {
		return nil, err
	}
	if w.tradeFile, w.trades, err = openCSV(filepath.Join(dir, "trades_"+stamp+".csv"), tradeHeader); err != nil {
		w.spreadFile.Close()
		return nil, err
	}
	return w, nil
}

func openCSV(path string, header []string) (*os.File, *csv.Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("datalog: create %s: %w", path, err)
	}
	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("datalog: write header: %w", err)
	}
	cw.Flush()
	return f, cw, cw.Error()
}

// RecordSpread appends one spread sample row.
func (w *CSVWriter) RecordSpread(_ context.Context, s domain.SpreadSample) error {
	row := []string{
		s.At.Format(time.RFC3339Nano),
		s.O1Bid.String(), s.O1Ask.String(),
		s.LighterBid.String(), s.LighterAsk.String(),
		s.DiffLong.String(), s.DiffShort.String(),
		s.AvgLong.String(), s.AvgShort.String(),
		fmt.Sprintf("%d", s.SampleCount),
		string(s.Signal),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.spreads.Write(row); err != nil {
		return fmt.Errorf("datalog: write spread row: %w", err)
	}
	w.spreads.Flush()
	if err := w.spreads.Error(); err != nil {
		return fmt.Errorf("datalog: flush spreads: %w", err)
	}
	return nil
}

// RecordTrade appends one trade row.
func (w *CSVWriter) RecordTrade(_ context.Context, t domain.TradeRecord) error {
	row := []string{
		t.At.Format(time.RFC3339Nano),
		t.ID,
		string(t.Direction),
		string(t.MakerSide), t.MakerPrice.String(), t.MakerQty.String(),
		string(t.TakerSide), t.TakerPrice.String(), t.TakerQty.String(),
		t.SpreadCaptured.String(),
		fmt.Sprintf("%d", t.DetectLatency.Milliseconds()),
		t.O1Position.String(), t.LighterPosition.String(), t.NetPosition.String(),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.trades.Write(row); err != nil {
		return fmt.Errorf("datalog: write trade row: %w", err)
	}
	w.trades.Flush()
	if err := w.trades.Error(); err != nil {
		return fmt.Errorf("datalog: flush trades: %w", err)
	}
	return nil
}

// Close flushes and closes both files.
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.spreads.Flush()
	w.trades.Flush()

	var firstErr error
	for _, f := range []*os.File{w.spreadFile, w.tradeFile} {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
