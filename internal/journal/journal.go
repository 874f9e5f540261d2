package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gosensan/algo-trading/internal/domain"
)

var header = []string{
	"timestamp", "strategy", "symbol", "direction",
	"entry_price", "stop_loss", "take_profit", "volume",
	"ticket", "event", "profit", "balance_after", "close_time",
}

// CSVJournal appends trade events to a CSV file. Every append opens the
// file, takes an exclusive lock, writes one row, flushes, and closes, so
// a crash between appends never leaves a partial row and concurrent
// processes cannot interleave writes.
type CSVJournal struct {
	path string
}

// NewCSVJournal ensures the journal file exists with its header row and
// returns a journal writing to it.
func NewCSVJournal(path string) (*CSVJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	j := &CSVJournal{path: path}
	if err := j.ensureHeader(); err != nil {
		return nil, err
	}
	return j, nil
}

// ensureHeader writes the header row if the file is empty or absent.
func (j *CSVJournal) ensureHeader() error {
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("failed to lock journal: %w", err)
	}
	defer unlockFile(f)

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat journal: %w", err)
	}
	if info.Size() > 0 {
		return nil
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write journal header: %w", err)
	}
	w.Flush()
	return w.Error()
}

// LogEntry appends an entry row. The close_time column stays empty.
func (j *CSVJournal) LogEntry(event *domain.TradeEvent) error {
	return j.append(event)
}

// LogClose appends a close row carrying profit, balance and close time.
func (j *CSVJournal) LogClose(event *domain.TradeEvent) error {
	return j.append(event)
}

func (j *CSVJournal) append(event *domain.TradeEvent) error {
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("failed to lock journal: %w", err)
	}
	defer unlockFile(f)

	w := csv.NewWriter(f)
	if err := w.Write(row(event)); err != nil {
		return fmt.Errorf("failed to write journal row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush journal row: %w", err)
	}
	return f.Sync()
}

// row renders a trade event as a journal line. The timestamp column holds
// the entry time on both row kinds; close rows also fill close_time.
func row(event *domain.TradeEvent) []string {
	closeTime := ""
	if !event.CloseTime.IsZero() {
		closeTime = event.CloseTime.UTC().Format(time.RFC3339)
	}
	return []string{
		event.Timestamp.UTC().Format(time.RFC3339),
		event.Strategy,
		event.Symbol,
		string(event.Side),
		formatFloat(event.EntryPrice),
		formatFloat(event.StopLoss),
		formatFloat(event.TakeProfit),
		formatFloat(event.Volume),
		strconv.FormatInt(event.Ticket, 10),
		string(event.Kind),
		formatFloat(event.Profit),
		formatFloat(event.BalanceAfter),
		closeTime,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
