package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gosensan/algo-trading/internal/domain"
	"github.com/gosensan/algo-trading/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.TradeEventRepository using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trade_history.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
	db.SetMaxOpenConns(1) // SQLite handles concurrency internally, but Go driver benefits from limiting connections
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Trade history database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trade_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		close_time TIMESTAMP DEFAULT NULL,
		strategy TEXT NOT NULL,
		magic INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		volume REAL NOT NULL,
		ticket INTEGER NOT NULL,
		profit REAL NOT NULL DEFAULT 0,
		balance_after REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_trade_events_timestamp ON trade_events (timestamp);
	CREATE INDEX IF NOT EXISTS idx_trade_events_magic_kind ON trade_events (magic, kind);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing trade history database")
		return r.db.Close()
	}
	return nil
}

// Record saves one trade event.
func (r *Repository) Record(ctx context.Context, event *domain.TradeEvent) error {
	const query = `
	INSERT INTO trade_events
		(kind, timestamp, close_time, strategy, magic, symbol, side,
		 entry_price, stop_loss, take_profit, volume, ticket, profit, balance_after)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var closeTime sql.NullTime
	if !event.CloseTime.IsZero() {
		closeTime = sql.NullTime{Time: event.CloseTime.UTC(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		string(event.Kind), event.Timestamp.UTC(), closeTime, event.Strategy, event.Magic,
		event.Symbol, string(event.Side), event.EntryPrice, event.StopLoss,
		event.TakeProfit, event.Volume, event.Ticket, event.Profit, event.BalanceAfter)
	if err != nil {
		return fmt.Errorf("failed to insert trade event for ticket %d: %w", event.Ticket, errors.Join(ports.ErrQueryFailed, err))
	}

	r.logger.Debug(ctx, "Trade event recorded", map[string]interface{}{
		"kind":   string(event.Kind),
		"ticket": event.Ticket,
		"symbol": event.Symbol,
	})
	return nil
}

// FindSince retrieves events whose effective time (close time for exits,
// entry time otherwise) is at or after since, oldest first.
func (r *Repository) FindSince(ctx context.Context, since time.Time) ([]*domain.TradeEvent, error) {
	const query = `
	SELECT kind, timestamp, close_time, strategy, magic, symbol, side,
	       entry_price, stop_loss, take_profit, volume, ticket, profit, balance_after
	FROM trade_events
	WHERE COALESCE(close_time, timestamp) >= ?
	ORDER BY COALESCE(close_time, timestamp) ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query trade events since %s: %w", since.Format(time.RFC3339), errors.Join(ports.ErrQueryFailed, err))
	}
	defer rows.Close()

	var events []*domain.TradeEvent
	for rows.Next() {
		event, err := scanTradeEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade events: %w", err)
	}
	return events, nil
}

// CountEntriesToday counts entry events recorded today (UTC) for a strategy.
func (r *Repository) CountEntriesToday(ctx context.Context, magic int) (int, error) {
	const query = `
	SELECT COUNT(*)
	FROM trade_events
	WHERE magic = ? AND kind = ? AND timestamp >= ?`

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var count int
	err := r.db.QueryRowContext(ctx, query, magic, string(domain.EventEntry), midnight).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries for magic %d: %w", magic, errors.Join(ports.ErrQueryFailed, err))
	}
	return count, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTradeEvent(s scanner) (*domain.TradeEvent, error) {
	var (
		event     domain.TradeEvent
		kind      string
		side      string
		closeTime sql.NullTime
	)
	err := s.Scan(&kind, &event.Timestamp, &closeTime, &event.Strategy, &event.Magic,
		&event.Symbol, &side, &event.EntryPrice, &event.StopLoss,
		&event.TakeProfit, &event.Volume, &event.Ticket, &event.Profit, &event.BalanceAfter)
	if err != nil {
		return nil, err
	}
	event.Kind = domain.EventKind(kind)
	event.Side = domain.Side(side)
	if closeTime.Valid {
		event.CloseTime = closeTime.Time
	}
	return &event, nil
}
