package ports

import "github.com/gosensan/algo-trading/internal/domain"

// TradeJournal is the append-only record of every entry and close event.
// Appends must be safe against concurrent writers, including processes
// inspecting the file while it grows.
type TradeJournal interface {
	// LogEntry appends one entry row.
	LogEntry(event *domain.TradeEvent) error
	// LogClose appends one close row.
	LogClose(event *domain.TradeEvent) error
}
