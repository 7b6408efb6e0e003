package ports

import (
	"context"
	"time"

	"regimetrader/internal/domain"
)

// TradeLedger is the append-only record of executed trades.
type TradeLedger interface {
	// Append saves a new trade record and returns its assigned ID.
	Append(ctx context.Context, trade *domain.Trade) (int64, error)
	// RecentBySymbol retrieves the most recent trades for a symbol, up to limit.
	RecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
	// CountOnDate counts trades for a symbol on the given calendar day.
	CountOnDate(ctx context.Context, symbol string, day time.Time) (int, error)
}

// StateRepository stores the single current-state record the live loop resumes
// from after a restart.
type StateRepository interface {
	// Load retrieves the persisted session state. Returns nil, nil when no
	// state has been saved yet.
	Load(ctx context.Context) (*domain.SessionState, error)
	// Save replaces the persisted session state.
	Save(ctx context.Context, state *domain.SessionState) error
}

// SnapshotRepository stores daily portfolio value snapshots.
type SnapshotRepository interface {
	// SaveDaily upserts the snapshot for the given calendar day.
	SaveDaily(ctx context.Context, day time.Time, totalValue, cash float64) error
}

// OpLog records free-form operational log entries for later review.
type OpLog interface {
	Record(ctx context.Context, entry string) error
}
