package ports

import (
	"context"
	"time"

	"regimetrader/internal/domain"
)

// QuoteProvider supplies market data for tracked instruments.
type QuoteProvider interface {
	// GetQuote returns the latest quote for a symbol.
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
	// GetDailyBars returns daily session bars for the symbol within [start, end].
	GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]*domain.DailyBar, error)
}

// ReportSource supplies the regime report for a trading day. Returns
// ErrNotFound when no report has been published for that day.
type ReportSource interface {
	ReportFor(ctx context.Context, day time.Time) (*domain.RegimeReport, error)
}

// FlowProvider supplies the institutional flow reading and the composite zone
// classification. Implementations should serve a cached last-good value when
// the upstream service fails.
type FlowProvider interface {
	GetFlow(ctx context.Context) (*domain.FlowReading, error)
	GetZone(ctx context.Context) (domain.CompositeZone, error)
}
