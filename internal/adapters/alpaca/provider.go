// Package alpaca implements ports.QuoteProvider on the Alpaca market data
// API. Credentials come from the standard APCA_* environment variables read
// by the SDK itself.
package alpaca

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"regimetrader/internal/domain"
	"regimetrader/internal/ports"
)

// Provider wraps the Alpaca market data client.
type Provider struct {
	md     *marketdata.Client
	logger ports.Logger
}

var _ ports.QuoteProvider = (*Provider)(nil)

// New creates an Alpaca market data provider.
func New(logger ports.Logger) (*Provider, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for alpaca provider")
	}
	return &Provider{
		md:     marketdata.NewClient(marketdata.ClientOpts{}),
		logger: logger,
	}, nil
}

// GetQuote returns the latest snapshot-derived quote for a symbol.
func (p *Provider) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	snap, err := p.md.GetSnapshot(symbol, marketdata.GetSnapshotRequest{})
	if err != nil {
		return nil, fmt.Errorf("snapshot for %s: %w: %v", symbol, ports.ErrQuoteUnavailable, err)
	}
	if snap == nil || snap.LatestTrade == nil {
		return nil, fmt.Errorf("no trade data for %s: %w", symbol, ports.ErrQuoteUnavailable)
	}

	quote := &domain.Quote{
		Symbol:    symbol,
		Price:     snap.LatestTrade.Price,
		Timestamp: snap.LatestTrade.Timestamp,
	}
	if snap.DailyBar != nil {
		quote.DayHigh = snap.DailyBar.High
		quote.DayLow = snap.DailyBar.Low
		quote.Volume = int64(snap.DailyBar.Volume)
	}
	if snap.PrevDailyBar != nil && snap.PrevDailyBar.Close > 0 {
		quote.ChangePct = (quote.Price - snap.PrevDailyBar.Close) / snap.PrevDailyBar.Close * 100
	}
	return quote, nil
}

// GetDailyBars returns daily session bars for the symbol within [start, end].
func (p *Provider) GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]*domain.DailyBar, error) {
	bars, err := p.md.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("daily bars for %s: %w: %v", symbol, ports.ErrQuoteUnavailable, err)
	}

	out := make([]*domain.DailyBar, 0, len(bars))
	for _, b := range bars {
		out = append(out, &domain.DailyBar{
			Date:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}
	return out, nil
}
