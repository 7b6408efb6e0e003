package domain

import "time"

// Position is an open holding in a single instrument. A position exists only
// while Shares > 0; it is created on the first buy and destroyed on a full
// sell. The design supports at most one position per instrument.
type Position struct {
	Symbol     string
	Shares     int64
	AvgCost    float64 // value-weighted average, recomputed on every buy
	EntryPrice float64 // price of the first buy that opened the position
	EntryTime  time.Time
	EntryMode  Mode // regime mode snapshot at entry, used by the regime-flip exit
}

// UnrealizedPnL returns the open profit at the given price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	return (price - p.AvgCost) * float64(p.Shares)
}

// Portfolio holds cash, zero-or-more per-instrument positions, and cumulative
// realized profit. Derived values (total value, unrealized PnL) are always
// recomputed from positions and prices, never stored.
type Portfolio struct {
	Cash        float64
	Positions   map[string]*Position
	RealizedPnL float64
}

// NewPortfolio creates an empty portfolio with the given starting cash.
func NewPortfolio(cash float64) *Portfolio {
	return &Portfolio{
		Cash:      cash,
		Positions: make(map[string]*Position),
	}
}

// Position returns the open position for symbol, or nil when flat.
func (p *Portfolio) Position(symbol string) *Position {
	if p.Positions == nil {
		return nil
	}
	return p.Positions[symbol]
}
