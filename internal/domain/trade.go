package domain

import "time"

// Trade is an immutable append-only record of an executed (or simulated)
// order, created once at execution time.
type Trade struct {
	ID             int64
	Timestamp      time.Time
	Action         Action
	Symbol         string
	Shares         int64
	Price          float64
	Value          float64  // notional: shares * price
	Reasoning      []string // ordered human-readable audit trail
	Mode           Mode
	Tier           Tier
	RealizedPnL    float64 // set on sells only
	PortfolioValue float64 // total portfolio value after the trade
}
