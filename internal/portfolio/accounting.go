// Package portfolio provides pure, side-effect-free valuation and the two
// mutation functions (buy, sell) shared by the live loop and the backtester.
package portfolio

import (
	"fmt"
	"math"
	"time"

	"regimetrader/internal/domain"
	"regimetrader/internal/ports"
)

// Valuation is the derived view over a portfolio at a set of prices. It is
// always recomputed, never stored: TotalValue == cash + sum(shares * price).
type Valuation struct {
	TotalValue     float64
	UnrealizedPnL  float64
	TotalReturn    float64
	TotalReturnPct float64
}

// Value computes the portfolio valuation against current prices. A held
// instrument missing from prices is valued at its average cost so the
// identity over known prices still holds.
func Value(p *domain.Portfolio, prices map[string]float64, startingCapital float64) Valuation {
	v := Valuation{TotalValue: p.Cash}
	for sym, pos := range p.Positions {
		if pos == nil || pos.Shares <= 0 {
			continue
		}
		price, ok := prices[sym]
		if !ok {
			price = pos.AvgCost
		}
		v.TotalValue += float64(pos.Shares) * price
		v.UnrealizedPnL += pos.UnrealizedPnL(price)
	}
	if startingCapital > 0 {
		v.TotalReturn = v.TotalValue - startingCapital
		v.TotalReturnPct = v.TotalReturn / startingCapital * 100
	}
	return v
}

// ApplyBuy opens or adds to a position, recomputing the value-weighted average
// cost and debiting cash by notional plus cost. Invariant violations are
// rejected before any mutation.
func ApplyBuy(p *domain.Portfolio, symbol string, shares int64, price, cost float64, at time.Time, mode domain.Mode) error {
	if shares <= 0 || price <= 0 {
		return fmt.Errorf("buy %d shares of %s at %.2f: %w", shares, symbol, price, ports.ErrInvalidOrder)
	}
	notional := float64(shares) * price
	if p.Cash < notional+cost {
		return fmt.Errorf("buy requires %.2f but cash is %.2f: %w", notional+cost, p.Cash, ports.ErrInsufficientCash)
	}

	pos := p.Position(symbol)
	if pos == nil {
		pos = &domain.Position{
			Symbol:     symbol,
			AvgCost:    price,
			EntryPrice: price,
			EntryTime:  at,
			EntryMode:  mode,
		}
		if p.Positions == nil {
			p.Positions = make(map[string]*domain.Position)
		}
		p.Positions[symbol] = pos
	} else {
		old := float64(pos.Shares)
		pos.AvgCost = (pos.AvgCost*old + price*float64(shares)) / (old + float64(shares))
	}
	pos.Shares += shares
	p.Cash -= notional + cost
	return nil
}

// ApplySell reduces or liquidates a position, crediting cash by notional minus
// cost and returning the realized profit. Selling the full share count (or
// more than held, which is rejected) destroys the position.
func ApplySell(p *domain.Portfolio, symbol string, shares int64, price, cost float64) (float64, error) {
	if shares <= 0 || price <= 0 {
		return 0, fmt.Errorf("sell %d shares of %s at %.2f: %w", shares, symbol, price, ports.ErrInvalidOrder)
	}
	pos := p.Position(symbol)
	if pos == nil || pos.Shares <= 0 {
		return 0, fmt.Errorf("no open position in %s: %w", symbol, ports.ErrInsufficientShares)
	}
	if shares > pos.Shares {
		return 0, fmt.Errorf("sell %d exceeds held %d in %s: %w", shares, pos.Shares, symbol, ports.ErrInsufficientShares)
	}

	realized := (price - pos.AvgCost) * float64(shares)
	p.Cash += float64(shares)*price - cost
	p.RealizedPnL += realized
	pos.Shares -= shares
	if pos.Shares == 0 {
		delete(p.Positions, symbol)
	}
	return realized, nil
}

// Sizing carries the inputs to position sizing. The leveraged instrument's
// fraction is scaled by LeveragedRatio inside SizePosition so the ratio is an
// enforced parameter rather than a caller convention.
type Sizing struct {
	Cash           float64
	Allocation     float64 // mode-based fraction of cash
	TierMultiplier float64
	Price          float64
	Leveraged      bool
	LeveragedRatio float64 // fraction of the primary allocation, e.g. 0.5
}

// SizePosition returns floor(cash * allocation * tierMultiplier / price),
// scaled down for the leveraged instrument. Returns 0 when inputs cannot
// produce at least one share.
func SizePosition(s Sizing) int64 {
	if s.Price <= 0 || s.Cash <= 0 || s.Allocation <= 0 || s.TierMultiplier <= 0 {
		return 0
	}
	frac := s.Allocation * s.TierMultiplier
	if s.Leveraged {
		frac *= s.LeveragedRatio
	}
	return int64(math.Floor(s.Cash * frac / s.Price))
}
