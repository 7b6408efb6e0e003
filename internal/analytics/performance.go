// Package analytics computes aggregate performance statistics over a closed
// trade ledger and a portfolio value time series.
package analytics

import (
	"time"

	"regimetrader/internal/domain"
)

// ValuePoint is one sample of total portfolio value.
type ValuePoint struct {
	Time  time.Time
	Value float64
}

// Summary holds the performance metrics for a strategy run.
type Summary struct {
	TotalTrades  int
	ClosedTrades int // sells, i.e. trades with realized PnL
	Winners      int
	Losers       int
	WinRate      float64
	AvgWinner    float64
	AvgLoser     float64
	GrossProfit  float64
	GrossLoss    float64 // absolute value of summed losing PnL
	// ProfitFactor is GrossProfit / GrossLoss, 0 when there are no losing
	// trades. Callers needing to distinguish "no losers" from "no edge" can
	// check GrossLoss directly.
	ProfitFactor   float64
	NetProfit      float64
	MaxDrawdown    float64 // currency, peak-to-trough on the value series
	MaxDrawdownPct float64 // as a fraction of the running peak
}

// Compute aggregates trade statistics and drawdown. Empty inputs yield zeroed
// metrics rather than NaN or division panics.
func Compute(trades []*domain.Trade, series []ValuePoint) *Summary {
	s := &Summary{TotalTrades: len(trades)}

	for _, trade := range trades {
		if trade.Action != domain.ActionSell {
			continue
		}
		s.ClosedTrades++
		s.NetProfit += trade.RealizedPnL
		if trade.RealizedPnL > 0 {
			s.Winners++
			s.GrossProfit += trade.RealizedPnL
		} else {
			s.Losers++
			s.GrossLoss += -trade.RealizedPnL
		}
	}

	if s.ClosedTrades > 0 {
		s.WinRate = float64(s.Winners) / float64(s.ClosedTrades)
	}
	if s.Winners > 0 {
		s.AvgWinner = s.GrossProfit / float64(s.Winners)
	}
	if s.Losers > 0 {
		s.AvgLoser = -s.GrossLoss / float64(s.Losers)
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}

	s.MaxDrawdown, s.MaxDrawdownPct = MaxDrawdown(series)
	return s
}

// MaxDrawdown tracks a running peak over the value series and returns the
// largest peak-to-current gap in currency and as a fraction of that peak. The
// peak can exceed starting capital, so drawdown is never measured against
// starting capital alone.
func MaxDrawdown(series []ValuePoint) (amount, pct float64) {
	var peak float64
	for _, point := range series {
		if point.Value > peak {
			peak = point.Value
			continue
		}
		if peak <= 0 {
			continue
		}
		dd := peak - point.Value
		if dd > amount {
			amount = dd
			pct = dd / peak
		}
	}
	return amount, pct
}
