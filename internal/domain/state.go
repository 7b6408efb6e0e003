package domain

import "time"

// SessionState is the single durable current-state record for the live loop.
// It is persisted after every mutation so a process restart can resume
// correctly; the daily trade counters reset when Date is older than today.
type SessionState struct {
	Date        time.Time
	Cash        float64
	RealizedPnL float64
	Positions   []*Position
	TradesToday map[string]int
	LastZone    CompositeZone
}

// ToPortfolio reconstructs the in-memory portfolio from persisted state.
func (s *SessionState) ToPortfolio() *Portfolio {
	p := NewPortfolio(s.Cash)
	p.RealizedPnL = s.RealizedPnL
	for _, pos := range s.Positions {
		if pos != nil && pos.Shares > 0 {
			p.Positions[pos.Symbol] = pos
		}
	}
	return p
}

// SnapshotState captures the portfolio into a persistable state record.
func SnapshotState(day time.Time, p *Portfolio, tradesToday map[string]int, zone CompositeZone) *SessionState {
	st := &SessionState{
		Date:        day,
		Cash:        p.Cash,
		RealizedPnL: p.RealizedPnL,
		TradesToday: tradesToday,
		LastZone:    zone,
	}
	for _, pos := range p.Positions {
		st.Positions = append(st.Positions, pos)
	}
	return st
}
