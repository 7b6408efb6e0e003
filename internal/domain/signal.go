package domain

// TradeSignal is the output of a single decision. Hold signals still carry a
// full reasoning trail; that trail is a required output, not diagnostics.
type TradeSignal struct {
	Action     Action
	Symbol     string
	Shares     int64
	Price      float64
	Reasoning  []string
	Confidence float64
	Target     float64 // 0 when not applicable
	Stop       float64 // 0 when not applicable
}

// IsActionable reports whether the signal requires execution.
func (s *TradeSignal) IsActionable() bool {
	return s.Action == ActionBuy || s.Action == ActionSell
}
