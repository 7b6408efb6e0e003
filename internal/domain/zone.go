package domain

// CompositeZone is the aggregate classification combining independent signal
// setups into one ordered regime. It gates new leveraged-instrument entries.
type CompositeZone string

const (
	ZoneFullRiskOn CompositeZone = "full-risk-on"
	ZoneNeutral    CompositeZone = "neutral"
	ZoneCaution    CompositeZone = "caution"
	ZoneDefensive  CompositeZone = "defensive"
)

// Rank returns the zone's position in the risk ordering (0 = full-risk-on).
// Unknown zones rank as defensive.
func (z CompositeZone) Rank() int {
	switch z {
	case ZoneFullRiskOn:
		return 0
	case ZoneNeutral:
		return 1
	case ZoneCaution:
		return 2
	default:
		return 3
	}
}

// AtLeast reports whether the zone is at least as permissive as min.
func (z CompositeZone) AtLeast(min CompositeZone) bool {
	return z.Rank() <= min.Rank()
}
