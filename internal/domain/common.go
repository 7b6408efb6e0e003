package domain

// Action represents the action carried by a trade signal or trade record.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Mode is the daily risk regime classification, ordered from most to least
// permissive.
type Mode string

const (
	ModeFavorable       Mode = "favorable"
	ModeCaution         Mode = "caution"
	ModeElevatedCaution Mode = "elevated-caution"
	ModeDefensive       Mode = "defensive"
)

// Rank returns the mode's position in the permissiveness ordering
// (0 = favorable). Unknown modes rank as defensive.
func (m Mode) Rank() int {
	switch m {
	case ModeFavorable:
		return 0
	case ModeCaution:
		return 1
	case ModeElevatedCaution:
		return 2
	default:
		return 3
	}
}

// IsValid reports whether the mode is one of the four known regimes.
func (m Mode) IsValid() bool {
	switch m {
	case ModeFavorable, ModeCaution, ModeElevatedCaution, ModeDefensive:
		return true
	}
	return false
}

// Tier is the report's conviction weight. Tier 1 is highest conviction.
type Tier int

// IsValid reports whether the tier is within the supported 1..4 range.
func (t Tier) IsValid() bool {
	return t >= 1 && t <= 4
}
