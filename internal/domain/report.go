package domain

import (
	"math"
	"sort"
	"time"
)

// LevelType classifies a named price level from the daily report.
type LevelType string

const (
	LevelSupport    LevelType = "support"
	LevelResistance LevelType = "resistance"
	LevelAdd        LevelType = "add"
	LevelTrim       LevelType = "trim"
	LevelWatch      LevelType = "watch"
	LevelPause      LevelType = "pause"
	LevelEject      LevelType = "eject"
	LevelCurrent    LevelType = "current"
)

// Level is a named price level published in a regime report.
type Level struct {
	Price float64
	Label string
	Type  LevelType
}

// StepAction is the action attached to an eject step.
type StepAction string

const (
	StepTrim  StepAction = "trim"  // reduce exposure by half
	StepEject StepAction = "eject" // close the position entirely
)

// EjectStep is one rung of a multi-step hard stop. Steps are evaluated
// nearest-first: the highest breached price wins.
type EjectStep struct {
	Price  float64
	Action StepAction
}

// FlowReading is a point-in-time institutional flow measurement with its
// trailing 30-day range for percentile context.
type FlowReading struct {
	Raw        float64
	Percentile float64 // position of Raw within [Low30, High30], 0..100
	Low30      float64
	High30     float64
	Timestamp  time.Time
}

// RegimeReport is the externally supplied daily strategy report. One report
// per trading day; immutable once ingested.
type RegimeReport struct {
	Date             time.Time
	Mode             Mode
	Tier             Tier
	MasterEjectPrice float64
	EjectSteps       []EjectStep // optional; empty means the scalar floor applies
	Levels           []Level
	MovingAvg        float64 // optional, 0 when absent
	Pivot            float64 // optional, 0 when absent
	Flow             FlowReading
}

// EffectiveFloor returns the price below which no new risk may be taken: the
// highest eject step when steps are present, otherwise the master eject price.
func (r *RegimeReport) EffectiveFloor() float64 {
	floor := r.MasterEjectPrice
	for _, step := range r.EjectSteps {
		if step.Price > floor {
			floor = step.Price
		}
	}
	return floor
}

// BreachedStep returns the nearest (highest-priced) eject step breached by the
// given price, falling back to a synthetic eject step at the master floor.
// Returns false when no stop level is breached.
func (r *RegimeReport) BreachedStep(price float64) (EjectStep, bool) {
	var best EjectStep
	found := false
	for _, step := range r.EjectSteps {
		if price < step.Price && (!found || step.Price > best.Price) {
			best = step
			found = true
		}
	}
	if found {
		return best, true
	}
	if r.MasterEjectPrice > 0 && price < r.MasterEjectPrice {
		return EjectStep{Price: r.MasterEjectPrice, Action: StepEject}, true
	}
	return EjectStep{}, false
}

// SupportCandidates returns every price the report treats as a buyable
// support: support and add levels, the pivot, and the moving average.
func (r *RegimeReport) SupportCandidates() []Level {
	candidates := make([]Level, 0, len(r.Levels)+2)
	for _, lvl := range r.Levels {
		if lvl.Type == LevelSupport || lvl.Type == LevelAdd {
			candidates = append(candidates, lvl)
		}
	}
	if r.Pivot > 0 {
		candidates = append(candidates, Level{Price: r.Pivot, Label: "pivot", Type: LevelSupport})
	}
	if r.MovingAvg > 0 {
		candidates = append(candidates, Level{Price: r.MovingAvg, Label: "moving average", Type: LevelSupport})
	}
	return candidates
}

// NearestSupport finds the support candidate closest to price, with the
// relative distance as a fraction of the level price.
func (r *RegimeReport) NearestSupport(price float64) (Level, float64, bool) {
	var best Level
	bestDist := math.MaxFloat64
	for _, lvl := range r.SupportCandidates() {
		if lvl.Price <= 0 {
			continue
		}
		dist := math.Abs(price-lvl.Price) / lvl.Price
		if dist < bestDist {
			best = lvl
			bestDist = dist
		}
	}
	if bestDist == math.MaxFloat64 {
		return Level{}, 0, false
	}
	return best, bestDist, true
}

// LowestSupport returns the deepest support candidate, used by the defensive
// nibble carve-out.
func (r *RegimeReport) LowestSupport() (Level, bool) {
	candidates := r.SupportCandidates()
	if len(candidates) == 0 {
		return Level{}, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Price < candidates[j].Price })
	return candidates[0], true
}

// NextResistance returns the lowest resistance or pivot level strictly above
// price, i.e. the nearest overhead target.
func (r *RegimeReport) NextResistance(price float64) (Level, bool) {
	var best Level
	found := false
	consider := func(lvl Level) {
		if lvl.Price > price && (!found || lvl.Price < best.Price) {
			best = lvl
			found = true
		}
	}
	for _, lvl := range r.Levels {
		if lvl.Type == LevelResistance || lvl.Type == LevelTrim {
			consider(lvl)
		}
	}
	if r.Pivot > 0 {
		consider(Level{Price: r.Pivot, Label: "pivot", Type: LevelResistance})
	}
	return best, found
}

// SecondarySupport returns the highest support candidate strictly below the
// given price, used as a stop anchor beneath the entry level.
func (r *RegimeReport) SecondarySupport(below float64) (Level, bool) {
	var best Level
	found := false
	for _, lvl := range r.SupportCandidates() {
		if lvl.Price < below && (!found || lvl.Price > best.Price) {
			best = lvl
			found = true
		}
	}
	return best, found
}
