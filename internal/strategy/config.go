package strategy

import (
	"fmt"
	"strings"

	"regimetrader/internal/domain"
)

// PolicyConfig holds every named threshold the decision policy uses. The live
// loop and the backtester construct their own Engine from different config
// values; the rules themselves are shared so the two can never silently drift.
type PolicyConfig struct {
	// Entry gates
	SupportTolerance float64 // max relative distance to a support level
	FlowEntryFloor   float64 // minimum flow percentile for entries
	NibbleTolerance  float64 // distance to deepest support for the defensive carve-out
	NibbleFlowFloor  float64 // minimum flow percentile for the carve-out
	MinRewardRisk    float64 // reject entries below this reward/risk ratio
	DefaultTargetPct float64 // target when no resistance is published
	DefaultStopPct   float64 // stop when no floor or secondary support exists

	// Exit gates
	TargetTolerance    float64 // proximity to resistance that counts as a target hit
	FlowExitPercentile float64 // sell when flow falls below this percentile

	// Session limits
	MaxTradesPerDay   int
	EntryCutoffHour   int // no new entries at or after this hour
	LateDayCutoffHour int // profitable positions are closed at or after this hour

	// Sizing
	ModeAllocation       map[domain.Mode]float64
	TierMultiplier       map[domain.Tier]float64
	LeveragedSizingRatio float64              // leveraged fraction of the primary allocation
	MinLeveragedZone     domain.CompositeZone // least permissive zone allowing leveraged entries
}

// DefaultLiveConfig returns the thresholds used by the live trading loop.
func DefaultLiveConfig() PolicyConfig {
	return PolicyConfig{
		SupportTolerance:   0.005,
		FlowEntryFloor:     30,
		NibbleTolerance:    0.003,
		NibbleFlowFloor:    40,
		MinRewardRisk:      1.5,
		DefaultTargetPct:   0.025,
		DefaultStopPct:     0.015,
		TargetTolerance:    0.004,
		FlowExitPercentile: 15,
		MaxTradesPerDay:    3,
		EntryCutoffHour:    14,
		LateDayCutoffHour:  15,
		ModeAllocation: map[domain.Mode]float64{
			domain.ModeFavorable:       0.25,
			domain.ModeCaution:         0.15,
			domain.ModeElevatedCaution: 0.08,
			domain.ModeDefensive:       0.03,
		},
		TierMultiplier: map[domain.Tier]float64{
			1: 1.0,
			2: 0.85,
			3: 0.7,
			4: 0.5,
		},
		LeveragedSizingRatio: 0.5,
		MinLeveragedZone:     domain.ZoneNeutral,
	}
}

// DefaultBacktestConfig returns the thresholds used in simulation. The values
// intentionally differ from the live defaults only numerically; both feed the
// same rule set.
func DefaultBacktestConfig() PolicyConfig {
	cfg := DefaultLiveConfig()
	cfg.SupportTolerance = 0.006
	cfg.FlowEntryFloor = 25
	cfg.MinRewardRisk = 1.3
	cfg.TargetTolerance = 0.005
	return cfg
}

// Validate checks the config for internal consistency.
func (c PolicyConfig) Validate() error {
	var errs []string

	if c.SupportTolerance <= 0 || c.TargetTolerance <= 0 || c.NibbleTolerance <= 0 {
		errs = append(errs, "tolerances must be positive")
	}
	if c.MinRewardRisk <= 0 {
		errs = append(errs, "MinRewardRisk must be positive")
	}
	if c.DefaultTargetPct <= 0 || c.DefaultStopPct <= 0 {
		errs = append(errs, "default target and stop percentages must be positive")
	}
	if c.FlowExitPercentile < 0 || c.FlowExitPercentile > 100 ||
		c.FlowEntryFloor < 0 || c.FlowEntryFloor > 100 {
		errs = append(errs, "flow percentile thresholds must be within 0-100")
	}
	if c.MaxTradesPerDay <= 0 {
		errs = append(errs, "MaxTradesPerDay must be positive")
	}
	if c.EntryCutoffHour < 0 || c.EntryCutoffHour > 23 || c.LateDayCutoffHour < 0 || c.LateDayCutoffHour > 23 {
		errs = append(errs, "cutoff hours must be within 0-23")
	}
	if c.EntryCutoffHour > c.LateDayCutoffHour {
		errs = append(errs, "EntryCutoffHour must not be after LateDayCutoffHour")
	}
	if c.LeveragedSizingRatio <= 0 || c.LeveragedSizingRatio > 1 {
		errs = append(errs, "LeveragedSizingRatio must be within (0, 1]")
	}

	// Mode allocation must be monotonic with mode severity.
	modes := []domain.Mode{domain.ModeFavorable, domain.ModeCaution, domain.ModeElevatedCaution, domain.ModeDefensive}
	prev := 1.1
	for _, m := range modes {
		alloc, ok := c.ModeAllocation[m]
		if !ok || alloc <= 0 || alloc > 1 {
			errs = append(errs, fmt.Sprintf("ModeAllocation[%s] must be within (0, 1]", m))
			continue
		}
		if alloc > prev {
			errs = append(errs, "ModeAllocation must not increase with mode severity")
		}
		prev = alloc
	}
	for tier := domain.Tier(1); tier <= 4; tier++ {
		mult, ok := c.TierMultiplier[tier]
		if !ok || mult <= 0 || mult > 1 {
			errs = append(errs, fmt.Sprintf("TierMultiplier[%d] must be within (0, 1]", tier))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid policy config: %s", strings.Join(errs, "; "))
	}
	return nil
}
