package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func levelsReport() *RegimeReport {
	return &RegimeReport{
		Mode:             ModeFavorable,
		Tier:             1,
		MasterEjectPrice: 240,
		Levels: []Level{
			{Price: 247, Label: "add zone", Type: LevelAdd},
			{Price: 250, Label: "primary support", Type: LevelSupport},
			{Price: 254, Label: "trim zone", Type: LevelTrim},
			{Price: 256, Label: "first resistance", Type: LevelResistance},
			{Price: 251, Label: "current", Type: LevelCurrent},
		},
		MovingAvg: 249.3,
		Pivot:     252.1,
	}
}

func TestEffectiveFloor(t *testing.T) {
	r := levelsReport()
	assert.Equal(t, 240.0, r.EffectiveFloor())

	r.EjectSteps = []EjectStep{
		{Price: 244, Action: StepEject},
		{Price: 248, Action: StepTrim},
	}
	assert.Equal(t, 248.0, r.EffectiveFloor(), "highest step wins over the master price")
}

func TestBreachedStep(t *testing.T) {
	r := levelsReport()
	r.EjectSteps = []EjectStep{
		{Price: 248, Action: StepTrim},
		{Price: 244, Action: StepEject},
	}

	t.Run("nothing breached above all steps", func(t *testing.T) {
		_, breached := r.BreachedStep(249)
		assert.False(t, breached)
	})

	t.Run("nearest breached step wins", func(t *testing.T) {
		step, breached := r.BreachedStep(243)
		require.True(t, breached)
		assert.Equal(t, 248.0, step.Price)
		assert.Equal(t, StepTrim, step.Action)
	})

	t.Run("scalar floor synthesizes an eject step", func(t *testing.T) {
		bare := &RegimeReport{MasterEjectPrice: 240}
		step, breached := bare.BreachedStep(239)
		require.True(t, breached)
		assert.Equal(t, 240.0, step.Price)
		assert.Equal(t, StepEject, step.Action)
	})

	t.Run("no floor at all never breaches", func(t *testing.T) {
		bare := &RegimeReport{}
		_, breached := bare.BreachedStep(1)
		assert.False(t, breached)
	})
}

func TestSupportCandidates(t *testing.T) {
	r := levelsReport()
	candidates := r.SupportCandidates()

	// Two published supports plus the pivot and the moving average; trim,
	// resistance and current levels are excluded.
	require.Len(t, candidates, 4)
	prices := []float64{candidates[0].Price, candidates[1].Price, candidates[2].Price, candidates[3].Price}
	assert.ElementsMatch(t, []float64{247, 250, 252.1, 249.3}, prices)
}

func TestNearestSupport(t *testing.T) {
	r := levelsReport()

	lvl, dist, ok := r.NearestSupport(250.2)
	require.True(t, ok)
	assert.Equal(t, "primary support", lvl.Label)
	assert.InDelta(t, 0.2/250, dist, 1e-9)

	_, _, ok = (&RegimeReport{}).NearestSupport(250)
	assert.False(t, ok)
}

func TestLowestSupport(t *testing.T) {
	r := levelsReport()
	lvl, ok := r.LowestSupport()
	require.True(t, ok)
	assert.Equal(t, 247.0, lvl.Price)

	_, ok = (&RegimeReport{}).LowestSupport()
	assert.False(t, ok)
}

func TestNextResistance(t *testing.T) {
	r := levelsReport()

	t.Run("lowest overhead level wins", func(t *testing.T) {
		lvl, ok := r.NextResistance(250)
		require.True(t, ok)
		assert.Equal(t, 252.1, lvl.Price, "pivot above price is a valid target")
	})

	t.Run("trim levels count as targets", func(t *testing.T) {
		lvl, ok := r.NextResistance(253)
		require.True(t, ok)
		assert.Equal(t, 254.0, lvl.Price)
	})

	t.Run("nothing overhead", func(t *testing.T) {
		_, ok := r.NextResistance(260)
		assert.False(t, ok)
	})
}

func TestSecondarySupport(t *testing.T) {
	r := levelsReport()

	lvl, ok := r.SecondarySupport(250)
	require.True(t, ok)
	assert.Equal(t, 249.3, lvl.Price, "moving average is the highest candidate below")

	_, ok = r.SecondarySupport(240)
	assert.False(t, ok)
}

func TestModeRank(t *testing.T) {
	assert.Equal(t, 0, ModeFavorable.Rank())
	assert.Equal(t, 1, ModeCaution.Rank())
	assert.Equal(t, 2, ModeElevatedCaution.Rank())
	assert.Equal(t, 3, ModeDefensive.Rank())
	assert.Equal(t, 3, Mode("unknown").Rank(), "unknown modes rank as defensive")

	assert.True(t, ModeFavorable.IsValid())
	assert.False(t, Mode("euphoric").IsValid())
}

func TestZoneAtLeast(t *testing.T) {
	assert.True(t, ZoneFullRiskOn.AtLeast(ZoneNeutral))
	assert.True(t, ZoneNeutral.AtLeast(ZoneNeutral))
	assert.False(t, ZoneCaution.AtLeast(ZoneNeutral))
	assert.False(t, ZoneDefensive.AtLeast(ZoneCaution))
	assert.False(t, CompositeZone("mystery").AtLeast(ZoneNeutral), "unknown zones rank as defensive")
}

func TestPortfolioRoundTrip(t *testing.T) {
	p := NewPortfolio(100000)
	p.RealizedPnL = 500
	p.Positions["QQQ"] = &Position{Symbol: "QQQ", Shares: 100, AvgCost: 250}

	state := SnapshotState(p.Positions["QQQ"].EntryTime, p, map[string]int{"QQQ": 2}, ZoneNeutral)
	restored := state.ToPortfolio()

	assert.Equal(t, p.Cash, restored.Cash)
	assert.Equal(t, p.RealizedPnL, restored.RealizedPnL)
	require.NotNil(t, restored.Position("QQQ"))
	assert.Equal(t, int64(100), restored.Position("QQQ").Shares)
}
