package reports

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regimetrader/internal/domain"
	"regimetrader/internal/ports"
)

const sampleDay = `
- date: "2026-03-02"
  mode: favorable
  tier: 1
  master_eject: 240
  eject_steps:
    - price: 248
      action: trim
    - price: 244
      action: eject
  levels:
    - price: 250
      label: primary support
      type: support
    - price: 256
      label: first resistance
      type: resistance
  moving_avg: 249.3
  pivot: 252.1
  flow:
    raw: 1.4
    percentile: 62
    low30: -2.1
    high30: 3.8
  zone: neutral
  session:
    open: 250
    high: 253
    low: 247
    close: 251
    volume: 1200000
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("parses a full day entry", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "window.yaml", sampleDay)

		days, err := LoadFile(path)
		require.NoError(t, err)
		require.Len(t, days, 1)

		day := days[0]
		require.NotNil(t, day.Report)
		assert.Equal(t, domain.ModeFavorable, day.Report.Mode)
		assert.Equal(t, domain.Tier(1), day.Report.Tier)
		assert.Equal(t, 240.0, day.Report.MasterEjectPrice)
		require.Len(t, day.Report.EjectSteps, 2)
		assert.Equal(t, domain.StepTrim, day.Report.EjectSteps[0].Action)
		assert.Equal(t, 248.0, day.Report.EjectSteps[0].Price)
		require.Len(t, day.Report.Levels, 2)
		assert.Equal(t, domain.LevelSupport, day.Report.Levels[0].Type)
		assert.Equal(t, 249.3, day.Report.MovingAvg)
		assert.Equal(t, 252.1, day.Report.Pivot)
		assert.Equal(t, 62.0, day.Report.Flow.Percentile)

		assert.Equal(t, domain.ZoneNeutral, day.Zone)
		assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), day.Session.Date)
		assert.Equal(t, 250.0, day.Session.Open)
		assert.Equal(t, int64(1200000), day.Session.Volume)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("rejects invalid mode", func(t *testing.T) {
		content := `
- date: "2026-03-02"
  mode: euphoric
  tier: 1
  session: {open: 250, high: 253, low: 247, close: 251}
`
		path := writeFile(t, t.TempDir(), "bad.yaml", content)
		_, err := LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid mode")
	})

	t.Run("rejects invalid tier", func(t *testing.T) {
		content := `
- date: "2026-03-02"
  mode: favorable
  tier: 9
  session: {open: 250, high: 253, low: 247, close: 251}
`
		path := writeFile(t, t.TempDir(), "bad.yaml", content)
		_, err := LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid tier")
	})

	t.Run("rejects invalid eject step action", func(t *testing.T) {
		content := `
- date: "2026-03-02"
  mode: favorable
  tier: 1
  eject_steps:
    - price: 248
      action: panic
  session: {open: 250, high: 253, low: 247, close: 251}
`
		path := writeFile(t, t.TempDir(), "bad.yaml", content)
		_, err := LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "eject step action")
	})

	t.Run("rejects missing session prices", func(t *testing.T) {
		content := `
- date: "2026-03-02"
  mode: favorable
  tier: 1
`
		path := writeFile(t, t.TempDir(), "bad.yaml", content)
		_, err := LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session prices")
	})
}

func TestLoadDir(t *testing.T) {
	t.Run("combines files sorted by date", func(t *testing.T) {
		dir := t.TempDir()
		later := `
- date: "2026-03-05"
  mode: caution
  tier: 2
  session: {open: 251, high: 252, low: 248, close: 249}
`
		writeFile(t, dir, "b_later.yaml", later)
		writeFile(t, dir, "a_earlier.yml", sampleDay)
		writeFile(t, dir, "notes.txt", "ignored")

		days, err := LoadDir(dir)
		require.NoError(t, err)
		require.Len(t, days, 2)
		assert.True(t, days[0].Session.Date.Before(days[1].Session.Date))
		assert.Equal(t, domain.ModeFavorable, days[0].Report.Mode)
		assert.Equal(t, domain.ModeCaution, days[1].Report.Mode)
	})

	t.Run("empty dir", func(t *testing.T) {
		_, err := LoadDir(t.TempDir())
		assert.Error(t, err)
	})
}

func TestDirSource(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	report := `
date: "2026-03-02"
mode: favorable
tier: 1
master_eject: 240
levels:
  - price: 250
    label: primary support
    type: support
flow:
  raw: 1.4
  percentile: 62
`

	t.Run("loads the day's report", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "2026-03-02.yaml", report)

		src, err := NewDirSource(dir)
		require.NoError(t, err)

		got, err := src.ReportFor(context.Background(), day)
		require.NoError(t, err)
		assert.Equal(t, domain.ModeFavorable, got.Mode)
		assert.Equal(t, 240.0, got.MasterEjectPrice)
		require.Len(t, got.Levels, 1)
	})

	t.Run("accepts the yml spelling", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "2026-03-02.yml", report)

		src, err := NewDirSource(dir)
		require.NoError(t, err)

		_, err = src.ReportFor(context.Background(), day)
		assert.NoError(t, err)
	})

	t.Run("missing day reports not found", func(t *testing.T) {
		src, err := NewDirSource(t.TempDir())
		require.NoError(t, err)

		_, err = src.ReportFor(context.Background(), day)
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("empty dir rejected", func(t *testing.T) {
		_, err := NewDirSource("")
		assert.Error(t, err)
	})
}
