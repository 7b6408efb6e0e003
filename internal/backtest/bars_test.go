package backtest

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regimetrader/internal/domain"
)

func testSession() domain.DailyBar {
	return domain.DailyBar{
		Date:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Open:   250,
		High:   253,
		Low:    247,
		Close:  251,
		Volume: 1000000,
	}
}

func TestSynthesizeBars(t *testing.T) {
	t.Run("hits all four session anchors", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		bars, err := SynthesizeBars(rng, testSession(), 15*time.Minute)
		require.NoError(t, err)
		require.NotEmpty(t, bars)

		assert.Equal(t, 250.0, bars[0].Price, "first bar is the open")
		assert.Equal(t, 251.0, bars[len(bars)-1].Price, "last bar is the close")

		sawHigh, sawLow := false, false
		for _, bar := range bars {
			assert.LessOrEqual(t, bar.Price, 253.0)
			assert.GreaterOrEqual(t, bar.Price, 247.0)
			if bar.Price == 253.0 {
				sawHigh = true
			}
			if bar.Price == 247.0 {
				sawLow = true
			}
		}
		assert.True(t, sawHigh, "walk must touch the session high")
		assert.True(t, sawLow, "walk must touch the session low")
	})

	t.Run("bar count and timestamps follow the interval", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		bars, err := SynthesizeBars(rng, testSession(), 15*time.Minute)
		require.NoError(t, err)

		// 6.5 hours of 15-minute bars inclusive of both endpoints.
		assert.Len(t, bars, 27)
		first := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
		for i, bar := range bars {
			assert.Equal(t, first.Add(time.Duration(i)*15*time.Minute), bar.Time)
		}
	})

	t.Run("same seed reproduces the same walk", func(t *testing.T) {
		a, err := SynthesizeBars(rand.New(rand.NewSource(42)), testSession(), 15*time.Minute)
		require.NoError(t, err)
		b, err := SynthesizeBars(rand.New(rand.NewSource(42)), testSession(), 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("rejects inconsistent session", func(t *testing.T) {
		bad := testSession()
		bad.High = 249 // below the open
		_, err := SynthesizeBars(rand.New(rand.NewSource(1)), bad, 15*time.Minute)
		assert.Error(t, err)

		bad = testSession()
		bad.Low = 252 // above the close
		_, err = SynthesizeBars(rand.New(rand.NewSource(1)), bad, 15*time.Minute)
		assert.Error(t, err)
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		_, err := SynthesizeBars(rand.New(rand.NewSource(1)), testSession(), 0)
		assert.Error(t, err)
	})

	t.Run("coarse interval still yields at least four bars", func(t *testing.T) {
		rng := rand.New(rand.NewSource(3))
		bars, err := SynthesizeBars(rng, testSession(), 8*time.Hour)
		require.NoError(t, err)
		assert.Len(t, bars, 4)
	})
}
