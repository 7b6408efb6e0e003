package backtest

import (
	"fmt"
	"math/rand"
	"time"

	"regimetrader/internal/domain"
)

// sessionOpenHour/Minute anchor synthetic bars to the regular session.
const (
	sessionOpenHour   = 9
	sessionOpenMinute = 30
	sessionLength     = 6*time.Hour + 30*time.Minute
)

// SynthesizeBars builds a fixed-interval intraday random walk from a day's
// session summary. The walk starts at the open, is forced through the session
// high and low at pseudo-randomly chosen interior bars, and lands exactly on
// the close. Reproducibility comes from the caller-owned seeded source.
func SynthesizeBars(rng *rand.Rand, session domain.DailyBar, interval time.Duration) ([]domain.IntradayBar, error) {
	if session.Open <= 0 || session.Close <= 0 {
		return nil, fmt.Errorf("session open/close must be positive")
	}
	if session.High < session.Open || session.High < session.Close ||
		session.Low > session.Open || session.Low > session.Close {
		return nil, fmt.Errorf("session high/low inconsistent with open/close")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("bar interval must be positive")
	}

	n := int(sessionLength/interval) + 1
	if n < 4 {
		n = 4
	}

	anchors := map[int]float64{
		0:     session.Open,
		n - 1: session.Close,
	}
	hiIdx := 1 + rng.Intn(n-2)
	loIdx := 1 + rng.Intn(n-2)
	for loIdx == hiIdx {
		loIdx = 1 + rng.Intn(n-2)
	}
	anchors[hiIdx] = session.High
	anchors[loIdx] = session.Low

	prices := make([]float64, n)
	noise := (session.High - session.Low) * 0.15

	// Walk between consecutive anchors: linear interpolation plus bounded
	// noise, with anchor bars hit exactly.
	prev := 0
	prices[0] = session.Open
	for _, idx := range sortedAnchorIndices(anchors, n) {
		if idx == prev {
			continue
		}
		startPrice := prices[prev]
		endPrice := anchors[idx]
		span := idx - prev
		for i := prev + 1; i < idx; i++ {
			frac := float64(i-prev) / float64(span)
			p := startPrice + (endPrice-startPrice)*frac + rng.NormFloat64()*noise*frac*(1-frac)*2
			if p > session.High {
				p = session.High
			}
			if p < session.Low {
				p = session.Low
			}
			prices[i] = p
		}
		prices[idx] = endPrice
		prev = idx
	}

	open := time.Date(session.Date.Year(), session.Date.Month(), session.Date.Day(),
		sessionOpenHour, sessionOpenMinute, 0, 0, session.Date.Location())
	bars := make([]domain.IntradayBar, n)
	for i := range prices {
		bars[i] = domain.IntradayBar{
			Time:  open.Add(time.Duration(i) * interval),
			Price: prices[i],
		}
	}
	return bars, nil
}

func sortedAnchorIndices(anchors map[int]float64, n int) []int {
	idxs := make([]int, 0, len(anchors))
	for i := 0; i < n; i++ {
		if _, ok := anchors[i]; ok {
			idxs = append(idxs, i)
		}
	}
	return idxs
}
