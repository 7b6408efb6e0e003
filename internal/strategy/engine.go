// Package strategy implements the single parameterized decision policy shared
// by the live trading loop and the backtest engine. All thresholds live in
// PolicyConfig; the rule ordering below is the strategy.
package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"regimetrader/internal/domain"
	"regimetrader/internal/portfolio"
	"regimetrader/internal/ports"
)

// Input carries everything one decision needs. Optional data (report, flow)
// may be nil; the engine degrades to hold rather than fabricating inputs.
type Input struct {
	Symbol      string
	Leveraged   bool
	Quote       *domain.Quote
	Flow        *domain.FlowReading
	Report      *domain.RegimeReport
	Portfolio   *domain.Portfolio
	TradesToday int
	Zone        domain.CompositeZone
	Now         time.Time
}

// Engine evaluates trading rules against market state. It is stateless and
// safe for reuse across cycles.
type Engine struct {
	cfg    PolicyConfig
	logger ports.Logger
}

// New creates a policy engine after validating its configuration.
func New(cfg PolicyConfig, logger ports.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// Config returns the engine's threshold configuration.
func (e *Engine) Config() PolicyConfig { return e.cfg }

// Decide emits exactly one trade signal for the instrument. Exit rules take
// priority whenever a position exists; entries are only evaluated when flat.
func (e *Engine) Decide(ctx context.Context, in Input) domain.TradeSignal {
	if in.Quote == nil {
		return hold(in.Symbol, 0, 0.3, "no quote available; holding")
	}
	price := in.Quote.Price

	pos := (*domain.Position)(nil)
	if in.Portfolio != nil {
		pos = in.Portfolio.Position(in.Symbol)
	}

	var signal domain.TradeSignal
	if pos != nil && pos.Shares > 0 {
		signal = e.evaluateExit(ctx, in, pos, price)
	} else {
		signal = e.evaluateEntry(ctx, in, price)
	}
	e.logger.Debug(ctx, "Decision evaluated", map[string]interface{}{
		"symbol": in.Symbol,
		"action": signal.Action,
		"price":  price,
	})
	return signal
}

// evaluateExit applies the exit rules in strict priority order; the first
// match wins and overrides weaker reasoning.
func (e *Engine) evaluateExit(ctx context.Context, in Input, pos *domain.Position, price float64) domain.TradeSignal {
	unrealized := pos.UnrealizedPnL(price)

	// 1. Hard stop, regardless of unrealized PnL.
	if in.Report != nil {
		if step, breached := in.Report.BreachedStep(price); breached {
			shares := pos.Shares
			what := "hard stop breached"
			if step.Action == domain.StepTrim {
				shares = pos.Shares / 2
				if shares < 1 {
					shares = pos.Shares
				}
				what = "trim step breached"
			}
			return sell(in.Symbol, shares, price, 0.95,
				fmt.Sprintf("%s: price %.2f below stop level %.2f", what, price, step.Price),
				fmt.Sprintf("unrealized P&L %.2f", unrealized))
		}

		// 2. Regime flip to defensive.
		if in.Report.Mode == domain.ModeDefensive && pos.EntryMode != domain.ModeDefensive {
			return sell(in.Symbol, pos.Shares, price, 0.9,
				fmt.Sprintf("regime flipped to defensive (entered in %s); protecting capital", pos.EntryMode),
				fmt.Sprintf("unrealized P&L %.2f", unrealized))
		}

		// 3. Target hit: near the next overhead level while profitable.
		if resistance, ok := in.Report.NextResistance(price); ok && unrealized > 0 {
			dist := (resistance.Price - price) / resistance.Price
			if dist <= e.cfg.TargetTolerance {
				return sell(in.Symbol, pos.Shares, price, 0.8,
					fmt.Sprintf("target hit: price %.2f within %.2f%% of %s at %.2f", price, dist*100, resistance.Label, resistance.Price),
					fmt.Sprintf("locking in unrealized P&L %.2f", unrealized))
			}
		}
	}

	// 4. Flow deterioration: momentum shifted against the position.
	if in.Flow != nil && in.Flow.Percentile < e.cfg.FlowExitPercentile {
		return sell(in.Symbol, pos.Shares, price, 0.7,
			fmt.Sprintf("flow deteriorated to %.0fth percentile (threshold %.0f); trimming exposure", in.Flow.Percentile, e.cfg.FlowExitPercentile),
			fmt.Sprintf("unrealized P&L %.2f", unrealized))
	}

	// 5. Time lock: don't carry open profits into the close.
	if in.Now.Hour() >= e.cfg.LateDayCutoffHour && unrealized > 0 {
		return sell(in.Symbol, pos.Shares, price, 0.65,
			fmt.Sprintf("past %02d:00 with unrealized P&L %.2f; avoiding overnight risk", e.cfg.LateDayCutoffHour, unrealized))
	}

	// 6. Hold.
	reasons := []string{fmt.Sprintf("holding %d shares, unrealized P&L %.2f", pos.Shares, unrealized)}
	if in.Report != nil {
		if resistance, ok := in.Report.NextResistance(price); ok {
			reasons = append(reasons, fmt.Sprintf("next target %s at %.2f (%.2f%% away)",
				resistance.Label, resistance.Price, (resistance.Price-price)/price*100))
		}
	} else {
		reasons = append(reasons, "no regime report; exit checks limited to flow and time rules")
	}
	return hold(in.Symbol, price, 0.5, reasons...)
}

// evaluateEntry runs only when flat. Gate checks come first; any failed gate
// emits a hold with the gate named in the reasoning.
func (e *Engine) evaluateEntry(ctx context.Context, in Input, price float64) domain.TradeSignal {
	if in.Report == nil {
		return hold(in.Symbol, price, 0.4, "no regime report available; standing aside")
	}
	report := in.Report

	if in.Now.Hour() >= e.cfg.EntryCutoffHour {
		return hold(in.Symbol, price, 0.5,
			fmt.Sprintf("past entry cutoff %02d:00; no new positions", e.cfg.EntryCutoffHour))
	}
	if in.TradesToday >= e.cfg.MaxTradesPerDay {
		return hold(in.Symbol, price, 0.5,
			fmt.Sprintf("daily trade cap reached (%d/%d)", in.TradesToday, e.cfg.MaxTradesPerDay))
	}
	floor := report.EffectiveFloor()
	if floor > 0 && price < floor {
		return hold(in.Symbol, price, 0.6,
			fmt.Sprintf("price %.2f below master eject %.2f; no new risk", price, floor))
	}
	if in.Flow == nil {
		return hold(in.Symbol, price, 0.4, "flow data unavailable; entry requires flow confirmation")
	}

	reasons := []string{fmt.Sprintf("mode %s, tier %d", report.Mode, report.Tier)}

	// Defensive regime blocks entries outright, except the nibble carve-out
	// near deep support.
	nibble := false
	if report.Mode == domain.ModeDefensive {
		lowest, ok := report.LowestSupport()
		if !ok {
			return hold(in.Symbol, price, 0.5, "defensive mode: entries blocked")
		}
		dist := math.Abs(price-lowest.Price) / lowest.Price
		if dist > e.cfg.NibbleTolerance || in.Flow.Percentile < e.cfg.NibbleFlowFloor {
			return hold(in.Symbol, price, 0.5,
				fmt.Sprintf("defensive mode: entries blocked (%.2f%% from deepest support %s, flow %.0f)",
					dist*100, lowest.Label, in.Flow.Percentile))
		}
		nibble = true
		reasons = append(reasons, fmt.Sprintf("defensive nibble: price %.2f within %.2f%% of deep support %s at %.2f with flow %.0f",
			price, dist*100, lowest.Label, lowest.Price, in.Flow.Percentile))
	}

	// Leveraged instrument entries are additionally gated by the composite zone.
	if in.Leveraged && !in.Zone.AtLeast(e.cfg.MinLeveragedZone) {
		return hold(in.Symbol, price, 0.5,
			fmt.Sprintf("composite zone %s below %s; leveraged entries blocked", in.Zone, e.cfg.MinLeveragedZone))
	}

	// Support proximity.
	support, dist, ok := report.NearestSupport(price)
	if !ok {
		return hold(in.Symbol, price, 0.4, "report publishes no support levels; cannot anchor an entry")
	}
	if dist > e.cfg.SupportTolerance {
		return hold(in.Symbol, price, 0.5,
			fmt.Sprintf("price %.2f is %.2f%% from nearest support %s at %.2f (tolerance %.2f%%)",
				price, dist*100, support.Label, support.Price, e.cfg.SupportTolerance*100))
	}
	reasons = append(reasons, fmt.Sprintf("price %.2f within %.2f%% of support %s at %.2f",
		price, dist*100, support.Label, support.Price))

	// Flow confirmation, with an explicit override for strong support in a
	// favorable regime.
	if in.Flow.Percentile < e.cfg.FlowEntryFloor {
		if report.Mode == domain.ModeFavorable && dist <= e.cfg.SupportTolerance/2 {
			reasons = append(reasons, fmt.Sprintf("flow override: percentile %.0f below floor %.0f but price sits on strong support in a favorable regime",
				in.Flow.Percentile, e.cfg.FlowEntryFloor))
		} else {
			return hold(in.Symbol, price, 0.5,
				fmt.Sprintf("flow percentile %.0f below entry floor %.0f; heavy selling", in.Flow.Percentile, e.cfg.FlowEntryFloor))
		}
	} else {
		reasons = append(reasons, fmt.Sprintf("flow percentile %.0f", in.Flow.Percentile))
	}

	// Target and stop.
	target := price * (1 + e.cfg.DefaultTargetPct)
	if resistance, found := report.NextResistance(price); found {
		target = resistance.Price
	}
	stop := price * (1 - e.cfg.DefaultStopPct)
	if floor > 0 && floor < price && floor > stop {
		stop = floor
	}
	if secondary, found := report.SecondarySupport(support.Price); found && secondary.Price < price && secondary.Price > stop {
		stop = secondary.Price
	}

	risk := price - stop
	if risk <= 0 {
		return hold(in.Symbol, price, 0.4, fmt.Sprintf("no usable stop below price %.2f", price))
	}
	rewardRisk := (target - price) / risk
	if rewardRisk < e.cfg.MinRewardRisk {
		return hold(in.Symbol, price, 0.5,
			fmt.Sprintf("reward/risk %.2f below minimum %.2f (target %.2f, stop %.2f)", rewardRisk, e.cfg.MinRewardRisk, target, stop))
	}
	reasons = append(reasons, fmt.Sprintf("reward/risk %.2f (target %.2f, stop %.2f)", rewardRisk, target, stop))

	// Sizing. The defensive nibble uses the defensive allocation by definition.
	cash := 0.0
	if in.Portfolio != nil {
		cash = in.Portfolio.Cash
	}
	shares := portfolio.SizePosition(portfolio.Sizing{
		Cash:           cash,
		Allocation:     e.cfg.ModeAllocation[report.Mode],
		TierMultiplier: e.cfg.TierMultiplier[report.Tier],
		Price:          price,
		Leveraged:      in.Leveraged,
		LeveragedRatio: e.cfg.LeveragedSizingRatio,
	})
	if shares < 1 {
		return hold(in.Symbol, price, 0.4,
			fmt.Sprintf("sized position below one share (cash %.2f at %.2f)", cash, price))
	}
	reasons = append(reasons, fmt.Sprintf("sized %d shares from cash %.2f at %s allocation", shares, cash, report.Mode))

	confidence := entryConfidence(report.Mode, rewardRisk, e.cfg.MinRewardRisk, nibble)
	return domain.TradeSignal{
		Action:     domain.ActionBuy,
		Symbol:     in.Symbol,
		Shares:     shares,
		Price:      price,
		Reasoning:  reasons,
		Confidence: confidence,
		Target:     target,
		Stop:       stop,
	}
}

func entryConfidence(mode domain.Mode, rewardRisk, minRR float64, nibble bool) float64 {
	conf := 0.55 + 0.05*float64(3-mode.Rank()) + math.Min(0.15, (rewardRisk-minRR)*0.05)
	if nibble {
		conf -= 0.15
	}
	return math.Max(0.3, math.Min(0.95, conf))
}

func hold(symbol string, price, confidence float64, reasons ...string) domain.TradeSignal {
	return domain.TradeSignal{
		Action:     domain.ActionHold,
		Symbol:     symbol,
		Price:      price,
		Reasoning:  reasons,
		Confidence: confidence,
	}
}

func sell(symbol string, shares int64, price, confidence float64, reasons ...string) domain.TradeSignal {
	return domain.TradeSignal{
		Action:     domain.ActionSell,
		Symbol:     symbol,
		Shares:     shares,
		Price:      price,
		Reasoning:  reasons,
		Confidence: confidence,
	}
}
