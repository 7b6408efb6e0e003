// Package backtest replays historical regime reports and intraday bars
// through the shared decision policy, simulating execution with slippage and
// transaction costs.
package backtest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"regimetrader/internal/analytics"
	"regimetrader/internal/domain"
	"regimetrader/internal/portfolio"
	"regimetrader/internal/ports"
	"regimetrader/internal/strategy"
)

// Config holds the simulation parameters. Policy thresholds are configuration
// of the shared strategy engine, not duplicated logic.
type Config struct {
	Symbol         string
	InitialCapital float64
	SlippagePct    float64 // unfavorable price adjustment per fill, e.g. 0.001
	CostPct        float64 // transaction cost as a fraction of notional
	BarInterval    time.Duration
	Policy         strategy.PolicyConfig
	Seed           int64 // seed for synthetic bar generation, persisted with results
}

// Result is the artifact of one backtest run.
type Result struct {
	StartingCapital  float64
	FinalValue       float64
	TotalReturn      float64
	TotalReturnPct   float64
	BuyHoldReturn    float64 // benchmark: first day's open to last day's close
	BuyHoldReturnPct float64
	TotalCosts       float64
	Seed             int64
	Summary          *analytics.Summary
	Trades           []*domain.Trade
	ValueSeries      []analytics.ValuePoint
}

// Engine runs deterministic day-by-day replays. Days are processed
// sequentially because drawdown tracking depends on value-series order.
type Engine struct {
	cfg    Config
	policy *strategy.Engine
	logger ports.Logger
}

// New creates a backtest engine and its policy engine from cfg.
func New(cfg Config, logger ports.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive")
	}
	if cfg.SlippagePct < 0 || cfg.CostPct < 0 {
		return nil, fmt.Errorf("slippage and cost percentages cannot be negative")
	}
	if cfg.BarInterval <= 0 {
		cfg.BarInterval = 15 * time.Minute
	}
	policy, err := strategy.New(cfg.Policy, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid policy config: %w", err)
	}
	return &Engine{cfg: cfg, policy: policy, logger: logger}, nil
}

// Run replays the historical window and aggregates performance. Identical
// inputs and seed produce an identical trade ledger and final capital.
func (e *Engine) Run(ctx context.Context, days []*domain.HistoricalDay) (*Result, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("no historical days to replay")
	}

	rng := rand.New(rand.NewSource(e.cfg.Seed))
	pf := domain.NewPortfolio(e.cfg.InitialCapital)
	result := &Result{
		StartingCapital: e.cfg.InitialCapital,
		Seed:            e.cfg.Seed,
	}

	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bars := day.Intraday
		if len(bars) == 0 {
			synthesized, err := SynthesizeBars(rng, day.Session, e.cfg.BarInterval)
			if err != nil {
				return nil, fmt.Errorf("synthesizing bars for %s: %w", day.Session.Date.Format("2006-01-02"), err)
			}
			bars = synthesized
		}

		tradesToday := 0
		for _, bar := range bars {
			quote := &domain.Quote{
				Symbol:    e.cfg.Symbol,
				Price:     bar.Price,
				DayHigh:   day.Session.High,
				DayLow:    day.Session.Low,
				Volume:    day.Session.Volume,
				Timestamp: bar.Time,
			}
			var flow *domain.FlowReading
			if day.Report != nil {
				f := day.Report.Flow
				flow = &f
			}
			signal := e.policy.Decide(ctx, strategy.Input{
				Symbol:      e.cfg.Symbol,
				Quote:       quote,
				Flow:        flow,
				Report:      day.Report,
				Portfolio:   pf,
				TradesToday: tradesToday,
				Zone:        day.Zone,
				Now:         bar.Time,
			})

			if signal.IsActionable() {
				trade, err := e.execute(pf, &signal, bar, day.Report, result)
				if err != nil {
					e.logger.Warn(ctx, "Simulated fill rejected", map[string]interface{}{
						"action": signal.Action, "error": err.Error(),
					})
				} else {
					result.Trades = append(result.Trades, trade)
					tradesToday++
				}
			}

			value := portfolio.Value(pf, map[string]float64{e.cfg.Symbol: bar.Price}, e.cfg.InitialCapital)
			result.ValueSeries = append(result.ValueSeries, analytics.ValuePoint{Time: bar.Time, Value: value.TotalValue})
		}
	}

	last := result.ValueSeries[len(result.ValueSeries)-1]
	result.FinalValue = last.Value
	result.TotalReturn = result.FinalValue - result.StartingCapital
	result.TotalReturnPct = result.TotalReturn / result.StartingCapital * 100

	firstOpen := days[0].Session.Open
	lastClose := days[len(days)-1].Session.Close
	if firstOpen > 0 {
		result.BuyHoldReturnPct = (lastClose - firstOpen) / firstOpen * 100
		result.BuyHoldReturn = result.StartingCapital * (lastClose/firstOpen - 1)
	}

	result.Summary = analytics.Compute(result.Trades, result.ValueSeries)
	return result, nil
}

// execute applies a simulated fill: buys pay slippage and costs, sells
// surrender them from proceeds.
func (e *Engine) execute(pf *domain.Portfolio, signal *domain.TradeSignal, bar domain.IntradayBar, report *domain.RegimeReport, result *Result) (*domain.Trade, error) {
	mode := domain.Mode("")
	tier := domain.Tier(0)
	if report != nil {
		mode = report.Mode
		tier = report.Tier
	}

	trade := &domain.Trade{
		Timestamp: bar.Time,
		Action:    signal.Action,
		Symbol:    signal.Symbol,
		Shares:    signal.Shares,
		Reasoning: signal.Reasoning,
		Mode:      mode,
		Tier:      tier,
	}

	switch signal.Action {
	case domain.ActionBuy:
		fill := signal.Price * (1 + e.cfg.SlippagePct)
		cost := fill * float64(signal.Shares) * e.cfg.CostPct
		if err := portfolio.ApplyBuy(pf, signal.Symbol, signal.Shares, fill, cost, bar.Time, mode); err != nil {
			return nil, err
		}
		trade.Price = fill
		trade.Value = fill * float64(signal.Shares)
		result.TotalCosts += cost
	case domain.ActionSell:
		fill := signal.Price * (1 - e.cfg.SlippagePct)
		cost := fill * float64(signal.Shares) * e.cfg.CostPct
		realized, err := portfolio.ApplySell(pf, signal.Symbol, signal.Shares, fill, cost)
		if err != nil {
			return nil, err
		}
		trade.Price = fill
		trade.Value = fill * float64(signal.Shares)
		trade.RealizedPnL = realized
		result.TotalCosts += cost
	default:
		return nil, fmt.Errorf("unexpected action %s", signal.Action)
	}

	value := portfolio.Value(pf, map[string]float64{e.cfg.Symbol: bar.Price}, e.cfg.InitialCapital)
	trade.PortfolioValue = value.TotalValue
	return trade, nil
}
