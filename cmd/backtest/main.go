package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"regimetrader/internal/adapters/alpaca"
	"regimetrader/internal/adapters/logger"
	"regimetrader/internal/backtest"
	"regimetrader/internal/domain"
	"regimetrader/internal/ports"
	"regimetrader/internal/reports"
	"regimetrader/internal/strategy"
)

func main() {
	var (
		reportsDir = flag.String("reports", "./data/reports", "directory of historical report YAML files")
		symbol     = flag.String("symbol", "QQQ", "instrument symbol to simulate")
		capital    = flag.Float64("capital", 100000, "starting capital")
		slippage   = flag.Float64("slippage", 0.0005, "slippage per fill as a fraction of price")
		cost       = flag.Float64("cost", 0.0002, "transaction cost as a fraction of notional")
		interval   = flag.Duration("interval", 15*time.Minute, "synthetic bar interval")
		seed       = flag.Int64("seed", 42, "seed for synthetic intraday bar generation")
		fetchBars  = flag.Bool("fetch-bars", false, "replace YAML session bars with Alpaca daily bars (APCA_* env credentials)")
		logLevel   = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	appLogger, err := logger.New(*logLevel)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	ctx := context.Background()

	days, err := reports.LoadDir(*reportsDir)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to load historical reports")
		log.Fatalf("FATAL: Failed to load historical reports: %v", err)
	}
	appLogger.Info(ctx, "Historical reports loaded", map[string]interface{}{
		"days":  len(days),
		"first": days[0].Session.Date.Format("2006-01-02"),
		"last":  days[len(days)-1].Session.Date.Format("2006-01-02"),
	})

	if *fetchBars {
		provider, err := alpaca.New(appLogger)
		if err != nil {
			appLogger.Error(ctx, err, "Failed to create market data provider")
			log.Fatalf("FATAL: Failed to create market data provider: %v", err)
		}
		if err := fillSessions(ctx, appLogger, provider, *symbol, days); err != nil {
			appLogger.Error(ctx, err, "Failed to fetch session bars")
			log.Fatalf("FATAL: Failed to fetch session bars: %v", err)
		}
	}

	engine, err := backtest.New(backtest.Config{
		Symbol:         *symbol,
		InitialCapital: *capital,
		SlippagePct:    *slippage,
		CostPct:        *cost,
		BarInterval:    *interval,
		Policy:         strategy.DefaultBacktestConfig(),
		Seed:           *seed,
	}, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "Failed to create backtest engine")
		log.Fatalf("FATAL: Failed to create backtest engine: %v", err)
	}

	result, err := engine.Run(ctx, days)
	if err != nil {
		appLogger.Error(ctx, err, "Backtest run failed")
		log.Fatalf("FATAL: Backtest run failed: %v", err)
	}

	fmt.Printf("Backtest %s  (%d days, seed %d)\n", *symbol, len(days), result.Seed)
	fmt.Printf("  Starting capital: %12.2f\n", result.StartingCapital)
	fmt.Printf("  Final value:      %12.2f\n", result.FinalValue)
	fmt.Printf("  Total return:     %12.2f  (%.2f%%)\n", result.TotalReturn, result.TotalReturnPct)
	fmt.Printf("  Buy & hold:       %12.2f  (%.2f%%)\n", result.BuyHoldReturn, result.BuyHoldReturnPct)
	fmt.Printf("  Total costs:      %12.2f\n", result.TotalCosts)
	fmt.Println()

	s := result.Summary
	fmt.Printf("  Trades: %d total, %d closed (%d winners / %d losers)\n", s.TotalTrades, s.ClosedTrades, s.Winners, s.Losers)
	fmt.Printf("  Win rate:      %8.2f%%\n", s.WinRate*100)
	fmt.Printf("  Profit factor: %8.2f\n", s.ProfitFactor)
	fmt.Printf("  Avg winner:    %8.2f\n", s.AvgWinner)
	fmt.Printf("  Avg loser:     %8.2f\n", s.AvgLoser)
	fmt.Printf("  Net profit:    %8.2f\n", s.NetProfit)
	fmt.Printf("  Max drawdown:  %8.2f  (%.2f%%)\n", s.MaxDrawdown, s.MaxDrawdownPct)
}

// fillSessions overwrites each day's session bar with the real daily bar for
// that date, where one exists. Days without market data keep their YAML bar.
func fillSessions(ctx context.Context, appLogger ports.Logger, provider ports.QuoteProvider, symbol string, days []*domain.HistoricalDay) error {
	start := days[0].Session.Date
	end := days[len(days)-1].Session.Date.Add(24 * time.Hour)
	bars, err := provider.GetDailyBars(ctx, symbol, start, end)
	if err != nil {
		return err
	}

	byDate := make(map[string]*domain.DailyBar, len(bars))
	for _, b := range bars {
		byDate[b.Date.Format("2006-01-02")] = b
	}

	replaced := 0
	for _, day := range days {
		bar, ok := byDate[day.Session.Date.Format("2006-01-02")]
		if !ok {
			continue
		}
		date := day.Session.Date
		day.Session = *bar
		day.Session.Date = date
		replaced++
	}
	appLogger.Info(ctx, "Session bars replaced with market data", map[string]interface{}{
		"symbol":   symbol,
		"replaced": replaced,
		"days":     len(days),
	})
	return nil
}
