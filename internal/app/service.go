// Package app orchestrates the live trading loop: a single-threaded periodic
// decision cycle plus a lower-frequency flow refresh, both cron-scheduled.
// Notifications and commentary run as detached side effects so their failure
// or latency never touches a trading cycle.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"regimetrader/config"
	"regimetrader/internal/domain"
	"regimetrader/internal/portfolio"
	"regimetrader/internal/ports"
	"regimetrader/internal/strategy"
)

const sideEffectQueueSize = 32

// Deps bundles the collaborators the trading service needs. Notifier and
// Commentator may be nil; everything else is required.
type Deps struct {
	Config      *config.Config
	Logger      ports.Logger
	Quotes      ports.QuoteProvider
	Flow        ports.FlowProvider
	Ledger      ports.TradeLedger
	States      ports.StateRepository
	Snapshots   ports.SnapshotRepository
	OpLog       ports.OpLog
	Notifier    ports.Notifier
	Commentator ports.Commentator
	Reports     ports.ReportSource
}

// Service owns the mutable trading session state. Exactly one live process
// instance may run against a given persisted state; that is a deployment
// invariant, not something the service can enforce.
type Service struct {
	cfg         *config.Config
	logger      ports.Logger
	quotes      ports.QuoteProvider
	flow        ports.FlowProvider
	ledger      ports.TradeLedger
	states      ports.StateRepository
	snapshots   ports.SnapshotRepository
	oplog       ports.OpLog
	notifier    ports.Notifier
	commentator ports.Commentator
	reports     ports.ReportSource
	policy      *strategy.Engine
	loc         *time.Location
	now         func() time.Time

	// mu guards the session state below. Cycles acquire it with TryLock so
	// two cycles can never overlap; a late cycle is skipped, not queued.
	mu          sync.Mutex
	portfolio   *domain.Portfolio
	tradesToday map[string]int
	stateDate   time.Time
	lastZone    domain.CompositeZone
	lastFlow    *domain.FlowReading
	report      *domain.RegimeReport

	effects   chan func(context.Context)
	effectsWG sync.WaitGroup
}

// NewService creates the live trading service.
func NewService(deps Deps) (*Service, error) {
	if deps.Config == nil || deps.Logger == nil || deps.Quotes == nil || deps.Flow == nil ||
		deps.Ledger == nil || deps.States == nil || deps.Snapshots == nil || deps.OpLog == nil {
		return nil, fmt.Errorf("missing required dependencies for trading service")
	}

	policy, err := strategy.New(deps.Config.Policy, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("invalid decision policy: %w", err)
	}
	loc, err := time.LoadLocation(deps.Config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", deps.Config.Timezone, err)
	}

	return &Service{
		cfg:         deps.Config,
		logger:      deps.Logger,
		quotes:      deps.Quotes,
		flow:        deps.Flow,
		ledger:      deps.Ledger,
		states:      deps.States,
		snapshots:   deps.Snapshots,
		oplog:       deps.OpLog,
		notifier:    deps.Notifier,
		commentator: deps.Commentator,
		reports:     deps.Reports,
		policy:      policy,
		loc:         loc,
		now:         time.Now,
		tradesToday: make(map[string]int),
		lastZone:    domain.ZoneNeutral,
		effects:     make(chan func(context.Context), sideEffectQueueSize),
	}, nil
}

// SetReport ingests the day's regime report, already parsed upstream.
func (s *Service) SetReport(ctx context.Context, report *domain.RegimeReport) {
	if report == nil {
		return
	}
	s.mu.Lock()
	s.report = report
	s.mu.Unlock()
	s.logger.Info(ctx, "Regime report ingested", map[string]interface{}{
		"date": report.Date.Format("2006-01-02"),
		"mode": report.Mode,
		"tier": report.Tier,
	})
}

// Start restores persisted state, schedules the decision and flow-refresh
// jobs, and blocks until the context is cancelled or a termination signal
// arrives.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting trading service")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
		cancel()
	}()

	if err := s.restoreState(ctx); err != nil {
		return fmt.Errorf("failed to restore session state: %w", err)
	}

	// Prime the report and flow/zone before the first cycle so entries aren't
	// blocked on missing inputs.
	s.loadReport(ctx, s.today())
	s.refreshFlow(ctx)

	s.effectsWG.Add(1)
	go s.runSideEffects()

	scheduler := cron.New(cron.WithLocation(s.loc))
	if _, err := scheduler.AddFunc(s.cfg.CycleSchedule, func() { s.runCycle(context.Background()) }); err != nil {
		close(s.effects)
		s.effectsWG.Wait()
		return fmt.Errorf("invalid cycle schedule %q: %w", s.cfg.CycleSchedule, err)
	}
	if _, err := scheduler.AddFunc(s.cfg.FlowSchedule, func() { s.refreshFlow(context.Background()) }); err != nil {
		close(s.effects)
		s.effectsWG.Wait()
		return fmt.Errorf("invalid flow schedule %q: %w", s.cfg.FlowSchedule, err)
	}
	scheduler.Start()
	s.logger.Info(ctx, "Schedules started", map[string]interface{}{
		"cycle": s.cfg.CycleSchedule,
		"flow":  s.cfg.FlowSchedule,
	})

	<-ctx.Done()
	s.logger.Info(ctx, "Shutting down, stopping schedules")

	stopped := scheduler.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn(ctx, "Timeout waiting for in-flight cycle to finish")
	}

	close(s.effects)
	s.effectsWG.Wait()
	s.logger.Info(ctx, "Trading service stopped")
	return nil
}

// restoreState loads persisted session state and resets daily counters when
// the persisted date is older than today. This is the crash-recovery
// invariant, not a convenience.
func (s *Service) restoreState(ctx context.Context) error {
	today := s.today()

	state, err := s.states.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state == nil {
		s.portfolio = domain.NewPortfolio(s.cfg.StartingCash)
		s.stateDate = today
		s.logger.Info(ctx, "No persisted state; starting fresh", map[string]interface{}{"cash": s.cfg.StartingCash})
		return s.persistLocked(ctx)
	}

	s.portfolio = state.ToPortfolio()
	s.tradesToday = state.TradesToday
	if s.tradesToday == nil {
		s.tradesToday = s.recountTrades(ctx, today)
	}
	s.stateDate = state.Date
	if state.LastZone != "" {
		s.lastZone = state.LastZone
	}

	if !sameDay(state.Date, today) {
		s.tradesToday = make(map[string]int)
		s.stateDate = today
		s.logger.Info(ctx, "Persisted state is from a previous day; daily trade counters reset", map[string]interface{}{
			"persistedDate": state.Date.Format("2006-01-02"),
		})
		return s.persistLocked(ctx)
	}

	s.logger.Info(ctx, "Session state restored", map[string]interface{}{
		"cash":      s.portfolio.Cash,
		"positions": len(s.portfolio.Positions),
	})
	if pos := s.portfolio.Position(s.cfg.PrimarySymbol); pos != nil {
		if recent, err := s.ledger.RecentBySymbol(ctx, s.cfg.PrimarySymbol, 1); err == nil && len(recent) > 0 {
			s.logger.Info(ctx, "Resuming with open position", map[string]interface{}{
				"symbol":    s.cfg.PrimarySymbol,
				"shares":    pos.Shares,
				"lastTrade": recent[0].Timestamp.Format(time.RFC3339),
			})
		}
	}
	return nil
}

// recountTrades rebuilds today's per-symbol trade counters from the ledger.
// Used when a restored state predates the counter field.
func (s *Service) recountTrades(ctx context.Context, day time.Time) map[string]int {
	counts := make(map[string]int)
	for _, inst := range s.instruments() {
		n, err := s.ledger.CountOnDate(ctx, inst.symbol, day)
		if err != nil {
			s.logger.Warn(ctx, "Failed to recount trades from ledger", map[string]interface{}{
				"symbol": inst.symbol,
				"error":  err.Error(),
			})
			continue
		}
		if n > 0 {
			counts[inst.symbol] = n
		}
	}
	return counts
}

// runCycle executes one full decision cycle. If the previous cycle is still
// running the new one is skipped entirely.
func (s *Service) runCycle(ctx context.Context) {
	if !s.mu.TryLock() {
		s.logger.Warn(ctx, "Previous cycle still running; skipping this tick")
		return
	}
	defer s.mu.Unlock()

	today := s.today()
	if !sameDay(s.stateDate, today) {
		s.tradesToday = make(map[string]int)
		s.stateDate = today
		s.logger.Info(ctx, "Date rolled over; daily trade counters reset")
		s.loadReportLocked(ctx, today)
	}

	prices := make(map[string]float64)
	for _, inst := range s.instruments() {
		s.processInstrument(ctx, inst, prices)
	}

	if len(prices) > 0 {
		value := portfolio.Value(s.portfolio, prices, s.cfg.StartingCash)
		if err := s.snapshots.SaveDaily(ctx, today, value.TotalValue, s.portfolio.Cash); err != nil {
			s.logger.Error(ctx, err, "Failed to save daily snapshot")
		}
	}
}

type instrument struct {
	symbol    string
	leveraged bool
}

func (s *Service) instruments() []instrument {
	out := []instrument{{symbol: s.cfg.PrimarySymbol}}
	if s.cfg.LeveragedSymbol != "" {
		out = append(out, instrument{symbol: s.cfg.LeveragedSymbol, leveraged: true})
	}
	return out
}

// processInstrument runs decide-execute-persist-notify for one instrument.
// Callers hold s.mu.
func (s *Service) processInstrument(ctx context.Context, inst instrument, prices map[string]float64) {
	quote, err := s.quotes.GetQuote(ctx, inst.symbol)
	if err != nil {
		// Data unavailable degrades to no-trade; inputs are never fabricated.
		s.logger.Warn(ctx, "Quote fetch failed; holding", map[string]interface{}{"symbol": inst.symbol, "error": err.Error()})
		s.recordOp(ctx, fmt.Sprintf("quote fetch failed for %s: %v", inst.symbol, err))
		return
	}
	prices[inst.symbol] = quote.Price

	sig := s.policy.Decide(ctx, strategy.Input{
		Symbol:      inst.symbol,
		Leveraged:   inst.leveraged,
		Quote:       quote,
		Flow:        s.lastFlow,
		Report:      s.report,
		Portfolio:   s.portfolio,
		TradesToday: s.tradesToday[inst.symbol],
		Zone:        s.lastZone,
		Now:         s.now().In(s.loc),
	})

	if !sig.IsActionable() {
		s.logger.Debug(ctx, "Holding", map[string]interface{}{
			"symbol":    inst.symbol,
			"reasoning": strings.Join(sig.Reasoning, "; "),
		})
		return
	}

	trade, err := s.executeSignal(ctx, &sig, prices)
	if err != nil {
		s.logger.Error(ctx, err, "Signal execution rejected", map[string]interface{}{"symbol": inst.symbol, "action": sig.Action})
		return
	}

	// Persist before notifying. A failed write aborts the cycle's side
	// effects; state is re-synced from the next successful save.
	if err := s.persistLocked(ctx); err != nil {
		s.logger.Error(ctx, err, "Failed to persist state after trade; skipping notifications", map[string]interface{}{"symbol": inst.symbol})
		return
	}
	if _, err := s.ledger.Append(ctx, trade); err != nil {
		s.logger.Error(ctx, err, "Failed to append trade to ledger", map[string]interface{}{"symbol": inst.symbol})
		return
	}

	s.notifyTrade(trade)
}

// executeSignal mutates the portfolio through the accounting functions and
// builds the immutable trade record. Callers hold s.mu.
func (s *Service) executeSignal(ctx context.Context, sig *domain.TradeSignal, prices map[string]float64) (*domain.Trade, error) {
	now := s.now().In(s.loc)
	mode := domain.Mode("")
	tier := domain.Tier(0)
	if s.report != nil {
		mode = s.report.Mode
		tier = s.report.Tier
	}

	trade := &domain.Trade{
		Timestamp: now,
		Action:    sig.Action,
		Symbol:    sig.Symbol,
		Shares:    sig.Shares,
		Price:     sig.Price,
		Value:     sig.Price * float64(sig.Shares),
		Reasoning: sig.Reasoning,
		Mode:      mode,
		Tier:      tier,
	}

	switch sig.Action {
	case domain.ActionBuy:
		if err := portfolio.ApplyBuy(s.portfolio, sig.Symbol, sig.Shares, sig.Price, 0, now, mode); err != nil {
			return nil, err
		}
	case domain.ActionSell:
		realized, err := portfolio.ApplySell(s.portfolio, sig.Symbol, sig.Shares, sig.Price, 0)
		if err != nil {
			return nil, err
		}
		trade.RealizedPnL = realized
	default:
		return nil, fmt.Errorf("unexpected signal action %s", sig.Action)
	}

	s.tradesToday[sig.Symbol]++
	value := portfolio.Value(s.portfolio, prices, s.cfg.StartingCash)
	trade.PortfolioValue = value.TotalValue

	s.logger.Info(ctx, "Trade executed", map[string]interface{}{
		"action": trade.Action,
		"symbol": trade.Symbol,
		"shares": trade.Shares,
		"price":  trade.Price,
		"value":  trade.Value,
	})
	s.recordOp(ctx, fmt.Sprintf("%s %d %s @ %.2f: %s", trade.Action, trade.Shares, trade.Symbol, trade.Price, strings.Join(trade.Reasoning, "; ")))
	return trade, nil
}

// refreshFlow updates the cached flow reading and composite zone. Zone
// transitions are announced and persisted.
func (s *Service) refreshFlow(ctx context.Context) {
	flow, err := s.flow.GetFlow(ctx)
	if err != nil {
		s.logger.Warn(ctx, "Flow refresh failed; keeping last reading", map[string]interface{}{"error": err.Error()})
	}
	zone, zoneErr := s.flow.GetZone(ctx)
	if zoneErr != nil {
		s.logger.Warn(ctx, "Zone refresh failed; keeping last zone", map[string]interface{}{"error": zoneErr.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil && flow != nil {
		s.lastFlow = flow
	}
	if zoneErr == nil && zone != "" && zone != s.lastZone {
		previous := s.lastZone
		s.lastZone = zone
		s.logger.Info(ctx, "Composite zone transition", map[string]interface{}{"from": previous, "to": zone})
		s.recordOp(ctx, fmt.Sprintf("composite zone transition %s -> %s", previous, zone))
		if err := s.persistLocked(ctx); err != nil {
			s.logger.Error(ctx, err, "Failed to persist state after zone transition")
		}
		s.enqueueEffect(func(ctx context.Context) {
			if s.notifier == nil {
				return
			}
			if err := s.notifier.Notify(ctx, "Zone transition",
				fmt.Sprintf("Composite zone moved from %s to %s", previous, zone)); err != nil {
				s.logger.Warn(ctx, "Zone notification failed", map[string]interface{}{"error": err.Error()})
			}
		})
	}
}

// loadReport fetches the day's regime report from the configured source, if
// any. A missing report leaves the previous one in place; the decision policy
// treats a stale or absent report as a reason to hold.
func (s *Service) loadReport(ctx context.Context, day time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadReportLocked(ctx, day)
}

func (s *Service) loadReportLocked(ctx context.Context, day time.Time) {
	if s.reports == nil {
		return
	}
	report, err := s.reports.ReportFor(ctx, day)
	if err != nil {
		s.logger.Warn(ctx, "Regime report unavailable", map[string]interface{}{
			"date":  day.Format("2006-01-02"),
			"error": err.Error(),
		})
		return
	}
	s.report = report
	s.logger.Info(ctx, "Regime report loaded", map[string]interface{}{
		"date": report.Date.Format("2006-01-02"),
		"mode": report.Mode,
		"tier": report.Tier,
	})
}

// persistLocked saves the current session state. Callers hold s.mu.
func (s *Service) persistLocked(ctx context.Context) error {
	state := domain.SnapshotState(s.stateDate, s.portfolio, s.tradesToday, s.lastZone)
	return s.states.Save(ctx, state)
}

func (s *Service) recordOp(ctx context.Context, entry string) {
	if err := s.oplog.Record(ctx, entry); err != nil {
		s.logger.Warn(ctx, "Failed to record op log entry", map[string]interface{}{"error": err.Error()})
	}
}

// notifyTrade queues the trade announcement and commentary as detached side
// effects.
func (s *Service) notifyTrade(trade *domain.Trade) {
	title := fmt.Sprintf("%s %s", trade.Action, trade.Symbol)
	message := fmt.Sprintf("%d shares @ %.2f\n%s", trade.Shares, trade.Price, strings.Join(trade.Reasoning, "\n"))
	mode := string(trade.Mode)
	zone := string(s.lastZone)

	s.enqueueEffect(func(ctx context.Context) {
		if s.notifier != nil {
			if err := s.notifier.Notify(ctx, title, message); err != nil {
				s.logger.Warn(ctx, "Trade notification failed", map[string]interface{}{"error": err.Error()})
			}
		}
		if s.commentator == nil {
			return
		}
		text, err := s.commentator.Comment(ctx, ports.CommentaryRequest{
			Action:    string(trade.Action),
			Symbol:    trade.Symbol,
			Price:     trade.Price,
			Reasoning: trade.Reasoning,
			Mode:      mode,
			Zone:      zone,
		})
		if err != nil {
			s.logger.Warn(ctx, "Commentary generation failed", map[string]interface{}{"error": err.Error()})
			return
		}
		if text != "" && s.notifier != nil {
			if err := s.notifier.Notify(ctx, "Commentary", text); err != nil {
				s.logger.Warn(ctx, "Commentary notification failed", map[string]interface{}{"error": err.Error()})
			}
		}
	})
}

// enqueueEffect hands a task to the side-effect worker without ever blocking
// the caller; a full queue drops the task.
func (s *Service) enqueueEffect(fn func(context.Context)) {
	select {
	case s.effects <- fn:
	default:
		s.logger.Warn(context.Background(), "Side-effect queue full; dropping task")
	}
}

func (s *Service) runSideEffects() {
	defer s.effectsWG.Done()
	for fn := range s.effects {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		fn(ctx)
		cancel()
	}
}

func (s *Service) today() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
