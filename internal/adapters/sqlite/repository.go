// Package sqlite implements the persistence ports on a local SQLite database:
// the append-only trade ledger, the single session-state record, daily
// portfolio snapshots and the operational log.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"regimetrader/internal/domain"
	"regimetrader/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.TradeLedger, ports.StateRepository,
// ports.SnapshotRepository and ports.OpLog.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (or creates) the database and initializes the schema.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/regimetrader.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the trading loop and readers.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TIMESTAMP NOT NULL,
		action TEXT NOT NULL,
		symbol TEXT NOT NULL,
		shares INTEGER NOT NULL,
		price REAL NOT NULL,
		value REAL NOT NULL,
		reasoning TEXT NOT NULL,
		mode TEXT NOT NULL,
		tier INTEGER NOT NULL,
		realized_pnl REAL NOT NULL DEFAULT 0,
		portfolio_value REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bot_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		state_date TEXT NOT NULL,
		cash REAL NOT NULL,
		realized_pnl REAL NOT NULL,
		positions TEXT NOT NULL,
		trades_today TEXT NOT NULL,
		last_zone TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		day TEXT PRIMARY KEY,
		total_value REAL NOT NULL,
		cash REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS op_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TIMESTAMP NOT NULL,
		entry TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_symbol_ts ON trades (symbol, ts);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- TradeLedger implementation ---

// Append saves a new trade record and returns its assigned ID.
func (r *Repository) Append(ctx context.Context, trade *domain.Trade) (int64, error) {
	reasoning, err := json.Marshal(trade.Reasoning)
	if err != nil {
		return 0, fmt.Errorf("failed to encode reasoning: %w", err)
	}

	const query = `
	INSERT INTO trades (ts, action, symbol, shares, price, value, reasoning, mode, tier, realized_pnl, portfolio_value)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		trade.Timestamp, trade.Action, trade.Symbol, trade.Shares, trade.Price, trade.Value,
		string(reasoning), trade.Mode, trade.Tier, trade.RealizedPnL, trade.PortfolioValue)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for %s: %w", trade.Symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", trade.Symbol, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade appended to ledger", map[string]interface{}{"tradeID": id, "symbol": trade.Symbol, "action": trade.Action})
	return id, nil
}

// RecentBySymbol retrieves the most recent trades for a symbol, up to limit.
func (r *Repository) RecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT id, ts, action, symbol, shares, price, value, reasoning, mode, tier, realized_pnl, portfolio_value
	FROM trades WHERE symbol = ? ORDER BY ts DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for %s: %w", symbol, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// CountOnDate counts trades for a symbol on the given calendar day.
func (r *Repository) CountOnDate(ctx context.Context, symbol string, day time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM trades WHERE symbol = ? AND date(ts) = ?`
	var count int
	err := r.db.QueryRowContext(ctx, query, symbol, day.Format("2006-01-02")).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades for %s: %w", symbol, err)
	}
	return count, nil
}

// --- StateRepository implementation ---

// Load retrieves the persisted session state, or nil when none exists.
func (r *Repository) Load(ctx context.Context) (*domain.SessionState, error) {
	const query = `SELECT state_date, cash, realized_pnl, positions, trades_today, last_zone FROM bot_state WHERE id = 1`

	var dateStr, positionsJSON, tradesJSON, zone string
	state := &domain.SessionState{}
	err := r.db.QueryRowContext(ctx, query).Scan(&dateStr, &state.Cash, &state.RealizedPnL, &positionsJSON, &tradesJSON, &zone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "No persisted session state found")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	state.Date, err = time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid persisted state date %q: %w", dateStr, err)
	}
	if err := json.Unmarshal([]byte(positionsJSON), &state.Positions); err != nil {
		return nil, fmt.Errorf("failed to decode persisted positions: %w", err)
	}
	if err := json.Unmarshal([]byte(tradesJSON), &state.TradesToday); err != nil {
		return nil, fmt.Errorf("failed to decode persisted trade counters: %w", err)
	}
	state.LastZone = domain.CompositeZone(zone)
	return state, nil
}

// Save replaces the persisted session state.
func (r *Repository) Save(ctx context.Context, state *domain.SessionState) error {
	positions, err := json.Marshal(state.Positions)
	if err != nil {
		return fmt.Errorf("failed to encode positions: %w", err)
	}
	if state.TradesToday == nil {
		state.TradesToday = map[string]int{}
	}
	counters, err := json.Marshal(state.TradesToday)
	if err != nil {
		return fmt.Errorf("failed to encode trade counters: %w", err)
	}

	const query = `
	INSERT INTO bot_state (id, state_date, cash, realized_pnl, positions, trades_today, last_zone)
	VALUES (1, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		state_date = excluded.state_date,
		cash = excluded.cash,
		realized_pnl = excluded.realized_pnl,
		positions = excluded.positions,
		trades_today = excluded.trades_today,
		last_zone = excluded.last_zone`

	if _, err := r.db.ExecContext(ctx, query,
		state.Date.Format("2006-01-02"), state.Cash, state.RealizedPnL,
		string(positions), string(counters), state.LastZone); err != nil {
		return fmt.Errorf("failed to save session state: %w", err)
	}
	r.logger.Debug(ctx, "Session state saved", map[string]interface{}{"cash": state.Cash, "date": state.Date.Format("2006-01-02")})
	return nil
}

// --- SnapshotRepository implementation ---

// SaveDaily upserts the portfolio snapshot for a calendar day.
func (r *Repository) SaveDaily(ctx context.Context, day time.Time, totalValue, cash float64) error {
	const query = `
	INSERT INTO snapshots (day, total_value, cash) VALUES (?, ?, ?)
	ON CONFLICT(day) DO UPDATE SET total_value = excluded.total_value, cash = excluded.cash`

	if _, err := r.db.ExecContext(ctx, query, day.Format("2006-01-02"), totalValue, cash); err != nil {
		return fmt.Errorf("failed to save daily snapshot: %w", err)
	}
	return nil
}

// --- OpLog implementation ---

// Record appends a free-form operational log entry.
func (r *Repository) Record(ctx context.Context, entry string) error {
	const query = `INSERT INTO op_log (ts, entry) VALUES (?, ?)`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), entry); err != nil {
		return fmt.Errorf("failed to record op log entry: %w", err)
	}
	return nil
}

// scanner is compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (*domain.Trade, error) {
	trade := &domain.Trade{}
	var reasoning string
	err := s.Scan(
		&trade.ID, &trade.Timestamp, &trade.Action, &trade.Symbol, &trade.Shares,
		&trade.Price, &trade.Value, &reasoning, &trade.Mode, &trade.Tier,
		&trade.RealizedPnL, &trade.PortfolioValue)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(reasoning), &trade.Reasoning); err != nil {
		return nil, fmt.Errorf("failed to decode reasoning: %w", err)
	}
	return trade, nil
}
