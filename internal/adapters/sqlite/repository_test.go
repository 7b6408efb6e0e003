package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regimetrader/internal/domain"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.errorMsgs = append(m.errorMsgs, msg)
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func sampleTrade(ts time.Time, action domain.Action) *domain.Trade {
	return &domain.Trade{
		Timestamp:      ts,
		Action:         action,
		Symbol:         "QQQ",
		Shares:         100,
		Price:          250.25,
		Value:          25025,
		Reasoning:      []string{"mode favorable, tier 1", "price at support"},
		Mode:           domain.ModeFavorable,
		Tier:           1,
		RealizedPnL:    0,
		PortfolioValue: 100000,
	}
}

func TestNewRepository(t *testing.T) {
	t.Run("requires logger", func(t *testing.T) {
		_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
		assert.Error(t, err)
	})

	t.Run("creates schema on fresh database", func(t *testing.T) {
		repo := newTestRepo(t)
		assert.NotNil(t, repo)
	})
}

func TestTradeLedger(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)

	t.Run("append assigns an id and round-trips the record", func(t *testing.T) {
		repo := newTestRepo(t)
		trade := sampleTrade(day, domain.ActionBuy)

		id, err := repo.Append(ctx, trade)
		require.NoError(t, err)
		assert.Greater(t, id, int64(0))
		assert.Equal(t, id, trade.ID)

		got, err := repo.RecentBySymbol(ctx, "QQQ", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, trade.Action, got[0].Action)
		assert.Equal(t, trade.Shares, got[0].Shares)
		assert.Equal(t, trade.Price, got[0].Price)
		assert.Equal(t, trade.Reasoning, got[0].Reasoning)
		assert.Equal(t, trade.Mode, got[0].Mode)
		assert.Equal(t, trade.Tier, got[0].Tier)
	})

	t.Run("recent is newest-first and respects the limit", func(t *testing.T) {
		repo := newTestRepo(t)
		for i := 0; i < 5; i++ {
			_, err := repo.Append(ctx, sampleTrade(day.Add(time.Duration(i)*time.Hour), domain.ActionBuy))
			require.NoError(t, err)
		}

		got, err := repo.RecentBySymbol(ctx, "QQQ", 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.True(t, got[0].Timestamp.After(got[1].Timestamp))
		assert.True(t, got[1].Timestamp.After(got[2].Timestamp))
	})

	t.Run("count on date ignores other days and symbols", func(t *testing.T) {
		repo := newTestRepo(t)
		_, err := repo.Append(ctx, sampleTrade(day, domain.ActionBuy))
		require.NoError(t, err)
		_, err = repo.Append(ctx, sampleTrade(day.Add(2*time.Hour), domain.ActionSell))
		require.NoError(t, err)
		_, err = repo.Append(ctx, sampleTrade(day.AddDate(0, 0, 1), domain.ActionBuy))
		require.NoError(t, err)

		other := sampleTrade(day, domain.ActionBuy)
		other.Symbol = "TQQQ"
		_, err = repo.Append(ctx, other)
		require.NoError(t, err)

		count, err := repo.CountOnDate(ctx, "QQQ", day)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})
}

func TestStateRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("load returns nil when nothing persisted", func(t *testing.T) {
		repo := newTestRepo(t)
		state, err := repo.Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("save and load round-trip", func(t *testing.T) {
		repo := newTestRepo(t)
		state := &domain.SessionState{
			Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Cash:        74962.49,
			RealizedPnL: 350.5,
			Positions: []*domain.Position{
				{Symbol: "QQQ", Shares: 100, AvgCost: 250.25, EntryPrice: 250.25, EntryMode: domain.ModeFavorable},
			},
			TradesToday: map[string]int{"QQQ": 1},
			LastZone:    domain.ZoneNeutral,
		}
		require.NoError(t, repo.Save(ctx, state))

		got, err := repo.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, state.Date, got.Date)
		assert.Equal(t, state.Cash, got.Cash)
		assert.Equal(t, state.RealizedPnL, got.RealizedPnL)
		require.Len(t, got.Positions, 1)
		assert.Equal(t, int64(100), got.Positions[0].Shares)
		assert.Equal(t, domain.ModeFavorable, got.Positions[0].EntryMode)
		assert.Equal(t, map[string]int{"QQQ": 1}, got.TradesToday)
		assert.Equal(t, domain.ZoneNeutral, got.LastZone)
	})

	t.Run("save upserts the single row", func(t *testing.T) {
		repo := newTestRepo(t)
		state := &domain.SessionState{
			Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Cash:        100000,
			TradesToday: map[string]int{},
			LastZone:    domain.ZoneNeutral,
		}
		require.NoError(t, repo.Save(ctx, state))

		state.Cash = 90000
		state.LastZone = domain.ZoneCaution
		require.NoError(t, repo.Save(ctx, state))

		got, err := repo.Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 90000.0, got.Cash)
		assert.Equal(t, domain.ZoneCaution, got.LastZone)
	})
}

func TestSnapshotsAndOpLog(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("daily snapshot upserts", func(t *testing.T) {
		repo := newTestRepo(t)
		require.NoError(t, repo.SaveDaily(ctx, day, 100500, 75000))
		require.NoError(t, repo.SaveDaily(ctx, day, 100700, 74000))

		var total, cash float64
		err := repo.db.QueryRowContext(ctx,
			`SELECT total_value, cash FROM snapshots WHERE day = ?`, day.Format("2006-01-02")).Scan(&total, &cash)
		require.NoError(t, err)
		assert.Equal(t, 100700.0, total)
		assert.Equal(t, 74000.0, cash)

		var count int
		require.NoError(t, repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("op log appends entries", func(t *testing.T) {
		repo := newTestRepo(t)
		require.NoError(t, repo.Record(ctx, "BUY 100 QQQ @ 250.25"))
		require.NoError(t, repo.Record(ctx, "quote fetch failed for TQQQ"))

		var count int
		require.NoError(t, repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM op_log`).Scan(&count))
		assert.Equal(t, 2, count)
	})
}
