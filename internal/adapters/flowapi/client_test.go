package flowapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regimetrader/internal/domain"
	"regimetrader/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct {
	warnMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.warnMsgs = append(m.warnMsgs, msg)
}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestNew(t *testing.T) {
	logger := &mockLogger{}

	_, err := New("", time.Second, logger)
	assert.Error(t, err)

	_, err = New("http://localhost:9", time.Second, nil)
	assert.Error(t, err)

	c, err := New("http://localhost:9", 0, logger)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestGetFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("parses the reading", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/flow", r.URL.Path)
			w.Write([]byte(`{"raw": 1.4, "percentile": 62, "low30": -2.1, "high30": 3.8, "timestamp": "2026-03-10T14:30:00Z"}`))
		}))
		defer srv.Close()

		c, err := New(srv.URL, time.Second, &mockLogger{})
		require.NoError(t, err)

		flow, err := c.GetFlow(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1.4, flow.Raw)
		assert.Equal(t, 62.0, flow.Percentile)
		assert.Equal(t, time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC), flow.Timestamp)
	})

	t.Run("serves the cached reading when the service fails", func(t *testing.T) {
		var failing atomic.Bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if failing.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"raw": 1.4, "percentile": 62}`))
		}))
		defer srv.Close()

		logger := &mockLogger{}
		c, err := New(srv.URL, time.Second, logger)
		require.NoError(t, err)

		first, err := c.GetFlow(ctx)
		require.NoError(t, err)

		failing.Store(true)
		second, err := c.GetFlow(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.NotEmpty(t, logger.warnMsgs)
	})

	t.Run("fails without a cache", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c, err := New(srv.URL, time.Second, &mockLogger{})
		require.NoError(t, err)

		_, err = c.GetFlow(ctx)
		assert.ErrorIs(t, err, ports.ErrFlowUnavailable)
	})
}

func TestGetZone(t *testing.T) {
	ctx := context.Background()

	t.Run("parses the zone", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/zone", r.URL.Path)
			w.Write([]byte(`{"zone": "caution"}`))
		}))
		defer srv.Close()

		c, err := New(srv.URL, time.Second, &mockLogger{})
		require.NoError(t, err)

		zone, err := c.GetZone(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.ZoneCaution, zone)
	})

	t.Run("serves the cached zone when the service fails", func(t *testing.T) {
		var failing atomic.Bool
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if failing.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"zone": "neutral"}`))
		}))
		defer srv.Close()

		c, err := New(srv.URL, time.Second, &mockLogger{})
		require.NoError(t, err)

		_, err = c.GetZone(ctx)
		require.NoError(t, err)

		failing.Store(true)
		zone, err := c.GetZone(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.ZoneNeutral, zone)
	})

	t.Run("fails without a cache", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c, err := New(srv.URL, time.Second, &mockLogger{})
		require.NoError(t, err)

		_, err = c.GetZone(ctx)
		assert.ErrorIs(t, err, ports.ErrFlowUnavailable)
	})
}
