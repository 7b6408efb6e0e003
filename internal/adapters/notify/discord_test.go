package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordNotifier(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled notifier drops silently", func(t *testing.T) {
		n := NewDiscord("")
		assert.NoError(t, n.Notify(ctx, "BUY QQQ", "100 shares @ 250.25"))
	})

	t.Run("posts an embed payload", func(t *testing.T) {
		var payload map[string]interface{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		n := NewDiscord(srv.URL)
		require.NoError(t, n.Notify(ctx, "BUY QQQ", "100 shares @ 250.25"))

		embeds, ok := payload["embeds"].([]interface{})
		require.True(t, ok)
		require.Len(t, embeds, 1)
		embed := embeds[0].(map[string]interface{})
		assert.Equal(t, "BUY QQQ", embed["title"])
		assert.Equal(t, "100 shares @ 250.25", embed["description"])
	})

	t.Run("error status surfaces as an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		n := NewDiscord(srv.URL)
		assert.Error(t, n.Notify(ctx, "title", "message"))
	})
}
