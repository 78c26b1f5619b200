package noderpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestServer serves a JSON-RPC endpoint answering every request with
// reply, after checking the method and credentials.
func newTestServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "user" || pass != "pass" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			var req struct {
				Method string `json:"method"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
				req.Method != methodBlockchainActivity {

				w.WriteHeader(http.StatusBadRequest)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(reply))
		},
	))
	t.Cleanup(srv.Close)

	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	c, err := New(&Config{
		Host:       strings.TrimPrefix(srv.URL, "http://"),
		User:       "user",
		Pass:       "pass",
		DisableTLS: true,
	})
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)

	return c
}

func TestBlockchainActivity(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, `{"result":{"blocks":2,"transactions":3},`+
		`"error":null,"id":1}`)
	c := newTestClient(t, srv)

	activity, err := c.BlockchainActivity(context.Background())
	require.NoError(t, err)
	require.Equal(t, Activity{"blocks": 2, "transactions": 3}, activity)
	require.EqualValues(t, 5, activity.Total())
}

func TestBlockchainActivityRPCError(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, `{"result":null,"error":{"code":-32601,`+
		`"message":"Method not found"},"id":1}`)
	c := newTestClient(t, srv)

	_, err := c.BlockchainActivity(context.Background())
	require.ErrorContains(t, err, "Method not found")
}

func TestBlockchainActivityCancelled(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, `{"result":{},"error":null,"id":1}`)
	c := newTestClient(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.BlockchainActivity(ctx)
	if err != nil {
		require.ErrorIs(t, err, context.Canceled)
	}
}

func TestNewWithoutHost(t *testing.T) {
	t.Parallel()

	_, err := New(&Config{})
	require.ErrorIs(t, err, ErrNoHost)
	require.Zero(t, Activity{}.Total())
}
