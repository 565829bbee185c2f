package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// rateLimitServer reports the remaining quota for each bearer token.
func rateLimitServer(t *testing.T, remaining map[string]int, resetIn map[string]time.Duration) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		fmt.Fprintf(w, `{"resources":{"core":{"limit":5000,"remaining":%d,"reset":%d}}}`,
			remaining[token], fixedNow.Add(resetIn[token]).Unix())
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestPool(t *testing.T, server *httptest.Server, tokens ...string) (*TokenPool, *[]time.Duration) {
	t.Helper()
	pool, err := NewTokenPool(server.Client(), server.URL, tokens, zap.NewNop())
	require.NoError(t, err)
	var slept []time.Duration
	pool.now = func() time.Time { return fixedNow }
	pool.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return pool, &slept
}

func TestTokenPoolRotatesPastExhaustedTokens(t *testing.T) {
	server := rateLimitServer(t,
		map[string]int{"tokA": 10, "tokB": 4000},
		map[string]time.Duration{"tokA": time.Hour, "tokB": time.Hour})
	pool, slept := newTestPool(t, server, "tokA", "tokB")
	assert.Equal(t, 2, pool.Size())

	c, err := pool.Client(context.Background())
	require.NoError(t, err)
	assert.Same(t, pool.clients[1], c)
	assert.Empty(t, *slept)

	// the cached client is reused while it has quota
	c, err = pool.Client(context.Background())
	require.NoError(t, err)
	assert.Same(t, pool.clients[1], c)
}

func TestTokenPoolSleepsUntilEarliestReset(t *testing.T) {
	server := rateLimitServer(t,
		map[string]int{"tokA": 1, "tokB": 49},
		map[string]time.Duration{"tokA": 30 * time.Minute, "tokB": 10 * time.Minute})
	pool, slept := newTestPool(t, server, "tokA", "tokB")

	c, err := pool.Client(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, []time.Duration{10 * time.Minute}, *slept)
	assert.Same(t, pool.clients[1], c)
}

func TestTokenPoolPicksTokenAlreadyReset(t *testing.T) {
	server := rateLimitServer(t,
		map[string]int{"tokA": 2, "tokB": 3, "tokC": 1},
		map[string]time.Duration{"tokA": 20 * time.Minute, "tokB": -time.Minute, "tokC": 5 * time.Minute})
	pool, slept := newTestPool(t, server, "tokA", "tokB", "tokC")

	c, err := pool.Client(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0}, *slept)
	assert.Same(t, pool.clients[1], c)
}

func TestTokenPoolSleepHonorsContext(t *testing.T) {
	server := rateLimitServer(t, map[string]int{"tokA": 0}, map[string]time.Duration{"tokA": time.Hour})
	pool, err := NewTokenPool(server.Client(), server.URL, []string{"tokA"}, zap.NewNop())
	require.NoError(t, err)
	pool.now = func() time.Time { return fixedNow }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pool.Client(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenPoolUnauthenticated(t *testing.T) {
	server := rateLimitServer(t, map[string]int{"": 60}, nil)
	pool, _ := newTestPool(t, server)
	assert.Equal(t, 1, pool.Size())

	c, err := pool.Client(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, c)
}
