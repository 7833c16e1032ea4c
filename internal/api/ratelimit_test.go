package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	_, client := newTestRedis(t)
	env := newTestEnv(t)
	env.handlers.cache = client
	// Rebuild the router so the middleware picks up the cache.
	env.router = SetupRoutes(env.handlers, NewHealthChecker(nil, client, nil))

	body := map[string]interface{}{"amount": 50.0, "description": "Expert Tax Evaluation"}
	for i := 0; i < 10; i++ {
		rec := env.do(t, "POST", "/api/payments/create-session", "", body)
		require.Equal(t, http.StatusCreated, rec.Code, "request %d", i)
	}

	rec := env.do(t, "POST", "/api/payments/create-session", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitPassesThroughWithoutRedis(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]interface{}{"amount": 50.0, "description": "Expert Tax Evaluation"}
	for i := 0; i < 15; i++ {
		rec := env.do(t, "POST", "/api/payments/create-session", "", body)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
}

func TestRateLimitFailsOpenOnRedisOutage(t *testing.T) {
	srv, client := newTestRedis(t)
	env := newTestEnv(t)
	env.handlers.cache = client
	env.router = SetupRoutes(env.handlers, NewHealthChecker(nil, client, nil))
	srv.Close()

	rec := env.do(t, "POST", "/api/payments/create-session", "", map[string]interface{}{
		"amount": 50.0, "description": "Expert Tax Evaluation",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAnalyticsCachedInRedis(t *testing.T) {
	srv, client := newTestRedis(t)
	env := newTestEnv(t)
	env.handlers.cache = client
	env.router = SetupRoutes(env.handlers, NewHealthChecker(nil, client, nil))
	token := env.login(t)

	rec := env.do(t, "GET", "/api/analytics/real-stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var first AnalyticsReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	// The payload lands in Redis with the 60-second TTL.
	key := "analytics:" + testOrgID
	require.True(t, srv.Exists(key))
	ttl := srv.TTL(key)
	assert.True(t, ttl > 0 && ttl <= 60*time.Second)

	// A second request is served from the cache even after the source
	// starts failing.
	env.stats.failing = true
	rec = env.do(t, "GET", "/api/analytics/real-stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var second AnalyticsReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, first.GeneratedAt.Unix(), second.GeneratedAt.Unix())
}
