package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/metrics"
)

func TestAllowBurstThenReject(t *testing.T) {
	l := New(60)
	clock := time.Unix(0, 0)
	l.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"))
	}
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "keys are independent")

	clock = clock.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestCleanupDropsStaleKeys(t *testing.T) {
	l := New(600)
	clock := time.Unix(0, 0)
	l.now = func() time.Time { return clock }
	l.Allow("a")
	clock = clock.Add(staleAfter + time.Second)
	l.Allow("b")
	l.Cleanup()
	assert.Equal(t, 1, l.Len())
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", ClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", ClientIP(r))
}

func TestMiddleware(t *testing.T) {
	l := New(1)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	h := Middleware(l, m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(path string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.0.2.7:1234"
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("/api/v1/suggest?title_query=gat"))
	assert.Equal(t, http.StatusTooManyRequests, do("/api/v1/suggest?title_query=gats"))
	assert.Equal(t, http.StatusOK, do("/health/live"))
}
