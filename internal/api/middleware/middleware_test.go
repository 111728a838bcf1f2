package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_PerClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(1, time.Hour))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, "192.0.2.1:1234").Code)

	limited := serve(r, "192.0.2.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "3600", limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "TOO_MANY_REQUESTS")

	assert.Equal(t, http.StatusOK, serve(r, "198.51.100.3:4321").Code)
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	assert.Equal(t, 1, rl.burst)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
}

func TestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Timeout(10 * time.Millisecond))
	r.GET("/x", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})

	rec := serve(r, "192.0.2.1:1234")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "GATEWAY_TIMEOUT")
}

func TestTimeout_KeepsWrittenResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Timeout(time.Second))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	rec := serve(r, "192.0.2.1:1234")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	r.GET("/x", func(c *gin.Context) { panic("boom") })

	rec := serve(r, "192.0.2.1:1234")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestDeduplicator_Seen(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d := NewDeduplicator(time.Second)
	d.now = func() time.Time { return now }

	a := fingerprint("192.0.2.1", "/x", []byte(`{}`))
	b := fingerprint("192.0.2.2", "/x", []byte(`{}`))
	assert.NotEqual(t, a, b)

	assert.False(t, d.Seen(a))
	assert.True(t, d.Seen(a))
	assert.False(t, d.Seen(b))

	now = now.Add(2 * time.Second)
	assert.False(t, d.Seen(a))

	now = now.Add(time.Minute)
	assert.False(t, d.Seen(b))
	assert.Len(t, d.seen, 1)
}

func TestRateLimiter_SweepsIdleClientsPeriodically(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := start
	rl := NewRateLimiter(10, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Allow("a")
	assert.Equal(t, start, rl.lastSweep)

	now = now.Add(5 * time.Minute)
	rl.Allow("b")
	assert.Equal(t, start, rl.lastSweep)
	assert.Len(t, rl.entries, 2)

	now = now.Add(11 * time.Minute)
	rl.Allow("b")
	assert.Equal(t, now, rl.lastSweep)
	assert.Len(t, rl.entries, 1)
	assert.Contains(t, rl.entries, "b")
}
