package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/travel-booking/internal/auth"
	"github.com/iliyamo/travel-booking/internal/config"
	"github.com/iliyamo/travel-booking/internal/metrics"
)

const secret = "mw-secret"

func whoami(c echo.Context) error {
	id, ok := Identity(c)
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{"guest": true})
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": id.UserID, "role": id.Role})
}

func token(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := auth.NewAccessToken(secret, userID, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func serve(e *echo.Echo, method, path, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/me", "Bearer nope").Code)

	rec := serve(e, http.MethodGet, "/me", token(t, 7, "customer"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":7,"role":"customer"}`, rec.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	e := echo.New()
	e.GET("/bookings", whoami, OptionalJWT(secret))

	rec := serve(e, http.MethodGet, "/bookings", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"guest":true}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/bookings", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/bookings", "Bearer bad").Code)

	rec = serve(e, http.MethodGet, "/bookings", token(t, 9, "customer"))
	assert.JSONEq(t, `{"user_id":9,"role":"customer"}`, rec.Body.String())
}

func TestRequireBackOffice(t *testing.T) {
	e := echo.New()
	e.GET("/admin", whoami, JWTAuth(secret), RequireBackOffice())

	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/admin", token(t, 7, "customer")).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/admin", token(t, 1, "admin")).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/admin", token(t, 2, "staff")).Code)
}

func TestTokenBucketLocalFallback(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
		Fallback:       true,
	}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, nil))

	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", "").Code)
	rec := serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTokenBucketDisabledWithoutBackend(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Hour, TTL: time.Hour}
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, nil))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/x", "").Code)
	}
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"remaining":2}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"remaining":2}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func TestRedisCacheHit(t *testing.T) {
	rdb, rm := redismock.NewClientMock()
	cfg := config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		TTL:         time.Minute,
		KeyStrategy: "route_query",
		Prefix:      "cache",
	}
	e := echo.New()
	called := false
	e.GET("/v1/tours/:id/availability", func(c echo.Context) error {
		called = true
		return c.JSON(http.StatusOK, echo.Map{"remaining": 9})
	}, NewRedisCache(cfg, rdb))

	req := httptest.NewRequest(http.MethodGet, "/v1/tours/3/availability", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/tours/:id/availability")
	key := cacheKeyFrom(cfg, c)

	payload, err := encodePayload(http.StatusOK, http.Header{"Content-Type": []string{"application/json"}}, []byte(`{"remaining":2}`))
	require.NoError(t, err)
	rm.ExpectGet(key).SetVal(string(payload))

	rec := serve(e, http.MethodGet, "/v1/tours/3/availability", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"remaining":2}`, rec.Body.String())
	assert.False(t, called)
	assert.NoError(t, rm.ExpectationsWereMet())
}

func TestCacheKeyDistinguishesTours(t *testing.T) {
	cfg := config.CacheConfig{KeyStrategy: "route_query", Prefix: "cache"}
	e := echo.New()
	mk := func(path string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, path, nil), httptest.NewRecorder())
		c.SetPath("/v1/tours/:id/availability")
		return cacheKeyFrom(cfg, c)
	}
	assert.NotEqual(t, mk("/v1/tours/3/availability"), mk("/v1/tours/4/availability"))
}

func TestMetricsMiddleware(t *testing.T) {
	metrics.HTTPRequestsTotal.Reset()
	e := echo.New()
	e.Use(Metrics())
	e.GET("/v1/bookings/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "no") })

	serve(e, http.MethodGet, "/v1/bookings/1", "")
	serve(e, http.MethodGet, "/v1/bookings/2", "")
	serve(e, http.MethodGet, "/boom", "")

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/v1/bookings/:id", "204")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/boom", "418")))
}
