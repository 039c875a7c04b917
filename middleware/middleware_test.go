package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papanskor/internal/permission"
	"papanskor/pkg/metrics"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func echoCaller(got *permission.Caller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = CallerFrom(r.Context())
	})
}

func TestParseMapsClaims(t *testing.T) {
	auth := NewAuth(secret)

	c, err := auth.Parse(sign(t, jwt.MapClaims{"sub": "u1", "tier": "pro", "exp": time.Now().Add(time.Hour).Unix()}))
	require.NoError(t, err)
	assert.Equal(t, permission.Caller{UserID: "u1", Authenticated: true, Tier: permission.TierPro}, c)

	c, err = auth.Parse(sign(t, jwt.MapClaims{"sub": "g1", "is_anonymous": true, "tier": "pro"}))
	require.NoError(t, err)
	assert.True(t, c.Anonymous)
	assert.Equal(t, permission.TierFree, c.EffectiveTier())

	c, err = auth.Parse(sign(t, jwt.MapClaims{"sub": "u2"}))
	require.NoError(t, err)
	assert.Equal(t, permission.TierFree, c.Tier)

	c, err = auth.Parse(sign(t, jwt.MapClaims{"sub": "u3", "tier": "lapsed"}))
	require.NoError(t, err)
	assert.Equal(t, permission.TierNone, c.Tier)

	_, err = auth.Parse(sign(t, jwt.MapClaims{"tier": "pro"}))
	assert.Error(t, err, "sub is required")

	_, err = NewAuth("other").Parse(sign(t, jwt.MapClaims{"sub": "u1"}))
	assert.Error(t, err)

	_, err = auth.Parse(sign(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()}))
	assert.Error(t, err)
}

func TestRequiredAndOptional(t *testing.T) {
	auth := NewAuth(secret)
	var got permission.Caller

	rec := httptest.NewRecorder()
	auth.Required(echoCaller(&got)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+sign(t, jwt.MapClaims{"sub": "u1"}), nil)
	rec = httptest.NewRecorder()
	auth.Required(echoCaller(&got)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", got.UserID)

	got = permission.Caller{UserID: "stale"}
	rec = httptest.NewRecorder()
	auth.Optional(echoCaller(&got)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, got.Authenticated)
	assert.Empty(t, got.UserID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	auth.Optional(echoCaller(&got)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimitPerCaller(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	auth := NewAuth(secret)
	h := auth.Optional(limiter.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	before := testutil.ToFloat64(metrics.RateLimitRejected)

	do := func(token string) int {
		req := httptest.NewRequest(http.MethodPut, "/api/scoreboards/update", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	u1 := sign(t, jwt.MapClaims{"sub": "u1"})
	assert.Equal(t, http.StatusOK, do(u1))
	assert.Equal(t, http.StatusOK, do(u1))
	assert.Equal(t, http.StatusTooManyRequests, do(u1))
	assert.Equal(t, http.StatusOK, do(sign(t, jwt.MapClaims{"sub": "u2"})), "buckets are per caller")
	assert.Equal(t, http.StatusOK, do(""))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RateLimitRejected))
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/scoreboards", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)
}

func TestInstrumentCountsByRoute(t *testing.T) {
	h := Instrument("/api/test", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/test?x=1", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/api/test", "418")))
}
