package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kurobane/sagabrawl/cache"
	"github.com/kurobane/sagabrawl/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSec = config.SecurityConfig{JWTSecret: testSecret, JWTTTLH: time.Hour}

func newSessionCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewCache(cache.CacheConfig{})
	require.NoError(t, err)
	return c
}

// openSession mints a token and stores its session, like the login handler.
func openSession(t *testing.T, c cache.Cache, accountID int64) string {
	t.Helper()
	tok, err := GenerateToken(accountID, testSec.JWTSecret, testSec.JWTTTLH)
	require.NoError(t, err)
	require.NoError(t, c.Set(context.Background(), SessionKey(tok),
		strconv.FormatInt(accountID, 10), time.Hour))
	return tok
}

func newGuardedRouter(c cache.Cache) *gin.Engine {
	r := gin.New()
	r.Use(Auth(testSec, c))
	r.GET("/guarded", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, strconv.FormatInt(GetAccountID(ctx), 10))
	})
	return r
}

func get(r *gin.Engine, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRejectsMissingAndWrongScheme(t *testing.T) {
	r := newGuardedRouter(newSessionCache(t))

	assert.Equal(t, http.StatusUnauthorized, get(r, "/guarded").Code)
	assert.Equal(t, http.StatusUnauthorized,
		get(r, "/guarded", "Authorization", "Token abc").Code)
}

func TestAuthRejectsBadToken(t *testing.T) {
	r := newGuardedRouter(newSessionCache(t))
	w := get(r, "/guarded", "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	c := newSessionCache(t)
	r := newGuardedRouter(c)
	tok := openSession(t, c, 7)

	// Logout deletes the session; the still-unexpired JWT must stop working.
	require.NoError(t, c.Del(context.Background(), SessionKey(tok)))
	w := get(r, "/guarded", "Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsTokenWithoutSession(t *testing.T) {
	c := newSessionCache(t)
	r := newGuardedRouter(c)
	tok, err := GenerateToken(7, testSec.JWTSecret, time.Hour)
	require.NoError(t, err)

	w := get(r, "/guarded", "Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthPassesAccountIDThrough(t *testing.T) {
	c := newSessionCache(t)
	r := newGuardedRouter(c)
	tok := openSession(t, c, 42)

	w := get(r, "/guarded", "Authorization", "Bearer "+tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())
}

func TestBearerToken(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", BearerToken(ctx))

	ctx.Request.Header.Set("Authorization", "Bearer tok123")
	assert.Equal(t, "tok123", BearerToken(ctx))
}

func TestGetAccountIDDefaultsToZero(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, int64(0), GetAccountID(ctx))
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	r := gin.New()
	r.Use(TraceID(), Recovery(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) {
		panic("mid-resolution panic")
	})

	w := get(r, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRecoveryLeavesNormalRequestsAlone(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, "/ok").Code)
}

func TestLoggerPassesBothLevelsThrough(t *testing.T) {
	r := gin.New()
	r.Use(TraceID(), Logger(zap.NewNop()))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	assert.Equal(t, http.StatusOK, get(r, "/ok").Code)
	assert.Equal(t, http.StatusInternalServerError, get(r, "/fail").Code)
}
