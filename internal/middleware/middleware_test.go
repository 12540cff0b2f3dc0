package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/perse-cms/perse/internal/pkg/jwt"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"abc", "abc"},
		{"Bearer abc", "abc"},
		{"bearer   abc ", "abc"},
		{"  BEARER abc", "abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeToken(tt.raw), "raw=%q", tt.raw)
	}
}

func TestAdminAuth(t *testing.T) {
	signer, err := jwt.NewSigner("secret")
	require.NoError(t, err)
	good, err := signer.Sign("admin", time.Hour)
	require.NoError(t, err)
	other, _ := jwt.NewSigner("other")
	forged, _ := other.Sign("admin", time.Hour)

	r := gin.New()
	r.GET("/admin", AdminAuth(signer, false), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentSubject(c))
	})

	tests := []struct {
		name   string
		header string
		query  string
		status int
		body   string
	}{
		{name: "missing token", status: http.StatusUnauthorized},
		{name: "forged token", header: "Bearer " + forged, status: http.StatusUnauthorized},
		{name: "bearer header", header: "Bearer " + good, status: http.StatusOK, body: "admin"},
		{name: "query token", query: "?token=" + good, status: http.StatusOK, body: "admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := serve(r, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestAdminAuth_NoSigner(t *testing.T) {
	open := gin.New()
	open.GET("/admin", AdminAuth(nil, true), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusNoContent, serve(open, httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)

	closed := gin.New()
	closed.GET("/admin", AdminAuth(nil, false), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := serve(closed, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"ok":0,"code":401,"message":"authentication required"}`, w.Body.String())
}

func TestOptionalAuth_IgnoresBadToken(t *testing.T) {
	signer, _ := jwt.NewSigner("secret")
	r := gin.New()
	r.GET("/", OptionalAuth(signer), func(c *gin.Context) {
		c.String(http.StatusOK, "%v", IsAuthenticated(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", w.Body.String())
}

func TestRateLimit(t *testing.T) {
	rdb := newRedis(t)
	r := gin.New()
	r.GET("/", RateLimit(rdb, 2, time.Hour, zaptest.NewLogger(t)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))
}

func TestRateLimit_SkipsAuthenticated(t *testing.T) {
	rdb := newRedis(t)
	signer, _ := jwt.NewSigner("secret")
	token, _ := signer.Sign("admin", time.Hour)

	r := gin.New()
	r.Use(OptionalAuth(signer))
	r.GET("/", RateLimit(rdb, 1, time.Hour, zaptest.NewLogger(t)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusOK, serve(r, req).Code)
	}
}

func TestIdempotence(t *testing.T) {
	rdb := newRedis(t)
	status := http.StatusCreated

	r := gin.New()
	r.POST("/views", Idempotence(rdb), func(c *gin.Context) {
		c.Status(status)
	})

	post := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/views", strings.NewReader(body))
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusCreated, post(`{"title":"a"}`))
	assert.Equal(t, http.StatusConflict, post(`{"title":"a"}`))
	assert.Equal(t, http.StatusCreated, post(`{"title":"b"}`))

	status = http.StatusUnprocessableEntity
	assert.Equal(t, http.StatusUnprocessableEntity, post(`{"title":"c"}`))
	status = http.StatusCreated
	assert.Equal(t, http.StatusCreated, post(`{"title":"c"}`), "a failed write releases its key")
}

func TestIdempotence_HeaderKey(t *testing.T) {
	rdb := newRedis(t)
	r := gin.New()
	r.POST("/views", Idempotence(rdb), func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(key, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/views", strings.NewReader(body))
		req.Header.Set(IdempotenceHeader, key)
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusCreated, send("k1", `{"title":"a"}`))
	assert.Equal(t, http.StatusConflict, send("k1", `{"title":"different"}`))
	assert.Equal(t, http.StatusCreated, send("k2", `{"title":"a"}`))
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, p := range []string{"/ok", "/missing", "/boom"} {
		serve(r, httptest.NewRequest(http.MethodGet, p, nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "/boom", entries[2].ContextMap()["path"])
}
