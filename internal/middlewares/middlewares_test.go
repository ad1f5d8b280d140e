package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/3Eeeecho/go-fluxshare/internal/config"
	"github.com/3Eeeecho/go-fluxshare/internal/models"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/utils"
	"github.com/3Eeeecho/go-fluxshare/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeParser struct {
	claims map[string]*utils.Claims
}

func (p *fakeParser) ParseAccessToken(token string) (*utils.Claims, error) {
	if claims, ok := p.claims[token]; ok {
		return claims, nil
	}
	return nil, xerr.ErrTokenInvalid
}

type fakeUsers map[uint64]*models.User

func (u fakeUsers) FindByID(ctx context.Context, id uint64) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, xerr.ErrUserNotFound
}

func newAuthEngine() *gin.Engine {
	parser := &fakeParser{claims: map[string]*utils.Claims{
		"alice-token":  {UserID: 1},
		"banned-token": {UserID: 2},
		"ghost-token":  {UserID: 99},
		"admin-token":  {UserID: 3},
	}}
	users := fakeUsers{
		1: {ID: 1, Role: models.RoleUser},
		2: {ID: 2, Role: models.RoleUser, Banned: true},
		3: {ID: 3, Role: models.RoleAdmin},
	}

	r := gin.New()
	api := r.Group("/api", AuthMiddleware(parser, users), CSRFMiddleware())
	api.GET("/me", func(c *gin.Context) {
		id, _ := utils.GetUserIDFromContext(c)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})
	api.POST("/files", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	api.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newAuthEngine()

	cases := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{"missing token", "", "", http.StatusUnauthorized},
		{"bearer header", "Bearer alice-token", "", http.StatusOK},
		{"access cookie", "", "alice-token", http.StatusOK},
		{"malformed header", "Token alice-token", "", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", "", http.StatusUnauthorized},
		{"banned user", "Bearer banned-token", "", http.StatusForbidden},
		{"deleted user", "Bearer ghost-token", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: utils.AccessTokenCookie, Value: tc.cookie})
			}
			w := serve(r, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := newAuthEngine()

	req := httptest.NewRequest(http.MethodGet, "/api/admin", nil)
	req.Header.Set("Authorization", "Bearer alice-token")
	assert.Equal(t, http.StatusForbidden, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	assert.Equal(t, http.StatusNoContent, serve(r, req).Code)
}

func TestRequireRole_WithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCSRFMiddleware(t *testing.T) {
	r := newAuthEngine()

	t.Run("bearer requests skip csrf", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/files", nil)
		req.Header.Set("Authorization", "Bearer alice-token")
		assert.Equal(t, http.StatusNoContent, serve(r, req).Code)
	})

	t.Run("cookie request without header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/files", nil)
		req.AddCookie(&http.Cookie{Name: utils.AccessTokenCookie, Value: "alice-token"})
		req.AddCookie(&http.Cookie{Name: utils.CSRFCookie, Value: "csrf-1"})
		assert.Equal(t, http.StatusForbidden, serve(r, req).Code)
	})

	t.Run("cookie request with mismatched header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/files", nil)
		req.AddCookie(&http.Cookie{Name: utils.AccessTokenCookie, Value: "alice-token"})
		req.AddCookie(&http.Cookie{Name: utils.CSRFCookie, Value: "csrf-1"})
		req.Header.Set(utils.CSRFHeader, "csrf-2")
		assert.Equal(t, http.StatusForbidden, serve(r, req).Code)
	})

	t.Run("cookie request with matching header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/files", nil)
		req.AddCookie(&http.Cookie{Name: utils.AccessTokenCookie, Value: "alice-token"})
		req.AddCookie(&http.Cookie{Name: utils.CSRFCookie, Value: "csrf-1"})
		req.Header.Set(utils.CSRFHeader, "csrf-1")
		assert.Equal(t, http.StatusNoContent, serve(r, req).Code)
	})

	t.Run("safe methods are not checked", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: utils.AccessTokenCookie, Value: "alice-token"})
		assert.Equal(t, http.StatusOK, serve(r, req).Code)
	})
}

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newIPRateLimiter(1, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.1"))
	assert.False(t, l.allow("10.0.0.1"))
	// 不同 IP 互不影响
	assert.True(t, l.allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, l.allow("10.0.0.1"))

	// 空闲超过 TTL 的条目被清理
	now = now.Add(limiterIdleTTL + 2*limiterSweepInterval)
	l.allow("10.0.0.3")
	l.mu.Lock()
	_, kept := l.clients["10.0.0.2"]
	l.mu.Unlock()
	assert.False(t, kept)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(&config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(&config.RateLimitConfig{}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(contextRequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := serve(r, req)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}
