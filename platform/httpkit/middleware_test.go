package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"leadfunnel_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": GetCredential(c).Actor()})
	})
	return r
}

func serve(r *gin.Engine, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPIKeyRequired(t *testing.T) {
	r := newTestEngine(APIKeyRequired("admin-key", logger.Discard()))

	assert.Equal(t, http.StatusUnauthorized, serve(r, "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, HeaderAPIKey, "wrong").Code)

	w := serve(r, HeaderAPIKey, "admin-key")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"actor":"admin"`)
}

func TestEmptySecretRejectsEverything(t *testing.T) {
	r := newTestEngine(BearerSecretRequired(ScopeCron, "", logger.Discard()))

	assert.Equal(t, http.StatusUnauthorized, serve(r, "Authorization", "Bearer ").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Authorization", "Bearer anything").Code)
}

func TestBearerSecretRequired(t *testing.T) {
	r := newTestEngine(BearerSecretRequired(ScopeCron, "s3cret", logger.Discard()))

	assert.Equal(t, http.StatusUnauthorized, serve(r, "Authorization", "s3cret").Code)
	w := serve(r, "Authorization", "Bearer s3cret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"actor":"cron"`)
}

func TestRequestIDPropagatesOrGenerates(t *testing.T) {
	r := newTestEngine(RequestID())

	w := serve(r, HeaderRequestID, "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get(HeaderRequestID))

	w = serve(r, "", "")
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}

func TestRateLimitPerIP(t *testing.T) {
	limiter := NewPerMinuteLimiter(2, logger.Discard())
	r := newTestEngine(limiter.RateLimit())

	assert.Equal(t, http.StatusOK, serve(r, "", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, "", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, "", "").Code)
}

func TestSecurityHeaders(t *testing.T) {
	w := serve(newTestEngine(SecurityHeaders()), "", "")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestSecretMatches(t *testing.T) {
	assert.True(t, SecretMatches("a", "a"))
	assert.False(t, SecretMatches("a", "b"))
	assert.False(t, SecretMatches("", ""))
}
