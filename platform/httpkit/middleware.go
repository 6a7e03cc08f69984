// Package httpkit provides HTTP middleware infrastructure.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"
	"time"

	"leadfunnel_backend/platform/logger"
	"leadfunnel_backend/platform/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// HeaderRequestID carries the request correlation id.
	HeaderRequestID = "X-Request-ID"
	// HeaderAPIKey carries the admin shared secret.
	HeaderAPIKey = "x-api-key"

	errUnauthorized = "Unauthorized"
)

// RequestID assigns a correlation id to each request and stores it in the
// request context for logger.WithContext.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequestLogger logs HTTP requests with timing.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		clientIP := c.ClientIP()

		reqLog := log.WithContext(c.Request.Context())
		if len(c.Errors) > 0 {
			reqLog.HTTPError(c.Request.Method, path, status, c.Errors.Last(), clientIP)
			return
		}
		reqLog.HTTPRequest(c.Request.Method, path, status, float64(latency.Milliseconds()), clientIP)
	}
}

// Metrics records request counts and latency. The route template is used as
// the path label so ids do not explode cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

// SecurityHeaders adds security headers to responses.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		// Only add HSTS in production
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// IPRateLimiter manages per-IP rate limiters.
type IPRateLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
	log      *logger.Logger
}

// NewIPRateLimiter creates a new IP-based rate limiter.
func NewIPRateLimiter(r rate.Limit, burst int, log *logger.Logger) *IPRateLimiter {
	return &IPRateLimiter{
		rate:  r,
		burst: burst,
		log:   log,
	}
}

// NewPerMinuteLimiter allows perMinute requests per IP per minute with an
// equal burst, mirroring a fixed window for low-volume form posts.
func NewPerMinuteLimiter(perMinute int, log *logger.Logger) *IPRateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return NewIPRateLimiter(rate.Limit(float64(perMinute)/60.0), perMinute, log)
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	limiter, _ := i.limiters.LoadOrStore(ip, rate.NewLimiter(i.rate, i.burst))
	return limiter.(*rate.Limiter)
}

// RateLimit returns a middleware that rate limits by IP.
func (i *IPRateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		limiter := i.getLimiter(ip)

		if !limiter.Allow() {
			if i.log != nil {
				i.log.RateLimitExceeded(ip, c.Request.URL.Path)
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// APIKeyRequired guards admin routes with the shared secret sent in the
// x-api-key header. An empty configured secret rejects every request.
func APIKeyRequired(secret string, log *logger.Logger) gin.HandlerFunc {
	return sharedSecret(ScopeAdmin, secret, log, func(c *gin.Context) (string, bool) {
		value := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
		return value, value != ""
	})
}

// BearerSecretRequired guards machine-invoked routes (cron) with
// "Authorization: Bearer <secret>". An empty configured secret rejects every request.
func BearerSecretRequired(scope, secret string, log *logger.Logger) gin.HandlerFunc {
	return sharedSecret(scope, secret, log, func(c *gin.Context) (string, bool) {
		return extractBearerToken(c.GetHeader("Authorization"))
	})
}

func sharedSecret(scope, secret string, log *logger.Logger, extract func(*gin.Context) (string, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented, ok := extract(c)
		if !ok {
			rejectCredential(c, log, scope, "missing credential")
			return
		}
		if !SecretMatches(secret, presented) {
			rejectCredential(c, log, scope, "credential mismatch")
			return
		}

		SetCredential(c, newCredential(scope))
		if log != nil {
			log.AuthEvent(scope, c.Request.URL.Path, true, "")
		}
		c.Next()
	}
}

// SecretMatches compares in constant time and never matches an empty secret.
func SecretMatches(expected, presented string) bool {
	if expected == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(presented)) == 1
}

func rejectCredential(c *gin.Context, log *logger.Logger, scope, reason string) {
	if log != nil {
		log.AuthEvent(scope, c.Request.URL.Path, false, reason)
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: errUnauthorized})
}

func extractBearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	rawToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if rawToken == "" {
		return "", false
	}

	return rawToken, true
}
