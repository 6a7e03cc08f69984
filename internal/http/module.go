// Package http provides HTTP server infrastructure including the Module interface
// that all domain modules must implement for route registration.
package http

import (
	"leadfunnel_backend/platform/httpkit"
	"leadfunnel_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each domain module implements this interface to encapsulate its own
// route setup, keeping the main router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router group.
	// The RouterContext provides access to shared middleware and configuration.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
// This avoids passing many parameters to each module's RegisterRoutes method.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// V1 is the public /api/v1 route group.
	V1 *gin.RouterGroup
	// Admin is the /api/v1/admin group guarded by the x-api-key shared secret.
	Admin *gin.RouterGroup
	// Cron is the /api/v1/cron group guarded by the bearer cron secret.
	Cron *gin.RouterGroup
	// SubmissionLimiter throttles public form posts per client IP.
	SubmissionLimiter *httpkit.IPRateLimiter
	// Logger is the structured logger.
	Logger *logger.Logger
}
