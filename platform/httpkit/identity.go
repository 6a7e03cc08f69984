// Package httpkit provides HTTP utilities including credential abstraction.
package httpkit

import (
	"context"
	"net/http"

	"leadfunnel_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Credential scopes.
const (
	ScopeAdmin = "admin"
	ScopeCron  = "cron"
)

const contextCredentialKey = "credential"

// Credential represents a verified shared-secret credential for one request.
// It is attached to the request by the auth middleware and never stored
// outside the request lifecycle.
type Credential interface {
	// Scope is the secret family that was verified (admin, cron).
	Scope() string
	// Actor is the name recorded in timeline metadata for actions taken with
	// this credential.
	Actor() string
	// IsAuthenticated returns true if a secret was verified.
	IsAuthenticated() bool
}

type credential struct {
	scope         string
	authenticated bool
}

func newCredential(scope string) *credential {
	return &credential{scope: scope, authenticated: true}
}

func (c *credential) Scope() string { return c.scope }

func (c *credential) Actor() string {
	if !c.authenticated {
		return "anonymous"
	}
	return c.scope
}

func (c *credential) IsAuthenticated() bool { return c.authenticated }

// SetCredential stores the credential on the gin context and the request context.
func SetCredential(c *gin.Context, cred Credential) {
	c.Set(contextCredentialKey, cred)
	ctx := context.WithValue(c.Request.Context(), logger.ActorKey, cred.Actor())
	c.Request = c.Request.WithContext(ctx)
}

// GetCredential extracts the Credential from a Gin context.
// Returns an unauthenticated credential if none is present.
func GetCredential(c *gin.Context) Credential {
	value, ok := c.Get(contextCredentialKey)
	if !ok {
		return &credential{}
	}
	cred, ok := value.(Credential)
	if !ok {
		return &credential{}
	}
	return cred
}

// MustGetCredential extracts the Credential from a Gin context.
// If none was verified, it aborts with 401 Unauthorized and returns nil.
func MustGetCredential(c *gin.Context) Credential {
	cred := GetCredential(c)
	if !cred.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: errUnauthorized})
		return nil
	}
	return cred
}
