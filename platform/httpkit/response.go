// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"errors"
	"net/http"

	"leadfunnel_backend/platform/apperr"
	"leadfunnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	// MsgInvalidRequest is returned when a body or parameter cannot be decoded.
	MsgInvalidRequest = "invalid request"
	// MsgValidationFailed is returned alongside field-level validation details.
	MsgValidationFailed = "validation failed"
	// MsgInternal is the generic message for unexpected failures.
	MsgInternal = "internal server error"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// ValidationError sends a 400 with one entry per failing field.
func ValidationError(c *gin.Context, err error) {
	Error(c, http.StatusBadRequest, MsgValidationFailed, validator.FieldErrors(err))
}

// HandleError maps domain errors to HTTP responses.
// If the error is a typed *apperr.Error, it uses the error's Kind to determine
// the HTTP status code. Untyped errors are treated as internal failures.
// Returns true if an error was handled, false otherwise.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		c.JSON(domainErr.HTTPStatus(), ErrorResponse{
			Error:   domainErr.Message,
			Details: domainErr.Details,
		})
		return true
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: MsgInternal})
	return true
}
