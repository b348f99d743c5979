// Package httpapi holds the JSON envelopes shared by the API packages.
package httpapi

import "github.com/gin-gonic/gin"

// Error is the standardized error response body.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Application-specific error codes.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeConfig        = "CONFIG_ERROR"
	CodeUpstream      = "UPSTREAM_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeInternalError = "INTERNAL_SERVER_ERROR"
)

// RespondWithError sends a standardized JSON error response.
func RespondWithError(c *gin.Context, httpStatus int, code, message string, details interface{}) {
	c.JSON(httpStatus, Error{Code: code, Message: message, Details: details})
}
