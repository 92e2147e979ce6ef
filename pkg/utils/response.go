package utils

import (
	"errors"
	"net/http"
	"strings"

	"moviehub-backend/internal/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorBody is the JSON shape of every error the API returns
type ErrorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message,omitempty"`
	StatusCode *int   `json:"statusCode,omitempty"`
	ResetIn    *int   `json:"resetIn,omitempty"`
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, label, message string) {
	c.JSON(statusCode, ErrorBody{
		Error:   label,
		Message: message,
	})
}

// AbortWithError sends an error response and stops the handler chain
func AbortWithError(c *gin.Context, statusCode int, label, message string) {
	c.AbortWithStatusJSON(statusCode, ErrorBody{
		Error:   label,
		Message: message,
	})
}

// UpstreamErrorResponse relays a non-success upstream answer with its status
func UpstreamErrorResponse(c *gin.Context, failure *apperrors.UpstreamError) {
	c.JSON(failure.Status, ErrorBody{
		Error:      "Upstream API error",
		Message:    failure.Message,
		StatusCode: failure.Code,
	})
}

// NetworkErrorResponse hides transport detail from the client
func NetworkErrorResponse(c *gin.Context) {
	ErrorResponse(c, http.StatusInternalServerError, "Network error", "Failed to connect to TMDB API")
}

// ConfigurationErrorResponse reports a missing server credential and stops the
// handler chain
func ConfigurationErrorResponse(c *gin.Context) {
	AbortWithError(c, http.StatusInternalServerError, "Server configuration error", "TMDB API key is not configured")
}

// RateLimitResponse sends the 429 body; resetIn is in whole seconds
func RateLimitResponse(c *gin.Context, resetIn int) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorBody{
		Error:   "Rate limit exceeded",
		Message: "Too many requests. Please try again later.",
		ResetIn: &resetIn,
	})
}

// ValidationErrorResponse sends a validation error response
func ValidationErrorResponse(c *gin.Context, err error) {
	var messages []string

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			messages = append(messages, getValidationErrorMessage(fieldError))
		}
	} else {
		messages = append(messages, err.Error())
	}

	ErrorResponse(c, http.StatusBadRequest, "Invalid request", strings.Join(messages, "; "))
}

// getValidationErrorMessage returns a user-friendly validation error message
func getValidationErrorMessage(fieldError validator.FieldError) string {
	field := fieldError.Field()
	tag := fieldError.Tag()

	switch tag {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fieldError.Param()
	case "max":
		return field + " must be at most " + fieldError.Param()
	case "gte":
		return field + " must be greater than or equal to " + fieldError.Param()
	case "lte":
		return field + " must be less than or equal to " + fieldError.Param()
	case "oneof":
		return field + " must be one of: " + fieldError.Param()
	default:
		return field + " is invalid"
	}
}
