package shared

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskvault/internal/apperr"
	"taskvault/internal/validation"
)

type ResponseError struct {
	Code    string                  `json:"code"`
	Errors  []validation.FieldError `json:"errors"`
	Details any                     `json:"details,omitempty"`
}

type SuccessResponse struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error ResponseError `json:"error"`
}

func SendSuccess(c *gin.Context, statusCode int, data any, message ...string) {
	response := SuccessResponse{
		Data: data,
	}

	if len(message) > 0 && message[0] != "" {
		response.Message = message[0]
	}

	c.JSON(statusCode, response)
}

func SendError(c *gin.Context, statusCode int, code string, errs []validation.FieldError, details ...any) {
	errorResponse := ErrorResponse{
		Error: ResponseError{
			Code:   code,
			Errors: errs,
		},
	}

	if len(details) > 0 {
		errorResponse.Error.Details = details[0]
	}

	c.JSON(statusCode, errorResponse)
}

func SendValidationError(c *gin.Context, err error) {
	SendError(c, http.StatusBadRequest, "VALIDATION_ERROR", validation.Format(err))
}

func SendBadRequestError(c *gin.Context, field string, message string) {
	errs := []validation.FieldError{
		{
			Field:   field,
			Message: message,
		},
	}

	SendError(c, http.StatusBadRequest, "BAD_REQUEST", errs)
}

// SendAppError maps a domain error onto the matching HTTP status. Quota
// exhaustion surfaces as 507 Insufficient Storage.
func SendAppError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		messages := errorMessages(err)
		SendError(c, http.StatusBadRequest, "VALIDATION_ERROR", messages)
	case errors.Is(err, apperr.ErrNotFound):
		SendError(c, http.StatusNotFound, "NOT_FOUND", errorMessages(err))
	case errors.Is(err, apperr.ErrConflict):
		SendError(c, http.StatusConflict, "CONFLICT", errorMessages(err))
	case errors.Is(err, apperr.ErrQuota):
		SendError(c, http.StatusInsufficientStorage, "QUOTA_EXCEEDED", errorMessages(err))
	default:
		SendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", errorMessages(err))
	}
}

func errorMessages(err error) []validation.FieldError {
	var validationErr *apperr.ValidationError
	if errors.As(err, &validationErr) {
		errs := make([]validation.FieldError, 0, len(validationErr.Violations))
		for _, violation := range validationErr.Violations {
			errs = append(errs, validation.FieldError{Field: "request", Message: violation})
		}
		return errs
	}

	return []validation.FieldError{{Field: "request", Message: err.Error()}}
}
