package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/stockcast/internal/middleware"
	"github.com/irfndi/stockcast/internal/utils"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var validationErr *utils.ValidationError
	switch {
	case errors.As(err, &validationErr), errors.Is(err, utils.ErrInsufficientData):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrNoBars):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrTrainingRejected), errors.Is(err, utils.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Internal errors are not echoed.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
		middleware.RecordError(c, err, "request failed")
		_ = c.Error(err)
	}
	c.JSON(status, ErrorResponse{Error: message, RequestID: middleware.GetRequestID(c)})
}

// badRequest reports a malformed request.
func badRequest(c *gin.Context, message string) {
	respondError(c, utils.NewValidationError(message))
}
