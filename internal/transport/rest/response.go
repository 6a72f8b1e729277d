package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	errx "github.com/Chative-lead-agent/server/internal/core/error"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

func writeError(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// handleError maps domain errors to HTTP responses. Returns true if err was handled.
func handleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, errx.ErrNotFound), errors.Is(err, errx.ErrMissingLead), errors.Is(err, errx.ErrMissingState):
		writeError(c, http.StatusNotFound, "conversation not found", nil)
	case errors.Is(err, errx.ErrInvalidPhase):
		writeError(c, http.StatusBadRequest, "invalid phase", err.Error())
	case errors.Is(err, errx.ErrBackwardTransition):
		writeError(c, http.StatusConflict, "phase can only move forward", err.Error())
	case errors.Is(err, errx.ErrLockNotAcquired):
		writeError(c, http.StatusConflict, "conversation busy, retry later", nil)
	default:
		status := errx.StatusOf(err, http.StatusInternalServerError)
		msg := errx.SystemErrorMessage
		var appErr *errx.AppError
		if errors.As(err, &appErr) && status < http.StatusInternalServerError {
			msg = appErr.Message
		}
		_ = c.Error(err)
		writeError(c, status, msg, nil)
	}
	return true
}
