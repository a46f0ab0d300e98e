package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"standmap-service/internal/domain"
	"standmap-service/internal/services/mapstate"
)

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// writeOpError maps a session operation error to a response. Precondition
// failures carry the user-facing message.
func writeOpError(c *gin.Context, log *zap.Logger, err error) {
	var pe *domain.PreconditionError
	switch {
	case errors.As(err, &pe):
		c.JSON(http.StatusConflict, gin.H{
			"error":  pe.Message,
			"reason": pe.Cause.Error(),
		})
	case errors.Is(err, mapstate.ErrLoopClosed):
		writeError(c, http.StatusNotFound, "session not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusServiceUnavailable, "request cancelled")
	default:
		log.Error("session operation failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		writeError(c, http.StatusInternalServerError, "internal server error")
	}
}
