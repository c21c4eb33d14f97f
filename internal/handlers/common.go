package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/studypulse/arena-service/internal/errors"
	"github.com/studypulse/arena-service/internal/services"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ===== BASE HANDLER =====

// BaseHandler carries the logger and the shared service-error mapping.
type BaseHandler struct {
	logger *slog.Logger
}

func NewBaseHandler(logger *slog.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// userID pulls the authenticated user from the request context; responds 401
// and returns false when the auth middleware did not run or rejected the
// request.
func (h *BaseHandler) userID(c *gin.Context) (string, bool) {
	id, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return id.(string), true
}

// handleServiceError maps service-layer errors onto HTTP statuses. Typed
// errors first, then the sentinel families, then a logged 500.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var validationError *services.ValidationError
	if errors.As(err, &validationError) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationError,
		})
		return
	}

	var conflictError *services.ConflictError
	if errors.As(err, &conflictError) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: conflictError.Reason,
			Details: map[string]interface{}{
				"resource": conflictError.Resource,
				"id":       conflictError.ID,
			},
		})
		return
	}

	// Collaborator failures: rate limiting and quota exhaustion are distinct,
	// actionable conditions; everything else from the gateway is a bad
	// upstream.
	if services.IsRateLimited(err) {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Message: "AI generation is rate limited, try again shortly",
			Code:    "ai_rate_limited",
		})
		return
	}
	if services.IsQuotaExhausted(err) {
		c.JSON(http.StatusPaymentRequired, ErrorResponse{
			Message: "AI generation quota exhausted",
			Code:    "ai_quota_exhausted",
		})
		return
	}
	if apperrors.IsCollaboratorError(err) {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Message: "Upstream AI service failed",
			Code:    "ai_unavailable",
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrDuelNotFound),
		errors.Is(err, services.ErrRoundNotFound),
		errors.Is(err, services.ErrParticipantNotFound),
		errors.Is(err, services.ErrExamNotGenerated),
		errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrNotHost),
		errors.Is(err, services.ErrNotDuelParticipant),
		errors.Is(err, services.ErrSpectatorOnly),
		errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrSessionNotJoinable),
		errors.Is(err, services.ErrSessionFull),
		errors.Is(err, services.ErrSessionNotActive),
		errors.Is(err, services.ErrSessionNotStartable),
		errors.Is(err, services.ErrAlreadyAnswered),
		errors.Is(err, services.ErrNoSuchQuestion),
		errors.Is(err, services.ErrDuelNotJoinable),
		errors.Is(err, services.ErrDuelAlreadyTaken),
		errors.Is(err, services.ErrDuelSelfAccept),
		errors.Is(err, services.ErrDuelNotActive),
		errors.Is(err, services.ErrSeatAlreadyAnswered),
		errors.Is(err, services.ErrExamNotInProgress),
		errors.Is(err, services.ErrExamNotCompleted),
		errors.Is(err, services.ErrExamAlreadyStarted),
		errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrUnknownExamType):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})

	default:
		h.logger.Error("Unhandled service error",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}

// HealthCheck responds to liveness probes.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
