package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/profile-launchpad/internal/services"
	"go.uber.org/zap"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Details []services.FieldError `json:"details,omitempty"`
}

var statusByKind = map[services.ErrorKind]int{
	services.KindUnauthorized:       fiber.StatusUnauthorized,
	services.KindValidation:         fiber.StatusBadRequest,
	services.KindRateLimited:        fiber.StatusTooManyRequests,
	services.KindNoLinkedProfile:    fiber.StatusBadRequest,
	services.KindClaimRejected:      fiber.StatusNotFound,
	services.KindDeploymentFailed:   fiber.StatusInternalServerError,
	services.KindClaimOnChainFailed: fiber.StatusBadGateway,
	services.KindAdapterUnavailable: fiber.StatusServiceUnavailable,
	services.KindNotFound:           fiber.StatusNotFound,
}

// StatusForKind maps an error kind to its HTTP status; unknown kinds are 500.
func StatusForKind(kind services.ErrorKind) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

func newErrorResponse(err error) ErrorResponse {
	serviceErr, ok := asServiceError(err)
	if !ok {
		return ErrorResponse{Error: "internal_error", Message: "internal server error"}
	}
	return ErrorResponse{
		Error:   string(serviceErr.Kind),
		Message: serviceErr.Message,
		Details: serviceErr.Details,
	}
}

// writeError renders err with the status of its kind. Errors without a kind
// are logged and reported as internal errors.
func (s *APIServer) writeError(c *fiber.Ctx, err error) error {
	kind := services.KindOf(err)
	status := StatusForKind(kind)
	if kind == "" || status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.Status(status).JSON(newErrorResponse(err))
}

func asServiceError(err error) (*services.Error, bool) {
	var serviceErr *services.Error
	if !errors.As(err, &serviceErr) {
		return nil, false
	}
	return serviceErr, true
}
