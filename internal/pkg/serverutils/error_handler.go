package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"soul-journal-be/internal/apperr"
	"soul-journal-be/internal/pkg/logger"
)

// NewErrorHandler maps application errors onto HTTP envelopes. Upstream
// provider details stay in the logs; the client gets a generic message.
func NewErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			switch appErr.Kind {
			case apperr.KindValidation:
				return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(appErr.Message))
			case apperr.KindConfiguration:
				log.Error("http", "configuration error", map[string]interface{}{"error": err.Error()})
				return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse("service misconfigured"))
			case apperr.KindUpstreamProvider:
				log.Error("http", "upstream provider error", map[string]interface{}{"error": err.Error()})
				return ctx.Status(fiber.StatusBadGateway).JSON(ErrorResponse("an upstream service is unavailable, please try again"))
			case apperr.KindPartialResult:
				return ctx.Status(fiber.StatusOK).JSON(ErrorResponse(appErr.Message))
			}
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		log.Error("http", "unhandled error", map[string]interface{}{"error": err.Error()})
		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse("something went wrong"))
	}
}
