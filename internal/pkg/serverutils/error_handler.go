package serverutils

import (
	"errors"
	"fmt"
	"runtime/debug"

	"chatedge-be/internal/constant"
	"chatedge-be/internal/dto"
	"chatedge-be/internal/pkg/apperror"
	"chatedge-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

// StatusOf maps an error to an HTTP status and a client-facing message.
func StatusOf(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrUnauthorized):
		status = fiber.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, apperror.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, apperror.ErrValidation):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrTooManyRequests):
		status = fiber.StatusTooManyRequests
	case errors.Is(err, apperror.ErrUpstream):
		status = fiber.StatusBadGateway
	case errors.Is(err, apperror.ErrNotFound):
		status = fiber.StatusNotFound
	}

	if status == fiber.StatusInternalServerError {
		return status, constant.MsgSomethingWentWrong
	}
	return status, apperror.MessageOf(err, constant.MsgSomethingWentWrong)
}

// ErrorHandler is installed as the Fiber app's ErrorHandler.
func ErrorHandler(log logger.ILogger) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		var vf *ValidationFailed
		if errors.As(err, &vf) {
			return ctx.Status(fiber.StatusUnprocessableEntity).JSON(dto.ValidationErrorResponse{Errors: vf.Errors})
		}

		status, message := StatusOf(err)
		details := map[string]interface{}{
			"method": ctx.Method(),
			"path":   ctx.Path(),
			"status": status,
			"error":  err,
		}
		if status >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Request failed", details)
		} else {
			log.Debug("HTTP", "Request rejected", details)
		}

		return ctx.Status(status).JSON(dto.MessageResponse{Message: message})
	}
}

// ErrorHandlerMiddleware turns panics in downstream handlers into 500s.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("HTTP", "Panic recovered", map[string]interface{}{
					"path":  ctx.Path(),
					"panic": fmt.Sprint(r),
					"stack": string(debug.Stack()),
				})
				err = fiber.NewError(fiber.StatusInternalServerError, constant.MsgSomethingWentWrong)
			}
		}()
		return ctx.Next()
	}
}
