package handler

import (
	"errors"
	"log/slog"

	"agency-crm-api/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func success(c *fiber.Ctx, status int, msg string, data interface{}) error {
	return c.Status(status).JSON(Response{Success: true, Message: msg, Data: data})
}

func failure(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(Response{Success: false, Message: msg})
}

var statusByKind = map[service.Kind]int{
	service.KindValidation:      fiber.StatusBadRequest,
	service.KindUnauthenticated: fiber.StatusUnauthorized,
	service.KindForbidden:       fiber.StatusForbidden,
	service.KindNotFound:        fiber.StatusNotFound,
	service.KindInternal:        fiber.StatusInternalServerError,
}

// serviceError maps a service failure onto the envelope and status.
func serviceError(c *fiber.Ctx, err error) error {
	var insufficient *service.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		return c.Status(fiber.StatusBadRequest).JSON(Response{
			Success: false,
			Message: insufficient.Error(),
			Data:    insufficient,
		})
	}

	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		if svcErr.Kind == service.KindInternal {
			slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		}
		return failure(c, statusByKind[svcErr.Kind], svcErr.Message)
	}

	slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return failure(c, fiber.StatusInternalServerError, "Internal server error")
}

// ErrorHandler shapes errors that escape handlers, including recovered panics.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return failure(c, fiberErr.Code, fiberErr.Message)
		}
		logger.Error("unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
		return failure(c, fiber.StatusInternalServerError, "Internal server error")
	}
}
