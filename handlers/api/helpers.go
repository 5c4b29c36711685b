package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"threadmail/utils"
)

// statusFromError maps application error kinds onto HTTP status codes.
// Invariant failures and save conflicts both come back as 409: the request
// was well-formed but clashed with current state.
func statusFromError(err error) int {
	var appErr *utils.AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}

	switch appErr.Kind {
	case utils.KindValidation:
		return fiber.StatusBadRequest
	case utils.KindNotFound:
		return fiber.StatusNotFound
	case utils.KindInvariant, utils.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// fail renders an error response in the shape every API endpoint uses.
func fail(c *fiber.Ctx, err error) error {
	status := statusFromError(err)
	if status >= fiber.StatusInternalServerError {
		utils.Log.Error("api error: %v", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
