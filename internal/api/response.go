package api

import "github.com/gofiber/fiber/v2"

// Standard error codes used by RespondError's callers.
const (
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// RespondSuccess sends a 200 response wrapping data.
func RespondSuccess(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

// RespondCreated sends a 201 response wrapping data.
func RespondCreated(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": data})
}

// RespondMessage sends a 200 response with a message only.
func RespondMessage(c *fiber.Ctx, message string) error {
	return c.JSON(fiber.Map{"success": true, "message": message})
}

// RespondNoContent sends a 204 response.
func RespondNoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// RespondError sends a structured error response with the given status.
func RespondError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   fiber.Map{"code": code, "message": message},
	})
}

func RespondBadRequest(c *fiber.Ctx, message string) error {
	return RespondError(c, fiber.StatusBadRequest, ErrCodeBadRequest, message)
}

func RespondNotFound(c *fiber.Ctx, resource string) error {
	return RespondError(c, fiber.StatusNotFound, ErrCodeNotFound, resource+" not found")
}

func RespondConflict(c *fiber.Ctx, message string) error {
	return RespondError(c, fiber.StatusConflict, ErrCodeConflict, message)
}

func RespondInternalError(c *fiber.Ctx, message string) error {
	return RespondError(c, fiber.StatusInternalServerError, ErrCodeInternalServer, message)
}
