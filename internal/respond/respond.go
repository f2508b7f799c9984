// Package respond renders API errors in the shape the web client expects.
package respond

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const genericServerError = "Server error"

// ErrorHandler renders errors as {"error": message}. Handler-chosen messages
// from *fiber.Error are passed through; anything else becomes a generic 500
// so internal details never reach the client.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	message := genericServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		message = fiberErr.Message
	}

	return c.Status(status).JSON(fiber.Map{"error": message})
}
