package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jewelcalc/jewelgate/internal/access"
)

// RegisterAuthRoutes wires the init data verification endpoint.
func RegisterAuthRoutes(r fiber.Router, h *access.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/verify", rateLimiter, h.Verify)
	} else {
		group.Post("/verify", h.Verify)
	}
}
