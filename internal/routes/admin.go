package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jewelcalc/jewelgate/internal/users"
)

// RegisterAdminRoutes wires the allow-list management endpoints behind guard.
func RegisterAdminRoutes(r fiber.Router, h *users.Handler, guard, idempotency fiber.Handler) {
	group := r.Group("/admin", guard)
	group.Get("/users", h.List)
	group.Post("/users", h.Add)
	group.Delete("/users", h.Remove)
	if idempotency != nil {
		group.Post("/invite", idempotency, h.Invite)
	} else {
		group.Post("/invite", h.Invite)
	}
}
