package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	// TelegramIDHeader carries the caller id in header mode.
	TelegramIDHeader = "X-Telegram-Id"
	// CallerIDLocal is the Locals key holding the authenticated administrator id.
	CallerIDLocal = "caller_id"

	forbiddenMessage = "Forbidden"
)

// AdminMode selects how administrative callers are identified.
type AdminMode string

const (
	// AdminModeHeader trusts the X-Telegram-Id header.
	AdminModeHeader AdminMode = "header"
	// AdminModeToken requires a bearer session token issued by the verify endpoint.
	AdminModeToken AdminMode = "token"
)

// Administrators answers the privileged-set membership question.
type Administrators interface {
	IsAdministrator(userID string) bool
}

// SessionParser validates session tokens and returns their subject.
type SessionParser interface {
	Parse(token string) (string, error)
}

// RequireAdministrator admits only callers from the privileged set. In header
// mode the caller id is taken from X-Telegram-Id as presented; in token mode
// it comes from a verified bearer token.
func RequireAdministrator(mode AdminMode, admins Administrators, sessions SessionParser, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var callerID string
		switch mode {
		case AdminModeToken:
			authz := c.Get(fiber.HeaderAuthorization)
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") || sessions == nil {
				return fiber.NewError(http.StatusForbidden, forbiddenMessage)
			}
			sub, err := sessions.Parse(strings.TrimSpace(authz[len("Bearer "):]))
			if err != nil {
				logger.Warn("admin session rejected", slog.String("path", c.Path()), slog.Any("error", err))
				return fiber.NewError(http.StatusForbidden, forbiddenMessage)
			}
			callerID = sub
		default:
			callerID = strings.TrimSpace(c.Get(TelegramIDHeader))
		}

		if !admins.IsAdministrator(callerID) {
			logger.Warn("admin access forbidden", slog.String("path", c.Path()), slog.String("caller_id", callerID))
			return fiber.NewError(http.StatusForbidden, forbiddenMessage)
		}

		c.Locals(CallerIDLocal, callerID)
		return c.Next()
	}
}
