package access

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jewelcalc/jewelgate/internal/initdata"
	"github.com/jewelcalc/jewelgate/internal/users"
)

// TokenIssuer mints administrator session tokens.
type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// Handler exposes the verification endpoint.
type Handler struct {
	resolver *Resolver
	tokens   TokenIssuer
	logger   *slog.Logger
}

// NewHandler constructs the verification handler. tokens may be nil, in which
// case no session token is returned.
func NewHandler(resolver *Resolver, tokens TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{resolver: resolver, tokens: tokens, logger: logger}
}

type verifyRequest struct {
	InitData string `json:"initData"`
}

type verifyResponse struct {
	Allowed    bool    `json:"allowed"`
	Role       *string `json:"role"`
	TelegramID *string `json:"telegramId"`
	Token      string  `json:"token,omitempty"`
	ExpiresAt  int64   `json:"expiresAt,omitempty"`
}

// Verify checks init data and reports the caller's access.
func (h *Handler) Verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.InitData == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"allowed": false, "error": "No initData"})
	}

	decision := h.resolver.Authorize(c.UserContext(), req.InitData)
	h.log(c, decision)

	switch {
	case VerificationFailure(decision.Reason):
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"allowed": false, "error": "Invalid signature"})
	case errors.Is(decision.Reason, initdata.ErrNoIdentity):
		return c.Status(http.StatusOK).JSON(fiber.Map{"allowed": false})
	}

	resp := verifyResponse{Allowed: decision.Allowed, TelegramID: optional(decision.UserID)}
	if decision.Allowed {
		resp.Role = optional(decision.Role)
	}

	if decision.Allowed && h.tokens != nil && h.resolver.IsAdministrator(decision.UserID) {
		token, exp, err := h.tokens.Issue(decision.UserID)
		if err != nil {
			h.logger.Error("issue session token", slog.String("telegram_id", decision.UserID), slog.Any("error", err))
			return fiber.NewError(http.StatusInternalServerError, "Server error")
		}
		resp.Token = token
		resp.ExpiresAt = exp.Unix()
	}

	return c.Status(http.StatusOK).JSON(resp)
}

func (h *Handler) log(c *fiber.Ctx, d Decision) {
	requestID, _ := c.Locals("X-Request-ID").(string)
	attrs := []any{
		slog.Bool("allowed", d.Allowed),
		slog.String("telegram_id", d.UserID),
		slog.String("role", d.Role),
		slog.String("request_id", requestID),
	}
	switch {
	case d.Reason == nil:
		h.logger.Info("access granted", attrs...)
	case errors.Is(d.Reason, ErrStoreUnavailable):
		h.logger.Error("access denied", append(attrs, slog.String("reason", reasonCode(d.Reason)), slog.Any("error", d.Reason))...)
	default:
		h.logger.Warn("access denied", append(attrs, slog.String("reason", reasonCode(d.Reason)))...)
	}
}

// reasonCode names the failure kind for log aggregation.
func reasonCode(err error) string {
	switch {
	case errors.Is(err, initdata.ErrMissingSignature):
		return "missing_signature"
	case errors.Is(err, initdata.ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, initdata.ErrMalformedUserField):
		return "malformed_user_field"
	case errors.Is(err, initdata.ErrExpired):
		return "expired"
	case errors.Is(err, initdata.ErrNoIdentity):
		return "no_identity"
	case errors.Is(err, ErrNotAllowed):
		return "not_allowed"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, users.ErrNotFound):
		return "not_found"
	default:
		return "unknown"
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
