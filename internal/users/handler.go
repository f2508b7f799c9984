package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jewelcalc/jewelgate/internal/notification"
)

// Handler exposes the administrative allow-list endpoints. Routes using it
// must sit behind the administrator middleware, which stores the caller id in
// Locals under callerKey.
type Handler struct {
	service   *Service
	callerKey string
}

// NewHandler constructs an admin handler.
func NewHandler(service *Service, callerKey string) *Handler {
	return &Handler{service: service, callerKey: callerKey}
}

// telegramID accepts either a JSON string or number.
type telegramID string

func (id *telegramID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = telegramID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("telegram_id must be a string or number")
	}
	if i, err := n.Int64(); err == nil {
		*id = telegramID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = telegramID(n.String())
	return nil
}

type addRequest struct {
	TelegramID telegramID `json:"telegram_id"`
	Phone      *string    `json:"phone"`
	Username   *string    `json:"username"`
	Role       string     `json:"role"`
}

type inviteRequest struct {
	TelegramID telegramID `json:"telegram_id"`
}

// List returns every allow-listed user, newest grant first.
func (h *Handler) List(c *fiber.Ctx) error {
	records, err := h.service.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(records)
}

// Add upserts a user.
func (h *Handler) Add(c *fiber.Ctx) error {
	var req addRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	callerID, _ := c.Locals(h.callerKey).(string)
	rec, err := h.service.Add(c.UserContext(), AddInput{
		TelegramID: string(req.TelegramID),
		Phone:      req.Phone,
		Username:   req.Username,
		Role:       strings.TrimSpace(req.Role),
	}, callerID)
	switch {
	case errors.Is(err, ErrMissingID), errors.Is(err, ErrInvalidRole):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case err != nil:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(rec)
}

// Remove deletes the user given by the id query parameter.
func (h *Handler) Remove(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		return fiber.NewError(http.StatusBadRequest, "id is required")
	}
	err := h.service.Remove(c.UserContext(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case err != nil:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"ok": true})
}

// Invite sends the access message to a user.
func (h *Handler) Invite(c *fiber.Ctx) error {
	var req inviteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(string(req.TelegramID)) == "" {
		return fiber.NewError(http.StatusBadRequest, "telegram_id required")
	}

	err := h.service.Invite(c.UserContext(), string(req.TelegramID))
	var platformErr *notification.PlatformError
	switch {
	case errors.As(err, &platformErr):
		return fiber.NewError(http.StatusBadRequest, platformErr.Description)
	case err != nil:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"ok": true})
}
