package users

import (
	"errors"
	"time"
)

const (
	// RoleAdmin marks a store-level administrator. It does not open the admin endpoints.
	RoleAdmin = "admin"
	// RoleUser is the default role for invited users.
	RoleUser = "user"
)

var (
	// ErrNotFound indicates no record exists for the identifier.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidRole is returned for roles other than admin and user.
	ErrInvalidRole = errors.New("role must be admin or user")
	// ErrMissingID is returned when a record has no telegram_id.
	ErrMissingID = errors.New("telegram_id is required")
)

// Record is an allow-list entry keyed by Telegram user id.
type Record struct {
	TelegramID string    `json:"telegram_id"`
	Phone      *string   `json:"phone"`
	Username   *string   `json:"username"`
	Role       string    `json:"role"`
	AddedBy    string    `json:"added_by"`
	AddedAt    time.Time `json:"added_at"`
}

// ValidRole reports whether role is one the store accepts.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}
