package initdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const authDateField = "auth_date"

// ErrExpired is returned by CheckFreshness when auth_date is too old or missing.
var ErrExpired = errors.New("init data: expired")

// Identity is the verified content of a payload.
type Identity struct {
	// Fields holds every signed field except the hash.
	Fields map[string]string
	User   *User
	UserID string
}

// User is the decoded user field. Only ID is required.
type User struct {
	ID           string `json:"-"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

type rawUser struct {
	User
	RawID json.RawMessage `json:"id"`
}

// decodeUser reports whether the user field is present and decodes it.
func decodeUser(fields map[string]string) (User, bool, error) {
	raw, ok := fields[userField]
	if !ok || strings.TrimSpace(raw) == "" {
		return User{}, false, nil
	}

	var decoded rawUser
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return User{}, false, fmt.Errorf("%w: %v", ErrMalformedUserField, err)
	}

	id, err := decodeID(decoded.RawID)
	if err != nil {
		return User{}, false, err
	}
	user := decoded.User
	user.ID = id
	return user, true, nil
}

// decodeID accepts a JSON string or integer id.
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedUserField, err)
		}
		return strings.TrimSpace(s), nil
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", fmt.Errorf("%w: id is not a string or number", ErrMalformedUserField)
		}
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), nil
		}
		return n.String(), nil
	}
}

// AuthDate returns the signing time carried in auth_date.
func (i Identity) AuthDate() (time.Time, bool) {
	raw, ok := i.Fields[authDateField]
	if !ok {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

// CheckFreshness rejects identities signed more than maxAge before now.
// A non-positive maxAge disables the check.
func CheckFreshness(identity Identity, now time.Time, maxAge time.Duration) error {
	if maxAge <= 0 {
		return nil
	}
	signedAt, ok := identity.AuthDate()
	if !ok {
		return fmt.Errorf("%w: auth_date missing", ErrExpired)
	}
	if now.Sub(signedAt) > maxAge {
		return fmt.Errorf("%w: signed at %s", ErrExpired, signedAt.Format(time.RFC3339))
	}
	return nil
}
