// Package access turns signed init data into an access decision.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jewelcalc/jewelgate/internal/initdata"
	"github.com/jewelcalc/jewelgate/internal/users"
)

// DevBypassToken stands in for init data during local development.
const DevBypassToken = "dev_bypass"

// fallbackDevUserID is used by the dev bypass when no administrators are configured.
const fallbackDevUserID = "0"

const defaultLookupTimeout = 3 * time.Second

var (
	// ErrMisconfigured is returned when the resolver lacks its bot token or store.
	ErrMisconfigured = errors.New("access: resolver misconfigured")
	// ErrStoreUnavailable wraps allow-list failures other than not-found.
	ErrStoreUnavailable = errors.New("access: user store unavailable")
	// ErrNotAllowed is the reason for a verified user absent from the allow-list.
	ErrNotAllowed = errors.New("access: user not allowed")
)

// UserLookup is the read side of the allow-list.
type UserLookup interface {
	Lookup(ctx context.Context, telegramID string) (users.Record, error)
}

// Config holds the process-wide settings the resolver needs.
type Config struct {
	BotToken      string
	Privileged    PrivilegedSet
	DevMode       bool
	LookupTimeout time.Duration
	// MaxAge bounds auth_date; zero disables the check.
	MaxAge time.Duration
}

// Decision is the outcome of an authorization. Reason records why access was
// refused and is meant for logs only.
type Decision struct {
	Allowed bool
	Role    string
	UserID  string
	Reason  error
}

// Resolver decides roles for incoming init data.
type Resolver struct {
	verifier   *initdata.Verifier
	privileged PrivilegedSet
	devMode    bool
	store      UserLookup
	timeout    time.Duration
	maxAge     time.Duration
	now        func() time.Time
}

// NewResolver validates cfg and builds a Resolver.
func NewResolver(cfg Config, store UserLookup) (*Resolver, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("%w: bot token is empty", ErrMisconfigured)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: user store is nil", ErrMisconfigured)
	}
	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &Resolver{
		verifier:   initdata.NewVerifier(cfg.BotToken),
		privileged: cfg.Privileged,
		devMode:    cfg.DevMode,
		store:      store,
		timeout:    timeout,
		maxAge:     cfg.MaxAge,
		now:        time.Now,
	}, nil
}

// Authorize verifies payload and resolves the caller's role. It never fails
// open: every error path yields Allowed=false with the cause in Reason.
func (r *Resolver) Authorize(ctx context.Context, payload string) Decision {
	if r.devMode && payload == DevBypassToken {
		id, ok := r.privileged.First()
		if !ok {
			id = fallbackDevUserID
		}
		return r.AuthorizeUser(ctx, id)
	}

	identity, err := r.verifier.Verify(payload)
	if err != nil {
		return Decision{Reason: err}
	}
	if err := initdata.CheckFreshness(identity, r.now(), r.maxAge); err != nil {
		return Decision{Reason: err}
	}
	return r.AuthorizeUser(ctx, identity.UserID)
}

// AuthorizeUser resolves the role of an already verified user id. The
// privileged set wins over the store.
func (r *Resolver) AuthorizeUser(ctx context.Context, userID string) Decision {
	if userID == "" {
		return Decision{Reason: initdata.ErrNoIdentity}
	}
	if r.privileged.Contains(userID) {
		return Decision{Allowed: true, Role: users.RoleAdmin, UserID: userID}
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rec, err := r.store.Lookup(lookupCtx, userID)
	switch {
	case errors.Is(err, users.ErrNotFound):
		return Decision{UserID: userID, Reason: ErrNotAllowed}
	case err != nil:
		return Decision{UserID: userID, Reason: fmt.Errorf("%w: %v", ErrStoreUnavailable, err)}
	case !users.ValidRole(rec.Role):
		return Decision{UserID: userID, Reason: fmt.Errorf("%w: unknown role %q", ErrStoreUnavailable, rec.Role)}
	}
	return Decision{Allowed: true, Role: rec.Role, UserID: userID}
}

// IsAdministrator reports whether userID may use the administrative
// endpoints. Only the privileged set grants this; a store-level admin role
// does not.
func (r *Resolver) IsAdministrator(userID string) bool {
	return r.privileged.Contains(userID)
}

// Privileged returns the configured administrator set.
func (r *Resolver) Privileged() PrivilegedSet {
	return r.privileged
}

// VerificationFailure reports whether reason came from signature checking
// rather than from the allow-list.
func VerificationFailure(reason error) bool {
	return errors.Is(reason, initdata.ErrMissingSignature) ||
		errors.Is(reason, initdata.ErrSignatureMismatch) ||
		errors.Is(reason, initdata.ErrMalformedUserField) ||
		errors.Is(reason, initdata.ErrExpired)
}
