package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jewelcalc/jewelgate/internal/notification"
)

const (
	inviteText        = "✅ Вам предоставлен доступ к приложению Ювелирные Калькуляторы. Нажмите кнопку ниже, чтобы открыть его."
	inviteButtonLabel = "Открыть приложение 💎"
)

// Service manages the allow-list on behalf of administrators.
type Service struct {
	repo     Repository
	notifier notification.Notifier
	appURL   string
	now      func() time.Time
}

// NewService creates an allow-list service. appURL is the link placed on invitations.
func NewService(repo Repository, notifier notification.Notifier, appURL string) *Service {
	return &Service{repo: repo, notifier: notifier, appURL: appURL, now: time.Now}
}

// AddInput describes a grant requested by an administrator.
type AddInput struct {
	TelegramID string
	Phone      *string
	Username   *string
	Role       string
}

// Add grants access, replacing any existing record for the same id.
func (s *Service) Add(ctx context.Context, input AddInput, grantedBy string) (Record, error) {
	id := strings.TrimSpace(input.TelegramID)
	if id == "" {
		return Record{}, ErrMissingID
	}
	role := input.Role
	if role == "" {
		role = RoleUser
	}
	if !ValidRole(role) {
		return Record{}, ErrInvalidRole
	}

	return s.repo.Upsert(ctx, Record{
		TelegramID: id,
		Phone:      nonEmpty(input.Phone),
		Username:   nonEmpty(input.Username),
		Role:       role,
		AddedBy:    grantedBy,
		AddedAt:    s.now().UTC(),
	})
}

// Remove revokes access.
func (s *Service) Remove(ctx context.Context, telegramID string) error {
	if strings.TrimSpace(telegramID) == "" {
		return ErrMissingID
	}
	return s.repo.Delete(ctx, telegramID)
}

// List returns every record, newest grant first.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.repo.List(ctx)
}

// Lookup returns the record for telegramID.
func (s *Service) Lookup(ctx context.Context, telegramID string) (Record, error) {
	return s.repo.Lookup(ctx, telegramID)
}

// Invite sends the access notification to telegramID. Platform failures are
// returned as *notification.PlatformError and are not retried.
func (s *Service) Invite(ctx context.Context, telegramID string) error {
	id := strings.TrimSpace(telegramID)
	if id == "" {
		return ErrMissingID
	}
	if s.notifier == nil {
		return fmt.Errorf("notifier not configured")
	}
	return s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindAccessGranted,
		Recipient:   id,
		Text:        inviteText,
		ActionURL:   s.appURL,
		ActionLabel: inviteButtonLabel,
	})
}

func nonEmpty(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
