package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelcalc/jewelgate/internal/notification"
)

type recordingNotifier struct {
	sent []notification.Message
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	r.sent = append(r.sent, m)
	return r.err
}

func newTestService(notifier notification.Notifier) *Service {
	svc := NewService(NewMemoryRepository(), notifier, "https://t.me/jewel_bot/app")
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestServiceAddDefaultsAndStamps(t *testing.T) {
	svc := newTestService(nil)
	rec, err := svc.Add(context.Background(), AddInput{TelegramID: " 42 ", Phone: strPtr(" "), Username: strPtr("anna")}, "100")
	require.NoError(t, err)

	assert.Equal(t, "42", rec.TelegramID)
	assert.Equal(t, RoleUser, rec.Role)
	assert.Equal(t, "100", rec.AddedBy)
	assert.Nil(t, rec.Phone)
	require.NotNil(t, rec.Username)
	assert.Equal(t, "anna", *rec.Username)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), rec.AddedAt)
}

func TestServiceAddValidates(t *testing.T) {
	svc := newTestService(nil)
	_, err := svc.Add(context.Background(), AddInput{}, "100")
	assert.ErrorIs(t, err, ErrMissingID)

	_, err = svc.Add(context.Background(), AddInput{TelegramID: "1", Role: "owner"}, "100")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestServiceRemove(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()
	_, err := svc.Add(ctx, AddInput{TelegramID: "1"}, "100")
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "1"))
	assert.ErrorIs(t, svc.Remove(ctx, "1"), ErrNotFound)
	assert.ErrorIs(t, svc.Remove(ctx, ""), ErrMissingID)
}

func TestServiceInviteSendsAccessMessage(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newTestService(notifier)

	require.NoError(t, svc.Invite(context.Background(), "42"))
	require.Len(t, notifier.sent, 1)
	msg := notifier.sent[0]
	assert.Equal(t, notification.KindAccessGranted, msg.Kind)
	assert.Equal(t, "42", msg.Recipient)
	assert.Equal(t, "https://t.me/jewel_bot/app", msg.ActionURL)
	assert.NotEmpty(t, msg.Text)
	assert.NotEmpty(t, msg.ActionLabel)
}

func TestServiceInvitePropagatesPlatformError(t *testing.T) {
	notifier := &recordingNotifier{err: &notification.PlatformError{Description: "Bad Request: chat not found"}}
	svc := newTestService(notifier)

	err := svc.Invite(context.Background(), "42")
	var platformErr *notification.PlatformError
	require.True(t, errors.As(err, &platformErr))
	assert.Equal(t, "Bad Request: chat not found", platformErr.Description)
	assert.Len(t, notifier.sent, 1)
}
