package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBotAPI(t *testing.T, handler func(params map[string]string) (int, string)) (*httptest.Server, *[]string) {
	t.Helper()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		params := map[string]string{}
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Errorf("decode request: %v", err)
		}
		status, body := handler(params)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &paths
}

func TestTelegramNotifierSendsMessageWithButton(t *testing.T) {
	var got map[string]string
	srv, paths := fakeBotAPI(t, func(params map[string]string) (int, string) {
		got = params
		return http.StatusOK, `{"ok":true,"result":{"message_id":1,"date":1700000000,"chat":{"id":42,"type":"private"}}}`
	})

	n, err := NewTelegramNotifier(TelegramConfig{Token: "123:abc", APIURL: srv.URL})
	require.NoError(t, err)

	err = n.Send(context.Background(), Message{
		Kind:        KindAccessGranted,
		Recipient:   "42",
		Text:        "welcome",
		ActionURL:   "https://example.com/app",
		ActionLabel: "Open",
	})
	require.NoError(t, err)

	require.Len(t, *paths, 1)
	assert.Equal(t, "/bot123:abc/sendMessage", (*paths)[0])
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "welcome", got["text"])
	assert.Contains(t, got["reply_markup"], "https://example.com/app")
	assert.Contains(t, got["reply_markup"], "Open")
}

func TestTelegramNotifierSurfacesPlatformDescription(t *testing.T) {
	srv, _ := fakeBotAPI(t, func(map[string]string) (int, string) {
		return http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`
	})

	n, err := NewTelegramNotifier(TelegramConfig{Token: "123:abc", APIURL: srv.URL})
	require.NoError(t, err)

	err = n.Send(context.Background(), Message{Recipient: "404", Text: "hi"})
	var platformErr *PlatformError
	require.True(t, errors.As(err, &platformErr), "got %v", err)
	assert.True(t, strings.Contains(platformErr.Description, "chat not found"), platformErr.Description)
}

func TestTelegramNotifierRequiresToken(t *testing.T) {
	_, err := NewTelegramNotifier(TelegramConfig{})
	assert.Error(t, err)
}

func TestLoggerNotifierIsNilSafe(t *testing.T) {
	var n *LoggerNotifier
	assert.NoError(t, n.Send(context.Background(), Message{Recipient: "1"}))
}
