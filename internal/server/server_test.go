package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jewelcalc/jewelgate/internal/config"
	"github.com/jewelcalc/jewelgate/internal/initdata"
	"github.com/jewelcalc/jewelgate/internal/logging"
	"github.com/jewelcalc/jewelgate/internal/notification"
	"github.com/jewelcalc/jewelgate/internal/routes"
	"github.com/jewelcalc/jewelgate/internal/users"
)

const botToken = "123456:TEST"

type capturingNotifier struct {
	sent []notification.Message
	err  error
}

func (n *capturingNotifier) Send(_ context.Context, m notification.Message) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, m)
	return nil
}

type harness struct {
	srv      *Server
	store    users.Repository
	notifier *capturingNotifier
}

func testConfig() config.Config {
	return config.Config{
		AppName:         "JewelGate",
		AppEnv:          "production",
		Port:            "0",
		BotToken:        botToken,
		AdminIDs:        []string{"100", "200"},
		AppURL:          "https://t.me/jewel_bot/app",
		StoreDriver:     config.StoreMemory,
		LookupTimeout:   time.Second,
		LookupCacheTTL:  time.Minute,
		AdminAuthMode:   config.AdminAuthHeader,
		SessionTTL:      time.Hour,
		VerifyRateLimit: 100,
		IdempotencyTTL:  time.Hour,
	}
}

func newHarness(t *testing.T, cfg config.Config) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	store := users.NewMemoryRepository()
	notifier := &capturingNotifier{}
	srv, err := New(routes.Deps{
		Cfg:       cfg,
		Users:     store,
		StorePing: func(context.Context) error { return nil },
		Cache:     cache,
		Notifier:  notifier,
		Logger:    logging.Discard(),
	})
	require.NoError(t, err)
	return &harness{srv: srv, store: store, notifier: notifier}
}

func (h *harness) do(t *testing.T, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func verifyBody(t *testing.T, initData string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"initData": initData})
	require.NoError(t, err)
	return string(raw)
}

func signedFor(id string) string {
	return initdata.Sign(map[string]string{
		"user":      `{"id":"` + id + `","first_name":"Test"}`,
		"auth_date": "1700000000",
	}, botToken)
}

func TestVerifyEndpoint(t *testing.T) {
	h := newHarness(t, testConfig())
	_, err := h.store.Upsert(context.Background(), users.Record{
		TelegramID: "300", Role: users.RoleUser, AddedBy: "100", AddedAt: time.Now(),
	})
	require.NoError(t, err)

	cases := []struct {
		name       string
		initData   string
		wantStatus int
		want       map[string]any
	}{
		{"empty", "", http.StatusBadRequest, map[string]any{"allowed": false, "error": "No initData"}},
		{"bad signature", signedFor("300")[:20] + "&hash=deadbeef", http.StatusUnauthorized, map[string]any{"allowed": false, "error": "Invalid signature"}},
		{"dev bypass in production", "dev_bypass", http.StatusUnauthorized, map[string]any{"allowed": false, "error": "Invalid signature"}},
		{"no identity", initdata.Sign(map[string]string{"auth_date": "1"}, botToken), http.StatusOK, map[string]any{"allowed": false}},
		{"privileged", signedFor("100"), http.StatusOK, map[string]any{"allowed": true, "role": "admin", "telegramId": "100"}},
		{"store user", signedFor("300"), http.StatusOK, map[string]any{"allowed": true, "role": "user", "telegramId": "300"}},
		{"unknown", signedFor("999"), http.StatusOK, map[string]any{"allowed": false, "role": nil, "telegramId": "999"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := h.do(t, http.MethodPost, "/api/auth/verify", verifyBody(t, tc.initData), nil)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.want, body)
		})
	}
}

func TestVerifyDevBypassInDevelopment(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "development"
	h := newHarness(t, cfg)

	status, body := h.do(t, http.MethodPost, "/api/auth/verify", verifyBody(t, "dev_bypass"), nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"allowed": true, "role": "admin", "telegramId": "100"}, body)
}

func TestAdminEndpointsRequirePrivilegedCaller(t *testing.T) {
	h := newHarness(t, testConfig())
	_, err := h.store.Upsert(context.Background(), users.Record{
		TelegramID: "400", Role: users.RoleAdmin, AddedBy: "100", AddedAt: time.Now(),
	})
	require.NoError(t, err)

	for _, caller := range []string{"", "400", "999"} {
		status, body := h.do(t, http.MethodGet, "/api/admin/users", "", map[string]string{"X-Telegram-Id": caller})
		assert.Equal(t, http.StatusForbidden, status, "caller %q", caller)
		assert.Equal(t, map[string]any{"error": "Forbidden"}, body)
	}
}

func TestAdminManageUsers(t *testing.T) {
	h := newHarness(t, testConfig())
	admin := map[string]string{"X-Telegram-Id": "200"}

	status, body := h.do(t, http.MethodPost, "/api/admin/users", `{"telegram_id":555,"username":"jeweler"}`, admin)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "555", body["telegram_id"])
	assert.Equal(t, "user", body["role"])
	assert.Equal(t, "200", body["added_by"])

	status, body = h.do(t, http.MethodPost, "/api/auth/verify", verifyBody(t, signedFor("555")), nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["allowed"])

	status, body = h.do(t, http.MethodPost, "/api/admin/invite", `{"telegram_id":"555"}`, admin)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"ok": true}, body)
	require.Len(t, h.notifier.sent, 1)
	assert.Equal(t, "555", h.notifier.sent[0].Recipient)
	assert.Equal(t, "https://t.me/jewel_bot/app", h.notifier.sent[0].ActionURL)

	status, body = h.do(t, http.MethodDelete, "/api/admin/users?id=555", "", admin)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"ok": true}, body)

	status, body = h.do(t, http.MethodPost, "/api/auth/verify", verifyBody(t, signedFor("555")), nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["allowed"])

	status, _ = h.do(t, http.MethodDelete, "/api/admin/users?id=555", "", admin)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdminInvitePlatformFailure(t *testing.T) {
	h := newHarness(t, testConfig())
	h.notifier.err = &notification.PlatformError{Description: "Bad Request: chat not found"}

	status, body := h.do(t, http.MethodPost, "/api/admin/invite", `{"telegram_id":"777"}`,
		map[string]string{"X-Telegram-Id": "100"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]any{"error": "Bad Request: chat not found"}, body)
}

func TestTokenModeAdminFlow(t *testing.T) {
	cfg := testConfig()
	cfg.AdminAuthMode = config.AdminAuthToken
	cfg.SessionSecret = "session-secret"
	h := newHarness(t, cfg)

	status, _ := h.do(t, http.MethodGet, "/api/admin/users", "", map[string]string{"X-Telegram-Id": "100"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := h.do(t, http.MethodPost, "/api/auth/verify", verifyBody(t, signedFor("100")), nil)
	require.Equal(t, http.StatusOK, status)
	token, ok := body["token"].(string)
	require.True(t, ok, "administrator should receive a session token")
	assert.NotZero(t, body["expiresAt"])

	status, _ = h.do(t, http.MethodGet, "/api/admin/users", "", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, status)

	status, _ = h.do(t, http.MethodGet, "/api/admin/users", "", map[string]string{"Authorization": "Bearer " + token + "x"})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, testConfig())
	status, body := h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"store": "ok", "redis": "ok"}, body["status"])
}
