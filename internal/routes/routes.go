package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/jewelcalc/jewelgate/internal/access"
	"github.com/jewelcalc/jewelgate/internal/config"
	"github.com/jewelcalc/jewelgate/internal/middleware"
	"github.com/jewelcalc/jewelgate/internal/notification"
	"github.com/jewelcalc/jewelgate/internal/session"
	"github.com/jewelcalc/jewelgate/internal/users"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg       config.Config
	Users     users.Repository
	StorePing func(ctx context.Context) error
	Cache     *redis.Client
	Notifier  notification.Notifier
	Logger    *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Users == nil {
		return fmt.Errorf("user store is required")
	}
	if d.Notifier == nil {
		return fmt.Errorf("notifier is required")
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	store := users.NewCachedRepository(d.Users, d.Cache, d.Cfg.LookupCacheTTL, d.Logger)

	privileged := access.NewPrivilegedSet(d.Cfg.AdminIDs)
	resolver, err := access.NewResolver(access.Config{
		BotToken:      d.Cfg.BotToken,
		Privileged:    privileged,
		DevMode:       d.Cfg.IsDevelopment(),
		LookupTimeout: d.Cfg.LookupTimeout,
		MaxAge:        d.Cfg.InitDataMaxAge,
	}, store)
	if err != nil {
		return err
	}
	if d.Cfg.IsDevelopment() {
		d.Logger.Warn("development mode: dev_bypass init data is accepted")
	}
	if privileged.Len() == 0 {
		d.Logger.Warn("ADMIN_TELEGRAM_IDS is empty; admin endpoints are unreachable")
	}

	var (
		tokens   access.TokenIssuer
		sessions middleware.SessionParser
	)
	mode := middleware.AdminMode(d.Cfg.AdminAuthMode)
	if mode == middleware.AdminModeToken {
		manager, err := session.NewManager(d.Cfg.SessionSecret, d.Cfg.AppName, d.Cfg.SessionTTL)
		if err != nil {
			return err
		}
		tokens, sessions = manager, manager
	}

	accessHandler := access.NewHandler(resolver, tokens, d.Logger)
	userService := users.NewService(store, d.Notifier, d.Cfg.AppURL)
	adminHandler := users.NewHandler(userService, middleware.CallerIDLocal)

	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDLocal).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAuthRoutes(api, accessHandler, middleware.RateLimit(d.Cache, "verify", d.Cfg.VerifyRateLimit, d.Logger))

	guard := middleware.RequireAdministrator(mode, resolver, sessions, d.Logger)
	var idempotency fiber.Handler
	if d.Cache != nil {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterAdminRoutes(api, adminHandler, guard, idempotency)

	return nil
}
