package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jewelcalc/jewelgate/internal/config"
	"github.com/jewelcalc/jewelgate/internal/infra"
	"github.com/jewelcalc/jewelgate/internal/logging"
	"github.com/jewelcalc/jewelgate/internal/notification"
	"github.com/jewelcalc/jewelgate/internal/routes"
	"github.com/jewelcalc/jewelgate/internal/server"
	"github.com/jewelcalc/jewelgate/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.IsDevelopment())

	ctx := context.Background()

	store, err := users.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("open user store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	var notifier notification.Notifier
	if cfg.NotifyDryRun {
		notifier = notification.NewLoggerNotifier(logger)
	} else {
		notifier, err = notification.NewTelegramNotifier(notification.TelegramConfig{
			Token:  cfg.BotToken,
			APIURL: cfg.TelegramAPIURL,
		})
		if err != nil {
			logger.Error("build notifier", "error", err)
			os.Exit(1)
		}
	}

	srv, err := server.New(routes.Deps{
		Cfg:       cfg,
		Users:     store,
		StorePing: store.Ping,
		Cache:     cache,
		Notifier:  notifier,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	logger.Info("server started", "address", cfg.Address(), "env", cfg.AppEnv, "store", cfg.StoreDriver)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
