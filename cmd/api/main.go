// Package main is the entry point for the lawn-care office API.
//
// It loads configuration, opens storage (in-memory or Postgres), builds the
// forecast source, reschedule recommender and notification dispatcher, mounts
// the handlers on the core chassis and serves HTTP until SIGINT or SIGTERM.
//
// When SQS_NOTIFICATIONS is set, appointment notification flows are published
// to the queue for cmd/notification-worker; otherwise they are dispatched in
// the request.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lawncare/internal/api/handlers"
	"lawncare/internal/app"
	"lawncare/internal/config"
	"lawncare/internal/core"
	"lawncare/internal/notifications/delivery"
	"lawncare/internal/notifications/dispatch"
	"lawncare/internal/reschedule"
	"lawncare/internal/weather"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	var provider config.SecretProvider
	if env := os.Getenv("APP_ENV"); env != "" && env != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL"))
	}
	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewSlog(cfg.LogLevel)
	logger.Info("lawncare API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"weather_source", cfg.Weather.Source,
	)

	ctx := context.Background()
	rt, err := app.Build(ctx, cfg, logger, app.Options{Seed: true})
	if err != nil {
		return fmt.Errorf("building runtime: %w", err)
	}
	defer rt.Close()

	srv, err := buildServer(rt)
	if err != nil {
		return err
	}
	return runHTTPServer(srv, cfg, logger)
}

// buildServer wires every handler onto a core.Server and mounts the routes.
func buildServer(rt *app.Runtime) (*core.Server, error) {
	cfg, logger := rt.Config, rt.Logger

	srv, err := core.NewServer(cfg, rt.Repos, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	prom := core.NewPrometheusMetrics("lawncare")
	srv.Metrics = prom
	srv.MetricsHandler = prom.Handler()
	srv.HealthProbes = rt.Probes

	source := weather.NewSource(cfg.Weather, rt.Redis, rt.Clock, logger)
	recommender := reschedule.NewRecommender(rt.Repos.Appointments(), source, rt.Clock, logger)

	var notifier dispatch.Notifier = dispatch.NewInlineNotifier(rt.Service)
	if rt.Publisher != nil {
		notifier = dispatch.NewQueuedNotifier(rt.Publisher)
		logger.Info("appointment notifications are queued", "queue", cfg.AWS.NotificationQueue)
	}

	tracker := delivery.NewTracker(rt.Repos, rt.Metrics, rt.Clock, logger)

	appointments := handlers.NewAppointmentHandler(rt.Repos.Appointments(), recommender, notifier, srv.Validator, logger)
	weatherHandler := handlers.NewWeatherHandler(source, recommender, rt.Repos.Appointments(), notifier, srv.Validator, logger)
	notifications := handlers.NewNotificationHandler(rt.Service, srv.Validator, logger)
	providers := handlers.NewProviderHandler(rt.Service, srv.Validator, logger)
	reminders := handlers.NewInvoiceReminderHandler(rt.Service, srv.Validator, logger)
	webhooks := handlers.NewDeliveryWebhookHandler(tracker, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		appointments.RegisterRoutes,
		weatherHandler.RegisterRoutes,
		notifications.RegisterRoutes,
		providers.RegisterRoutes,
		reminders.RegisterRoutes,
	)
	srv.APIRouteRegistrars = append(srv.APIRouteRegistrars, webhooks.RegisterRoutes)

	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
