package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tipid/internal/cli"
	apphttp "tipid/internal/http"
	"tipid/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)

	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.InitBackend(context.Background(), logger, cfg)

	app, err := cli.NewApp(res, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize services", log.FieldError, err)
		os.Exit(1)
	}
	app.Sessions.StartCleanup(time.Hour)

	srv := apphttp.NewServer(":"+cfg.Port, res.Store, app.HTTPServices(), apphttp.Options{
		SessionCookie:      cfg.SessionCookie,
		SecureCookies:      cfg.SecureCookies,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Location:           app.Location,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		app.Sessions.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting tipid server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", res.AMQP != nil,
		"timezone", app.Location.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
