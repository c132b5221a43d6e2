package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/app"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/config"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", logging.Err(err))
		os.Exit(1)
	}

	log := logging.New(cfg.Env, os.Stdout)
	if cfg.UsingDevSecret {
		log.Warn("JWT_SECRET is not set; using the insecure development secret", slog.String("env", cfg.Env))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	application, err := app.New(startCtx, cfg, log)
	cancel()
	if err != nil {
		log.Error("failed to start application", logging.Err(err))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           application.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server",
			slog.String("addr", cfg.HTTPAddr),
			slog.String("region", cfg.Region.String()),
			slog.Bool("rotate_on_use", cfg.RotateOnUse),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", logging.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shut down server", logging.Err(err))
	}
	if err := application.Close(shutdownCtx); err != nil {
		log.Error("failed to release resources", logging.Err(err))
	}
	log.Info("server stopped")
}
