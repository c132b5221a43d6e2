package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/app"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/config"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/logging"
)

func main() {
	var (
		userID string
		reason string
	)
	flag.StringVar(&userID, "user", "", "ID of the user whose sessions are revoked")
	flag.StringVar(&reason, "reason", string(domain.RevocationSecurity), "Revocation reason (logout, rotation, security)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", logging.Err(err))
		os.Exit(1)
	}
	log := logging.New(cfg.Env, os.Stdout)

	id, err := uuid.Parse(userID)
	if err != nil {
		log.Error("a valid -user id is required", slog.String("user", userID))
		os.Exit(2)
	}

	// Bound the whole job, store connection included.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", logging.Err(err))
		os.Exit(1)
	}

	log.Info("revoking sessions", slog.String("user_id", id.String()), slog.String("region", cfg.Region.String()))

	count, err := application.AuthService.RevokeAllUserTokens(ctx, id, domain.RevocationReason(reason))
	if closeErr := application.Close(context.Background()); closeErr != nil {
		log.Warn("failed to close app", logging.Err(closeErr))
	}
	if err != nil {
		log.Error("failed to revoke sessions", logging.Err(err))
		os.Exit(1)
	}

	log.Info("sessions revoked", slog.Int64("revoked", count))
}
