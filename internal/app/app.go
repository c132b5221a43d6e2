// Package app wires configuration, storage and services into a runnable
// server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/adapters/audit"
	handler "github.com/yuxuanzhouo3/mvp-25-sub002/internal/adapters/handler/http"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/adapters/oauth/google"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/adapters/ratelimit"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/adapters/repository"
	jwtissuer "github.com/yuxuanzhouo3/mvp-25-sub002/internal/adapters/token/jwt"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/config"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/services"
)

type App struct {
	Config      *config.Config
	Store       *repository.Store
	AuthService *services.AuthService
	Handler     http.Handler

	audit *audit.Dispatcher
	redis *redis.Client
	log   *slog.Logger
}

// New opens the region's store and builds the service graph. The caller must
// Close the returned App.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	store, err := repository.Open(ctx, cfg.Region, repository.Options{
		PostgresDSN:   cfg.Postgres.DSN(),
		MongoURI:      cfg.Mongo.URI,
		MongoDatabase: cfg.Mongo.Database,
		Migrate:       cfg.Postgres.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Region, err)
	}

	a, err := Assemble(ctx, cfg, log, store)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}
	return a, nil
}

// Assemble builds the App around an already opened store.
func Assemble(ctx context.Context, cfg *config.Config, log *slog.Logger, store *repository.Store) (*App, error) {
	a := &App{Config: cfg, Store: store, log: log}

	issuer, err := jwtissuer.NewIssuer([]byte(cfg.JWTSecret), cfg.AppName)
	if err != nil {
		return nil, err
	}

	var limiter ports.RateLimiter = ratelimit.Noop{}
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = ratelimit.New(a.redis, map[string]ratelimit.Rule{
			ports.ActionLogin:    {Limit: cfg.RateLimit.Login, Window: cfg.RateLimit.Window},
			ports.ActionRegister: {Limit: cfg.RateLimit.Register, Window: cfg.RateLimit.Window},
			ports.ActionRefresh:  {Limit: cfg.RateLimit.Refresh, Window: cfg.RateLimit.Window},
		})
	}

	sinks := audit.MultiSink{audit.NewLogSink(log)}
	if cfg.Audit.S3Bucket != "" {
		s3cfg := audit.S3Config{
			Bucket:    cfg.Audit.S3Bucket,
			Prefix:    cfg.Audit.S3Prefix,
			Region:    cfg.Audit.S3Region,
			Endpoint:  cfg.Audit.S3Endpoint,
			AccessKey: cfg.Audit.S3AccessKey,
			SecretKey: cfg.Audit.S3SecretKey,
		}
		client, err := audit.NewS3Client(ctx, s3cfg)
		if err != nil {
			a.closeRedis()
			return nil, err
		}
		sinks = append(sinks, audit.NewS3Sink(client, s3cfg, log))
	}
	a.audit = audit.NewDispatcher(sinks, audit.Options{
		BufferSize:    cfg.Audit.BufferSize,
		DropIfFull:    true,
		FlushInterval: cfg.Audit.FlushInterval,
		Logger:        log,
	})

	deps := services.AuthDeps{
		Users:   store.Users,
		Tokens:  store.RefreshTokens,
		Issuer:  issuer,
		Limiter: limiter,
		Audit:   a.audit,
		Logger:  log,
	}
	if cfg.GoogleClientID != "" {
		deps.Google = google.NewVerifier()
	}

	a.AuthService = services.NewAuthService(services.AuthConfig{
		Region:          cfg.Region,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		RotateOnUse:     cfg.RotateOnUse,
		GoogleClientID:  cfg.GoogleClientID,
	}, deps)

	router := handler.NewHandler(handler.RouterConfig{
		AuthService:    a.AuthService,
		AuthHandler:    handler.NewAuthHandler(a.AuthService, log),
		UserHandler:    handler.NewUserHandler(services.NewUserService(store.Users), log),
		HealthHandler:  handler.NewHealthHandler(store, log),
		Logger:         log,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	a.Handler = otelhttp.NewHandler(router, cfg.AppName)

	return a, nil
}

// Close drains pending audit events and releases backend connections.
func (a *App) Close(ctx context.Context) error {
	a.audit.Close()

	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close(ctx))
	}
	return errors.Join(errs...)
}

func (a *App) closeRedis() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
