package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
)

type RouterConfig struct {
	AuthService    ports.AuthService
	AuthHandler    *AuthHandler
	UserHandler    *UserHandler
	HealthHandler  *HealthHandler
	Logger         *slog.Logger
	AllowedOrigins []string
}

func NewHandler(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(CORS(cfg.AllowedOrigins))

	r.Get("/health", cfg.HealthHandler.Health)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", cfg.AuthHandler.Register)
		r.Post("/login", cfg.AuthHandler.Login)
		r.Post("/refresh", cfg.AuthHandler.Refresh)
		if cfg.AuthService.GoogleEnabled() {
			r.Post("/google", cfg.AuthHandler.GoogleLogin)
		}

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(cfg.AuthService))

			r.Post("/logout", cfg.AuthHandler.Logout)
			r.Get("/me", cfg.UserHandler.GetMe)
			r.Get("/sessions", cfg.AuthHandler.ListSessions)
			r.Post("/sessions/{id}/revoke", cfg.AuthHandler.RevokeSession)
		})
	})

	return r
}
