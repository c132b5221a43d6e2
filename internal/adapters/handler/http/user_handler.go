package http

import (
	"log/slog"
	"net/http"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
)

type UserHandler struct {
	service ports.UserService
	log     *slog.Logger
}

func NewUserHandler(service ports.UserService, log *slog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		log:     log,
	}
}

type meResponse struct {
	User *domain.User `json:"user"`
}

// GetMe godoc
// @Summary      Returns the authenticated user
// @Tags         auth
// @Produce      json
// @Success      200
// @Failure      401,404
// @Router       /auth/me [get]
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "missing user context")
		return
	}

	user, err := h.service.GetByID(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: user})
}
