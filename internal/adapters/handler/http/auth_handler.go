package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	log         *slog.Logger
}

func NewAuthHandler(authService ports.AuthService, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		log:         log,
	}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"max=100"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type googleLoginRequest struct {
	Credential string `json:"credential" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type tokenMeta struct {
	AccessTokenExpiresIn int64     `json:"accessTokenExpiresIn"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiresAt"`
}

type sessionResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	User         *domain.User `json:"user"`
	TokenMeta    tokenMeta    `json:"tokenMeta"`
}

type refreshResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenMeta    tokenMeta `json:"tokenMeta"`
}

type logoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type sessionsResponse struct {
	Sessions []*domain.RefreshToken `json:"sessions"`
}

func newTokenMeta(t *domain.AccessToken) tokenMeta {
	return tokenMeta{
		AccessTokenExpiresIn: t.ExpiresIn(),
		AccessTokenExpiresAt: t.ExpiresAt,
	}
}

func newSessionResponse(res *ports.LoginResult) sessionResponse {
	return sessionResponse{
		AccessToken:  res.AccessToken.Token,
		RefreshToken: res.RefreshToken,
		User:         res.User,
		TokenMeta:    newTokenMeta(res.AccessToken),
	}
}

// Register godoc
// @Summary      Creates an account with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      201
// @Failure      400,409,429
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	res, err := h.authService.Register(r.Context(), ports.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Client:   clientInfo(r),
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, newSessionResponse(res))
}

// Login godoc
// @Summary      Signs in with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      400,401,429
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	res, err := h.authService.Login(r.Context(), ports.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Client:   clientInfo(r),
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, newSessionResponse(res))
}

// GoogleLogin godoc
// @Summary      Signs in with a Google ID token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      400,401
// @Router       /auth/google [post]
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	res, err := h.authService.LoginWithGoogle(r.Context(), req.Credential, clientInfo(r))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, newSessionResponse(res))
}

// Refresh godoc
// @Summary      Exchanges a refresh token for a new access token
// @Description  With rotation enabled the response also carries a replacement refresh token and the presented one stops working.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      400,401,429
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	res, err := h.authService.Refresh(r.Context(), req.RefreshToken, clientInfo(r))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  res.AccessToken.Token,
		RefreshToken: res.RefreshToken,
		TokenMeta:    newTokenMeta(res.AccessToken),
	})
}

// Logout godoc
// @Summary      Logs the authenticated user out
// @Description  Revokes every refresh token of the user. Access tokens stay valid until they expire.
// @Tags         auth
// @Produce      json
// @Success      200
// @Failure      401
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, domain.ErrUnauthenticated.Error())
		return
	}

	count, err := h.authService.Logout(r.Context(), claims.UserID, clientInfo(r))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, logoutResponse{
		Success: true,
		Message: "Logged out",
		Revoked: count,
	})
}

func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, domain.ErrUnauthenticated.Error())
		return
	}

	sessions, err := h.authService.ListSessions(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	if sessions == nil {
		sessions = []*domain.RefreshToken{}
	}

	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}

func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthenticated, domain.ErrUnauthenticated.Error())
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid session id")
		return
	}

	if err := h.authService.RevokeSession(r.Context(), claims.UserID, sessionID, clientInfo(r)); err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Session revoked"})
}
