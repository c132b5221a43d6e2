package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/yuxuanzhouo3/mvp-25-sub002/internal/core/domain"
)

const (
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeInvalid            = "INVALID"
	CodeExpired            = "EXPIRED"
	CodeRevoked            = "REVOKED"
	CodeNotFound           = "NOT_FOUND"
	CodeBadRequest         = "BAD_REQUEST"
	CodeConflict           = "CONFLICT"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errorMapping = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthenticated},
	{domain.ErrInvalidToken, http.StatusUnauthorized, CodeInvalidToken},
	{domain.ErrRefreshTokenInvalid, http.StatusUnauthorized, CodeInvalid},
	{domain.ErrRefreshTokenExpired, http.StatusUnauthorized, CodeExpired},
	{domain.ErrRefreshTokenRevoked, http.StatusUnauthorized, CodeRevoked},
	{domain.ErrUserNotFound, http.StatusNotFound, CodeNotFound},
	{domain.ErrSessionNotFound, http.StatusNotFound, CodeNotFound},
	{domain.ErrBadRequest, http.StatusBadRequest, CodeBadRequest},
	{domain.ErrEmailTaken, http.StatusConflict, CodeConflict},
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials},
	{domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeServiceError maps domain errors to a status and code. Anything else is
// logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			message := m.err.Error()
			if m.status == http.StatusBadRequest {
				message = err.Error()
			}
			writeError(w, m.status, m.code, message)
			return
		}
	}

	log.ErrorContext(r.Context(), "request failed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	writeError(w, http.StatusInternalServerError, CodeInternal, domain.ErrInternal.Error())
}
