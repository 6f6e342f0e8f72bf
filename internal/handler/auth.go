package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/costtrack/costtrack/internal/auth"
	"github.com/costtrack/costtrack/internal/handler/dto"
	"github.com/costtrack/costtrack/internal/i18n"
	"github.com/costtrack/costtrack/internal/middleware"
	"github.com/costtrack/costtrack/internal/service"
)

// AuthHandler handles signup, login and token lifecycle endpoints.
type AuthHandler struct {
	svc     *service.AuthService
	cookies auth.CookieConfig
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *service.AuthService, cookies auth.CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies, logger: logger}
}

// Signup handles POST /signup.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req service.Credentials
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	user, pair, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	auth.SetTokenCookies(w, h.cookies, pair)
	writeJSON(w, http.StatusCreated, dto.AuthResponse{
		Detail: i18n.T(r.Context(), i18n.MsgUserCreated),
		User:   user.ToResponse(),
	})
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.Credentials
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	user, pair, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("user logged in",
		"user_id", user.ID,
		"request_id", middleware.GetRequestID(r.Context()),
	)
	auth.SetTokenCookies(w, h.cookies, pair)
	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Detail: i18n.T(r.Context(), i18n.MsgUserLoggedIn),
		User:   user.ToResponse(),
	})
}

// Logout handles POST /logout. Requires auth.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ac := auth.MustAuthFromContext(r.Context())
	if err := h.svc.Logout(r.Context(), ac, auth.RefreshTokenFromRequest(r)); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	auth.ClearTokenCookies(w, h.cookies)
	writeJSON(w, http.StatusOK, dto.MessageResponse{Detail: i18n.T(r.Context(), i18n.MsgUserLoggedOut)})
}

// Refresh handles POST /refresh-tokens. Only the refresh_token cookie is read.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw := auth.RefreshTokenFromRequest(r)
	if raw == "" {
		writeError(w, r, http.StatusUnauthorized, dto.CodeUnauthorized, i18n.MsgRefreshRequired)
		return
	}

	pair, err := h.svc.Refresh(r.Context(), raw)
	if err != nil {
		status, key := middleware.AuthFailure(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("token refresh failed", "error", err)
			writeError(w, r, status, dto.CodeInternal, key)
			return
		}
		writeError(w, r, status, dto.CodeUnauthorized, key)
		return
	}

	auth.SetTokenCookies(w, h.cookies, pair)
	writeJSON(w, http.StatusOK, dto.MessageResponse{Detail: i18n.T(r.Context(), i18n.MsgTokensRefreshed)})
}

// Me handles GET /auth/me. Requires auth.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.ToResponse())
}

func (h *AuthHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeFieldErrors(w, r, toFieldErrors(verr))
	case errors.Is(err, service.ErrUserExists):
		writeError(w, r, http.StatusBadRequest, dto.CodeConflict, i18n.MsgUserExists)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, dto.CodeUnauthorized, i18n.MsgInvalidLogin)
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, r, http.StatusUnauthorized, dto.CodeUnauthorized, i18n.MsgUserNotFound)
	default:
		h.logger.Error("auth request failed",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeError(w, r, http.StatusInternalServerError, dto.CodeInternal, i18n.MsgInternalError)
	}
}

func toFieldErrors(verr *service.ValidationError) []dto.FieldError {
	out := make([]dto.FieldError, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		out = append(out, dto.FieldError{Field: f.Field, Message: f.Message})
	}
	return out
}
