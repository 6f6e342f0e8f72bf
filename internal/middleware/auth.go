package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/costtrack/costtrack/internal/auth"
	"github.com/costtrack/costtrack/internal/handler/dto"
	"github.com/costtrack/costtrack/internal/i18n"
	"github.com/costtrack/costtrack/internal/metrics"
	"github.com/costtrack/costtrack/internal/model"
	"github.com/costtrack/costtrack/internal/service"
)

// Authenticator resolves an access token to its principal.
type Authenticator interface {
	Authenticate(ctx context.Context, rawAccess string) (*model.AuthContext, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger        *slog.Logger
	Authenticator Authenticator
	Metrics       metrics.Recorder
}

// Auth requires a valid access token from the Authorization header or the
// access_token cookie and stores the principal in the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.AccessTokenFromRequest(r)
			if token == "" {
				recorder.IncAuthEvent("access", "missing")
				writeError(w, r, http.StatusUnauthorized, dto.CodeUnauthorized, i18n.MsgNoToken)
				return
			}

			ac, err := cfg.Authenticator.Authenticate(r.Context(), token)
			if err != nil {
				status, key := AuthFailure(err)
				if status == http.StatusInternalServerError {
					cfg.Logger.Error("authentication backend error",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeError(w, r, status, dto.CodeInternal, key)
					return
				}
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", err.Error()),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				recorder.IncAuthEvent("access", "rejected")
				writeError(w, r, status, dto.CodeUnauthorized, key)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), ac)))
		})
	}
}

// AuthFailure maps a token validation error to a status and message key.
// Errors that are not about the token itself map to 500.
func AuthFailure(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, i18n.MsgTokenExpired
	case errors.Is(err, auth.ErrWrongTokenType):
		return http.StatusUnauthorized, i18n.MsgWrongTokenType
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, i18n.MsgAuthFailed
	case errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, i18n.MsgTokenRevoked
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusUnauthorized, i18n.MsgUserNotFound
	default:
		return http.StatusInternalServerError, i18n.MsgInternalError
	}
}
