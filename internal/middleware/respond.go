package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/costtrack/costtrack/internal/handler/dto"
	"github.com/costtrack/costtrack/internal/i18n"
)

// writeError writes a localized {"detail","code"} body.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, key string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{
		Detail: i18n.T(r.Context(), key, args...),
		Code:   code,
	})
}
