package middleware

import (
	"net/http"

	"github.com/costtrack/costtrack/internal/i18n"
)

// Language negotiates the response language from Accept-Language.
func Language(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := i18n.Match(r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Language", tag.String())
		w.Header().Add("Vary", "Accept-Language")
		next.ServeHTTP(w, r.WithContext(i18n.WithLanguage(r.Context(), tag)))
	})
}
