package auth

import (
	"net/http"
	"strings"
	"time"
)

// Cookie names for the token pair.
const (
	AccessCookieName  = "access_token"
	RefreshCookieName = "refresh_token"
)

// CookieConfig controls the attributes of token cookies.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SetTokenCookies writes both tokens as HTTP-only, SameSite=Lax cookies.
func SetTokenCookies(w http.ResponseWriter, cfg CookieConfig, pair TokenPair) {
	http.SetCookie(w, tokenCookie(AccessCookieName, pair.Access, cfg.AccessTTL, cfg.Secure))
	http.SetCookie(w, tokenCookie(RefreshCookieName, pair.Refresh, cfg.RefreshTTL, cfg.Secure))
}

// ClearTokenCookies expires both token cookies.
func ClearTokenCookies(w http.ResponseWriter, cfg CookieConfig) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		c := tokenCookie(name, "", 0, cfg.Secure)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func tokenCookie(name, value string, ttl time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// AccessTokenFromRequest returns the bearer token from the Authorization
// header, falling back to the access_token cookie.
func AccessTokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
	}
	if c, err := r.Cookie(AccessCookieName); err == nil {
		return c.Value
	}
	return ""
}

// RefreshTokenFromRequest returns the refresh_token cookie value.
func RefreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		return c.Value
	}
	return ""
}
