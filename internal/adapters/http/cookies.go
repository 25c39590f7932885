package http

import (
	"net/http"
	"time"
)

const (
	refreshCookieName = "campus_refresh_token"
	accessCookieName  = "campus_access_token"
)

// setRefreshCookie installs the long-lived token as an HTTP-only
// SameSite=Strict cookie scoped to the auth surface, so browser scripts and
// cross-site requests never see it.
func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/auth/v1",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/auth/v1",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// refreshTokenFromRequest prefers the cookie; the body field exists for
// non-browser clients.
func refreshTokenFromRequest(r *http.Request, bodyToken string) string {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return bodyToken
}

// accessTokenFromRequest reads the bearer header with an access-cookie
// fallback for browser navigation.
func accessTokenFromRequest(r *http.Request) (string, error) {
	if token, err := bearerTokenFromHeader(r.Header.Get("Authorization")); err == nil {
		return token, nil
	}
	if c, err := r.Cookie(accessCookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", http.ErrNoCookie
}
