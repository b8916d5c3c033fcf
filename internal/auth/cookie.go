package auth

import (
	"net/http"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookiePolicy is the single place session cookies are built. Every
// handler that starts, renews or ends a session goes through it.
type CookiePolicy struct {
	secure bool
}

func NewCookiePolicy(production bool) CookiePolicy {
	return CookiePolicy{secure: production}
}

func CookieName(role Role) string {
	if role == RoleRefresh {
		return RefreshTokenCookie
	}
	return AccessTokenCookie
}

func (p CookiePolicy) Cookie(role Role, token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName(role),
		Value:    token,
		Path:     "/",
		MaxAge:   int(role.TTL().Seconds()),
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (p CookiePolicy) SetSession(w http.ResponseWriter, accessToken, refreshToken string) {
	http.SetCookie(w, p.Cookie(RoleAccess, accessToken))
	http.SetCookie(w, p.Cookie(RoleRefresh, refreshToken))
}

func (p CookiePolicy) SetAccess(w http.ResponseWriter, accessToken string) {
	http.SetCookie(w, p.Cookie(RoleAccess, accessToken))
}

// ClearSession expires both cookies. net/http writes "Max-Age=0" for a
// negative MaxAge.
func (p CookiePolicy) ClearSession(w http.ResponseWriter) {
	for _, role := range []Role{RoleAccess, RoleRefresh} {
		c := p.Cookie(role, "")
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func tokenFromCookie(r *http.Request, role Role) string {
	c, err := r.Cookie(CookieName(role))
	if err != nil {
		return ""
	}
	return c.Value
}
