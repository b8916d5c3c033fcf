package auth

import (
	"net/http"
	"strings"

	"finance-tracker/internal/observability"
)

// Gate guards page routes with the session cookies. It is the only place
// a session is renewed.
type Gate struct {
	tokens    *TokenService
	cookies   CookiePolicy
	logger    *observability.Logger
	loginPath string
	protected []string
}

func NewGate(tokens *TokenService, cookies CookiePolicy, logger *observability.Logger, loginPath string, protected []string) *Gate {
	if strings.TrimSpace(loginPath) == "" {
		loginPath = "/auth/login"
	}

	prefixes := make([]string, 0, len(protected))
	for _, p := range protected {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" {
			prefixes = append(prefixes, p)
		}
	}

	return &Gate{
		tokens:    tokens,
		cookies:   cookies,
		logger:    logger,
		loginPath: loginPath,
		protected: prefixes,
	}
}

// Protects reports whether path falls under one of the gated prefixes.
// "/dashboard" covers "/dashboard" and "/dashboard/...", not "/dashboards".
func (g *Gate) Protects(path string) bool {
	for _, prefix := range g.protected {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Middleware lets a request through on a valid access cookie, renews the
// access cookie from a valid refresh cookie, and otherwise redirects to the
// login page. Any failure while renewing redirects as well.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Protects(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		access := tokenFromCookie(r, RoleAccess)
		refresh := tokenFromCookie(r, RoleRefresh)
		if access == "" && refresh == "" {
			g.redirect(w, r, "no_session")
			return
		}

		if access != "" {
			if claims, err := g.tokens.Authenticate(r.Context(), access, RoleAccess); err == nil {
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
				return
			}
		}

		if refresh == "" {
			g.redirect(w, r, "access_invalid")
			return
		}

		claims, err := g.tokens.Authenticate(r.Context(), refresh, RoleRefresh)
		if err != nil {
			g.redirect(w, r, "refresh_invalid")
			return
		}

		renewed, err := g.tokens.IssueAccessToken(claims.Identity())
		if err != nil {
			g.logger.Error("session_renewal_failed", map[string]any{
				"error":      err.Error(),
				"user_id":    claims.UserID,
				"request_id": observability.RequestID(r.Context()),
			})
			g.redirect(w, r, "renewal_failed")
			return
		}

		g.cookies.SetAccess(w, renewed)
		g.logger.Info("session_renewed", map[string]any{
			"user_id":    claims.UserID,
			"path":       r.URL.Path,
			"request_id": observability.RequestID(r.Context()),
		})
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (g *Gate) redirect(w http.ResponseWriter, r *http.Request, reason string) {
	g.logger.Info("session_redirect", map[string]any{
		"reason":     reason,
		"path":       r.URL.Path,
		"request_id": observability.RequestID(r.Context()),
	})
	http.Redirect(w, r, g.loginPath, http.StatusTemporaryRedirect)
}
