package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-tracker/internal/observability"
)

type gateFixture struct {
	gate   *Gate
	tokens *TokenService
	calls  int
	seen   *Claims
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	tokens := newTestTokenService(t)
	return &gateFixture{
		tokens: tokens,
		gate: NewGate(tokens, NewCookiePolicy(false), observability.NewLoggerTo(io.Discard),
			"/auth/login", []string{"/dashboard", "/pages/settings/"}),
	}
}

func (f *gateFixture) handler() http.Handler {
	return f.gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls++
		f.seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func (f *gateFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler().ServeHTTP(rec, req)
	return rec
}

var johnIdentity = Identity{ID: 1, Email: "john@example.com"}

func TestGate_Protects(t *testing.T) {
	t.Parallel()

	f := newGateFixture(t)
	assert.True(t, f.gate.Protects("/dashboard"))
	assert.True(t, f.gate.Protects("/dashboard/monthly"))
	assert.True(t, f.gate.Protects("/pages/settings"))
	assert.False(t, f.gate.Protects("/dashboards"))
	assert.False(t, f.gate.Protects("/auth/login"))
	assert.False(t, f.gate.Protects("/"))
}

func TestGate_UnprotectedPathPassesThrough(t *testing.T) {
	t.Parallel()

	f := newGateFixture(t)
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.calls)
	assert.Nil(t, f.seen)
}

func TestGate_NoCookiesRedirects(t *testing.T) {
	t.Parallel()

	f := newGateFixture(t)
	rec := f.serve(httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
	assert.Zero(t, f.calls)
}

func TestGate_ValidAccessPassesWithoutRenewal(t *testing.T) {
	t.Parallel()

	f := newGateFixture(t)
	access, err := f.tokens.IssueAccessToken(johnIdentity)
	require.NoError(t, err)
	refresh, err := f.tokens.IssueRefreshToken(johnIdentity)
	require.NoError(t, err)

	req := withSession(httptest.NewRequest(http.MethodGet, "/dashboard", nil), Session{AccessToken: access, RefreshToken: refresh})
	rec := f.serve(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	require.NotNil(t, f.seen)
	assert.Equal(t, johnIdentity, f.seen.Identity())
}

func TestGate_ExpiredAccessRenewedFromRefresh(t *testing.T) {
	t.Parallel()

	f := newGateFixture(t)
	f.tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := f.tokens.IssueAccessToken(johnIdentity)
	require.NoError(t, err)
	f.tokens.now = time.Now

	refresh, err := f.tokens.IssueRefreshToken(johnIdentity)
	require.NoError(t, err)

	req := withSession(httptest.NewRequest(http.MethodGet, "/dashboard", nil), Session{AccessToken: expired, RefreshToken: refresh})
	rec := f.serve(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.calls)

	renewed := cookiesByName(rec)[AccessTokenCookie]
	require.NotNil(t, renewed)
	assert.NotEqual(t, expired, renewed.Value)
	assert.Equal(t, 3600, renewed.MaxAge)
	assert.True(t, renewed.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, renewed.SameSite)
	assert.NotContains(t, cookiesByName(rec), RefreshTokenCookie)

	claims, err := f.tokens.Verify(renewed.Value, RoleAccess)
	require.NoError(t, err)
	assert.Equal(t, johnIdentity, claims.Identity())
}

func TestGate_RefreshOnlyIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newGateFixture(t)
	refresh, err := f.tokens.IssueRefreshToken(johnIdentity)
	require.NoError(t, err)

	first := f.serve(withSession(httptest.NewRequest(http.MethodGet, "/pages/settings", nil), Session{RefreshToken: refresh}))
	require.Equal(t, http.StatusOK, first.Code)
	minted := cookiesByName(first)[AccessTokenCookie]
	require.NotNil(t, minted)

	second := f.serve(withSession(httptest.NewRequest(http.MethodGet, "/pages/settings", nil),
		Session{AccessToken: minted.Value, RefreshToken: refresh}))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Empty(t, second.Result().Cookies(), "a valid access cookie is not reminted")
	assert.Equal(t, 2, f.calls)
}

func TestGate_InvalidRefreshRedirects(t *testing.T) {
	t.Parallel()

	f := newGateFixture(t)
	access, err := f.tokens.IssueAccessToken(johnIdentity)
	require.NoError(t, err)

	cases := map[string]Session{
		"garbage refresh":         {RefreshToken: "garbage"},
		"access used as refresh":  {RefreshToken: access},
		"bad access, no refresh":  {AccessToken: "garbage"},
		"bad access, bad refresh": {AccessToken: "garbage", RefreshToken: "garbage"},
	}
	for name, session := range cases {
		rec := f.serve(withSession(httptest.NewRequest(http.MethodGet, "/dashboard", nil), session))
		assert.Equal(t, http.StatusTemporaryRedirect, rec.Code, name)
		assert.Equal(t, "/auth/login", rec.Header().Get("Location"), name)
		assert.Empty(t, rec.Result().Cookies(), name)
	}
	assert.Zero(t, f.calls)
}

func TestGate_RevokedRefreshRedirects(t *testing.T) {
	t.Parallel()

	f := newGateFixture(t)
	f.tokens.WithRevocations(newMemoryRevocations())
	refresh, err := f.tokens.IssueRefreshToken(johnIdentity)
	require.NoError(t, err)
	claims, err := f.tokens.Verify(refresh, RoleRefresh)
	require.NoError(t, err)
	require.NoError(t, f.tokens.Revoke(t.Context(), claims))

	rec := f.serve(withSession(httptest.NewRequest(http.MethodGet, "/dashboard", nil), Session{RefreshToken: refresh}))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
}

func TestNewGate_DefaultsLoginPath(t *testing.T) {
	t.Parallel()

	g := NewGate(newTestTokenService(t), NewCookiePolicy(true), observability.NewLoggerTo(io.Discard), " ", []string{"/dashboard"})
	rec := httptest.NewRecorder()
	g.Middleware(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
}
