package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
)

type Role string

const (
	RoleAccess  Role = "access"
	RoleRefresh Role = "refresh"
)

func (r Role) TTL() time.Duration {
	if r == RoleRefresh {
		return RefreshTokenTTL
	}
	return AccessTokenTTL
}

// ErrInvalidToken is what callers match on. The more specific errors
// below all wrap it and exist for logs and tests only.
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrTokenMalformed = fmt.Errorf("%w: malformed or bad signature", ErrInvalidToken)
	ErrTokenRevoked   = fmt.Errorf("%w: revoked", ErrInvalidToken)
)

// Identity is the minimal claim a token carries.
type Identity struct {
	ID    int64
	Email string
}

type Claims struct {
	UserID int64  `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{ID: c.UserID, Email: c.Email}
}

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
}

// RevocationStore backs the optional token denylist.
type RevocationStore interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	revocations   RevocationStore
	now           func() time.Time
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	access := strings.TrimSpace(cfg.AccessSecret)
	refresh := strings.TrimSpace(cfg.RefreshSecret)
	if access == "" || refresh == "" {
		return nil, errors.New("access and refresh secrets are required")
	}
	if access == refresh {
		return nil, errors.New("access and refresh secrets must differ")
	}

	return &TokenService{
		accessSecret:  []byte(access),
		refreshSecret: []byte(refresh),
		now:           time.Now,
	}, nil
}

// WithRevocations enables the denylist consulted by Authenticate.
func (s *TokenService) WithRevocations(store RevocationStore) {
	s.revocations = store
}

func (s *TokenService) RevocationEnabled() bool {
	return s.revocations != nil
}

func (s *TokenService) IssueAccessToken(id Identity) (string, error) {
	return s.issue(id, RoleAccess)
}

func (s *TokenService) IssueRefreshToken(id Identity) (string, error) {
	return s.issue(id, RoleRefresh)
}

func (s *TokenService) issue(id Identity, role Role) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		UserID: id.ID,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(role.TTL())),
		},
	}

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret(role))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", role, err)
	}

	return encoded, nil
}

// Verify checks signature and expiry against the secret of the given
// role only. It does not consult the denylist.
func (s *TokenService) Verify(token string, role Role) (*Claims, error) {
	return ParseToken(token, s.secret(role), s.now)
}

// Authenticate is Verify plus the denylist check when one is configured.
func (s *TokenService) Authenticate(ctx context.Context, token string, role Role) (*Claims, error) {
	claims, err := s.Verify(token, role)
	if err != nil {
		return nil, err
	}
	if s.revocations == nil || claims.ID == "" {
		return claims, nil
	}

	revoked, err := s.revocations.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// Revoke adds the token to the denylist until its natural expiry. It is a
// no-op when no denylist is configured.
func (s *TokenService) Revoke(ctx context.Context, claims *Claims) error {
	if s.revocations == nil || claims == nil || claims.ID == "" {
		return nil
	}

	expiresAt := s.now().UTC().Add(RefreshTokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := s.revocations.RevokeToken(ctx, claims.ID, expiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *TokenService) secret(role Role) []byte {
	if role == RoleRefresh {
		return s.refreshSecret
	}
	return s.accessSecret
}

// ParseToken verifies an HS256 token against secret. Expired tokens yield
// ErrTokenExpired; everything else that fails yields ErrTokenMalformed.
func ParseToken(token string, secret []byte, now func() time.Time) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrTokenMalformed
	}
	if now == nil {
		now = time.Now
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}
	if !parsed.Valid || claims.UserID == 0 {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
