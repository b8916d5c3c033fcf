package auth

import (
	"context"
	"errors"

	"finance-tracker/internal/user"
)

var (
	ErrEmailInUse         = errors.New("email already in use")
	ErrUnknownEmail       = errors.New("no account for email")
	ErrWrongPassword      = errors.New("password mismatch")
	ErrUserCreationFailed = errors.New("user creation failed")
)

// UserStore is the persistence the auth core needs. user.Repository
// implements it on PostgreSQL.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	FindByID(ctx context.Context, id int64) (*user.User, error)
	Create(ctx context.Context, input user.NewUser) (*user.User, error)
	Update(ctx context.Context, id int64, changes user.Changes) (*user.User, error)
	Delete(ctx context.Context, id int64) (*user.User, error)
}

// Session is a freshly issued token pair.
type Session struct {
	AccessToken  string
	RefreshToken string
}

type SignupInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

type ProfileInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Password  *string
}

type Service struct {
	users  UserStore
	hasher *PasswordHasher
	tokens *TokenService
}

func NewService(users UserStore, hasher *PasswordHasher, tokens *TokenService) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens}
}

func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Signup checks the email, stores the user and issues a session. The
// existence check and the insert are separate statements; two concurrent
// signups for one email can both pass the check, and the unique index
// then rejects the second insert as ErrEmailInUse.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*user.User, Session, error) {
	_, err := s.users.FindByEmail(ctx, in.Email)
	if err == nil {
		return nil, Session{}, ErrEmailInUse
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, Session{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, Session{}, err
	}

	created, err := s.users.Create(ctx, user.NewUser{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, Session{}, ErrEmailInUse
		}
		return nil, Session{}, err
	}
	if created == nil || created.ID == 0 {
		return nil, Session{}, ErrUserCreationFailed
	}

	session, err := s.issueSession(created)
	if err != nil {
		return nil, Session{}, err
	}

	return created, session, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*user.User, Session, error) {
	found, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, Session{}, ErrUnknownEmail
		}
		return nil, Session{}, err
	}

	ok, err := s.hasher.Verify(password, found.PasswordHash)
	if err != nil {
		return nil, Session{}, err
	}
	if !ok {
		return nil, Session{}, ErrWrongPassword
	}

	session, err := s.issueSession(found)
	if err != nil {
		return nil, Session{}, err
	}

	return found, session, nil
}

// Authenticate verifies an access token for a resource handler. Handlers
// never renew sessions; that is the gate's job.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Claims, error) {
	return s.tokens.Authenticate(ctx, accessToken, RoleAccess)
}

// Logout confirms the account still exists and revokes the presented
// tokens when the denylist is enabled. Clearing cookies is up to the caller.
func (s *Service) Logout(ctx context.Context, claims *Claims, refreshToken string) error {
	if _, err := s.users.FindByID(ctx, claims.UserID); err != nil {
		return err
	}

	return s.revokeSession(ctx, claims, refreshToken)
}

// DeleteAccount removes the user, then revokes the presented tokens. A
// failed delete leaves the session usable.
func (s *Service) DeleteAccount(ctx context.Context, claims *Claims, refreshToken string) (*user.User, error) {
	if _, err := s.users.FindByID(ctx, claims.UserID); err != nil {
		return nil, err
	}

	deleted, err := s.users.Delete(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.revokeSession(ctx, claims, refreshToken); err != nil {
		return nil, err
	}

	return deleted, nil
}

func (s *Service) Profile(ctx context.Context, claims *Claims) (*user.User, error) {
	return s.users.FindByID(ctx, claims.UserID)
}

func (s *Service) UpdateProfile(ctx context.Context, claims *Claims, in ProfileInput) (*user.User, error) {
	changes := user.Changes{
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, err
		}
		changes.PasswordHash = &hash
	}

	current, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if changes.Empty() {
		return current, nil
	}

	updated, err := s.users.Update(ctx, claims.UserID, changes)
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}

	return updated, nil
}

func (s *Service) issueSession(u *user.User) (Session, error) {
	id := Identity{ID: u.ID, Email: u.Email}

	access, err := s.tokens.IssueAccessToken(id)
	if err != nil {
		return Session{}, err
	}
	refresh, err := s.tokens.IssueRefreshToken(id)
	if err != nil {
		return Session{}, err
	}

	return Session{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) revokeSession(ctx context.Context, accessClaims *Claims, refreshToken string) error {
	if !s.tokens.RevocationEnabled() {
		return nil
	}

	if err := s.tokens.Revoke(ctx, accessClaims); err != nil {
		return err
	}

	if refreshToken == "" {
		return nil
	}
	refreshClaims, err := s.tokens.Verify(refreshToken, RoleRefresh)
	if err != nil {
		// Nothing to revoke: the refresh token is already unusable.
		return nil
	}
	if refreshClaims.UserID != accessClaims.UserID {
		return errors.New("refresh token belongs to another user")
	}

	return s.tokens.Revoke(ctx, refreshClaims)
}
