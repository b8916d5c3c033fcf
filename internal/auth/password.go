package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const PasswordCost = 12

// ErrUnexpected hides which hashing step failed.
var ErrUnexpected = errors.New("unexpected error")

type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = PasswordCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	return string(hash), nil
}

// Verify reports a mismatch as (false, nil). Any other bcrypt failure,
// such as a corrupt stored hash, is ErrUnexpected.
func (h *PasswordHasher) Verify(plain, hashed string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %w", ErrUnexpected, err)
}
