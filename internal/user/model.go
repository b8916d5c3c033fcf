package user

import (
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

// User is the stored account. PasswordHash never leaves the server.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Snapshot is the public subset returned by get-user and delete-user.
type Snapshot struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (u User) Snapshot() Snapshot {
	return Snapshot{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
}

// Changes holds a partial profile update; nil fields are left as stored.
type Changes struct {
	Email        *string
	PasswordHash *string
	FirstName    *string
	LastName     *string
}

func (c Changes) Empty() bool {
	return c.Email == nil && c.PasswordHash == nil && c.FirstName == nil && c.LastName == nil
}
