package auth

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	minNameLength     = 2

	// bcrypt only accepts passwords up to 72 bytes.
	maxPasswordBytes = 72
)

const (
	msgPasswordTooShort = "Password must be at least 8 characters"
	msgPasswordTooLong  = "Password must be at most 72 bytes"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type signupRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// updateRequest fields are optional; an empty string counts as absent.
type updateRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (r *signupRequest) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
}

func (r signupRequest) validate() []FieldError {
	var errs []FieldError
	errs = appendIf(errs, !validName(r.FirstName), "firstName", "First name must be at least 2 characters")
	errs = appendIf(errs, !validName(r.LastName), "lastName", "Last name must be at least 2 characters")
	errs = appendIf(errs, !validEmail(r.Email), "email", "Invalid email")
	return appendPasswordError(errs, r.Password)
}

func (r *loginRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

func (r loginRequest) validate() []FieldError {
	var errs []FieldError
	errs = appendIf(errs, !validEmail(r.Email), "email", "Invalid email")
	errs = appendIf(errs, !validPassword(r.Password), "password", msgPasswordTooShort)
	return errs
}

func (r *updateRequest) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
}

func (r updateRequest) validate() []FieldError {
	var errs []FieldError
	errs = appendIf(errs, r.FirstName != "" && !validName(r.FirstName), "firstName", "First name must be at least 2 characters")
	errs = appendIf(errs, r.LastName != "" && !validName(r.LastName), "lastName", "Last name must be at least 2 characters")
	errs = appendIf(errs, r.Email != "" && !validEmail(r.Email), "email", "Invalid email")
	if r.Password != "" {
		errs = appendPasswordError(errs, r.Password)
	}
	return errs
}

func (r updateRequest) input() ProfileInput {
	return ProfileInput{
		FirstName: optional(r.FirstName),
		LastName:  optional(r.LastName),
		Email:     optional(r.Email),
		Password:  optional(r.Password),
	}
}

func validEmail(value string) bool {
	if value == "" || strings.ContainsAny(value, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return false
	}
	at := strings.LastIndex(value, "@")
	return at > 0 && strings.Contains(value[at+1:], ".")
}

func validName(value string) bool {
	return utf8.RuneCountInString(value) >= minNameLength
}

func validPassword(value string) bool {
	return utf8.RuneCountInString(value) >= minPasswordLength
}

// appendPasswordError checks a password that is about to be hashed. Login
// only enforces the minimum, since a longer guess just fails to match.
func appendPasswordError(errs []FieldError, password string) []FieldError {
	errs = appendIf(errs, !validPassword(password), "password", msgPasswordTooShort)
	return appendIf(errs, len(password) > maxPasswordBytes, "password", msgPasswordTooLong)
}

func appendIf(errs []FieldError, failed bool, field, message string) []FieldError {
	if !failed {
		return errs
	}
	return append(errs, FieldError{Field: field, Message: message})
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
