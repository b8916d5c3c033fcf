package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidEmail(t *testing.T) {
	t.Parallel()

	valid := []string{"john@example.com", "j.doe+tag@mail.example.org"}
	invalid := []string{"", "john", "john@", "@example.com", "john@localhost", "John <john@example.com>", "john @example.com"}

	for _, v := range valid {
		assert.True(t, validEmail(v), v)
	}
	for _, v := range invalid {
		assert.False(t, validEmail(v), v)
	}
}

func TestSignupRequest_Validate(t *testing.T) {
	t.Parallel()

	ok := signupRequest{FirstName: "John", LastName: "Doe", Email: "john@example.com", Password: "password123"}
	assert.Empty(t, ok.validate())

	bad := signupRequest{FirstName: "J", LastName: "", Email: "nope", Password: "short"}
	errs := bad.validate()
	require.Len(t, errs, 4)
	assert.Equal(t, FieldError{Field: "firstName", Message: "First name must be at least 2 characters"}, errs[0])
	assert.Equal(t, "lastName", errs[1].Field)
	assert.Equal(t, FieldError{Field: "email", Message: "Invalid email"}, errs[2])
	assert.Equal(t, FieldError{Field: "password", Message: "Password must be at least 8 characters"}, errs[3])
}

func TestLoginRequest_NormalizeTrimsEmailOnly(t *testing.T) {
	t.Parallel()

	req := loginRequest{Email: "  john@example.com ", Password: " password1 "}
	req.normalize()
	assert.Equal(t, "john@example.com", req.Email)
	assert.Equal(t, " password1 ", req.Password)
	assert.Empty(t, req.validate())
}

func TestUpdateRequest_OptionalFields(t *testing.T) {
	t.Parallel()

	assert.Empty(t, updateRequest{}.validate())

	req := updateRequest{FirstName: "Jo", Password: "1234"}
	errs := req.validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "password", errs[0].Field)

	in := updateRequest{LastName: "Smith"}.input()
	assert.Nil(t, in.FirstName)
	assert.Nil(t, in.Email)
	require.NotNil(t, in.LastName)
	assert.Equal(t, "Smith", *in.LastName)
}

func TestPasswordLengthBounds(t *testing.T) {
	t.Parallel()

	base := signupRequest{FirstName: "John", LastName: "Doe", Email: "john@example.com"}

	base.Password = strings.Repeat("a", 72)
	assert.Empty(t, base.validate())

	base.Password = strings.Repeat("a", 73)
	assert.Equal(t, []FieldError{{Field: "password", Message: "Password must be at most 72 bytes"}}, base.validate())

	// Eight characters but more than 72 bytes once encoded.
	base.Password = strings.Repeat("€", 25)
	assert.Equal(t, "Password must be at most 72 bytes", base.validate()[0].Message)

	update := updateRequest{Password: strings.Repeat("a", 73)}
	assert.Equal(t, []FieldError{{Field: "password", Message: "Password must be at most 72 bytes"}}, update.validate())

	assert.Empty(t, loginRequest{Email: "john@example.com", Password: strings.Repeat("a", 80)}.validate())
}
