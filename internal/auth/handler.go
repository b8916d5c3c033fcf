package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"finance-tracker/internal/observability"
)

const maxJSONBodyBytes = 1 << 20

const (
	msgInvalidBody        = "invalid json body"
	msgEmailInUse         = "Email already in use"
	msgUserCreationFailed = "User creation failed"
	msgInvalidCredentials = "Invalid email or password"
	msgLoginSuccessful    = "Login successful"
	msgUnexpected         = "An unexpected error occurred"
)

type Handler struct {
	service *Service
	cookies CookiePolicy
	logger  *observability.Logger
}

func NewHandler(service *Service, cookies CookiePolicy, logger *observability.Logger) *Handler {
	return &Handler{service: service, cookies: cookies, logger: logger}
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var body signupRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	body.normalize()
	if errs := body.validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	created, session, err := h.service.Signup(r.Context(), SignupInput{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Email:     body.Email,
		Password:  body.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailInUse):
			writeError(w, http.StatusConflict, msgEmailInUse)
		case errors.Is(err, ErrUserCreationFailed):
			h.internalError(w, r, "signup_failed", err, msgUserCreationFailed)
		default:
			h.internalError(w, r, "signup_failed", err, msgUnexpected)
		}
		return
	}

	h.cookies.SetSession(w, session.AccessToken, session.RefreshToken)
	h.logger.Info("user_signed_up", map[string]any{
		"user_id":    created.ID,
		"request_id": observability.RequestID(r.Context()),
	})
	writeJSON(w, http.StatusCreated, map[string]any{"user": created})
}

// Login answers an unknown email with 409 and a wrong password with 401.
// Both carry the same message.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	body.normalize()
	if errs := body.validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	found, session, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownEmail):
			writeError(w, http.StatusConflict, msgInvalidCredentials)
		case errors.Is(err, ErrWrongPassword):
			writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
		default:
			h.internalError(w, r, "login_failed", err, msgUnexpected)
		}
		return
	}

	h.cookies.SetSession(w, session.AccessToken, session.RefreshToken)
	h.logger.Info("user_logged_in", map[string]any{
		"user_id":    found.ID,
		"request_id": observability.RequestID(r.Context()),
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": msgLoginSuccessful})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, event string, err error, message string) {
	sentry.CaptureException(err)
	h.logger.Error(event, map[string]any{
		"error":      err.Error(),
		"path":       r.URL.Path,
		"request_id": observability.RequestID(r.Context()),
	})
	writeError(w, http.StatusInternalServerError, message)
}

// decodeJSON reads one JSON object. Unknown fields are ignored so form
// payloads with extra keys still validate.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeValidation(w http.ResponseWriter, errs []FieldError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
}
