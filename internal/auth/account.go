package auth

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"finance-tracker/internal/observability"
	"finance-tracker/internal/user"
)

const (
	msgUnauthorized     = "Unauthorized"
	msgNoTokenProvided  = "Unauthorized: No token provided"
	msgInvalidToken     = "Invalid token"
	msgUserNotFound     = "User not found"
	msgLogoutSuccessful = "Logout successful"
	msgUserDeleted      = "User deleted successfully"
)

// The account handlers verify the access cookie themselves and never renew
// a session. For a bad token, logout and get-user answer 401 while
// delete-user and update-user answer 500.

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := tokenFromCookie(r, RoleAccess)
	if token == "" {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	claims, err := h.service.Authenticate(r.Context(), token)
	if err != nil {
		h.rejectToken(w, r, http.StatusUnauthorized, err)
		return
	}

	if err := h.service.Logout(r.Context(), claims, tokenFromCookie(r, RoleRefresh)); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		h.rejectToken(w, r, http.StatusUnauthorized, err)
		return
	}

	h.cookies.ClearSession(w)
	h.logger.Info("user_logged_out", map[string]any{
		"user_id":    claims.UserID,
		"request_id": observability.RequestID(r.Context()),
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": msgLogoutSuccessful})
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	token := tokenFromCookie(r, RoleAccess)
	if token == "" {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	claims, err := h.service.Authenticate(r.Context(), token)
	if err != nil {
		h.rejectToken(w, r, http.StatusInternalServerError, err)
		return
	}

	deleted, err := h.service.DeleteAccount(r.Context(), claims, tokenFromCookie(r, RoleRefresh))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		h.internalError(w, r, "delete_account_failed", err, msgUnexpected)
		return
	}

	h.cookies.ClearSession(w)
	h.logger.Info("user_deleted", map[string]any{
		"user_id":    deleted.ID,
		"request_id": observability.RequestID(r.Context()),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     msgUserDeleted,
		"deletedUser": deleted.Snapshot(),
	})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	token := tokenFromCookie(r, RoleAccess)
	if token == "" {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	claims, err := h.service.Authenticate(r.Context(), token)
	if err != nil {
		h.rejectToken(w, r, http.StatusUnauthorized, err)
		return
	}

	found, err := h.service.Profile(r.Context(), claims)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		h.rejectToken(w, r, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, found.Snapshot())
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	token := tokenFromCookie(r, RoleAccess)
	if token == "" {
		writeError(w, http.StatusUnauthorized, msgNoTokenProvided)
		return
	}

	claims, err := h.service.Authenticate(r.Context(), token)
	if err != nil {
		h.rejectToken(w, r, http.StatusInternalServerError, err)
		return
	}

	var body updateRequest
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	body.normalize()
	if errs := body.validate(); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), claims, body.input())
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			writeError(w, http.StatusNotFound, msgUserNotFound)
		case errors.Is(err, ErrEmailInUse):
			writeError(w, http.StatusConflict, msgEmailInUse)
		default:
			h.internalError(w, r, "update_user_failed", err, msgUnexpected)
		}
		return
	}

	writeJSON(w, http.StatusOK, updated.Snapshot())
}

// rejectToken answers a failed token check with "Invalid token" and the
// given status. Failures that are not token problems are still reported.
func (h *Handler) rejectToken(w http.ResponseWriter, r *http.Request, status int, err error) {
	if !errors.Is(err, ErrInvalidToken) {
		sentry.CaptureException(err)
		h.logger.Error("token_check_failed", map[string]any{
			"error":      err.Error(),
			"path":       r.URL.Path,
			"request_id": observability.RequestID(r.Context()),
		})
	}
	writeError(w, status, msgInvalidToken)
}
