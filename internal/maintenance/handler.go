package maintenance

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/observability"
)

// RevocationCleaner is satisfied by auth.Repository.
type RevocationCleaner interface {
	CleanupExpiredRevocations(ctx context.Context, retention time.Duration, batchSize int) (auth.CleanupResult, error)
}

type CleanupHandler struct {
	repo       RevocationCleaner
	logger     *observability.Logger
	cronSecret string
	retention  time.Duration
	batchSize  int
}

func NewCleanupHandler(
	repo RevocationCleaner,
	logger *observability.Logger,
	cronSecret string,
	retention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		repo:       repo,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		retention:  retention,
		batchSize:  batchSize,
	}
}

// Handle is called by the scheduler with "Authorization: Bearer <CRON_SECRET>".
// The route reports 404 when no secret is configured.
func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || !sameSecret(strings.TrimSpace(parts[1]), h.cronSecret) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	result, err := h.repo.CleanupExpiredRevocations(r.Context(), h.retention, h.batchSize)
	if err != nil {
		sentry.CaptureException(err)
		h.logger.Error("denylist_cleanup_failed", map[string]any{
			"error":      err.Error(),
			"request_id": observability.RequestID(r.Context()),
		})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("denylist_cleanup_completed", map[string]any{
		"deleted_revoked_tokens": result.DeletedRevokedTokens,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func sameSecret(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
