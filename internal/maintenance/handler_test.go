package maintenance

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/observability"
)

type stubCleaner struct {
	calls     int
	retention time.Duration
	batchSize int
	result    auth.CleanupResult
	err       error
}

func (s *stubCleaner) CleanupExpiredRevocations(ctx context.Context, retention time.Duration, batchSize int) (auth.CleanupResult, error) {
	s.calls++
	s.retention = retention
	s.batchSize = batchSize
	return s.result, s.err
}

func newTestHandler(cleaner *stubCleaner, secret string) *CleanupHandler {
	return NewCleanupHandler(cleaner, observability.NewLoggerTo(io.Discard), secret, 24*time.Hour, 100)
}

func cleanupRequest(method, bearer string) *http.Request {
	req := httptest.NewRequest(method, "/internal/maintenance/cleanup", nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req
}

func TestCleanupHandler_DisabledWithoutSecret(t *testing.T) {
	cleaner := &stubCleaner{}
	rec := httptest.NewRecorder()
	newTestHandler(cleaner, "  ").Handle(rec, cleanupRequest(http.MethodPost, "anything"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, cleaner.calls)
}

func TestCleanupHandler_RejectsBadSecret(t *testing.T) {
	cleaner := &stubCleaner{}
	h := newTestHandler(cleaner, "cron-secret")

	for _, bearer := range []string{"", "wrong", "cron-secret-x"} {
		rec := httptest.NewRecorder()
		h.Handle(rec, cleanupRequest(http.MethodPost, bearer))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, bearer)
	}
	assert.Zero(t, cleaner.calls)
}

func TestCleanupHandler_Runs(t *testing.T) {
	cleaner := &stubCleaner{result: auth.CleanupResult{DeletedRevokedTokens: 7}}
	rec := httptest.NewRecorder()
	newTestHandler(cleaner, "cron-secret").Handle(rec, cleanupRequest(http.MethodGet, "cron-secret"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","result":{"deleted_revoked_tokens":7}}`, rec.Body.String())
	assert.Equal(t, 1, cleaner.calls)
	assert.Equal(t, 24*time.Hour, cleaner.retention)
	assert.Equal(t, 100, cleaner.batchSize)
}

func TestCleanupHandler_Failure(t *testing.T) {
	cleaner := &stubCleaner{err: errors.New("db down")}
	rec := httptest.NewRecorder()
	newTestHandler(cleaner, "cron-secret").Handle(rec, cleanupRequest(http.MethodPost, "cron-secret"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"cleanup failed"}`, rec.Body.String())
}
