package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"finance-tracker/internal/observability"
)

// LoginRateLimiter throttles login attempts with two per-process sliding
// windows: one per client address and one per submitted email. A request
// must fit in both. The email window holds against an attacker who rotates
// addresses to guess one account's password.
type LoginRateLimiter struct {
	mu        sync.Mutex
	maxHits   int
	window    time.Duration
	attempts  map[string][]time.Time
	maxMemory int
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxHits:   maxHits,
		window:    window,
		attempts:  make(map[string][]time.Time),
		maxMemory: 5000,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys := []string{"ip:" + observability.ClientIP(r)}
		if email := peekLoginEmail(r); email != "" {
			keys = append(keys, "email:"+email)
		}

		allowed, retryAfter := l.allow(keys, time.Now().UTC())
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// peekLoginEmail reads the email out of a login body and puts the body back
// for the handler. Anything unreadable counts as no email.
func peekLoginEmail(r *http.Request) string {
	if r.Body == nil {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBodyBytes+1))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var req loginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(req.Email))
}

// allow records one attempt under every key, or under none of them when any
// key is already at its limit. The retry delay is the longest wait among
// the exhausted keys.
func (l *LoginRateLimiter) allow(keys []string, now time.Time) (bool, time.Duration) {
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	var retryAfter time.Duration
	recent := make([][]time.Time, len(keys))
	for i, key := range keys {
		recent[i] = l.within(key, threshold)
		l.attempts[key] = recent[i]
		if len(recent[i]) >= l.maxHits {
			wait := recent[i][0].Add(l.window).Sub(now)
			if wait > retryAfter {
				retryAfter = wait
			}
		}
	}

	if retryAfter > 0 {
		return false, max(retryAfter, time.Second)
	}
	for i, key := range keys {
		l.attempts[key] = append(recent[i], now)
	}

	if len(l.attempts) > l.maxMemory {
		l.evictIdle(threshold)
	}

	return true, 0
}

func (l *LoginRateLimiter) within(key string, threshold time.Time) []time.Time {
	hits := l.attempts[key]
	kept := make([]time.Time, 0, len(hits)+1)
	for _, hit := range hits {
		if hit.After(threshold) {
			kept = append(kept, hit)
		}
	}
	return kept
}

func (l *LoginRateLimiter) evictIdle(threshold time.Time) {
	for key, hits := range l.attempts {
		if len(hits) == 0 || hits[len(hits)-1].Before(threshold) {
			delete(l.attempts, key)
		}
	}
}
