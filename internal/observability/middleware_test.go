package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDMiddleware_GeneratesAndPropagates(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDMiddleware_KeepsIncomingID(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-42", seen)
}

func TestRequestLoggingMiddleware_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf)

	handler := RequestLoggingMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "http_request", entry["message"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.Equal(t, "/auth/login", entry["path"])
	assert.Equal(t, "203.0.113.7", entry["ip"])
}

func TestRecoverMiddleware_Returns500(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf)

	handler := RecoverMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
	assert.True(t, strings.Contains(buf.String(), "panic_recovered"))
}

func TestClientIP_IgnoresForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:5123"
	assert.Equal(t, "198.51.100.4", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "198.51.100.4", ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ""
	assert.Equal(t, "unknown", ClientIP(req))
}

func TestForwardedForMiddleware_UsesLastHop(t *testing.T) {
	var seen string
	handler := ForwardedForMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientIP(r)
	}))

	cases := []struct {
		name    string
		headers []string
		want    string
	}{
		{name: "no header", want: "192.0.2.1"},
		{name: "single hop", headers: []string{"203.0.113.9"}, want: "203.0.113.9"},
		{name: "spoofed first hop", headers: []string{" 10.9.9.9 , 203.0.113.9 "}, want: "203.0.113.9"},
		{name: "repeated header", headers: []string{"10.9.9.9", "203.0.113.7"}, want: "203.0.113.7"},
		{name: "ipv6", headers: []string{"2001:db8::1"}, want: "2001:db8::1"},
		{name: "garbage", headers: []string{"not-an-ip"}, want: "192.0.2.1"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, h := range tc.headers {
			req.Header.Add("X-Forwarded-For", h)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, tc.want, seen, tc.name)
	}
}
