package httpsync

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTokenKey = []byte("0123456789abcdef0123456789abcdef")

func TestToken_RoundTrip(t *testing.T) {
	token, err := IssueToken(testTokenKey, "node-a", time.Minute)
	require.NoError(t, err)

	claims, err := ValidateToken(testTokenKey, token)
	require.NoError(t, err)
	assert.Equal(t, "node-a", claims.Subject)
	assert.Equal(t, TokenIssuer, claims.Issuer)
}

func TestToken_Rejects(t *testing.T) {
	expired, err := IssueToken(testTokenKey, "node-a", -time.Minute)
	require.NoError(t, err)
	noSubject, err := IssueToken(testTokenKey, "", time.Minute)
	require.NoError(t, err)
	otherKey, err := IssueToken([]byte("another-key-another-key-another!!"), "node-a", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "expired", token: expired},
		{name: "no subject", token: noSubject},
		{name: "wrong key", token: otherKey},
		{name: "malformed", token: "invalid.token.here"},
		{name: "empty", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateToken(testTokenKey, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	valid, err := IssueToken(testTokenKey, "node-a", time.Minute)
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := PeerID(r.Context())
		require.True(t, ok, "peer id should be in context")
		assert.Equal(t, "node-a", id)
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware(discardLogger(), testTokenKey)(next)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantBody string
	}{
		{name: "valid", header: "Bearer " + valid, wantCode: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + valid, wantCode: http.StatusOK},
		{name: "missing", header: "", wantCode: http.StatusUnauthorized, wantBody: "missing token"},
		{name: "no Bearer prefix", header: valid, wantCode: http.StatusUnauthorized, wantBody: "invalid token format"},
		{name: "wrong scheme", header: "Basic " + valid, wantCode: http.StatusUnauthorized, wantBody: "invalid token format"},
		{name: "bad token", header: "Bearer random", wantCode: http.StatusUnauthorized, wantBody: "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, PathHello, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	var captured *responseWriter
	handler := LoggingMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = w.(*responseWriter)
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	require.NotNil(t, captured)
	assert.Equal(t, http.StatusTeapot, captured.statusCode)
	assert.Equal(t, int64(len("short and stout")), captured.written)
}
