package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeVerifier struct {
	valid map[string]string
}

func (f fakeVerifier) Verify(token string) (string, error) {
	if sub, ok := f.valid[token]; ok {
		return sub, nil
	}
	return "", errors.New("invalid token")
}

func TestRequireClient(t *testing.T) {
	verifier := fakeVerifier{valid: map[string]string{"good-token": "mobile-app"}}
	testCases := []struct {
		name       string
		header     string
		wantCode   int
		wantClient string
	}{
		{"valid", "Bearer good-token", http.StatusOK, "mobile-app"},
		{"case insensitive scheme", "bearer good-token", http.StatusOK, "mobile-app"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic good-token", http.StatusUnauthorized, ""},
		{"invalid token", "Bearer forged", http.StatusUnauthorized, ""},
		{"empty token", "Bearer   ", http.StatusUnauthorized, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var gotClient string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotClient = ClientFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})
			var logs bytes.Buffer
			h := RequireClient(verifier, zerolog.New(&logs))(next)

			req := httptest.NewRequest(http.MethodPost, "/registration/api/v1/register", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantClient, gotClient)
			if tc.wantCode == http.StatusUnauthorized {
				assert.JSONEq(t, `{"status":401,"data":[],"message":"Unauthorized"}`, rec.Body.String())
				assert.NotContains(t, logs.String(), "good-token")
			}
		})
	}
}

func TestRequireClient_NilVerifierPassesThrough(t *testing.T) {
	called := false
	h := RequireClient(nil, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	assert.True(t, called)
}

func TestExtractBearer(t *testing.T) {
	assert.Equal(t, "abc", extractBearer("Bearer abc"))
	assert.Equal(t, "abc", extractBearer("  BEARER   abc  "))
	assert.Equal(t, "", extractBearer("Bear"))
	assert.Equal(t, "", extractBearer("Token abc"))
}
