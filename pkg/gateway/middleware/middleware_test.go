package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscanner/api/pkg/common/logger"
	"github.com/mediscanner/api/pkg/common/models"
	"github.com/mediscanner/api/pkg/gateway/auth"
)

type stubSessions struct {
	err    error
	userID uuid.UUID
	jti    string
}

func (s *stubSessions) ValidateSession(_ context.Context, userID uuid.UUID, tokenID string) error {
	s.userID, s.jti = userID, tokenID
	return s.err
}

func newTokens(t *testing.T) *auth.JWTManager {
	t.Helper()
	m, err := auth.NewJWTManager("middleware-test-secret", "HS256", "mediscanner-api", time.Hour)
	require.NoError(t, err)
	return m
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var body models.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthenticateAttachesIdentity(t *testing.T) {
	tokens := newTokens(t)
	user := models.User{ID: uuid.New(), Email: "a@example.com"}
	token, claims, err := tokens.IssueToken(user)
	require.NoError(t, err)

	sessions := &stubSessions{}
	var got models.Identity
	h := Authenticate(tokens, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/medicine/usersMedicalData", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, "a@example.com", got.Email)
	assert.Equal(t, claims.ID, got.TokenID)
	assert.Equal(t, claims.ID, sessions.jti)
}

func TestAuthenticateRejects(t *testing.T) {
	tokens := newTokens(t)
	token, _, err := tokens.IssueToken(models.User{ID: uuid.New()})
	require.NoError(t, err)

	cases := map[string]struct {
		header   string
		sessions *stubSessions
	}{
		"missing header": {"", &stubSessions{}},
		"wrong scheme":   {"Basic " + token, &stubSessions{}},
		"garbage token":  {"Bearer not.a.token", &stubSessions{}},
		"ended session":  {"Bearer " + token, &stubSessions{err: errors.New("session has ended")}},
		"empty bearer":   {"Bearer   ", &stubSessions{}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			called := false
			h := Authenticate(tokens, tc.sessions)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			body := decodeEnvelope(t, rec)
			assert.False(t, body.Success)
			assert.Equal(t, "Could not validate credentials", body.Message)
		})
	}
}

func TestLoggingSetsRequestID(t *testing.T) {
	var out strings.Builder
	logger.InitWithOutput(&out, "info")

	h := Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	reqID := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, reqID)
	assert.Contains(t, out.String(), reqID)
	assert.Contains(t, out.String(), `"status":418`)
}

func TestRecoveryReturnsEnvelope(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("preflight reached handler")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/medicine/search", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
