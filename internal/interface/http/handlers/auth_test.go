package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

func TestJWTAuth_Authenticate(t *testing.T) {
	auth := NewJWTAuth("secret", "admissions-hub", logger.Nop())

	tests := []struct {
		name    string
		claims  Claims
		want    application.Caller
		wantErr error
	}{
		{
			name:   "student",
			claims: Claims{UserID: "s-1", Role: "student"},
			want:   application.StudentCaller{User: "s-1"},
		},
		{
			name:   "agent",
			claims: Claims{UserID: "u-1", Role: "Agent", AgentID: "a-1"},
			want:   application.AgentCaller{User: "u-1", Agent: "a-1"},
		},
		{
			name:   "admin without agent profile",
			claims: Claims{UserID: "adm", Role: "admin"},
			want:   application.AdminCaller{User: "adm"},
		},
		{
			name:   "subject as user id",
			claims: Claims{Role: "student", RegisteredClaims: jwt.RegisteredClaims{Subject: "s-2"}},
			want:   application.StudentCaller{User: "s-2"},
		},
		{
			name:    "agent without profile",
			claims:  Claims{UserID: "u-2", Role: "agent"},
			wantErr: shared.ErrForbidden,
		},
		{
			name:    "unknown role",
			claims:  Claims{UserID: "u-3", Role: "guest"},
			wantErr: shared.ErrForbidden,
		},
		{
			name:    "missing identity",
			claims:  Claims{Role: "student"},
			wantErr: shared.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := auth.IssueToken(tt.claims, time.Hour)
			require.NoError(t, err)

			got, err := auth.Authenticate(token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJWTAuth_RejectsBadTokens(t *testing.T) {
	auth := NewJWTAuth("secret", "admissions-hub", logger.Nop())

	expired, err := auth.IssueToken(Claims{UserID: "s", Role: "student"}, -time.Minute)
	require.NoError(t, err)

	otherKey, err := NewJWTAuth("other", "admissions-hub", nil).IssueToken(Claims{UserID: "s", Role: "student"}, time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewJWTAuth("secret", "someone-else", nil).IssueToken(Claims{UserID: "s", Role: "student"}, time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "s", Role: "student"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"alg none":     none,
		"garbage":      "a.b.c",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := auth.Authenticate(token)
			assert.ErrorIs(t, err, shared.ErrUnauthorized)
		})
	}
}

func TestJWTAuth_Middleware(t *testing.T) {
	auth := NewJWTAuth("secret", "", logger.Nop())

	var gotErr error
	onError := func(w http.ResponseWriter, _ *http.Request, err error) {
		gotErr = err
		w.WriteHeader(http.StatusUnauthorized)
	}

	var seen application.Caller
	h := auth.Middleware(onError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("no header", func(t *testing.T) {
		gotErr = nil
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.ErrorIs(t, gotErr, shared.ErrUnauthorized)
	})

	t.Run("basic scheme", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid bearer", func(t *testing.T) {
		token, err := auth.IssueToken(Claims{UserID: "s-1", Role: "student"}, time.Minute)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer "+token)
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, application.StudentCaller{User: "s-1"}, seen)
	})
}
