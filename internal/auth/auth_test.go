package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	v, err := NewVerifier("test-secret", time.Hour)
	require.NoError(t, err)

	token, err := v.Issue("user-42")
	require.NoError(t, err)

	uid, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-42", uid)
}

func TestNewVerifier_EmptySecret(t *testing.T) {
	_, err := NewVerifier("", time.Hour)
	require.Error(t, err)
}

func TestVerify_Rejects(t *testing.T) {
	v, err := NewVerifier("test-secret", time.Hour)
	require.NoError(t, err)

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify("not.a.token")
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewVerifier("other-secret", time.Hour)
		require.NoError(t, err)
		token, err := other.Issue("user-42")
		require.NoError(t, err)
		_, err = v.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		now := time.Now().Add(-2 * time.Hour)
		claims := Claims{
			UserID: "user-42",
			RegisteredClaims: jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = v.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no identity", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = v.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestVerify_SubjectFallback(t *testing.T) {
	v, err := NewVerifier("test-secret", time.Hour)
	require.NoError(t, err)

	claims := jwt.RegisteredClaims{
		Subject:   "subject-7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	uid, err := v.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "subject-7", uid)
}

func TestMiddleware(t *testing.T) {
	v, err := NewVerifier("test-secret", time.Hour)
	require.NoError(t, err)

	var gotUID string
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUID, _ = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("no header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer junk")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := v.Issue("user-42")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user-42", gotUID)
	})
}

func TestUserID_AbsentFromContext(t *testing.T) {
	_, ok := UserID(context.Background())
	require.False(t, ok)
}
