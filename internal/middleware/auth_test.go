package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamgam/couple-game-server/internal/model"
)

type mockUserRepo struct {
	findByIDFunc func(ctx context.Context, id string) (*model.UserProfile, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

const testSecret = "test-secret-for-auth-middleware-0123456789"

func signedToken(t *testing.T, subject, secret string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	partner := "user-2"
	testUser := &model.UserProfile{
		ID:        "user-1",
		PartnerID: &partner,
	}
	userRepo := &mockUserRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.UserProfile, error) {
			if id == "user-1" {
				return testUser, nil
			}
			return nil, nil
		},
	}

	t.Run("allows request with valid bearer token", func(t *testing.T) {
		middleware := NewAuthMiddleware(userRepo, testSecret)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r.Context())
			require.NotNil(t, user)
			assert.Equal(t, "user-1", user.ID)
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1", testSecret, time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("allows request with query token", func(t *testing.T) {
		middleware := NewAuthMiddleware(userRepo, testSecret)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest("GET", "/test?token="+signedToken(t, "user-1", testSecret, time.Now().Add(time.Hour)), nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects request without token", func(t *testing.T) {
		middleware := NewAuthMiddleware(userRepo, testSecret)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects token signed with a different secret", func(t *testing.T) {
		middleware := NewAuthMiddleware(userRepo, testSecret)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1", "another-secret-another-secret-12345", time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		middleware := NewAuthMiddleware(userRepo, testSecret)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1", testSecret, time.Now().Add(-time.Hour)))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects valid token for unknown user", func(t *testing.T) {
		middleware := NewAuthMiddleware(userRepo, testSecret)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "ghost", testSecret, time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns 500 on database error", func(t *testing.T) {
		failingRepo := &mockUserRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.UserProfile, error) {
				return nil, errors.New("database error")
			},
		}
		middleware := NewAuthMiddleware(failingRepo, testSecret)
		handler := middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler should not be called")
		}))

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, "user-1", testSecret, time.Now().Add(time.Hour)))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestGetUser(t *testing.T) {
	t.Run("returns user from context", func(t *testing.T) {
		user := &model.UserProfile{ID: "test-id"}
		ctx := context.WithValue(context.Background(), UserContextKey, user)

		result := GetUser(ctx)

		require.NotNil(t, result)
		assert.Equal(t, "test-id", result.ID)
	})

	t.Run("returns nil when no user in context", func(t *testing.T) {
		assert.Nil(t, GetUser(context.Background()))
	})
}
