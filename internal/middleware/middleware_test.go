package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(userID uuid.UUID) *Claims {
	return &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestValidateToken(t *testing.T) {
	auth := NewAuthenticator(testSecret, zaptest.NewLogger(t))
	userID := uuid.New()

	got, err := auth.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(userID)))
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	// subject fallback
	subOnly := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	got, err = auth.ValidateToken(sign(t, jwt.SigningMethodHS256, []byte(testSecret), subOnly))
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims(userID))},
		{"wrong algorithm", sign(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims(userID))},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{
			UserID:           userID,
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		})},
		{"no expiry", sign(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{UserID: userID})},
		{"no user", sign(t, jwt.SigningMethodHS256, []byte(testSecret), &Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		})},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ValidateToken(tt.token)
			assert.Error(t, err)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthenticator(testSecret, zaptest.NewLogger(t))
	userID := uuid.New()

	var seen uuid.UUID
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	// Protected route without a token
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/vote", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong scheme
	req := httptest.NewRequest(http.MethodPost, "/vote", nil)
	req.Header.Set("Authorization", "Basic abc")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token
	req = httptest.NewRequest(http.MethodPost, "/vote", nil)
	req.Header.Set("Authorization", "Bearer "+sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(userID)))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, seen)

	// Unprotected route passes through anonymously
	seen = uuid.Nil
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uuid.Nil, seen)

	// Listings are public but writing to them is not
	for _, method := range []string{http.MethodPost, http.MethodDelete} {
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(method, "/comments", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, method)
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := CORSMiddleware(DefaultCORSConfig([]string{"https://scholar.example.edu"}))(next)

	// Preflight from an allowed origin
	req := httptest.NewRequest(http.MethodOptions, "/vote", nil)
	req.Header.Set("Origin", "https://scholar.example.edu")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://scholar.example.edu", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)

	// Unknown origin gets no CORS headers
	req = httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
