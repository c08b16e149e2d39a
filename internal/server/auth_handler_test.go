package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonathan/content-studio/internal/config"
	"github.com/jonathan/content-studio/internal/types"
)

const (
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "correct horse battery"
)

func testPasswordConfig() *config.PasswordConfig {
	return &config.PasswordConfig{BcryptCost: bcrypt.MinCost}
}

func testAdminHash(t *testing.T) string {
	t.Helper()
	hash, err := testPasswordConfig().HashPassword(testAdminPassword)
	require.NoError(t, err)
	return hash
}

// setupTestAuthHandler creates an AuthHandler for the test admin account.
func setupTestAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	return NewAuthHandler(testAdminEmail, testAdminHash(t), testPasswordConfig(), setupTestJWTService(t, time.Hour), zerolog.Nop())
}

func postLogin(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestAuthHandler_Login_Success(t *testing.T) {
	handler := setupTestAuthHandler(t)

	w := postLogin(t, handler.Login, `{"email":" Admin@Example.com ","password":"correct horse battery"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.LoginResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, testAdminEmail, resp.Email)
	assert.NotEmpty(t, resp.Token)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	claims, err := handler.jwtService.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, testAdminEmail, claims.Subject)
}

func TestAuthHandler_Login_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"invalid json", "invalid json", http.StatusBadRequest, "Invalid request body"},
		{"missing email", `{"password":"x"}`, http.StatusBadRequest, "Email - required"},
		{"invalid email", `{"email":"nope","password":"x"}`, http.StatusBadRequest, "Email - email"},
		{"missing password", `{"email":"admin@example.com"}`, http.StatusBadRequest, "Password - required"},
		{"wrong password", `{"email":"admin@example.com","password":"wrong"}`, http.StatusUnauthorized, "invalid email or password"},
		{"unknown email", `{"email":"other@example.com","password":"correct horse battery"}`, http.StatusUnauthorized, "invalid email or password"},
	}

	handler := setupTestAuthHandler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postLogin(t, handler.Login, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestAuthHandler_NoAdminConfigured(t *testing.T) {
	handler := NewAuthHandler("", "", testPasswordConfig(), setupTestJWTService(t, time.Hour), zerolog.Nop())

	_, err := handler.Authenticate(types.LoginRequest{Email: "", Password: ""})
	assert.IsType(t, &ErrInvalidCredentials{}, err)

	w := postLogin(t, handler.Login, `{"email":"admin@example.com","password":"anything"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
