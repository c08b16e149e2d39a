package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/jonathan/content-studio/internal/config"
	"github.com/jonathan/content-studio/internal/types"
)

// AuthHandler handles console login. The console has a single admin account
// whose bcrypt hash comes from configuration.
type AuthHandler struct {
	adminEmail string
	adminHash  string
	passwords  *config.PasswordConfig
	jwtService *JWTService
	validator  *validator.Validate
	logger     zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(adminEmail, adminHash string, passwords *config.PasswordConfig, jwtService *JWTService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
		adminHash:  adminHash,
		passwords:  passwords,
		jwtService: jwtService,
		validator:  validator.New(),
		logger:     logger,
	}
}

// Authenticate checks credentials against the configured admin account.
func (h *AuthHandler) Authenticate(req types.LoginRequest) (string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	emailOK := h.adminEmail != "" && subtle.ConstantTimeCompare([]byte(email), []byte(h.adminEmail)) == 1
	// Always run bcrypt so a wrong email costs as much as a wrong password
	passwordOK := h.passwords.VerifyPassword(req.Password, h.adminHash)
	if !emailOK || !passwordOK {
		return "", &ErrInvalidCredentials{}
	}
	return email, nil
}

// Login handles admin login requests.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		http.Error(w, extractValidationErrors(err), http.StatusBadRequest)
		return
	}

	subject, err := h.Authenticate(req)
	if err != nil {
		h.logger.Warn().Str("email", req.Email).Msg("login rejected")
		http.Error(w, err.Error(), HTTPStatus(err))
		return
	}

	token, expiresAt, err := h.jwtService.GenerateToken(subject)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate token")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	response := types.LoginResponse{
		Email:     subject,
		Token:     token,
		ExpiresAt: expiresAt,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode login response")
	}
}
