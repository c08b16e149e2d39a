package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// APIKey is an upstream generation API key. Secret is only populated in the
// response that created the key.
type APIKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix,omitempty"`
	Secret     string     `json:"key,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// CreateAPIKeyRequest asks the upstream service for a new key
type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// Validate validates the CreateAPIKeyRequest using the validator.
func (r *CreateAPIKeyRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
