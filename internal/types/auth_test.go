package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginRequest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     LoginRequest
		wantErr bool
	}{
		{"valid", LoginRequest{Email: "admin@example.com", Password: "pw"}, false},
		{"missing email", LoginRequest{Password: "pw"}, true},
		{"invalid email", LoginRequest{Email: "admin", Password: "pw"}, true},
		{"missing password", LoginRequest{Email: "admin@example.com"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateAPIKeyRequest_Validation(t *testing.T) {
	assert.NoError(t, (&CreateAPIKeyRequest{Name: "ci"}).Validate())
	assert.Error(t, (&CreateAPIKeyRequest{}).Validate())

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, (&CreateAPIKeyRequest{Name: string(long)}).Validate())
}

func TestAPIKey_SecretOnlyWhenSet(t *testing.T) {
	key := APIKey{ID: "k1", Name: "ci", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	data, err := json.Marshal(key)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"key"`)
	assert.NotContains(t, string(data), "revoked_at")

	key.Secret = "sk_live_x"
	data, err = json.Marshal(key)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"key":"sk_live_x"`)
}
