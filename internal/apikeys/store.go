// Package apikeys caches the account's API keys in local storage.
package apikeys

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jonathan/content-studio/internal/storage"
	"github.com/jonathan/content-studio/internal/types"
)

// DefaultKey is the namespaced key the key list is cached under
const DefaultKey = "content-studio:api-keys"

// Client is the part of the API client the store calls. *api.Client satisfies it.
type Client interface {
	ListAPIKeys(ctx context.Context) ([]types.APIKey, error)
	CreateAPIKey(ctx context.Context, req types.CreateAPIKeyRequest) (*types.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// Store serves the key list from the cache and refreshes it after every change.
// Secrets are never written to the cache.
type Store struct {
	kv     storage.KV
	client Client
	key    string
	logger zerolog.Logger
	mu     sync.Mutex
}

// New creates a key store
func New(kv storage.KV, client Client, logger zerolog.Logger) *Store {
	return &Store{kv: kv, client: client, key: DefaultKey, logger: logger}
}

// List returns the cached keys, fetching them when the cache is empty or refresh is set
func (s *Store) List(ctx context.Context, refresh bool) ([]types.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !refresh {
		keys, ok := s.cached(ctx)
		if ok {
			return keys, nil
		}
	}
	return s.refreshLocked(ctx)
}

// Create creates a key and returns it with its secret. The secret is only
// available from this call.
func (s *Store) Create(ctx context.Context, req types.CreateAPIKeyRequest) (*types.APIKey, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid API key request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.client.CreateAPIKey(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create API key: %w", err)
	}
	if _, err := s.refreshLocked(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to refresh API key cache after create")
	}
	return key, nil
}

// Revoke revokes a key and refreshes the cache
func (s *Store) Revoke(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.RevokeAPIKey(ctx, id); err != nil {
		return fmt.Errorf("failed to revoke API key %s: %w", id, err)
	}
	if _, err := s.refreshLocked(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to refresh API key cache after revoke")
	}
	return nil
}

func (s *Store) refreshLocked(ctx context.Context) ([]types.APIKey, error) {
	keys, err := s.client.ListAPIKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	for i := range keys {
		keys[i].Secret = ""
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal API keys: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache API keys")
	}
	return keys, nil
}

func (s *Store) cached(ctx context.Context) ([]types.APIKey, bool) {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("failed to read API key cache")
		}
		return nil, false
	}
	var keys []types.APIKey
	if err := json.Unmarshal(data, &keys); err != nil {
		s.logger.Warn().Err(err).Msg("discarding unreadable API key cache")
		return nil, false
	}
	return keys, true
}
