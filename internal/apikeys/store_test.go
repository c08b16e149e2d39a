package apikeys

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-studio/internal/storage"
	"github.com/jonathan/content-studio/internal/types"
)

type fakeClient struct {
	keys      []types.APIKey
	listCalls int
	err       error
}

func (f *fakeClient) ListAPIKeys(_ context.Context) ([]types.APIKey, error) {
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]types.APIKey, len(f.keys))
	copy(out, f.keys)
	return out, nil
}

func (f *fakeClient) CreateAPIKey(_ context.Context, req types.CreateAPIKeyRequest) (*types.APIKey, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := types.APIKey{ID: "k" + req.Name, Name: req.Name, Prefix: "sk-" + req.Name[:1], Secret: "sk-secret", CreatedAt: time.Now()}
	f.keys = append(f.keys, key)
	return &key, nil
}

func (f *fakeClient) RevokeAPIKey(_ context.Context, id string) error {
	for i := range f.keys {
		if f.keys[i].ID == id {
			now := time.Now()
			f.keys[i].RevokedAt = &now
			return nil
		}
	}
	return errors.New("not found")
}

func TestStore_ListCachesUntilRefresh(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{keys: []types.APIKey{{ID: "k1", Name: "ci"}}}
	s := New(storage.NewMemoryKV(), client, zerolog.Nop())

	keys, err := s.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	client.keys = append(client.keys, types.APIKey{ID: "k2", Name: "local"})
	keys, err = s.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, keys, 1, "served from cache")
	assert.Equal(t, 1, client.listCalls)

	keys, err = s.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestStore_CreateNeverCachesSecret(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	client := &fakeClient{}
	s := New(kv, client, zerolog.Nop())

	key, err := s.Create(ctx, types.CreateAPIKeyRequest{Name: "studio"})
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", key.Secret)

	raw, err := kv.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-secret")
	assert.Contains(t, string(raw), "studio")

	keys, err := s.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Empty(t, keys[0].Secret)
}

func TestStore_CreateValidates(t *testing.T) {
	s := New(storage.NewMemoryKV(), &fakeClient{}, zerolog.Nop())
	_, err := s.Create(context.Background(), types.CreateAPIKeyRequest{})
	assert.Error(t, err)
}

func TestStore_Revoke(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{keys: []types.APIKey{{ID: "k1", Name: "ci"}}}
	s := New(storage.NewMemoryKV(), client, zerolog.Nop())

	require.NoError(t, s.Revoke(ctx, "k1"))
	keys, err := s.List(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, keys[0].RevokedAt)

	assert.Error(t, s.Revoke(ctx, "nope"))
}

func TestStore_ListError(t *testing.T) {
	boom := errors.New("boom")
	s := New(storage.NewMemoryKV(), &fakeClient{err: boom}, zerolog.Nop())

	_, err := s.List(context.Background(), false)
	assert.ErrorIs(t, err, boom)
}

func TestStore_CorruptCacheRefetches(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, DefaultKey, []byte("{not json")))
	client := &fakeClient{keys: []types.APIKey{{ID: "k1"}}}

	keys, err := New(kv, client, zerolog.Nop()).List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
	assert.Equal(t, 1, client.listCalls)
}
