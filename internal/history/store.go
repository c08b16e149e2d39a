// Package history keeps a bounded, most-recent-first list of generation runs.
package history

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

// DefaultKey is the namespaced key the history list is persisted under
const DefaultKey = "content-studio:generation-history"

// DefaultCapacity is how many runs are kept before the oldest is evicted
const DefaultCapacity = 50

// ErrNotFound is returned when no record has the requested id
var ErrNotFound = errors.New("history record not found")

// Store is the history of generation runs. The whole list is stored as one
// JSON array under a single key; there is no schema version.
type Store struct {
	kv       storage.KV
	key      string
	capacity int
	logger   zerolog.Logger
	mu       sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithKey overrides the storage key
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithCapacity overrides the number of records kept
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates a history store over kv
func New(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		key:      DefaultKey,
		capacity: DefaultCapacity,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capacity returns the maximum number of records kept
func (s *Store) Capacity() int {
	return s.capacity
}

// List returns records most-recent-first
func (s *Store) List(ctx context.Context) ([]types.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Get returns the record with id
func (s *Store) Get(ctx context.Context, id string) (types.HistoryRecord, error) {
	records, err := s.List(ctx)
	if err != nil {
		return types.HistoryRecord{}, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return types.HistoryRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Upsert replaces the record with the same id in place, or prepends it.
// Records beyond capacity are dropped from the old end.
func (s *Store) Upsert(ctx context.Context, rec types.HistoryRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("history record has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append([]types.HistoryRecord{rec}, records...)
	}
	if len(records) > s.capacity {
		for _, evicted := range records[s.capacity:] {
			s.logger.Debug().Str("run_id", evicted.ID).Msg("evicting history record")
		}
		records = records[:s.capacity]
	}
	return s.save(ctx, records)
}

// Remove deletes the record with id
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	for i := range records {
		if records[i].ID == id {
			records = append(records[:i], records[i+1:]...)
			return s.save(ctx, records)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Clear removes every record
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(ctx, s.key)
}

func (s *Store) load(ctx context.Context) ([]types.HistoryRecord, error) {
	data, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []types.HistoryRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	var records []types.HistoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		// Unreadable history is replaced on the next write.
		s.logger.Warn().Err(err).Str("key", s.key).Msg("discarding unreadable history")
		return []types.HistoryRecord{}, nil
	}
	return records, nil
}

func (s *Store) save(ctx context.Context, records []types.HistoryRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}
