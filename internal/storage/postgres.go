package storage

import (
	"context"

	"github.com/jonathan/content-studio/internal/db"
)

// PostgresKV stores console state in the kv_entries table
type PostgresKV struct {
	db *db.DB
}

// OpenPostgresKV connects to PostgreSQL and creates the table if needed
func OpenPostgresKV(ctx context.Context, databaseURL string) (*PostgresKV, error) {
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return &PostgresKV{db: database}, nil
}

// Get returns the value stored under key
func (p *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := p.db.GetEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrNotFound
	}
	return entry.Value, nil
}

// Set stores value under key
func (p *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	return p.db.PutEntry(ctx, key, value)
}

// Delete removes key
func (p *PostgresKV) Delete(ctx context.Context, key string) error {
	return p.db.DeleteEntry(ctx, key)
}

// Close closes the pool
func (p *PostgresKV) Close() error {
	p.db.Close()
	return nil
}
