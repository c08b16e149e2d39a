package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchema_CreatesKVTable(t *testing.T) {
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS kv_entries")
	assert.Contains(t, schema, "key        TEXT PRIMARY KEY")
}

func TestEntryType(t *testing.T) {
	e := Entry{Key: "content-studio:generation-history", Value: []byte("[]")}

	assert.Equal(t, "content-studio:generation-history", e.Key)
	assert.Equal(t, []byte("[]"), e.Value)
	assert.True(t, e.UpdatedAt.IsZero())
}

func TestClose_NilPool(t *testing.T) {
	db := &DB{}
	assert.NotPanics(t, db.Close)
}
