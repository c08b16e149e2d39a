package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Output: &buf, Service: "studio"})

	rl := WithRun(WithComponent(l, "session"), "run-1")
	rl.Debug().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "studio", entry["service"])
	assert.Equal(t, "session", entry["component"])
	assert.Equal(t, "run-1", entry["run_id"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		wantOut bool
	}{
		{"default is info", "", false},
		{"unknown falls back to info", "loud", false},
		{"warn hides debug", "WARN", false},
		{"debug enabled", "debug", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(Config{Level: tt.level, Output: &buf})
			l.Info().Msg("info")
			l.Debug().Msg("debug")
			if tt.wantOut {
				assert.Contains(t, buf.String(), "debug")
			} else {
				assert.NotContains(t, buf.String(), `"level":"debug"`)
			}
		})
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	cl := New(Config{Format: "console", Output: &buf})
	cl.Info().Msg("ready")

	assert.Contains(t, buf.String(), "ready")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf})

	ctx := ContextWithLogger(context.Background(), l)
	fl := FromContext(ctx)
	fl.Info().Msg("from ctx")
	assert.Contains(t, buf.String(), "from ctx")

	assert.NotPanics(t, func() {
		dl := FromContext(context.Background())
		dl.Info().Msg("dropped")
	})
}
