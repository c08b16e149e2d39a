package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/content-studio/internal/types"
)

// fakeService is an in-memory generation service
type fakeService struct {
	mu      sync.Mutex
	lines   []string
	status  int
	apiKey  string
	keys    []types.APIKey
	lastReq map[string]any
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	f := &fakeService{status: http.StatusOK}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /generate/stream", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.apiKey = r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&f.lastReq)
		if f.status != http.StatusOK {
			http.Error(w, "unavailable", f.status)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, line := range f.lines {
			fmt.Fprintln(w, line)
			fmt.Fprintln(w)
		}
	})
	mux.HandleFunc("GET /status/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.StatusSnapshot{
			VideoID:    r.PathValue("id"),
			Stage:      "RENDER",
			Status:     "completed",
			Percentage: 100,
		})
	})
	mux.HandleFunc("GET /urls/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, types.PlayerURLs{TimelineURL: "https://cdn/t.json", AudioURL: "https://cdn/a.mp3", VideoURL: "https://cdn/v.mp4"})
	})
	mux.HandleFunc("GET /api-keys", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.keys)
	})
	mux.HandleFunc("POST /api-keys", func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateAPIKeyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		key := types.APIKey{ID: fmt.Sprintf("key-%d", len(f.keys)+1), Name: req.Name, Prefix: "sk_test", CreatedAt: time.Now()}
		f.keys = append(f.keys, key)
		key.Secret = "sk_test_secret_value"
		writeJSON(w, key)
	})
	mux.HandleFunc("DELETE /api-keys/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, k := range f.keys {
			if k.ID == r.PathValue("id") {
				f.keys = append(f.keys[:i], f.keys[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		http.Error(w, "not found", http.StatusNotFound)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// setupEnv points the CLI at apiURL with a file history in a temp dir
func setupEnv(t *testing.T, apiURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STUDIO_API_URL", apiURL)
	t.Setenv("STUDIO_API_KEY", "test-key")
	t.Setenv("STUDIO_HISTORY_BACKEND", "file")
	t.Setenv("STUDIO_HISTORY_DIR", dir)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")
	return dir
}

// runCLI runs the root command in-process and returns everything it printed
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}
