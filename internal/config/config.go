// Package config provides configuration loading and validation for the console.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/content-studio/internal/storage"
	"github.com/jonathan/content-studio/internal/types"
)

// Config is the console configuration. It can be loaded from a JSON or YAML
// file; environment variables override file values.
type Config struct {
	// Generation service
	APIURL         string `json:"api_url,omitempty" yaml:"api_url,omitempty"`                 // Base URL of the generation service
	APIKey         string `json:"api_key,omitempty" yaml:"api_key,omitempty"`                 // Sent as X-API-Key
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"` // Non-streaming calls only

	History  HistoryConfig  `json:"history" yaml:"history"`
	Log      LogConfig      `json:"log" yaml:"log"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Defaults DefaultsConfig `json:"defaults" yaml:"defaults"`
}

// HistoryConfig selects where history and cached API keys are kept
type HistoryConfig struct {
	Backend       string `json:"backend,omitempty" yaml:"backend,omitempty"` // memory, file, badger, redis, postgres
	Dir           string `json:"dir,omitempty" yaml:"dir,omitempty"`
	Capacity      int    `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	DatabaseURL   string `json:"database_url,omitempty" yaml:"database_url,omitempty"`
	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`
}

// LogConfig configures the root logger
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // json or console
}

// ServerConfig configures the console HTTP server
type ServerConfig struct {
	Port           int      `json:"port,omitempty" yaml:"port,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
	AdminEmail     string   `json:"admin_email,omitempty" yaml:"admin_email,omitempty"`
	// bcrypt hash of the admin password
	AdminPasswordHash string `json:"admin_password_hash,omitempty" yaml:"admin_password_hash,omitempty"`
}

// DefaultsConfig holds generation settings used when a request leaves them empty
type DefaultsConfig struct {
	ContentType string `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	Language    string `json:"language,omitempty" yaml:"language,omitempty"`
	Model       string `json:"model,omitempty" yaml:"model,omitempty"`
	VoiceID     string `json:"voice_id,omitempty" yaml:"voice_id,omitempty"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		APIURL:         "http://localhost:8000",
		TimeoutSeconds: 30,
		History: HistoryConfig{
			Backend:  storage.BackendFile,
			Dir:      defaultDataDir(),
			Capacity: 50,
		},
		Log:    LogConfig{Level: "info", Format: "console"},
		Server: ServerConfig{Port: 8080},
		Defaults: DefaultsConfig{
			ContentType: string(types.ContentVideo),
			Language:    "en",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "content-studio")
	}
	return ".content-studio"
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by extension.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Load builds the effective configuration: the file at path (optional),
// then environment overrides, then built-in defaults for anything unset.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	merged := cfg.MergeWithDefaults(Default())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// ApplyEnv overrides fields from environment variables read through getenv
func (c *Config) ApplyEnv(getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) error {
		v := getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", key, err)
		}
		*dst = n
		return nil
	}

	setString(&c.APIURL, "STUDIO_API_URL")
	setString(&c.APIKey, "STUDIO_API_KEY")
	setString(&c.History.Backend, "STUDIO_HISTORY_BACKEND")
	setString(&c.History.Dir, "STUDIO_HISTORY_DIR")
	setString(&c.History.DatabaseURL, "DATABASE_URL")
	setString(&c.History.RedisAddr, "REDIS_ADDR")
	setString(&c.History.RedisPassword, "REDIS_PASSWORD")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Server.AdminEmail, "STUDIO_ADMIN_EMAIL")
	setString(&c.Server.AdminPasswordHash, "STUDIO_ADMIN_PASSWORD_HASH")
	if v := getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	for key, dst := range map[string]*int{
		"STUDIO_TIMEOUT_SECONDS":  &c.TimeoutSeconds,
		"STUDIO_HISTORY_CAPACITY": &c.History.Capacity,
		"REDIS_DB":                &c.History.RedisDB,
		"PORT":                    &c.Server.Port,
	} {
		if err := setInt(dst, key); err != nil {
			return err
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that the configuration has valid values
func (c *Config) Validate() error {
	if c.APIURL != "" && !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("config error: 'api_url' must be an http(s) URL, got %q", c.APIURL)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'timeout_seconds' must be non-negative")
	}
	if c.History.Capacity < 0 {
		return fmt.Errorf("config error: 'history.capacity' must be non-negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config error: 'server.port' out of range: %d", c.Server.Port)
	}

	switch c.History.Backend {
	case "", storage.BackendMemory, storage.BackendBadger:
	case storage.BackendFile:
		if c.History.Dir == "" {
			return fmt.Errorf("config error: file history backend requires 'history.dir'")
		}
	case storage.BackendRedis:
		if c.History.RedisAddr == "" {
			return fmt.Errorf("config error: redis history backend requires 'history.redis_addr'")
		}
	case storage.BackendPostgres:
		if c.History.DatabaseURL == "" {
			return fmt.Errorf("config error: postgres history backend requires 'history.database_url'")
		}
	default:
		return fmt.Errorf("config error: unknown history backend %q", c.History.Backend)
	}

	if c.Defaults.ContentType != "" {
		if _, err := types.ParseContentType(c.Defaults.ContentType); err != nil {
			return fmt.Errorf("config error: 'defaults.content_type': %w", err)
		}
	}
	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	mergeString := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	mergeInt := func(dst *int, def int) {
		if *dst == 0 {
			*dst = def
		}
	}

	mergeString(&result.APIURL, defaults.APIURL)
	mergeString(&result.APIKey, defaults.APIKey)
	mergeInt(&result.TimeoutSeconds, defaults.TimeoutSeconds)

	// The directory default only applies to the backends that use it
	mergeString(&result.History.Backend, defaults.History.Backend)
	if result.History.Backend == storage.BackendFile || result.History.Backend == storage.BackendBadger {
		mergeString(&result.History.Dir, defaults.History.Dir)
	}
	mergeInt(&result.History.Capacity, defaults.History.Capacity)
	mergeString(&result.History.DatabaseURL, defaults.History.DatabaseURL)
	mergeString(&result.History.RedisAddr, defaults.History.RedisAddr)

	mergeString(&result.Log.Level, defaults.Log.Level)
	mergeString(&result.Log.Format, defaults.Log.Format)

	mergeInt(&result.Server.Port, defaults.Server.Port)
	if len(result.Server.AllowedOrigins) == 0 {
		result.Server.AllowedOrigins = defaults.Server.AllowedOrigins
	}
	mergeString(&result.Server.AdminEmail, defaults.Server.AdminEmail)
	mergeString(&result.Server.AdminPasswordHash, defaults.Server.AdminPasswordHash)

	mergeString(&result.Defaults.ContentType, defaults.Defaults.ContentType)
	mergeString(&result.Defaults.Language, defaults.Defaults.Language)
	mergeString(&result.Defaults.Model, defaults.Defaults.Model)
	mergeString(&result.Defaults.VoiceID, defaults.Defaults.VoiceID)

	return result
}

// Timeout returns the non-streaming request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// StorageOptions returns the storage backend selection for the history store
func (c *Config) StorageOptions() storage.Options {
	dir := c.History.Dir
	if c.History.Backend == storage.BackendBadger && dir != "" {
		dir = filepath.Join(dir, "badger")
	}
	return storage.Options{
		Backend: c.History.Backend,
		Dir:     dir,
		Redis: storage.RedisConfig{
			Addr:     c.History.RedisAddr,
			Password: c.History.RedisPassword,
			DB:       c.History.RedisDB,
		},
		DatabaseURL: c.History.DatabaseURL,
	}
}

// ApplyDefaults fills the empty settings of req from the configured defaults
func (c *Config) ApplyDefaults(req types.GenerationRequest) types.GenerationRequest {
	if req.ContentType == "" && c.Defaults.ContentType != "" {
		if ct, err := types.ParseContentType(c.Defaults.ContentType); err == nil {
			req.ContentType = ct
		}
	}
	if req.Language == "" {
		req.Language = c.Defaults.Language
	}
	if req.Model == "" {
		req.Model = c.Defaults.Model
	}
	if req.Voice.VoiceID == "" {
		req.Voice.VoiceID = c.Defaults.VoiceID
	}
	return req
}
