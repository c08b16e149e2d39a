package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jonathan/content-studio/internal/config"
	"github.com/jonathan/content-studio/internal/history"
	"github.com/jonathan/content-studio/internal/observability"
	"github.com/jonathan/content-studio/internal/server/middleware"
	"github.com/jonathan/content-studio/internal/server/ratelimit"
	"github.com/jonathan/content-studio/internal/session"
	"github.com/jonathan/content-studio/internal/types"
)

// Upstream is the generation service as seen by the server. *api.Client satisfies it.
type Upstream interface {
	session.Streamer
	session.RunFetcher
}

// KeyStore manages upstream API keys. *apikeys.Store satisfies it.
type KeyStore interface {
	List(ctx context.Context, refresh bool) ([]types.APIKey, error)
	Create(ctx context.Context, req types.CreateAPIKeyRequest) (*types.APIKey, error)
	Revoke(ctx context.Context, id string) error
}

// Config holds server configuration
type Config struct {
	Port              int
	AllowedOrigins    []string
	AdminEmail        string
	AdminPasswordHash string
	JWT               *config.JWTConfig
	Password          *config.PasswordConfig
	RateLimit         *ratelimit.Config
	// RequestDefaults fills settings a browser request leaves empty
	RequestDefaults func(types.GenerationRequest) types.GenerationRequest
}

// Deps are the collaborators the server is built on
type Deps struct {
	Upstream Upstream
	History  *history.Store
	APIKeys  KeyStore
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	cfg         Config
	deps        Deps
	logger      zerolog.Logger
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	authHandler *AuthHandler

	mu          sync.Mutex
	controllers map[string]*session.Controller
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if cfg.JWT == nil {
		return nil, fmt.Errorf("JWT configuration is required")
	}
	if cfg.Password == nil {
		return nil, fmt.Errorf("password configuration is required")
	}
	if deps.Upstream == nil || deps.History == nil || deps.APIKeys == nil {
		return nil, fmt.Errorf("upstream, history and api key store are required")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		cfg:         cfg,
		deps:        deps,
		logger:      deps.Logger.With().Str("component", "server").Logger(),
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		jwtService:  NewJWTService(cfg.JWT),
		controllers: make(map[string]*session.Controller),
	}
	s.authHandler = NewAuthHandler(cfg.AdminEmail, cfg.AdminPasswordHash, cfg.Password, s.jwtService, s.logger)

	auth := middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /auth/login", s.authHandler.Login)

	mux.Handle("POST /generate/stream", protected(s.handleGenerateStream))
	mux.Handle("GET /runs/current", protected(s.handleCurrentRun))
	mux.Handle("POST /runs/current/cancel", protected(s.handleCancelRun))

	mux.Handle("GET /history", protected(s.handleListHistory))
	mux.Handle("DELETE /history", protected(s.handleClearHistory))
	mux.Handle("GET /history/{id}", protected(s.handleGetHistory))
	mux.Handle("DELETE /history/{id}", protected(s.handleDeleteHistory))
	mux.Handle("POST /history/{id}/reopen", protected(s.handleReopenHistory))

	mux.Handle("GET /api-keys", protected(s.handleListAPIKeys))
	mux.Handle("POST /api-keys", protected(s.handleCreateAPIKey))
	mux.Handle("DELETE /api-keys/{id}", protected(s.handleRevokeAPIKey))

	mux.Handle("GET /presets", protected(s.handlePresets))

	s.handler = s.withRateLimit(s.withLogging(s.withCORS(mux)))
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.handler,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: generation streams stay open for minutes
		IdleTimeout: 60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.Close()
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Streams block Shutdown until they end, so cancel runs first
	s.Close()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

// Close cancels every active run and stops background work
func (s *Server) Close() {
	s.mu.Lock()
	controllers := make([]*session.Controller, 0, len(s.controllers))
	for _, c := range s.controllers {
		controllers = append(controllers, c)
	}
	s.mu.Unlock()

	for _, c := range controllers {
		c.Close()
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}

// controllerFor returns the session controller of subject. Each signed-in
// user has one, so starting a run only cancels that user's previous run.
func (s *Server) controllerFor(subject string) *session.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.controllers[subject]; ok {
		return c
	}
	c := session.NewController(s.deps.Upstream,
		session.WithRecorder(s.deps.History),
		session.WithMetrics(s.deps.Metrics),
		session.WithLogger(s.deps.Logger.With().Str("subject", subject).Logger()),
	)
	s.controllers[subject] = c
	return c
}

// withCORS adds CORS headers for the configured console origins
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.cfg.AllowedOrigins, "*") || slices.Contains(s.cfg.AllowedOrigins, origin)
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(extractClientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code for request logs
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// failResponse maps err onto a status code and writes it
func (s *Server) failResponse(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Int("status", status).Msg("request failed")
	}
	s.errorResponse(w, status, err.Error())
}

// extractClientID extracts the client identifier from the request.
// It uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds() + 0.5)
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.logger.Warn().
		Int("limit", info.Limit).
		Time("reset", info.ResetTime).
		Msg("rate limit exceeded")

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

func subjectOf(r *http.Request) string {
	subject, err := middleware.GetSubject(r)
	if err != nil {
		return ""
	}
	return strings.ToLower(subject)
}
