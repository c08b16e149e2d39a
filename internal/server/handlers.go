package server

import (
	"encoding/json"
	"net/http"

	"github.com/jonathan/content-studio/internal/logging"
	"github.com/jonathan/content-studio/internal/session"
	"github.com/jonathan/content-studio/internal/types"
)

// runBuffer bounds how many snapshots a slow SSE client may fall behind by
const runBuffer = 64

// handleGenerateStream starts a run for the signed-in user and relays every
// snapshot of that run as an SSE "run" event, followed by "complete" or "error".
// Closing the connection cancels the run.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var req types.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if s.cfg.RequestDefaults != nil {
		req = s.cfg.RequestDefaults(req)
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := r.Context()
	updates := make(chan types.Run, runBuffer)
	observer := func(run types.Run) {
		select {
		case updates <- run:
		case <-ctx.Done():
		}
	}

	ctrl := s.controllerFor(subjectOf(r))
	handle, err := ctrl.Start(ctx, req, session.WithRunObserver(observer))
	if err != nil {
		s.failResponse(w, err)
		return
	}
	logger := logging.WithRun(s.logger, handle.RunID)
	w.WriteHeader(http.StatusOK)

	var last types.Run
	relay := func(run types.Run) bool {
		last = run
		if err := sse.WriteRun(run); err != nil {
			logger.Warn().Err(err).Msg("failed to write SSE event")
			handle.Cancel()
			return false
		}
		return true
	}

	for {
		select {
		case run := <-updates:
			if !relay(run) {
				return
			}
		case <-handle.Done():
			// Every update was sent before Done closed
			for drained := false; !drained; {
				select {
				case run := <-updates:
					if !relay(run) {
						return
					}
				default:
					drained = true
				}
			}
			s.finishStream(sse, last)
			return
		case <-ctx.Done():
			logger.Info().Msg("client disconnected")
			return
		}
	}
}

// finishStream writes the closing event of a stream
func (s *Server) finishStream(sse *SSEWriter, last types.Run) {
	var err error
	switch last.Status {
	case types.StatusCompleted:
		err = sse.WriteComplete(last)
	case types.StatusFailed:
		err = sse.WriteError(last.Error)
	default:
		err = sse.WriteError("generation cancelled")
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to write final SSE event")
	}
}

// handleCurrentRun returns the signed-in user's active run
func (s *Server) handleCurrentRun(w http.ResponseWriter, r *http.Request) {
	run := s.controllerFor(subjectOf(r)).Current()
	if run == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleCancelRun cancels the signed-in user's active run
func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	s.controllerFor(subjectOf(r)).Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// handleListHistory returns history entries, most recent first
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.History.List(r.Context())
	if err != nil {
		s.failResponse(w, err)
		return
	}
	if records == nil {
		records = []types.HistoryRecord{}
	}
	s.jsonResponse(w, http.StatusOK, records)
}

// handleGetHistory returns one history entry
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.History.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.failResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

// handleDeleteHistory removes one history entry
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.History.Remove(r.Context(), r.PathValue("id")); err != nil {
		s.failResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearHistory removes every history entry
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.History.Clear(r.Context()); err != nil {
		s.failResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReopenHistory refreshes a history entry from the generation service
func (s *Server) handleReopenHistory(w http.ResponseWriter, r *http.Request) {
	run, err := session.Reopen(r.Context(), s.deps.History, s.deps.Upstream, r.PathValue("id"), s.logger)
	if err != nil {
		s.failResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleListAPIKeys lists upstream API keys; ?refresh=true bypasses the cache
func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.deps.APIKeys.List(r.Context(), r.URL.Query().Get("refresh") == "true")
	if err != nil {
		s.failResponse(w, err)
		return
	}
	if keys == nil {
		keys = []types.APIKey{}
	}
	s.jsonResponse(w, http.StatusOK, keys)
}

// handleCreateAPIKey creates an upstream API key. The secret is only in this response.
func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req types.CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}

	key, err := s.deps.APIKeys.Create(r.Context(), req)
	if err != nil {
		s.failResponse(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, key)
}

// handleRevokeAPIKey revokes an upstream API key
func (s *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.APIKeys.Revoke(r.Context(), r.PathValue("id")); err != nil {
		s.failResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PresetResponse is one content type with its display metadata
type PresetResponse struct {
	ContentType types.ContentType `json:"content_type"`
	types.ContentPreset
}

// handlePresets lists the content types with their sample prompts
func (s *Server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	presets := types.Presets()
	out := make([]PresetResponse, 0, len(presets))
	for _, ct := range types.ContentTypes {
		if p, ok := presets[ct]; ok {
			out = append(out, PresetResponse{ContentType: ct, ContentPreset: p})
		}
	}
	s.jsonResponse(w, http.StatusOK, out)
}
