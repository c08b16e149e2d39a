// Package generation folds decoded stream events into the state of a single generation run.
package generation

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/content-studio/internal/events"
	"github.com/jonathan/content-studio/internal/types"
)

// Recorder persists run snapshots. The history store satisfies it.
type Recorder interface {
	Upsert(ctx context.Context, rec types.HistoryRecord) error
}

// Observer is notified with a copy of the run after every transition
type Observer func(run types.Run)

// Machine tracks stage transitions and artifact accumulation for one run.
// It is not safe for concurrent use; the session controller serializes access.
type Machine struct {
	prompt   string
	run      types.Run
	recorder Recorder
	observer Observer
	logger   zerolog.Logger
	now      func() time.Time
}

var timeNow = time.Now

// Option configures a Machine
type Option func(*Machine)

// WithRecorder sets where snapshots are persisted
func WithRecorder(r Recorder) Option {
	return func(m *Machine) { m.recorder = r }
}

// WithObserver sets the transition callback
func WithObserver(o Observer) Option {
	return func(m *Machine) { m.observer = o }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates a machine for a run in the PENDING stage
func NewMachine(runID string, req types.GenerationRequest, opts ...Option) *Machine {
	m := &Machine{
		prompt: req.Prompt,
		logger: zerolog.Nop(),
		now:    timeNow,
	}
	for _, opt := range opts {
		opt(m)
	}

	now := m.now()
	m.run = types.Run{
		ID:        runID,
		Request:   req.Settings(),
		Stage:     types.StagePending,
		Status:    types.StatusPending,
		Artifacts: map[types.ArtifactKind]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return m
}

// Begin records the initial pending snapshot
func (m *Machine) Begin(ctx context.Context) types.Run {
	m.commit(ctx)
	return m.run.Clone()
}

// Snapshot returns a copy of the current run
func (m *Machine) Snapshot() types.Run {
	return m.run.Clone()
}

// Active returns the run as shown in the active view. Failed runs are
// dropped from the active view and only remain in history.
func (m *Machine) Active() *types.Run {
	if m.run.Status == types.StatusFailed {
		return nil
	}
	run := m.run.Clone()
	return &run
}

// Done reports whether the run reached a terminal status
func (m *Machine) Done() bool {
	return m.run.Status.IsTerminal()
}

// Apply folds one event into the run. It returns the resulting snapshot and
// whether anything changed; unchanged applications are not recorded.
func (m *Machine) Apply(ctx context.Context, ev *events.Event) (types.Run, bool) {
	if ev == nil || m.run.Status == types.StatusFailed {
		return m.run.Clone(), false
	}
	if id := ev.RunID(); id != "" && id != m.run.ID {
		m.logger.Warn().Str("event_run_id", id).Msg("ignoring event for another run")
		return m.run.Clone(), false
	}

	var changed bool
	switch ev.Kind {
	case events.KindProgress:
		changed = m.applyProgress(ev.Progress)
	case events.KindCompleted:
		changed = m.applyCompleted(ev.Completed)
	case events.KindError:
		changed = m.applyError(ev.Failure)
	}

	if changed {
		m.commit(ctx)
	}
	return m.run.Clone(), changed
}

// applyProgress never lowers the stage or the percentage
func (m *Machine) applyProgress(p *events.Progress) bool {
	if p == nil {
		return false
	}
	changed := false

	// Stages only move forward and skipped stages are fine. A late event naming an
	// earlier stage is dropped on purpose, so history never shows a run going back.
	if !m.run.Stage.IsTerminal() && p.Stage.Ordinal() > m.run.Stage.Ordinal() {
		m.run.Stage = p.Stage
		changed = true
	}
	if p.Percentage > m.run.Percentage {
		m.run.Percentage = p.Percentage
		changed = true
	}
	if p.Message != "" && p.Message != m.run.Message {
		m.run.Message = p.Message
		changed = true
	}
	for kind, ref := range p.Files {
		if m.setArtifact(kind, ref.URL) {
			changed = true
		}
	}
	if m.run.Status == types.StatusPending {
		m.run.Status = types.StatusGenerating
		changed = true
	}
	// Timeline plus audio is enough to play the content.
	if m.run.Status == types.StatusGenerating && m.run.ContentReady() {
		m.run.Status = types.StatusCompleted
		changed = true
	}
	return changed
}

func (m *Machine) applyCompleted(c *events.Completed) bool {
	if c == nil {
		return false
	}
	changed := false
	for kind, url := range c.Files {
		if m.setArtifact(kind, url) {
			changed = true
		}
	}
	if m.run.Stage != types.StageCompleted {
		m.run.Stage = types.StageCompleted
		changed = true
	}
	if m.run.Percentage != 100 {
		m.run.Percentage = 100
		changed = true
	}
	if m.run.Status != types.StatusCompleted {
		m.run.Status = types.StatusCompleted
		changed = true
	}
	return changed
}

func (m *Machine) applyError(f *events.Failure) bool {
	if f == nil {
		return false
	}
	m.run.Error = f.Message

	if m.run.Status == types.StatusCompleted || m.run.ContentReady() {
		m.logger.Warn().Str("error", f.Message).Msg("run failed after content was ready, keeping it")
		m.run.Stage = types.StageCompleted
		m.run.Status = types.StatusCompleted
		return true
	}

	m.run.Stage = types.StageFailed
	m.run.Status = types.StatusFailed
	if f.Stage != "" && f.Stage.Ordinal() >= 0 {
		m.run.Message = "failed during " + string(f.Stage)
	}
	return true
}

// setArtifact records a URL for kind. URLs are replaced, never cleared.
func (m *Machine) setArtifact(kind types.ArtifactKind, url string) bool {
	if url == "" || m.run.Artifacts[kind] == url {
		return false
	}
	m.run.Artifacts[kind] = url
	return true
}

func (m *Machine) commit(ctx context.Context) {
	m.run.UpdatedAt = m.now()
	snapshot := m.run.Clone()

	if m.recorder != nil {
		rec := types.HistoryRecord{Run: snapshot, Prompt: m.prompt}
		if err := m.recorder.Upsert(ctx, rec); err != nil {
			m.logger.Error().Err(err).Str("run_id", snapshot.ID).Msg("failed to record run")
		}
	}
	if m.observer != nil {
		m.observer(snapshot.Clone())
	}
}
