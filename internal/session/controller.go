// Package session owns the network stream of a generation run and feeds its
// decoded events into the run's state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jonathan/content-studio/internal/api"
	"github.com/jonathan/content-studio/internal/events"
	"github.com/jonathan/content-studio/internal/generation"
	"github.com/jonathan/content-studio/internal/logging"
	"github.com/jonathan/content-studio/internal/observability"
	"github.com/jonathan/content-studio/internal/types"
)

// Streamer opens the generation event stream for a run. *api.Client satisfies it.
type Streamer interface {
	OpenStream(ctx context.Context, runID string, req types.GenerationRequest) (io.ReadCloser, error)
}

// ValidationError is returned by Start when the request is rejected before any stream is opened
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid generation request: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Controller runs at most one generation stream at a time. Starting a run
// cancels the previous one. Every start bumps an epoch counter and events are
// applied only while the epoch that produced them is still current.
type Controller struct {
	streamer Streamer
	recorder generation.Recorder
	logger   zerolog.Logger
	metrics  *observability.Metrics
	onUpdate func(types.Run)
	onDone   func(types.Run)
	newID    func() string

	mu      sync.Mutex
	epoch   uint64
	cancel  context.CancelFunc
	machine *generation.Machine

	wg sync.WaitGroup
}

// Option configures a Controller
type Option func(*Controller)

// WithRecorder sets where run snapshots are persisted, normally the history store
func WithRecorder(r generation.Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithOnUpdate sets a callback invoked with a copy of the run after every change.
// Callbacks run outside the controller lock and may call Current.
func WithOnUpdate(fn func(types.Run)) Option {
	return func(c *Controller) { c.onUpdate = fn }
}

// WithOnDone sets a callback invoked once when a run's stream ends without being cancelled
func WithOnDone(fn func(types.Run)) Option {
	return func(c *Controller) { c.onDone = fn }
}

// WithIDGenerator overrides run id generation, for tests
func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// NewController creates a controller that opens streams through s
func NewController(s Streamer, opts ...Option) *Controller {
	c := &Controller{
		streamer: s,
		logger:   zerolog.Nop(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle refers to one started run
type Handle struct {
	RunID string

	ctrl  *Controller
	epoch uint64
	done  chan struct{}
}

// Cancel aborts the run's stream. The run's history entry keeps the last
// state it reached. Cancelling a run that was already superseded is a no-op.
func (h *Handle) Cancel() {
	h.ctrl.cancelEpoch(h.epoch)
}

// Done is closed when the run's stream goroutine has exited
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the run's stream goroutine has exited
func (h *Handle) Wait() {
	<-h.done
}

// RunOption configures a single run
type RunOption func(*runHooks)

type runHooks struct {
	observer func(types.Run)
}

// WithRunObserver adds a callback that only sees updates of this run, in
// addition to the controller-wide callbacks. It runs on the stream goroutine.
func WithRunObserver(fn func(types.Run)) RunOption {
	return func(h *runHooks) { h.observer = fn }
}

// Start begins a new run and returns without waiting for the stream. Any run
// already in progress is cancelled first. The stream lives until it ends, the
// run is cancelled, or ctx is done.
func (c *Controller) Start(ctx context.Context, req types.GenerationRequest, opts ...RunOption) (*Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}
	var hooks runHooks
	for _, opt := range opts {
		opt(&hooks)
	}

	runID := c.newID()
	streamCtx, cancel := context.WithCancel(ctx)
	logger := logging.WithRun(c.logger, runID)
	machine := generation.NewMachine(runID, req,
		generation.WithRecorder(c.recorder),
		generation.WithLogger(logger),
	)

	c.mu.Lock()
	c.stopLocked()
	c.epoch++
	epoch := c.epoch
	c.cancel = cancel
	c.machine = machine
	run := machine.Begin(context.WithoutCancel(ctx))
	c.mu.Unlock()

	c.metrics.RunStarted()
	hooks.update(c, run)
	logger.Info().Str("content_type", string(req.ContentType)).Msg("generation started")

	h := &Handle{RunID: runID, ctrl: c, epoch: epoch, done: make(chan struct{})}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(h.done)
		c.stream(streamCtx, epoch, runID, req, &hooks, logger)
	}()
	return h, nil
}

func (h *runHooks) update(c *Controller, run types.Run) {
	c.notify(c.onUpdate, run)
	c.notify(h.observer, run)
}

// Cancel aborts whichever run is active
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Current returns a copy of the active run, or nil when idle or after the
// active run failed
func (c *Controller) Current() *types.Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine == nil {
		return nil
	}
	return c.machine.Active()
}

// Close cancels the active run and waits for every stream goroutine to exit
func (c *Controller) Close() {
	c.Cancel()
	c.wg.Wait()
}

func (c *Controller) cancelEpoch(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch == c.epoch {
		c.stopLocked()
	}
}

// stopLocked invalidates the current epoch so no further events reach its machine
func (c *Controller) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.machine = nil
	c.epoch++
}

func (c *Controller) stream(ctx context.Context, epoch uint64, runID string, req types.GenerationRequest, hooks *runHooks, logger zerolog.Logger) {
	cancelled := true
	var final types.Run
	defer func() {
		if cancelled {
			// A stream stopped by the caller's ctx leaves no active run behind.
			c.cancelEpoch(epoch)
			logger.Info().Msg("generation cancelled")
			c.metrics.RunFinished("")
			return
		}
		c.metrics.RunFinished(final.Status)
		c.notify(c.onDone, final)
	}()

	body, err := c.streamer.OpenStream(ctx, runID, req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error().Err(err).Msg("failed to open generation stream")
		final, cancelled = c.fail(ctx, epoch, runID, transportMessage(err), hooks)
		return
	}
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer func() {
		stop()
		_ = body.Close()
	}()

	scanner := events.NewLineScanner(body)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		ev, err := events.Decode(scanner.Text())
		if err != nil {
			logger.Warn().Err(err).Msg("skipping malformed stream line")
			c.metrics.MalformedLine()
			continue
		}
		if ev == nil {
			continue
		}
		run, ok := c.deliver(ctx, epoch, ev, hooks)
		if !ok {
			return
		}
		if ev.IsTerminal() {
			final, cancelled = run, false
			logger.Info().Str("status", string(run.Status)).Str("stage", string(run.Stage)).Msg("generation finished")
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	msg := "stream ended before the run finished"
	if err := scanner.Err(); err != nil {
		msg = transportMessage(err)
	}
	logger.Error().Str("reason", msg).Msg("generation stream broke")
	final, cancelled = c.fail(ctx, epoch, runID, msg, hooks)
}

// fail delivers a synthetic error for a transport failure
func (c *Controller) fail(ctx context.Context, epoch uint64, runID, msg string, hooks *runHooks) (types.Run, bool) {
	c.metrics.TransportError()
	run, ok := c.deliver(ctx, epoch, events.NewError(runID, msg), hooks)
	return run, !ok
}

// deliver applies ev to the run of epoch. It reports false when the epoch is
// no longer current, in which case nothing is mutated.
func (c *Controller) deliver(ctx context.Context, epoch uint64, ev *events.Event, hooks *runHooks) (types.Run, bool) {
	c.mu.Lock()
	if epoch != c.epoch || c.machine == nil {
		c.mu.Unlock()
		return types.Run{}, false
	}
	run, changed := c.machine.Apply(context.WithoutCancel(ctx), ev)
	c.mu.Unlock()

	if changed {
		hooks.update(c, run)
	}
	return run, true
}

func (c *Controller) notify(fn func(types.Run), run types.Run) {
	if fn != nil {
		fn(run)
	}
}

func transportMessage(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) {
		if se.Body != "" {
			return fmt.Sprintf("generation service returned %d: %s", se.Code, se.Body)
		}
		return fmt.Sprintf("generation service returned %d", se.Code)
	}
	return fmt.Sprintf("connection to generation service failed: %v", err)
}
