// Package events decodes the generation service's progress stream into typed events.
package events

import (
	"fmt"

	"github.com/jonathan/content-studio/internal/types"
)

// Kind tags which variant of Event is populated
type Kind string

// Event kinds sent by the generation service
const (
	KindProgress  Kind = "progress"
	KindCompleted Kind = "completed"
	KindError     Kind = "error"
)

// Event is a decoded stream event. Exactly one of Progress, Completed or
// Failure is set, matching Kind.
type Event struct {
	Kind      Kind       `json:"type"`
	Progress  *Progress  `json:"progress,omitempty"`
	Completed *Completed `json:"completed,omitempty"`
	Failure   *Failure   `json:"failure,omitempty"`
}

// Progress reports an intermediate stage of a run
type Progress struct {
	RunID      string                               `json:"video_id,omitempty"`
	Stage      types.Stage                          `json:"stage"`
	Message    string                               `json:"message,omitempty"`
	Percentage float64                              `json:"percentage"`
	Files      map[types.ArtifactKind]types.FileRef `json:"files,omitempty"`
}

// Completed reports the final artifacts of a run
type Completed struct {
	RunID      string                        `json:"video_id,omitempty"`
	Percentage float64                       `json:"percentage"`
	Files      map[types.ArtifactKind]string `json:"files,omitempty"`
}

// Failure reports a run error, optionally with the stage it happened in
type Failure struct {
	RunID   string      `json:"video_id,omitempty"`
	Message string      `json:"message"`
	Stage   types.Stage `json:"stage,omitempty"`
}

// NewError builds a synthetic error event. Transport failures are surfaced this way.
func NewError(runID, message string) *Event {
	return &Event{Kind: KindError, Failure: &Failure{RunID: runID, Message: message}}
}

// RunID returns the run id carried by the event, if any
func (e *Event) RunID() string {
	switch {
	case e.Progress != nil:
		return e.Progress.RunID
	case e.Completed != nil:
		return e.Completed.RunID
	case e.Failure != nil:
		return e.Failure.RunID
	}
	return ""
}

// IsTerminal reports whether the event ends the stream from the server's point of view
func (e *Event) IsTerminal() bool {
	return e.Kind == KindCompleted || e.Kind == KindError
}

// MalformedError is returned for data lines that cannot be decoded
type MalformedError struct {
	Line  string
	Cause error
}

func (e *MalformedError) Error() string {
	line := e.Line
	if len(line) > 120 {
		line = line[:117] + "..."
	}
	if e.Cause != nil {
		return fmt.Sprintf("malformed event %q: %v", line, e.Cause)
	}
	return fmt.Sprintf("malformed event %q", line)
}

func (e *MalformedError) Unwrap() error {
	return e.Cause
}
