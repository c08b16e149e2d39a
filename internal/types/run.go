package types

import (
	"strings"
	"time"
)

// Stage is a named phase of server-side content generation
type Stage string

// Progress stages in their fixed forward order, followed by the terminal labels
const (
	StagePending   Stage = "PENDING"
	StageScript    Stage = "SCRIPT"
	StageTTS       Stage = "TTS"
	StageWords     Stage = "WORDS"
	StageHTML      Stage = "HTML"
	StageRender    Stage = "RENDER"
	StageCompleted Stage = "COMPLETED"
	StageFailed    Stage = "FAILED"
)

var stageOrder = map[Stage]int{
	StagePending: 0,
	StageScript:  1,
	StageTTS:     2,
	StageWords:   3,
	StageHTML:    4,
	StageRender:  5,
}

// ParseStage normalizes a wire stage name. Unknown names return ok=false.
func ParseStage(s string) (Stage, bool) {
	st := Stage(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := stageOrder[st]; ok {
		return st, true
	}
	if st == StageCompleted || st == StageFailed {
		return st, true
	}
	return "", false
}

// Ordinal returns the position of a progress stage, or -1 for terminal and unknown stages
func (s Stage) Ordinal() int {
	if n, ok := stageOrder[s]; ok {
		return n
	}
	return -1
}

// IsTerminal reports whether the stage is COMPLETED or FAILED
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Status is the coarse lifecycle state of a run
type Status string

// Run status constants
const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status is completed or failed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ArtifactKind names an output file produced by a run
type ArtifactKind string

// Artifact kinds
const (
	ArtifactScript   ArtifactKind = "script"
	ArtifactAudio    ArtifactKind = "audio"
	ArtifactWords    ArtifactKind = "words"
	ArtifactTimeline ArtifactKind = "timeline"
	ArtifactVideo    ArtifactKind = "video"
)

// ParseArtifactKind maps a wire file key onto an artifact kind.
// The server reports the timeline as "html" in some stages.
func ParseArtifactKind(s string) ArtifactKind {
	k := strings.ToLower(strings.TrimSpace(s))
	if k == "html" {
		return ArtifactTimeline
	}
	return ArtifactKind(k)
}

// Run is the console's view of one generation run, keyed by a client-generated id
type Run struct {
	ID         string                  `json:"video_id"`
	Request    GenerationSettings      `json:"request"`
	Stage      Stage                   `json:"stage"`
	Percentage float64                 `json:"percentage"`
	Artifacts  map[ArtifactKind]string `json:"artifacts,omitempty"`
	Status     Status                  `json:"status"`
	Message    string                  `json:"message,omitempty"`
	Error      string                  `json:"error,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// Clone returns a deep copy so snapshots handed to observers cannot alias live state
func (r Run) Clone() Run {
	out := r
	if r.Artifacts != nil {
		out.Artifacts = make(map[ArtifactKind]string, len(r.Artifacts))
		for k, v := range r.Artifacts {
			out.Artifacts[k] = v
		}
	}
	return out
}

// HasArtifact reports whether a non-empty URL is known for kind
func (r Run) HasArtifact(kind ArtifactKind) bool {
	return r.Artifacts[kind] != ""
}

// ContentReady reports whether the timeline and audio needed for playback are present
func (r Run) ContentReady() bool {
	return r.HasArtifact(ArtifactTimeline) && r.HasArtifact(ArtifactAudio)
}

// HistoryRecord is a persisted snapshot of a run plus the original prompt
type HistoryRecord struct {
	Run
	Prompt string `json:"prompt"`
}
