package generation

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/jonathan/content-studio/internal/events"
	"github.com/jonathan/content-studio/internal/types"
)

// Restore rebuilds a machine from a persisted history record so that a run
// can be picked up again after a reload
func Restore(rec types.HistoryRecord, opts ...Option) *Machine {
	m := &Machine{
		prompt: rec.Prompt,
		run:    rec.Run.Clone(),
		logger: zerolog.Nop(),
	}
	m.now = timeNow
	for _, opt := range opts {
		opt(m)
	}
	if m.run.Artifacts == nil {
		m.run.Artifacts = map[types.ArtifactKind]string{}
	}
	return m
}

// SnapshotEvents converts a status snapshot and player URLs into the events
// the stream would have delivered, so they go through the same transitions
func SnapshotEvents(snap *types.StatusSnapshot, urls *types.PlayerURLs) []*events.Event {
	if snap == nil {
		return nil
	}

	files := map[types.ArtifactKind]types.FileRef{}
	for key, ref := range snap.Files {
		if ref.URL != "" {
			files[types.ParseArtifactKind(key)] = ref
		}
	}
	if urls != nil {
		for kind, u := range map[types.ArtifactKind]string{
			types.ArtifactTimeline: urls.TimelineURL,
			types.ArtifactAudio:    urls.AudioURL,
			types.ArtifactVideo:    urls.VideoURL,
		} {
			if u != "" {
				files[kind] = types.FileRef{URL: u}
			}
		}
	}

	progress := &events.Event{Kind: events.KindProgress, Progress: &events.Progress{
		RunID:      snap.VideoID,
		Stage:      types.Stage(strings.ToUpper(snap.Stage)),
		Message:    snap.Message,
		Percentage: snap.Percentage,
		Files:      files,
	}}
	out := []*events.Event{progress}

	switch types.Status(strings.ToLower(snap.Status)) {
	case types.StatusCompleted:
		done := make(map[types.ArtifactKind]string, len(files))
		for kind, ref := range files {
			done[kind] = ref.URL
		}
		out = append(out, &events.Event{Kind: events.KindCompleted, Completed: &events.Completed{
			RunID:      snap.VideoID,
			Percentage: 100,
			Files:      done,
		}})
	case types.StatusFailed:
		msg := snap.Message
		if msg == "" {
			msg = "generation failed"
		}
		out = append(out, &events.Event{Kind: events.KindError, Failure: &events.Failure{
			RunID:   snap.VideoID,
			Message: msg,
			Stage:   types.Stage(strings.ToUpper(snap.Stage)),
		}})
	}
	return out
}
