package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jonathan/content-studio/internal/generation"
	"github.com/jonathan/content-studio/internal/logging"
	"github.com/jonathan/content-studio/internal/types"
)

// RunFetcher fetches the server-side state of a run. *api.Client satisfies it.
type RunFetcher interface {
	FetchRun(ctx context.Context, runID string) (*types.StatusSnapshot, *types.PlayerURLs, error)
}

// HistoryStore is the part of the history store that Reopen needs
type HistoryStore interface {
	generation.Recorder
	Get(ctx context.Context, id string) (types.HistoryRecord, error)
}

// Reopen refreshes a history entry from the generation service. The fetched
// status is replayed through the state machine, so the usual rules hold: a
// failed entry stays failed and artifacts are never cleared.
func Reopen(ctx context.Context, store HistoryStore, fetcher RunFetcher, id string, logger zerolog.Logger) (types.Run, error) {
	rec, err := store.Get(ctx, id)
	if err != nil {
		return types.Run{}, fmt.Errorf("failed to load history entry %s: %w", id, err)
	}

	snap, urls, err := fetcher.FetchRun(ctx, id)
	if err != nil {
		return types.Run{}, fmt.Errorf("failed to fetch run %s: %w", id, err)
	}

	m := generation.Restore(rec,
		generation.WithRecorder(store),
		generation.WithLogger(logging.WithRun(logger, id)),
	)
	for _, ev := range generation.SnapshotEvents(snap, urls) {
		m.Apply(ctx, ev)
	}
	return m.Snapshot(), nil
}
