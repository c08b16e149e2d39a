package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/content-studio/internal/events"
	"github.com/jonathan/content-studio/internal/types"
)

type fakeRecorder struct {
	records []types.HistoryRecord
	err     error
}

func (f *fakeRecorder) Upsert(_ context.Context, rec types.HistoryRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

func (f *fakeRecorder) last() types.HistoryRecord {
	return f.records[len(f.records)-1]
}

func testRequest() types.GenerationRequest {
	return types.GenerationRequest{
		Prompt:      "Explain gravity",
		ContentType: types.ContentVideo,
		Language:    "en",
	}
}

func progress(stage types.Stage, pct float64, files map[types.ArtifactKind]string) *events.Event {
	p := &events.Progress{Stage: stage, Percentage: pct}
	if files != nil {
		p.Files = map[types.ArtifactKind]types.FileRef{}
		for k, v := range files {
			p.Files[k] = types.FileRef{URL: v}
		}
	}
	return &events.Event{Kind: events.KindProgress, Progress: p}
}

func newTestMachine(rec *fakeRecorder) *Machine {
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return NewMachine("v1", testRequest(),
		WithRecorder(rec),
		WithClock(func() time.Time { return clock }),
	)
}

func TestMachine_BeginRecordsPending(t *testing.T) {
	rec := &fakeRecorder{}
	m := newTestMachine(rec)

	run := m.Begin(context.Background())

	assert.Equal(t, types.StagePending, run.Stage)
	assert.Equal(t, types.StatusPending, run.Status)
	require.Len(t, rec.records, 1)
	assert.Equal(t, "Explain gravity", rec.last().Prompt)
	assert.Equal(t, types.ContentVideo, rec.last().Request.ContentType)
}

func TestMachine_PercentageIsMonotonic(t *testing.T) {
	m := newTestMachine(&fakeRecorder{})
	ctx := context.Background()

	m.Apply(ctx, progress(types.StageScript, 10, nil))
	m.Apply(ctx, progress(types.StageTTS, 45, nil))
	run, _ := m.Apply(ctx, progress(types.StageWords, 30, nil))

	assert.Equal(t, 45.0, run.Percentage)
	assert.Equal(t, types.StageWords, run.Stage)
	assert.Equal(t, types.StatusGenerating, run.Status)
}

func TestMachine_StageNeverRegresses(t *testing.T) {
	m := newTestMachine(&fakeRecorder{})
	ctx := context.Background()

	m.Apply(ctx, progress(types.StageHTML, 70, nil))
	run, _ := m.Apply(ctx, progress(types.StageScript, 75, nil))

	assert.Equal(t, types.StageHTML, run.Stage)
	assert.Equal(t, 75.0, run.Percentage)
}

func TestMachine_SkippedStagesAreAccepted(t *testing.T) {
	m := newTestMachine(&fakeRecorder{})
	run, changed := m.Apply(context.Background(), progress(types.StageWords, 50, nil))

	assert.True(t, changed)
	assert.Equal(t, types.StageWords, run.Stage)
}

func TestMachine_ContentReadyScenario(t *testing.T) {
	rec := &fakeRecorder{}
	m := newTestMachine(rec)
	ctx := context.Background()

	script, err := events.Decode(`data: {'type':'progress','stage':'SCRIPT','percentage':10}`)
	require.NoError(t, err)
	html, err := events.Decode(`data: {'type':'progress','stage':'HTML','percentage':80,'files':{'timeline':{'url':'u1'},'audio':{'url':'u2'}}}`)
	require.NoError(t, err)

	m.Apply(ctx, script)
	run, _ := m.Apply(ctx, html)

	assert.Equal(t, types.StageHTML, run.Stage)
	assert.Equal(t, 80.0, run.Percentage)
	assert.Equal(t, map[types.ArtifactKind]string{
		types.ArtifactTimeline: "u1",
		types.ArtifactAudio:    "u2",
	}, run.Artifacts)
	assert.Equal(t, types.StatusCompleted, run.Status)
	assert.Equal(t, types.StatusCompleted, rec.last().Status)
}

func TestMachine_CompletedForcesHundred(t *testing.T) {
	m := newTestMachine(&fakeRecorder{})
	ctx := context.Background()
	m.Apply(ctx, progress(types.StageScript, 12, nil))

	run, changed := m.Apply(ctx, &events.Event{Kind: events.KindCompleted, Completed: &events.Completed{
		Percentage: 100,
		Files:      map[types.ArtifactKind]string{types.ArtifactVideo: "final.mp4"},
	}})

	assert.True(t, changed)
	assert.Equal(t, types.StageCompleted, run.Stage)
	assert.Equal(t, 100.0, run.Percentage)
	assert.Equal(t, types.StatusCompleted, run.Status)
	assert.Equal(t, "final.mp4", run.Artifacts[types.ArtifactVideo])
	assert.True(t, m.Done())
}

func TestMachine_ErrorAfterTimelineAndAudioIsDegradedSuccess(t *testing.T) {
	m := newTestMachine(&fakeRecorder{})
	ctx := context.Background()
	m.Apply(ctx, progress(types.StageTTS, 40, map[types.ArtifactKind]string{types.ArtifactAudio: "a"}))
	m.Apply(ctx, progress(types.StageHTML, 80, map[types.ArtifactKind]string{types.ArtifactTimeline: "t"}))

	run, _ := m.Apply(ctx, events.NewError("", "render crashed"))

	assert.Equal(t, types.StatusCompleted, run.Status)
	assert.Equal(t, types.StageCompleted, run.Stage)
	assert.Equal(t, "render crashed", run.Error)
	assert.NotNil(t, m.Active())
}

func TestMachine_ErrorWithoutArtifactsFails(t *testing.T) {
	rec := &fakeRecorder{}
	m := newTestMachine(rec)
	ctx := context.Background()
	m.Begin(ctx)

	run, changed := m.Apply(ctx, &events.Event{Kind: events.KindError, Failure: &events.Failure{
		Message: "quota exceeded",
		Stage:   types.StageTTS,
	}})

	assert.True(t, changed)
	assert.Equal(t, types.StatusFailed, run.Status)
	assert.Equal(t, types.StageFailed, run.Stage)
	assert.Equal(t, "quota exceeded", run.Error)
	assert.Nil(t, m.Active(), "failed runs leave the active view")
	assert.Equal(t, types.StatusFailed, rec.last().Status, "failed runs stay in history")
}

func TestMachine_FailedIsTerminal(t *testing.T) {
	rec := &fakeRecorder{}
	m := newTestMachine(rec)
	ctx := context.Background()
	m.Apply(ctx, events.NewError("", "boom"))
	recorded := len(rec.records)

	run, changed := m.Apply(ctx, progress(types.StageRender, 90, map[types.ArtifactKind]string{types.ArtifactVideo: "v"}))

	assert.False(t, changed)
	assert.Equal(t, types.StatusFailed, run.Status)
	assert.Empty(t, run.Artifacts)
	assert.Len(t, rec.records, recorded)
}

func TestMachine_ReadyRunKeepsCollectingArtifacts(t *testing.T) {
	m := newTestMachine(&fakeRecorder{})
	ctx := context.Background()
	m.Apply(ctx, progress(types.StageHTML, 80, map[types.ArtifactKind]string{
		types.ArtifactTimeline: "t", types.ArtifactAudio: "a",
	}))

	run, _ := m.Apply(ctx, progress(types.StageRender, 95, map[types.ArtifactKind]string{types.ArtifactVideo: "v"}))

	assert.Equal(t, types.StatusCompleted, run.Status)
	assert.Equal(t, types.StageRender, run.Stage)
	assert.Equal(t, "v", run.Artifacts[types.ArtifactVideo])
}

func TestMachine_ArtifactsAreReplacedNotCleared(t *testing.T) {
	m := newTestMachine(&fakeRecorder{})
	ctx := context.Background()
	m.Apply(ctx, progress(types.StageScript, 10, map[types.ArtifactKind]string{types.ArtifactScript: "s1"}))
	m.Apply(ctx, progress(types.StageTTS, 20, map[types.ArtifactKind]string{types.ArtifactAudio: "a1"}))
	run, _ := m.Apply(ctx, progress(types.StageTTS, 30, map[types.ArtifactKind]string{types.ArtifactScript: "s2"}))

	assert.Equal(t, "s2", run.Artifacts[types.ArtifactScript])
	assert.Equal(t, "a1", run.Artifacts[types.ArtifactAudio])
}

func TestMachine_IgnoresOtherRunIDs(t *testing.T) {
	m := newTestMachine(&fakeRecorder{})
	ev := progress(types.StageScript, 10, nil)
	ev.Progress.RunID = "someone-else"

	run, changed := m.Apply(context.Background(), ev)

	assert.False(t, changed)
	assert.Equal(t, types.StagePending, run.Stage)
}

func TestMachine_DuplicateEventIsNotRecorded(t *testing.T) {
	rec := &fakeRecorder{}
	m := newTestMachine(rec)
	ctx := context.Background()

	m.Apply(ctx, progress(types.StageScript, 10, nil))
	_, changed := m.Apply(ctx, progress(types.StageScript, 10, nil))

	assert.False(t, changed)
	assert.Len(t, rec.records, 1)
}

func TestMachine_ObserverGetsCopies(t *testing.T) {
	var seen []types.Run
	m := NewMachine("v1", testRequest(), WithObserver(func(run types.Run) {
		run.Artifacts[types.ArtifactVideo] = "tampered"
		seen = append(seen, run)
	}))

	run, _ := m.Apply(context.Background(), progress(types.StageScript, 10, nil))

	require.Len(t, seen, 1)
	assert.Empty(t, run.Artifacts[types.ArtifactVideo])
	assert.Empty(t, m.Snapshot().Artifacts[types.ArtifactVideo])
}

func TestMachine_RecorderErrorsAreNotFatal(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	m := newTestMachine(rec)

	run, changed := m.Apply(context.Background(), progress(types.StageScript, 10, nil))

	assert.True(t, changed)
	assert.Equal(t, types.StageScript, run.Stage)
}
