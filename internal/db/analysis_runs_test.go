package db

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newRun(source string, created time.Time) *AnalysisRun {
	return &AnalysisRun{
		CreatedAt:  created,
		SourcePath: source,
		QuadJSON:   json.RawMessage(`[[50,420],[150,420],[50,30],[150,30]]`),
		FarFt:      50,
		BreakFt:    40,
		ParamsJSON: json.RawMessage(`{"diff_threshold":22}`),
	}
}

func TestAnalysisRunStore_InsertAndGet(t *testing.T) {
	store := NewAnalysisRunStore(newTestDB(t).DB)

	created := time.Unix(1700000000, 123)
	run := newRun("clip.mp4", created)
	require.NoError(t, store.InsertRun(run))
	require.NotEmpty(t, run.RunID)
	assert.Equal(t, RunStatusRunning, run.Status)

	got, err := store.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, got.RunID)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, "clip.mp4", got.SourcePath)
	assert.JSONEq(t, string(run.QuadJSON), string(got.QuadJSON))
	assert.JSONEq(t, string(run.ParamsJSON), string(got.ParamsJSON))
	assert.Equal(t, 50.0, got.FarFt)
	assert.Equal(t, 40.0, got.BreakFt)
	assert.Equal(t, RunStatusRunning, got.Status)
	assert.Nil(t, got.ArrowsBoard)
	assert.Nil(t, got.SpeedMPH)
}

func TestAnalysisRunStore_GetMissing(t *testing.T) {
	store := NewAnalysisRunStore(newTestDB(t).DB)

	_, err := store.GetRun("nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.ErrorIs(t, store.DeleteRun("nope"), ErrRunNotFound)
	assert.ErrorIs(t, store.FailRun("nope", time.Now(), "x"), ErrRunNotFound)
	assert.ErrorIs(t, store.CompleteRun("nope", RunResult{CompletedAt: time.Now()}, nil), ErrRunNotFound)
}

func TestAnalysisRunStore_CompleteRun(t *testing.T) {
	store := NewAnalysisRunStore(newTestDB(t).DB)

	run := newRun("clip.mp4", time.Now())
	require.NoError(t, store.InsertRun(run))

	done := time.Now().Add(3 * time.Second)
	res := RunResult{
		CompletedAt:   done,
		ArrowsBoard:   ptr(20),
		SpeedMPH:      ptr(15.3),
		SampledFrames: 31,
		MissedFrames:  1,
		RawPoints:     3,
		LanePoints:    2,
	}
	points := []RunPoint{
		{Seq: 0, TSec: 0.066, PxX: 100, PxY: 394, LaneX: ptr(20.75), LaneY: ptr(40.0), Valid: true},
		{Seq: 1, TSec: 0.132, PxX: 100, PxY: 430},
		{Seq: 2, TSec: 0.198, PxX: 100, PxY: 380, LaneX: ptr(20.75), LaneY: ptr(61.5), Valid: true},
	}
	require.NoError(t, store.CompleteRun(run.RunID, res, points))

	got, err := store.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
	require.NotNil(t, got.ArrowsBoard)
	assert.Equal(t, 20, *got.ArrowsBoard)
	assert.Nil(t, got.BreakBoard, "not determined stays NULL")
	require.NotNil(t, got.SpeedMPH)
	assert.InDelta(t, 15.3, *got.SpeedMPH, 1e-12)
	assert.Equal(t, 31, got.SampledFrames)
	assert.Equal(t, 1, got.MissedFrames)
	assert.Equal(t, 3, got.RawPoints)
	assert.Equal(t, 2, got.LanePoints)

	gotPoints, err := store.GetPoints(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, points, gotPoints)
}

func TestAnalysisRunStore_FailRun(t *testing.T) {
	store := NewAnalysisRunStore(newTestDB(t).DB)

	run := newRun("clip.mp4", time.Now())
	require.NoError(t, store.InsertRun(run))
	require.NoError(t, store.FailRun(run.RunID, time.Now(), "insufficient tracking points: got 3, need 8"))

	got, err := store.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "insufficient tracking points: got 3, need 8", got.Error)
	assert.NotNil(t, got.CompletedAt)
}

func TestAnalysisRunStore_FailInterruptedRuns(t *testing.T) {
	store := NewAnalysisRunStore(newTestDB(t).DB)

	running := newRun("a.mp4", time.Now())
	done := newRun("b.mp4", time.Now())
	require.NoError(t, store.InsertRun(running))
	require.NoError(t, store.InsertRun(done))
	require.NoError(t, store.CompleteRun(done.RunID, RunResult{CompletedAt: time.Now()}, nil))

	n, err := store.FailInterruptedRuns(time.Now(), "interrupted by restart")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.GetRun(running.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "interrupted by restart", got.Error)

	got, err = store.GetRun(done.RunID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, got.Status)

	n, err = store.FailInterruptedRuns(time.Now(), "again")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAnalysisRunStore_ListRuns(t *testing.T) {
	store := NewAnalysisRunStore(newTestDB(t).DB)

	base := time.Unix(1700000000, 0)
	for i, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		require.NoError(t, store.InsertRun(newRun(name, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := store.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c.mp4", runs[0].SourcePath, "newest first")
	assert.Equal(t, "a.mp4", runs[2].SourcePath)

	runs, err = store.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestAnalysisRunStore_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	store := NewAnalysisRunStore(db.DB)

	run := newRun("clip.mp4", time.Now())
	require.NoError(t, store.InsertRun(run))
	require.NoError(t, store.CompleteRun(run.RunID, RunResult{CompletedAt: time.Now()}, []RunPoint{{Seq: 0, TSec: 0.1}}))

	require.NoError(t, store.DeleteRun(run.RunID))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM analysis_points WHERE run_id = ?`, run.RunID).Scan(&n))
	assert.Zero(t, n)
	_, err := store.GetRun(run.RunID)
	assert.ErrorIs(t, err, ErrRunNotFound)
}
