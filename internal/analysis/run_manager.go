package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/lane.report/internal/db"
	"github.com/banshee-data/lane.report/internal/monitoring"
	"github.com/banshee-data/lane.report/internal/sampler"
	"github.com/banshee-data/lane.report/internal/timeutil"
	"github.com/google/uuid"
)

var (
	// ErrUnknownRun is returned by Wait for a run that is neither held by
	// this manager nor finished in the store.
	ErrUnknownRun = errors.New("unknown analysis run")
	// ErrRunFailed wraps the recorded error of a failed run that is no
	// longer held in memory.
	ErrRunFailed = errors.New("analysis run failed")
)

var runLogf = monitoring.Component("RunManager")

// Source is a frame source that must be released after use.
type Source interface {
	sampler.FrameSource
	Close() error
}

// Opener opens the clip at path.
type Opener func(path string) (Source, error)

// RunStore persists run lifecycle transitions and serves finished runs
// back once the manager has let go of them.
type RunStore interface {
	InsertRun(run *db.AnalysisRun) error
	CompleteRun(runID string, res db.RunResult, points []db.RunPoint) error
	FailRun(runID string, completedAt time.Time, errMsg string) error
	GetRun(runID string) (*db.AnalysisRun, error)
	GetPoints(runID string) ([]db.RunPoint, error)
}

type runState struct {
	cancel context.CancelFunc
	done   chan struct{}
	result *Result
	err    error
}

// RunManager executes analyses in the background, one goroutine per run,
// and records each run's outcome in the store. Only in-flight runs are held
// in memory; finished runs are read back from the store. It is safe for
// concurrent use.
type RunManager struct {
	engine *Engine
	store  RunStore
	open   Opener
	clock  timeutil.Clock

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu   sync.Mutex
	runs map[string]*runState
}

// NewRunManager creates a manager. A nil clock uses the real clock.
func NewRunManager(engine *Engine, store RunStore, open Opener, clock timeutil.Clock) *RunManager {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	ctx, stop := context.WithCancel(context.Background())
	return &RunManager{
		engine: engine,
		store:  store,
		open:   open,
		clock:  clock,
		ctx:    ctx,
		stop:   stop,
		runs:   make(map[string]*runState),
	}
}

// Submit validates req, records a running row and starts the analysis.
// It returns the run ID without waiting for the result.
func (m *RunManager) Submit(sourcePath string, req Request) (string, error) {
	runID, _, err := m.start(sourcePath, req)
	return runID, err
}

// Run submits an analysis and waits for it. If ctx is done first the run
// is cancelled and its outcome still returned. Unlike Submit followed by
// Wait, the result and error are never read back from the store.
func (m *RunManager) Run(ctx context.Context, sourcePath string, req Request) (string, *Result, error) {
	runID, st, err := m.start(sourcePath, req)
	if err != nil {
		return "", nil, err
	}
	select {
	case <-st.done:
	case <-ctx.Done():
		st.cancel()
		<-st.done
	}
	return runID, st.result, st.err
}

func (m *RunManager) start(sourcePath string, req Request) (string, *runState, error) {
	req = req.WithDefaults(m.engine.Tuning())
	if err := req.Validate(); err != nil {
		return "", nil, err
	}

	quadJSON, err := json.Marshal(req.Quad)
	if err != nil {
		return "", nil, err
	}
	paramsJSON, err := json.Marshal(m.engine.Tuning())
	if err != nil {
		return "", nil, err
	}

	run := &db.AnalysisRun{
		RunID:      uuid.New().String(),
		CreatedAt:  m.clock.Now(),
		SourcePath: sourcePath,
		QuadJSON:   quadJSON,
		FarFt:      req.FarFt,
		BreakFt:    req.BreakFt,
		ParamsJSON: paramsJSON,
		Status:     db.RunStatusRunning,
	}
	if err := m.store.InsertRun(run); err != nil {
		return "", nil, err
	}

	ctx, cancel := context.WithCancel(m.ctx)
	st := &runState{cancel: cancel, done: make(chan struct{})}
	m.mu.Lock()
	m.runs[run.RunID] = st
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		st.result, st.err = m.execute(ctx, run.RunID, sourcePath, req)

		// Released before done closes: after Wait returns the run is not held.
		m.mu.Lock()
		delete(m.runs, run.RunID)
		m.mu.Unlock()
		close(st.done)
	}()

	runLogf("Started run %s for %s", run.RunID, sourcePath)
	return run.RunID, st, nil
}

func (m *RunManager) execute(ctx context.Context, runID, sourcePath string, req Request) (*Result, error) {
	res, err := m.analyze(ctx, sourcePath, req)
	if err != nil {
		if ferr := m.store.FailRun(runID, m.clock.Now(), err.Error()); ferr != nil {
			runLogf("Failed to record failure of run %s: %v", runID, ferr)
		}
		runLogf("Failed run %s: %v", runID, err)
		return nil, err
	}

	if err := m.store.CompleteRun(runID, res.RunResult(m.clock.Now()), res.RunPoints()); err != nil {
		runLogf("Failed to record completion of run %s: %v", runID, err)
		return res, fmt.Errorf("record run: %w", err)
	}
	runLogf("Completed run %s: %d detections in %s", runID, len(res.Detections), res.Elapsed.Round(time.Millisecond))
	return res, nil
}

func (m *RunManager) analyze(ctx context.Context, sourcePath string, req Request) (*Result, error) {
	src, err := m.open(sourcePath)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return m.engine.Analyze(ctx, src, req)
}

// Wait blocks until the run finishes or ctx is done. A run that already
// finished is read back from the store: completed runs are rebuilt from
// their points and failed runs return ErrRunFailed with the recorded error.
func (m *RunManager) Wait(ctx context.Context, runID string) (*Result, error) {
	m.mu.Lock()
	st, ok := m.runs[runID]
	m.mu.Unlock()
	if !ok {
		return m.finished(runID)
	}

	select {
	case <-st.done:
		return st.result, st.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *RunManager) finished(runID string) (*Result, error) {
	run, err := m.store.GetRun(runID)
	if errors.Is(err, db.ErrRunNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	if err != nil {
		return nil, err
	}

	switch run.Status {
	case db.RunStatusCompleted:
		points, err := m.store.GetPoints(runID)
		if err != nil {
			return nil, err
		}
		return m.engine.Rebuild(run, points)
	case db.RunStatusFailed:
		return nil, fmt.Errorf("%w: %s", ErrRunFailed, run.Error)
	default:
		// Running in the store but not here: another process owns it.
		return nil, fmt.Errorf("%w: %s is %s elsewhere", ErrUnknownRun, runID, run.Status)
	}
}

// Running reports whether runID is still executing.
func (m *RunManager) Running(runID string) bool {
	m.mu.Lock()
	st, ok := m.runs[runID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-st.done:
		return false
	default:
		return true
	}
}

// Cancel stops an in-flight run. It reports whether the run was still
// held, that is, not yet finished.
func (m *RunManager) Cancel(runID string) bool {
	m.mu.Lock()
	st, ok := m.runs[runID]
	m.mu.Unlock()
	if ok {
		st.cancel()
	}
	return ok
}

// Held returns the number of runs currently held in memory.
func (m *RunManager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runs)
}

// Close cancels all in-flight runs and waits for them to finish.
func (m *RunManager) Close() {
	m.stop()
	m.wg.Wait()
}
