package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("analysis run not found")

// AnalysisRun is one persisted analysis of a clip.
type AnalysisRun struct {
	RunID         string          `json:"run_id"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	SourcePath    string          `json:"source_path"`
	QuadJSON      json.RawMessage `json:"quad"`
	FarFt         float64         `json:"far_ft"`
	BreakFt       float64         `json:"break_ft"`
	ParamsJSON    json.RawMessage `json:"params,omitempty"`
	Status        string          `json:"status"`
	Error         string          `json:"error,omitempty"`
	ArrowsBoard   *int            `json:"arrows_board"`
	BreakBoard    *int            `json:"breakpoint_board"`
	SpeedMPH      *float64        `json:"speed_mph"`
	SampledFrames int             `json:"sampled_frames"`
	MissedFrames  int             `json:"missed_frames"`
	RawPoints     int             `json:"raw_points"`
	LanePoints    int             `json:"lane_points"`
}

// RunResult is what a completed run records alongside its points.
type RunResult struct {
	CompletedAt   time.Time
	ArrowsBoard   *int
	BreakBoard    *int
	SpeedMPH      *float64
	SampledFrames int
	MissedFrames  int
	RawPoints     int
	LanePoints    int
}

// RunPoint is one raw detection of a run. LaneX/LaneY are nil when the
// detection did not project onto the lane.
type RunPoint struct {
	Seq   int      `json:"seq"`
	TSec  float64  `json:"t_sec"`
	PxX   float64  `json:"px_x"`
	PxY   float64  `json:"px_y"`
	LaneX *float64 `json:"lane_x,omitempty"`
	LaneY *float64 `json:"lane_y,omitempty"`
	Valid bool     `json:"valid"`
}

// AnalysisRunStore provides persistence for analysis runs and their points.
type AnalysisRunStore struct {
	db *sql.DB
}

// NewAnalysisRunStore creates a new AnalysisRunStore.
func NewAnalysisRunStore(db *sql.DB) *AnalysisRunStore {
	return &AnalysisRunStore{db: db}
}

// InsertRun persists a new run. If RunID is empty, a UUID is generated.
func (s *AnalysisRunStore) InsertRun(run *AnalysisRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO analysis_runs (
				run_id, created_at, source_path, quad_json, far_ft, break_ft,
				params_json, status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.CreatedAt.UnixNano(), run.SourcePath, string(run.QuadJSON),
			run.FarFt, run.BreakFt, nullableJSON(run.ParamsJSON), run.Status,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		return nil
	})
}

// CompleteRun marks a run completed and stores its points in one transaction.
func (s *AnalysisRunStore) CompleteRun(runID string, res RunResult, points []RunPoint) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		result, err := tx.Exec(`
			UPDATE analysis_runs SET
				status = ?, completed_at = ?, error = NULL,
				arrows_board = ?, break_board = ?, speed_mph = ?,
				sampled_frames = ?, missed_frames = ?, raw_points = ?, lane_points = ?
			WHERE run_id = ?`,
			RunStatusCompleted, res.CompletedAt.UnixNano(),
			res.ArrowsBoard, res.BreakBoard, res.SpeedMPH,
			res.SampledFrames, res.MissedFrames, res.RawPoints, res.LanePoints,
			runID,
		)
		if err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
		if err := requireAffected(result, runID); err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO analysis_points (run_id, seq, t_sec, px_x, px_y, lane_x, lane_y, valid)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare points: %w", err)
		}
		defer stmt.Close()
		for _, p := range points {
			if _, err := stmt.Exec(runID, p.Seq, p.TSec, p.PxX, p.PxY, p.LaneX, p.LaneY, p.Valid); err != nil {
				return fmt.Errorf("insert point %d: %w", p.Seq, err)
			}
		}
		return tx.Commit()
	})
}

// FailRun marks a run failed with an error message.
func (s *AnalysisRunStore) FailRun(runID string, completedAt time.Time, errMsg string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`
			UPDATE analysis_runs SET status = ?, completed_at = ?, error = ?
			WHERE run_id = ?`,
			RunStatusFailed, completedAt.UnixNano(), errMsg, runID,
		)
		if err != nil {
			return fmt.Errorf("fail run: %w", err)
		}
		return requireAffected(result, runID)
	})
}

// FailInterruptedRuns marks every run still recorded as running as failed.
// It is meant for startup, before any new run is submitted, to close out
// runs orphaned by a crash or restart.
func (s *AnalysisRunStore) FailInterruptedRuns(completedAt time.Time, errMsg string) (int64, error) {
	var n int64
	err := retryOnBusy(func() error {
		result, err := s.db.Exec(`
			UPDATE analysis_runs SET status = ?, completed_at = ?, error = ?
			WHERE status = ?`,
			RunStatusFailed, completedAt.UnixNano(), errMsg, RunStatusRunning,
		)
		if err != nil {
			return fmt.Errorf("fail interrupted runs: %w", err)
		}
		n, err = result.RowsAffected()
		return err
	})
	return n, err
}

const runColumns = `
	run_id, created_at, completed_at, source_path, quad_json, far_ft, break_ft,
	params_json, status, error, arrows_board, break_board, speed_mph,
	sampled_frames, missed_frames, raw_points, lane_points`

// GetRun returns a single run by ID.
func (s *AnalysisRunStore) GetRun(runID string) (*AnalysisRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM analysis_runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (s *AnalysisRunStore) ListRuns(limit int) ([]*AnalysisRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM analysis_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*AnalysisRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetPoints returns a run's points in sample order.
func (s *AnalysisRunStore) GetPoints(runID string) ([]RunPoint, error) {
	rows, err := s.db.Query(`
		SELECT seq, t_sec, px_x, px_y, lane_x, lane_y, valid
		FROM analysis_points WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	var points []RunPoint
	for rows.Next() {
		var (
			p            RunPoint
			laneX, laneY sql.NullFloat64
		)
		if err := rows.Scan(&p.Seq, &p.TSec, &p.PxX, &p.PxY, &laneX, &laneY, &p.Valid); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		if laneX.Valid {
			p.LaneX = &laneX.Float64
		}
		if laneY.Valid {
			p.LaneY = &laneY.Float64
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// DeleteRun removes a run and its points.
func (s *AnalysisRunStore) DeleteRun(runID string) error {
	return retryOnBusy(func() error {
		result, err := s.db.Exec(`DELETE FROM analysis_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		return requireAffected(result, runID)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*AnalysisRun, error) {
	var (
		r                       AnalysisRun
		createdAt               int64
		completedAt             sql.NullInt64
		quad                    string
		params, errMsg          sql.NullString
		arrowsBoard, breakBoard sql.NullInt64
		speed                   sql.NullFloat64
	)
	err := row.Scan(
		&r.RunID, &createdAt, &completedAt, &r.SourcePath, &quad, &r.FarFt, &r.BreakFt,
		&params, &r.Status, &errMsg, &arrowsBoard, &breakBoard, &speed,
		&r.SampledFrames, &r.MissedFrames, &r.RawPoints, &r.LanePoints,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	r.CreatedAt = time.Unix(0, createdAt)
	if completedAt.Valid {
		t := time.Unix(0, completedAt.Int64)
		r.CompletedAt = &t
	}
	r.QuadJSON = json.RawMessage(quad)
	if params.Valid {
		r.ParamsJSON = json.RawMessage(params.String)
	}
	r.Error = errMsg.String
	if arrowsBoard.Valid {
		b := int(arrowsBoard.Int64)
		r.ArrowsBoard = &b
	}
	if breakBoard.Valid {
		b := int(breakBoard.Int64)
		r.BreakBoard = &b
	}
	if speed.Valid {
		r.SpeedMPH = &speed.Float64
	}
	return &r, nil
}

func requireAffected(result sql.Result, runID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

func nullableJSON(b json.RawMessage) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
