package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/config"
	"github.com/banshee-data/lane.report/internal/db"
	"github.com/banshee-data/lane.report/internal/geometry"
	"github.com/banshee-data/lane.report/internal/metrics"
	"github.com/banshee-data/lane.report/internal/sampler"
	"github.com/banshee-data/lane.report/internal/trajectory"
)

// RunResult summarises r for the run store.
func (r *Result) RunResult(completedAt time.Time) db.RunResult {
	return db.RunResult{
		CompletedAt:   completedAt,
		ArrowsBoard:   r.Metrics.ArrowsBoard,
		BreakBoard:    r.Metrics.BreakpointBoard,
		SpeedMPH:      r.Metrics.SpeedMPH,
		SampledFrames: r.Sampling.Sampled,
		MissedFrames:  r.Sampling.Missed,
		RawPoints:     len(r.Detections),
		LanePoints:    len(r.LanePoints),
	}
}

// RunPoints pairs every raw detection with its lane position. Detections
// dropped during projection are stored with Valid false.
func (r *Result) RunPoints() []db.RunPoint {
	points := make([]db.RunPoint, len(r.Detections))
	for i, d := range r.Detections {
		p := db.RunPoint{Seq: i, TSec: d.TSec, PxX: d.Pixel.X, PxY: d.Pixel.Y}
		if lane, err := r.Homography.Project(d.Pixel); err == nil {
			x, y := lane.X, lane.Y
			p.LaneX, p.LaneY = &x, &y
			p.Valid = y >= 0
		}
		points[i] = p
	}
	return points
}

// Rebuild recomputes the Result of a completed run from its stored
// detections under the tuning the run recorded, so the metrics match the
// stored row whatever the engine is tuned to now. Runs without recorded
// params use the engine's tuning.
func (e *Engine) Rebuild(run *db.AnalysisRun, points []db.RunPoint) (*Result, error) {
	var quad calibration.Quad
	if err := json.Unmarshal(run.QuadJSON, &quad); err != nil {
		return nil, fmt.Errorf("run %s: %w", run.RunID, err)
	}
	req := Request{Quad: quad, FarFt: run.FarFt, BreakFt: run.BreakFt}

	mcfg, err := e.recordedMetrics(run)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", run.RunID, err)
	}

	frame := calibration.LaneFrame{WidthIn: mcfg.LaneWidthIn, LengthIn: req.FarFt * calibration.InchesPerFoot}
	h, err := calibration.ComputeHomography(quad, frame)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", run.RunID, err)
	}

	dets := make([]trajectory.Detection, len(points))
	for i, p := range points {
		dets[i] = trajectory.Detection{TSec: p.TSec, Pixel: geometry.Point{X: p.PxX, Y: p.PxY}}
	}
	m, pts, err := metrics.Estimate(dets, h, req.FarFt, req.BreakFt, mcfg)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", run.RunID, err)
	}
	return &Result{
		Request:     req,
		LaneWidthIn: frame.WidthIn,
		Homography:  *h,
		Metrics:     m,
		Detections:  dets,
		LanePoints:  pts,
		Sampling: sampler.Stats{
			Sampled:    run.SampledFrames,
			Missed:     run.MissedFrames,
			Detections: len(dets),
		},
	}, nil
}

// recordedMetrics returns the metrics config of the tuning stored with run.
func (e *Engine) recordedMetrics(run *db.AnalysisRun) (metrics.Config, error) {
	if len(bytes.TrimSpace(run.ParamsJSON)) == 0 || string(run.ParamsJSON) == "null" {
		return e.metrics, nil
	}
	var tuning config.TuningConfig
	if err := json.Unmarshal(run.ParamsJSON, &tuning); err != nil {
		return metrics.Config{}, fmt.Errorf("params: %w", err)
	}
	return metrics.ConfigFromTuning(&tuning), nil
}
