// Package analysis is the entry point of the lane metrics engine. It
// calibrates the lane, samples the clip for motion, and estimates metrics,
// failing with a typed reason when the clip cannot be analysed.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/config"
	"github.com/banshee-data/lane.report/internal/metrics"
	"github.com/banshee-data/lane.report/internal/monitoring"
	"github.com/banshee-data/lane.report/internal/motion"
	"github.com/banshee-data/lane.report/internal/sampler"
	"github.com/banshee-data/lane.report/internal/timeutil"
	"github.com/banshee-data/lane.report/internal/trajectory"
)

// ErrInvalidDistance is returned for a non-positive or non-finite distance.
var ErrInvalidDistance = errors.New("distance must be a positive number of feet")

var logf = monitoring.Component("Analyzer")

// Request describes one analysis: the calibration quad in image pixels and
// the two user distances in feet. Zero distances take the configured defaults.
type Request struct {
	Quad    calibration.Quad `json:"quad"`
	FarFt   float64          `json:"far_ft"`
	BreakFt float64          `json:"break_ft"`
}

// WithDefaults fills zero distances from cfg.
func (r Request) WithDefaults(cfg *config.TuningConfig) Request {
	if r.FarFt == 0 {
		r.FarFt = cfg.GetDefaultFarFt()
	}
	if r.BreakFt == 0 {
		r.BreakFt = cfg.GetDefaultBreakFt()
	}
	return r
}

// Validate checks the distances and the quad ordering.
func (r Request) Validate() error {
	for _, d := range []struct {
		name string
		v    float64
	}{{"far", r.FarFt}, {"breakpoint", r.BreakFt}} {
		if !(d.v > 0) || math.IsInf(d.v, 0) {
			return fmt.Errorf("request: %w: %s distance %v", ErrInvalidDistance, d.name, d.v)
		}
	}
	if err := calibration.ValidateQuad(r.Quad); err != nil {
		return fmt.Errorf("calibration: %w", err)
	}
	return nil
}

// Result is a completed analysis with its diagnostics.
type Result struct {
	Request     Request                `json:"request"`
	LaneWidthIn float64                `json:"lane_width_in"`
	Homography  calibration.Homography `json:"homography"`
	Metrics     metrics.Metrics        `json:"metrics"`
	Detections  []trajectory.Detection `json:"detections"`
	LanePoints  []trajectory.LanePoint `json:"lane_points"`
	Sampling    sampler.Stats          `json:"sampling"`
	Elapsed     time.Duration          `json:"elapsed"`
}

// Engine runs analyses. One Engine may serve concurrent Analyze calls; each
// call owns its own frames, homography and trajectory.
type Engine struct {
	tuning   *config.TuningConfig
	detector *motion.Detector
	sampler  *sampler.Sampler
	metrics  metrics.Config
	clock    timeutil.Clock
}

// NewEngine builds an Engine from tuning. Call Close when done.
func NewEngine(tuning *config.TuningConfig) *Engine {
	det := motion.NewDetector(motion.ConfigFromTuning(tuning))
	return &Engine{
		tuning:   tuning,
		detector: det,
		sampler:  sampler.New(det, tuning.GetSampleStep()),
		metrics:  metrics.ConfigFromTuning(tuning),
		clock:    timeutil.RealClock{},
	}
}

// Tuning returns the configuration the engine was built with.
func (e *Engine) Tuning() *config.TuningConfig {
	return e.tuning
}

// Close releases the detector.
func (e *Engine) Close() error {
	return e.detector.Close()
}

// Analyze runs the full pipeline on src. The homography is derived before
// any frame is decoded so calibration problems fail immediately.
func (e *Engine) Analyze(ctx context.Context, src sampler.FrameSource, req Request) (*Result, error) {
	start := e.clock.Now()
	req = req.WithDefaults(e.tuning)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	frame := calibration.LaneFrame{WidthIn: e.metrics.LaneWidthIn, LengthIn: req.FarFt * calibration.InchesPerFoot}
	h, err := calibration.ComputeHomography(req.Quad, frame)
	if err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}

	dets, stats, err := e.sampler.Run(ctx, src, req.Quad)
	if err != nil {
		return nil, fmt.Errorf("sampling: %w", err)
	}

	m, pts, err := metrics.Estimate(dets, h, req.FarFt, req.BreakFt, e.metrics)
	if err != nil {
		logf("analysis failed after %d detections: %v", len(dets), err)
		return nil, fmt.Errorf("estimate: %w", err)
	}

	res := &Result{
		Request:     req,
		LaneWidthIn: frame.WidthIn,
		Homography:  *h,
		Metrics:     m,
		Detections:  dets,
		LanePoints:  pts,
		Sampling:    stats,
		Elapsed:     e.clock.Since(start),
	}
	logf("arrows=%s breakpoint=%s speed=%s (%d/%d points in lane, %s)",
		formatBoard(m.ArrowsBoard), formatBoard(m.BreakpointBoard), formatSpeed(m.SpeedMPH),
		len(pts), len(dets), res.Elapsed.Round(time.Millisecond))
	return res, nil
}

func formatBoard(b *int) string {
	if b == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d", *b)
}

func formatSpeed(s *float64) string {
	if s == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1fmph", *s)
}
