// Package metrics turns a pixel trajectory into lane metrics: board position
// at the arrows and at the breakpoint, and average ball speed.
package metrics

import (
	"math"

	"github.com/banshee-data/lane.report/internal/config"
	"github.com/banshee-data/lane.report/internal/geometry"
	"github.com/banshee-data/lane.report/internal/monitoring"
	"github.com/banshee-data/lane.report/internal/trajectory"
	"github.com/banshee-data/lane.report/internal/units"
)

// minDeltaY is the smallest down-lane step (inches) treated as a real segment.
const minDeltaY = 1e-6

var logf = monitoring.Component("metrics")

// Config holds the estimator thresholds. Distances are in inches.
type Config struct {
	LaneWidthIn      float64
	Boards           int
	ArrowsIn         float64
	MinRawPoints     int
	MinLanePoints    int
	MinSpeedPoints   int
	SpeedWindowMinIn float64
	SpeedWindowMaxIn float64
}

// DefaultConfig returns the built-in thresholds.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		LaneWidthIn:      cfg.GetLaneWidthIn(),
		Boards:           cfg.GetBoards(),
		ArrowsIn:         units.FeetToInches(cfg.GetArrowsFt()),
		MinRawPoints:     cfg.GetMinRawPoints(),
		MinLanePoints:    cfg.GetMinLanePoints(),
		MinSpeedPoints:   cfg.GetMinSpeedPoints(),
		SpeedWindowMinIn: units.FeetToInches(cfg.GetSpeedWindowMinFt()),
		SpeedWindowMaxIn: units.FeetToInches(cfg.GetSpeedWindowMaxFt()),
	}
}

// SpeedFit is the least-squares fit of down-lane distance against time.
type SpeedFit struct {
	InterceptIn   float64 `json:"intercept_in"`
	SlopeInPerSec float64 `json:"slope_in_per_sec"`
	Points        int     `json:"points"`
	WindowMinIn   float64 `json:"window_min_in"`
	WindowMaxIn   float64 `json:"window_max_in"`
}

// MPH converts the fitted slope to miles per hour.
func (f SpeedFit) MPH() float64 {
	return units.InchesPerSecondToMPH(f.SlopeInPerSec)
}

// Metrics is the outcome of a successful estimate. Each nil field means
// "not determined".
type Metrics struct {
	ArrowsBoard     *int      `json:"arrows_board"`
	BreakpointBoard *int      `json:"breakpoint_board"`
	SpeedMPH        *float64  `json:"speed_mph"`
	ArrowsXIn       *float64  `json:"arrows_x_in,omitempty"`
	BreakpointXIn   *float64  `json:"breakpoint_x_in,omitempty"`
	ArrowsYIn       float64   `json:"arrows_y_in"`
	BreakpointYIn   float64   `json:"breakpoint_y_in"`
	Speed           *SpeedFit `json:"speed_fit,omitempty"`
}

// Estimate projects dets through h and derives the lane metrics. farFt is
// the calibrated lane length; breakFt the breakpoint distance. Only point
// shortages are fatal; any single metric may come back nil.
func Estimate(dets []trajectory.Detection, h trajectory.Projector, farFt, breakFt float64, cfg Config) (Metrics, []trajectory.LanePoint, error) {
	if len(dets) < cfg.MinRawPoints {
		return Metrics{}, nil, &PointCountError{Reason: ErrInsufficientTracking, Observed: len(dets), Required: cfg.MinRawPoints}
	}

	pts, ps := trajectory.Project(dets, h)
	if ps.BehindFoulLine > 0 || ps.Unprojectable > 0 {
		logf("dropped %d points behind the near edge, %d unprojectable", ps.BehindFoulLine, ps.Unprojectable)
	}
	if len(pts) < cfg.MinLanePoints {
		return Metrics{}, pts, &PointCountError{Reason: ErrOutOfLane, Observed: len(pts), Required: cfg.MinLanePoints}
	}

	m := Metrics{
		ArrowsYIn:     cfg.ArrowsIn,
		BreakpointYIn: units.FeetToInches(breakFt),
	}
	if x, ok := InterpolateXAtY(pts, m.ArrowsYIn); ok {
		b := InchesToBoard(x, cfg.LaneWidthIn, cfg.Boards)
		m.ArrowsXIn, m.ArrowsBoard = &x, &b
	}
	if x, ok := InterpolateXAtY(pts, m.BreakpointYIn); ok {
		b := InchesToBoard(x, cfg.LaneWidthIn, cfg.Boards)
		m.BreakpointXIn, m.BreakpointBoard = &x, &b
	}

	windowMax := math.Min(cfg.SpeedWindowMaxIn, units.FeetToInches(farFt))
	if fit, ok := FitSpeed(pts, cfg.SpeedWindowMinIn, windowMax, cfg.MinSpeedPoints); ok {
		mph := fit.MPH()
		m.Speed, m.SpeedMPH = &fit, &mph
	}
	return m, pts, nil
}

// InterpolateXAtY returns the lateral position where the trajectory first
// crosses down-lane distance targetY. Pairs are scanned in sample order and
// may bracket the target in either direction. ok is false when no pair
// brackets it.
func InterpolateXAtY(pts []trajectory.LanePoint, targetY float64) (float64, bool) {
	for i := 0; i+1 < len(pts); i++ {
		a, b := pts[i], pts[i+1]
		if (a.YIn-targetY)*(b.YIn-targetY) > 0 {
			continue
		}
		switch {
		case a.YIn == targetY:
			return a.XIn, true
		case b.YIn == targetY:
			return b.XIn, true
		}
		dy := b.YIn - a.YIn
		if math.Abs(dy) < minDeltaY {
			return a.XIn, true
		}
		return geometry.Lerp(a.XIn, b.XIn, (targetY-a.YIn)/dy), true
	}
	return 0, false
}

// InchesToBoard converts a lateral position to a one-indexed board number.
// Positions outside the lane clamp to the edge boards.
func InchesToBoard(xIn, laneWidthIn float64, boards int) int {
	x := math.Min(math.Max(xIn, 0), laneWidthIn)
	board := int(math.Floor(x/(laneWidthIn/float64(boards)))) + 1
	return min(max(board, 1), boards)
}

// FitSpeed fits YIn against time over points with minIn <= YIn <= maxIn.
// ok is false with fewer than minPoints in the window or a degenerate fit.
func FitSpeed(pts []trajectory.LanePoint, minIn, maxIn float64, minPoints int) (SpeedFit, bool) {
	var ts, ys []float64
	for _, p := range pts {
		if p.YIn >= minIn && p.YIn <= maxIn {
			ts = append(ts, p.TSec)
			ys = append(ys, p.YIn)
		}
	}
	if len(ts) < minPoints {
		return SpeedFit{}, false
	}
	intercept, slope, err := geometry.LinearFit(ts, ys)
	if err != nil {
		return SpeedFit{}, false
	}
	return SpeedFit{
		InterceptIn:   intercept,
		SlopeInPerSec: slope,
		Points:        len(ts),
		WindowMinIn:   minIn,
		WindowMaxIn:   maxIn,
	}, true
}

// EstimateSpeedMPH is FitSpeed converted to mph; nil when not determined.
func EstimateSpeedMPH(pts []trajectory.LanePoint, minIn, maxIn float64, minPoints int) *float64 {
	fit, ok := FitSpeed(pts, minIn, maxIn, minPoints)
	if !ok {
		return nil
	}
	mph := fit.MPH()
	return &mph
}
