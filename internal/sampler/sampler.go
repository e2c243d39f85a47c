// Package sampler walks a clip at a fixed time step and records the motion
// centroid between consecutive decoded frames.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/geometry"
	"github.com/banshee-data/lane.report/internal/monitoring"
	"github.com/banshee-data/lane.report/internal/trajectory"
	"gocv.io/x/gocv"
)

// DefaultStep samples at roughly 15 Hz.
const DefaultStep = 66 * time.Millisecond

// ErrNoDuration is returned when the source reports no usable length.
var ErrNoDuration = errors.New("video has no readable duration")

var logf = monitoring.Component("sampler")

// FrameSource yields decoded frames by timestamp. Frame returns ok=false
// when nothing could be decoded at t; the caller owns the Mat otherwise.
type FrameSource interface {
	Duration() time.Duration
	Frame(t time.Duration) (gocv.Mat, bool)
}

// Detector finds the moving object between two grayscale frames.
type Detector interface {
	Detect(prev, curr gocv.Mat, quad calibration.Quad) (geometry.Point, bool)
}

// Stats summarises one sampling pass.
type Stats struct {
	Duration   time.Duration `json:"duration"`
	Step       time.Duration `json:"step"`
	Sampled    int           `json:"sampled"`
	Missed     int           `json:"missed"`
	Detections int           `json:"detections"`
}

// Sampler runs the sampling loop.
type Sampler struct {
	Detector Detector
	Step     time.Duration
}

// New returns a Sampler; a non-positive step falls back to DefaultStep.
func New(d Detector, step time.Duration) *Sampler {
	if step <= 0 {
		step = DefaultStep
	}
	return &Sampler{Detector: d, Step: step}
}

// Run samples src at t = 0, Step, 2·Step, ... while t < Duration. Frames
// that fail to decode are skipped and the last good frame stays as the
// reference. Cancellation is checked before each sample.
func (s *Sampler) Run(ctx context.Context, src FrameSource, quad calibration.Quad) ([]trajectory.Detection, Stats, error) {
	stats := Stats{Duration: src.Duration(), Step: s.Step}
	if stats.Duration <= 0 {
		return nil, stats, ErrNoDuration
	}

	prev := gocv.NewMat()
	defer func() { prev.Close() }()

	var dets []trajectory.Detection
	for t := time.Duration(0); t < stats.Duration; t += s.Step {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("sampling stopped at %s: %w", t, err)
		}
		stats.Sampled++

		gray, ok := grayFrame(src, t)
		if !ok {
			stats.Missed++
			continue
		}
		if p, ok := s.Detector.Detect(prev, gray, quad); ok {
			dets = append(dets, trajectory.Detection{TSec: t.Seconds(), Pixel: p})
		}
		prev.Close()
		prev = gray
	}

	stats.Detections = len(dets)
	logf("sampled %d frames (%d missed), %d detections over %s", stats.Sampled, stats.Missed, stats.Detections, stats.Duration)
	return dets, stats, nil
}

// grayFrame decodes the frame at t as a single-channel Mat owned by the
// caller. The colour frame is released before returning.
func grayFrame(src FrameSource, t time.Duration) (gocv.Mat, bool) {
	frame, ok := src.Frame(t)
	if !ok {
		return gocv.Mat{}, false
	}
	defer frame.Close()

	gray := gocv.NewMat()
	switch frame.Channels() {
	case 1:
		frame.CopyTo(&gray)
	case 4:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}
	if gray.Empty() {
		gray.Close()
		return gocv.Mat{}, false
	}
	return gray, true
}
