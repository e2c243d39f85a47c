package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/geometry"
	"github.com/banshee-data/lane.report/internal/trajectory"
	"github.com/banshee-data/lane.report/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identity maps pixels straight to lane inches.
type identity struct{}

func (identity) Project(p geometry.Point) (geometry.Point, error) { return p, nil }

func linePoints(n int, x func(i int) float64, y func(t float64) float64, dt float64) []trajectory.LanePoint {
	pts := make([]trajectory.LanePoint, n)
	for i := range pts {
		t := float64(i) * dt
		pts[i] = trajectory.LanePoint{TSec: t, XIn: x(i), YIn: y(t)}
	}
	return pts
}

func TestInchesToBoard(t *testing.T) {
	t.Parallel()

	w := calibration.LaneWidthIn
	tests := []struct {
		x    float64
		want int
	}{
		{0, 1},
		{w, 39},
		{-5, 1},
		{w + 10, 39},
		{w / 2, 20},
		{w / 39 * 0.999, 1},
		{w / 39 * 1.001, 2},
		{w - 0.01, 39},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InchesToBoard(tt.x, w, 39), "x=%v", tt.x)
	}
}

func TestInterpolateXAtY(t *testing.T) {
	t.Parallel()

	pts := []trajectory.LanePoint{
		{YIn: 10, XIn: 20},
		{YIn: 30, XIn: 10},
		{YIn: 30, XIn: 12},
		{YIn: 70, XIn: 30},
	}

	t.Run("midpoint", func(t *testing.T) {
		x, ok := InterpolateXAtY(pts, 20)
		require.True(t, ok)
		assert.InDelta(t, 15, x, 1e-12)
	})
	t.Run("exact match is exact", func(t *testing.T) {
		x, ok := InterpolateXAtY(pts, 10)
		require.True(t, ok)
		assert.Equal(t, 20.0, x)

		x, ok = InterpolateXAtY(pts, 70)
		require.True(t, ok)
		assert.Equal(t, 30.0, x)
	})
	t.Run("first bracketing pair wins", func(t *testing.T) {
		x, ok := InterpolateXAtY(pts, 30)
		require.True(t, ok)
		assert.Equal(t, 10.0, x)
	})
	t.Run("outside range", func(t *testing.T) {
		_, ok := InterpolateXAtY(pts, 5)
		assert.False(t, ok)
		_, ok = InterpolateXAtY(pts, 71)
		assert.False(t, ok)
	})
	t.Run("bracket in reverse direction", func(t *testing.T) {
		rev := []trajectory.LanePoint{{YIn: 100, XIn: 0}, {YIn: 50, XIn: 10}}
		x, ok := InterpolateXAtY(rev, 75)
		require.True(t, ok)
		assert.InDelta(t, 5, x, 1e-12)
	})
	t.Run("near zero delta uses earlier point", func(t *testing.T) {
		flat := []trajectory.LanePoint{{YIn: 40, XIn: 3}, {YIn: 40 + 1e-9, XIn: 9}}
		x, ok := InterpolateXAtY(flat, 40+5e-10)
		require.True(t, ok)
		assert.Equal(t, 3.0, x)
	})
	t.Run("too few points", func(t *testing.T) {
		_, ok := InterpolateXAtY(pts[:1], 10)
		assert.False(t, ok)
		_, ok = InterpolateXAtY(nil, 10)
		assert.False(t, ok)
	})
}

func TestFitSpeedRecoversExactSlope(t *testing.T) {
	t.Parallel()

	want := units.InchesPerSecondToMPH(50)
	for _, n := range []int{6, 7, 12, 50} {
		pts := linePoints(n, func(int) float64 { return 20 }, func(t float64) float64 { return 100 + 50*t }, 0.1)
		fit, ok := FitSpeed(pts, 0, math.Inf(1), 6)
		require.True(t, ok, "n=%d", n)
		assert.InDelta(t, 50, fit.SlopeInPerSec, 1e-9, "n=%d", n)
		assert.InDelta(t, 100, fit.InterceptIn, 1e-9, "n=%d", n)
		assert.InDelta(t, want, fit.MPH(), 1e-9, "n=%d", n)
		assert.Equal(t, n, fit.Points)
	}
}

func TestFitSpeedWindow(t *testing.T) {
	t.Parallel()

	pts := linePoints(20, func(int) float64 { return 20 }, func(t float64) float64 { return 100 * t }, 1)
	// YIn = 0, 100, ..., 1900; window [60, 540] keeps 100..500.
	fit, ok := FitSpeed(pts, 60, 540, 5)
	require.True(t, ok)
	assert.Equal(t, 5, fit.Points)

	_, ok = FitSpeed(pts, 60, 540, 6)
	assert.False(t, ok, "too few points in window")
}

func TestFitSpeedDegenerate(t *testing.T) {
	t.Parallel()

	pts := make([]trajectory.LanePoint, 8)
	for i := range pts {
		pts[i] = trajectory.LanePoint{TSec: 1, YIn: float64(100 + i)}
	}
	_, ok := FitSpeed(pts, 0, 1000, 6)
	assert.False(t, ok)
	assert.Nil(t, EstimateSpeedMPH(pts, 0, 1000, 6))
}

func TestEstimateSpeedMPH(t *testing.T) {
	t.Parallel()

	pts := linePoints(10, func(int) float64 { return 0 }, func(t float64) float64 { return 60 + 240*t }, 0.1)
	got := EstimateSpeedMPH(pts, 60, 540, 6)
	require.NotNil(t, got)
	assert.InDelta(t, 240.0/12*0.681818, *got, 1e-9)
}

func detections(n int, x func(i int) float64, y func(i int) float64) []trajectory.Detection {
	dets := make([]trajectory.Detection, n)
	for i := range dets {
		dets[i] = trajectory.Detection{TSec: float64(i) * 0.066, Pixel: geometry.Point{X: x(i), Y: y(i)}}
	}
	return dets
}

func TestEstimate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	// Straight down board 20 at 300 in/s from the foul line to 600 in.
	dets := detections(31, func(int) float64 { return 20.75 }, func(i int) float64 { return float64(i) * 0.066 * 300 })

	m, pts, err := Estimate(dets, identity{}, 50, 40, cfg)
	require.NoError(t, err)
	assert.Len(t, pts, 31)

	require.NotNil(t, m.ArrowsBoard)
	require.NotNil(t, m.BreakpointBoard)
	require.NotNil(t, m.SpeedMPH)
	assert.Equal(t, 20, *m.ArrowsBoard)
	assert.Equal(t, 20, *m.BreakpointBoard)
	assert.InDelta(t, 20.75, *m.ArrowsXIn, 1e-9)
	assert.Equal(t, 180.0, m.ArrowsYIn)
	assert.Equal(t, 480.0, m.BreakpointYIn)
	assert.InDelta(t, 300.0/12*0.681818, *m.SpeedMPH, 1e-9)
	require.NotNil(t, m.Speed)
	assert.Equal(t, 540.0, m.Speed.WindowMaxIn)
}

func TestEstimateSpeedWindowCappedByFarDistance(t *testing.T) {
	t.Parallel()

	dets := detections(31, func(int) float64 { return 10 }, func(i int) float64 { return float64(i) * 0.066 * 300 })
	m, _, err := Estimate(dets, identity{}, 30, 20, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, m.Speed)
	assert.Equal(t, 360.0, m.Speed.WindowMaxIn)
}

func TestEstimatePartialMetrics(t *testing.T) {
	t.Parallel()

	// Ball only seen from 20 ft to 30 ft: arrows unresolved, breakpoint at 25 ft.
	dets := detections(10, func(i int) float64 { return float64(i) }, func(i int) float64 { return 240 + float64(i)*13.3 })
	m, _, err := Estimate(dets, identity{}, 50, 25, DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, m.ArrowsBoard)
	assert.Nil(t, m.ArrowsXIn)
	assert.NotNil(t, m.BreakpointBoard)
	assert.NotNil(t, m.SpeedMPH)

	// Breakpoint beyond the tracked range.
	m, _, err = Estimate(dets, identity{}, 50, 60, DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, m.BreakpointBoard)
}

func TestEstimateInsufficientTracking(t *testing.T) {
	t.Parallel()

	for n := 0; n < 8; n++ {
		dets := detections(n, func(int) float64 { return 20 }, func(i int) float64 { return float64(i) * 50 })
		_, _, err := Estimate(dets, identity{}, 50, 40, DefaultConfig())
		require.ErrorIs(t, err, ErrInsufficientTracking, "n=%d", n)

		var pce *PointCountError
		require.True(t, errors.As(err, &pce))
		assert.Equal(t, n, pce.Observed)
		assert.Equal(t, 8, pce.Required)
	}
}

func TestEstimateOutOfLane(t *testing.T) {
	t.Parallel()

	// 10 detections but only 7 in front of the near edge.
	dets := detections(10, func(int) float64 { return 20 }, func(i int) float64 { return float64(i-3) * 40 })
	_, pts, err := Estimate(dets, identity{}, 50, 40, DefaultConfig())
	require.ErrorIs(t, err, ErrOutOfLane)
	assert.Len(t, pts, 7)
	assert.EqualError(t, err, "points outside lane, recalibrate: got 7, need 8")
}

func TestEstimateThroughHomography(t *testing.T) {
	t.Parallel()

	// Symmetric trapezoid: the image centre line x=650 is the lane centre.
	q := calibration.Quad{
		NearLeft:  geometry.Point{X: 310, Y: 1050},
		NearRight: geometry.Point{X: 990, Y: 1050},
		FarLeft:   geometry.Point{X: 580, Y: 220},
		FarRight:  geometry.Point{X: 720, Y: 220},
	}
	h, err := calibration.ComputeHomography(q, calibration.NewLaneFrame(50))
	require.NoError(t, err)

	dets := detections(20,
		func(int) float64 { return 650 },
		func(i int) float64 { return geometry.Lerp(1040, 230, float64(i)/19) },
	)
	m, pts, err := Estimate(dets, h, 50, 40, DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, pts, 20)
	for _, p := range pts {
		assert.InDelta(t, calibration.LaneWidthIn/2, p.XIn, 1e-6)
	}
	require.NotNil(t, m.ArrowsBoard)
	assert.Equal(t, 20, *m.ArrowsBoard)
	require.NotNil(t, m.BreakpointBoard)
	assert.Equal(t, 20, *m.BreakpointBoard)
}
