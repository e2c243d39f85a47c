package trajectory

import (
	"errors"
	"testing"

	"github.com/banshee-data/lane.report/internal/geometry"
	"github.com/google/go-cmp/cmp"
)

// shiftProjector maps (x, y) to (x-10, 100-y) and refuses x < 0.
type shiftProjector struct{}

func (shiftProjector) Project(p geometry.Point) (geometry.Point, error) {
	if p.X < 0 {
		return geometry.Point{}, errors.New("at infinity")
	}
	return geometry.Point{X: p.X - 10, Y: 100 - p.Y}, nil
}

func TestProject(t *testing.T) {
	dets := []Detection{
		{TSec: 0.1, Pixel: geometry.Point{X: 20, Y: 90}},
		{TSec: 0.2, Pixel: geometry.Point{X: 20, Y: 120}}, // behind the near edge
		{TSec: 0.3, Pixel: geometry.Point{X: -1, Y: 50}},  // unprojectable
		{TSec: 0.4, Pixel: geometry.Point{X: 30, Y: 100}}, // exactly on the near edge
		{TSec: 0.5, Pixel: geometry.Point{X: 40, Y: 20}},
	}

	got, stats := Project(dets, shiftProjector{})

	want := []LanePoint{
		{TSec: 0.1, XIn: 10, YIn: 10},
		{TSec: 0.4, XIn: 20, YIn: 0},
		{TSec: 0.5, XIn: 30, YIn: 80},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Project() mismatch (-want +got):\n%s", diff)
	}
	wantStats := ProjectStats{Projected: 3, BehindFoulLine: 1, Unprojectable: 1}
	if stats != wantStats {
		t.Errorf("stats = %+v, want %+v", stats, wantStats)
	}
}

func TestProjectEmpty(t *testing.T) {
	got, stats := Project(nil, shiftProjector{})
	if len(got) != 0 || stats.Projected != 0 {
		t.Errorf("Project(nil) = %v, %+v", got, stats)
	}
}
