// Package trajectory holds the sampled path of the ball in image space and
// its projection onto the lane.
package trajectory

import "github.com/banshee-data/lane.report/internal/geometry"

// Detection is one motion centroid observed at a sample time.
type Detection struct {
	TSec  float64        `json:"t_sec"`
	Pixel geometry.Point `json:"pixel"`
}

// LanePoint is a detection mapped into lane coordinates. XIn runs across
// the lane from the left edge, YIn down the lane from the near edge.
type LanePoint struct {
	TSec float64 `json:"t_sec"`
	XIn  float64 `json:"x_in"`
	YIn  float64 `json:"y_in"`
}

// Projector maps image pixels to lane inches.
type Projector interface {
	Project(p geometry.Point) (geometry.Point, error)
}

// ProjectStats counts what happened to each detection during projection.
type ProjectStats struct {
	Projected      int `json:"projected"`
	BehindFoulLine int `json:"behind_foul_line"`
	Unprojectable  int `json:"unprojectable"`
}

// Project maps detections into lane coordinates in sample order. Points
// with negative YIn (behind the near edge) and points that cannot be
// projected are dropped.
func Project(dets []Detection, h Projector) ([]LanePoint, ProjectStats) {
	var stats ProjectStats
	pts := make([]LanePoint, 0, len(dets))
	for _, d := range dets {
		p, err := h.Project(d.Pixel)
		if err != nil {
			stats.Unprojectable++
			continue
		}
		if p.Y < 0 {
			stats.BehindFoulLine++
			continue
		}
		pts = append(pts, LanePoint{TSec: d.TSec, XIn: p.X, YIn: p.Y})
	}
	stats.Projected = len(pts)
	return pts, stats
}
