package motion

import (
	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/geometry"
)

// Candidate is one motion blob that survived mask cleanup.
type Candidate struct {
	Centroid geometry.Point
	Area     float64 // px²
}

// Accept reports whether the area is within the configured bounds.
func (c Config) Accept(area float64) bool {
	return area >= c.MinArea && area <= c.MaxArea
}

// Score weights a candidate by area, scaled down sharply when its centroid
// falls outside the lane quad. Out-of-lane blobs stay eligible.
func (c Config) Score(cand Candidate, quad calibration.Quad) float64 {
	if quad.Contains(cand.Centroid) {
		return cand.Area
	}
	return cand.Area * c.OutOfLaneWeight
}

// SelectBest returns the highest-scoring candidate. Candidates outside the
// area bounds or with a non-positive score are ignored; ties go to the
// earliest candidate.
func SelectBest(cands []Candidate, quad calibration.Quad, cfg Config) (Candidate, bool) {
	var (
		best      Candidate
		bestScore float64
		found     bool
	)
	for _, cand := range cands {
		if !cfg.Accept(cand.Area) {
			continue
		}
		if s := cfg.Score(cand, quad); s > bestScore {
			best, bestScore, found = cand, s, true
		}
	}
	return best, found
}
