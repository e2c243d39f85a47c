package motion

import (
	"testing"

	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/geometry"
	"github.com/stretchr/testify/assert"
)

var testQuad = calibration.Quad{
	NearLeft:  geometry.Point{X: 50, Y: 420},
	NearRight: geometry.Point{X: 150, Y: 420},
	FarLeft:   geometry.Point{X: 50, Y: 30},
	FarRight:  geometry.Point{X: 150, Y: 30},
}

func TestSelectBest(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	inLane := geometry.Point{X: 100, Y: 200}
	outside := geometry.Point{X: 10, Y: 200}

	tests := []struct {
		name   string
		cands  []Candidate
		want   Candidate
		wantOK bool
	}{
		{name: "no candidates"},
		{
			name:   "single in lane",
			cands:  []Candidate{{Centroid: inLane, Area: 200}},
			want:   Candidate{Centroid: inLane, Area: 200},
			wantOK: true,
		},
		{
			name: "in-lane beats larger distractor",
			cands: []Candidate{
				{Centroid: outside, Area: 3000},
				{Centroid: inLane, Area: 200},
			},
			want:   Candidate{Centroid: inLane, Area: 200},
			wantOK: true,
		},
		{
			name: "huge distractor still wins over tiny in-lane blob",
			cands: []Candidate{
				{Centroid: inLane, Area: 90},
				{Centroid: outside, Area: 20000},
			},
			want:   Candidate{Centroid: outside, Area: 20000},
			wantOK: true,
		},
		{
			name:   "out of lane only is still eligible",
			cands:  []Candidate{{Centroid: outside, Area: 500}},
			want:   Candidate{Centroid: outside, Area: 500},
			wantOK: true,
		},
		{
			name: "area bounds are inclusive",
			cands: []Candidate{
				{Centroid: inLane, Area: 79.9},
				{Centroid: inLane, Area: 80},
			},
			want:   Candidate{Centroid: inLane, Area: 80},
			wantOK: true,
		},
		{
			name:  "too large rejected",
			cands: []Candidate{{Centroid: inLane, Area: 25001}},
		},
		{
			name: "tie keeps first",
			cands: []Candidate{
				{Centroid: geometry.Point{X: 80, Y: 100}, Area: 400},
				{Centroid: geometry.Point{X: 120, Y: 100}, Area: 400},
			},
			want:   Candidate{Centroid: geometry.Point{X: 80, Y: 100}, Area: 400},
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := SelectBest(tt.cands, testQuad, cfg)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestSelectBestZeroWeightExcludesOutside(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.OutOfLaneWeight = 0
	_, ok := SelectBest([]Candidate{{Centroid: geometry.Point{X: 10, Y: 10}, Area: 500}}, testQuad, cfg)
	assert.False(t, ok)
}

func TestScore(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.InDelta(t, 1000.0, cfg.Score(Candidate{Centroid: geometry.Point{X: 100, Y: 100}, Area: 1000}, testQuad), 1e-9)
	assert.InDelta(t, 50.0, cfg.Score(Candidate{Centroid: geometry.Point{X: 0, Y: 0}, Area: 1000}, testQuad), 1e-9)
}
