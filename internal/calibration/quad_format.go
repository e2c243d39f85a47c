package calibration

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/lane.report/internal/geometry"
)

// ParseQuad parses four "x,y" pairs separated by whitespace, in near-left,
// near-right, far-left, far-right order, e.g. "310,1050 980,1040 560,220 700,215".
func ParseQuad(s string) (Quad, error) {
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return Quad{}, fmt.Errorf("quad needs 4 points, got %d", len(fields))
	}
	var pts [4]geometry.Point
	for i, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			return Quad{}, fmt.Errorf("point %d %q: want x,y", i+1, f)
		}
		x, err := parseCoord(xs)
		if err != nil {
			return Quad{}, fmt.Errorf("point %d x: %w", i+1, err)
		}
		y, err := parseCoord(ys)
		if err != nil {
			return Quad{}, fmt.Errorf("point %d y: %w", i+1, err)
		}
		pts[i] = geometry.Point{X: x, Y: y}
	}
	return QuadFromPoints(pts), nil
}

func parseCoord(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	return v, nil
}

// String formats the quad in the form accepted by ParseQuad.
func (q Quad) String() string {
	p := q.Points()
	parts := make([]string, 4)
	for i, pt := range p {
		parts[i] = strconv.FormatFloat(pt.X, 'g', -1, 64) + "," + strconv.FormatFloat(pt.Y, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

// MarshalJSON encodes the quad as [[x,y],[x,y],[x,y],[x,y]] in
// near-left, near-right, far-left, far-right order.
func (q Quad) MarshalJSON() ([]byte, error) {
	var out [4][2]float64
	for i, p := range q.Points() {
		out[i] = [2]float64{p.X, p.Y}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (q *Quad) UnmarshalJSON(b []byte) error {
	var in [][]float64
	if err := json.Unmarshal(b, &in); err != nil {
		return fmt.Errorf("quad: %w", err)
	}
	if len(in) != 4 {
		return fmt.Errorf("quad needs 4 points, got %d", len(in))
	}
	var pts [4]geometry.Point
	for i, p := range in {
		if len(p) != 2 {
			return fmt.Errorf("quad point %d: want [x,y]", i+1)
		}
		pts[i] = geometry.Point{X: p[0], Y: p[1]}
	}
	*q = QuadFromPoints(pts)
	return nil
}
