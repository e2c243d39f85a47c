// Package geometry holds the small planar helpers shared by calibration,
// motion detection and metric estimation.
package geometry

import (
	"errors"
	"math"

	"github.com/golang/geo/r2"
	"gonum.org/v1/gonum/stat"
)

// Point is a 2D point in either image pixels or lane inches.
type Point = r2.Point

// MinFitDenominator is the smallest |nΣt² − (Σt)²| accepted by LinearFit.
const MinFitDenominator = 1e-9

// ErrDegenerateFit is returned when the independent variable has no spread.
var ErrDegenerateFit = errors.New("degenerate least-squares fit")

// Cross returns the z component of (b-a) x (c-a).
func Cross(a, b, c Point) float64 {
	return b.Sub(a).Cross(c.Sub(a))
}

// PointInQuad reports whether p lies inside (or on the edge of) the quad
// given in near-left, near-right, far-left, far-right order. The edges are
// walked NL→NR→FR→FL→NL; p is inside when no two edge tests disagree in sign.
func PointInQuad(p Point, q [4]Point) bool {
	c1 := Cross(q[0], q[1], p)
	c2 := Cross(q[1], q[3], p)
	c3 := Cross(q[3], q[2], p)
	c4 := Cross(q[2], q[0], p)
	hasNeg := c1 < 0 || c2 < 0 || c3 < 0 || c4 < 0
	hasPos := c1 > 0 || c2 > 0 || c3 > 0 || c4 > 0
	return !(hasNeg && hasPos)
}

// Lerp linearly interpolates between a and b; t=0 yields a, t=1 yields b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// LinearFit fits y = intercept + slope*x by ordinary least squares.
// It fails with ErrDegenerateFit when fewer than two samples are given or
// the x values are (numerically) all equal.
func LinearFit(xs, ys []float64) (intercept, slope float64, err error) {
	if len(xs) != len(ys) {
		return 0, 0, errors.New("linear fit: mismatched sample lengths")
	}
	if len(xs) < 2 {
		return 0, 0, ErrDegenerateFit
	}

	n := float64(len(xs))
	var sumX, sumXX float64
	for _, x := range xs {
		sumX += x
		sumXX += x * x
	}
	if math.Abs(n*sumXX-sumX*sumX) < MinFitDenominator {
		return 0, 0, ErrDegenerateFit
	}

	intercept, slope = stat.LinearRegression(xs, ys, nil, false)
	return intercept, slope, nil
}

// PolygonMoments returns the signed area and the centroid of a closed
// polygon (vertices in order, last edge implied). The area is positive for
// counter-clockwise vertices in a y-up frame. ok is false when the area is 0.
func PolygonMoments(pts []Point) (area float64, centroid Point, ok bool) {
	if len(pts) < 3 {
		return 0, Point{}, false
	}
	var m00, m10, m01 float64
	for i := range pts {
		a := pts[i]
		b := pts[(i+1)%len(pts)]
		c := a.X*b.Y - b.X*a.Y
		m00 += c
		m10 += (a.X + b.X) * c
		m01 += (a.Y + b.Y) * c
	}
	m00 /= 2
	if m00 == 0 {
		return 0, Point{}, false
	}
	return m00, Point{X: m10 / (6 * m00), Y: m01 / (6 * m00)}, true
}
