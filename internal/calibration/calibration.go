// Package calibration maps image pixels onto real-world lane coordinates.
//
// The user supplies four image points outlining the visible lane surface in
// a fixed order (near-left, near-right, far-left, far-right). These are
// mapped onto the lane rectangle (0,0), (width,0), (0,length), (width,length)
// in inches by a projective transform; an affine fit would bias far-lane
// positions because of perspective foreshortening.
package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/lane.report/internal/geometry"
	"gonum.org/v1/gonum/mat"
)

// Lane constants.
const (
	// LaneWidthIn is the width of a bowling lane surface in inches.
	LaneWidthIn = 41.5
	// InchesPerFoot converts user-facing distances in feet.
	InchesPerFoot = 12.0
)

// Numerical tolerances.
const (
	// colinearTolerance is relative to the lengths of the two edges tested.
	colinearTolerance = 1e-9
	// minHomogeneous is the smallest |w| accepted when projecting.
	minHomogeneous = 1e-12
)

var (
	// ErrDegenerateQuad is returned when three of the four calibration
	// points are colinear and no homography exists.
	ErrDegenerateQuad = errors.New("degenerate calibration quadrilateral")
	// ErrQuadOrder is returned when the points are not a convex quad in
	// near-left, near-right, far-left, far-right order.
	ErrQuadOrder = errors.New("calibration points out of order")
	// ErrProjection is returned when a point maps to infinity.
	ErrProjection = errors.New("point projects to infinity")
)

// Quad is the calibration quadrilateral in image pixels.
type Quad struct {
	NearLeft  geometry.Point
	NearRight geometry.Point
	FarLeft   geometry.Point
	FarRight  geometry.Point
}

// QuadFromPoints builds a Quad from points in near-left, near-right,
// far-left, far-right order.
func QuadFromPoints(p [4]geometry.Point) Quad {
	return Quad{NearLeft: p[0], NearRight: p[1], FarLeft: p[2], FarRight: p[3]}
}

// Points returns the corners in near-left, near-right, far-left, far-right order.
func (q Quad) Points() [4]geometry.Point {
	return [4]geometry.Point{q.NearLeft, q.NearRight, q.FarLeft, q.FarRight}
}

// Contains reports whether p lies inside the quad.
func (q Quad) Contains(p geometry.Point) bool {
	return geometry.PointInQuad(p, q.Points())
}

// LaneFrame is the real-world rectangle the quad is mapped onto.
type LaneFrame struct {
	WidthIn  float64 `json:"width_in"`
	LengthIn float64 `json:"length_in"`
}

// NewLaneFrame returns the standard-width lane frame calibrated to farFt.
func NewLaneFrame(farFt float64) LaneFrame {
	return LaneFrame{WidthIn: LaneWidthIn, LengthIn: farFt * InchesPerFoot}
}

// Corners returns the rectangle corners matching Quad.Points order.
func (f LaneFrame) Corners() [4]geometry.Point {
	return [4]geometry.Point{
		{X: 0, Y: 0},
		{X: f.WidthIn, Y: 0},
		{X: 0, Y: f.LengthIn},
		{X: f.WidthIn, Y: f.LengthIn},
	}
}

// ValidateQuad rejects quads that cannot be calibrated. Three colinear
// points yield ErrDegenerateQuad. The polygon walked
// near-left → near-right → far-right → far-left must be convex and wind
// clockwise on screen (negative signed area with y pointing down), which
// rejects swapped near/far or left/right taps and bow-tie orderings.
func ValidateQuad(q Quad) error {
	p := q.Points()
	for i := 0; i < 4; i++ {
		a, b, c := p[(i+1)%4], p[(i+2)%4], p[(i+3)%4]
		if isColinear(a, b, c) {
			return fmt.Errorf("%w: points %v, %v, %v are colinear", ErrDegenerateQuad, a, b, c)
		}
	}

	ring := [4]geometry.Point{q.NearLeft, q.NearRight, q.FarRight, q.FarLeft}
	for i := 0; i < 4; i++ {
		if geometry.Cross(ring[i], ring[(i+1)%4], ring[(i+2)%4]) >= 0 {
			return fmt.Errorf("%w: expected near-left, near-right, far-left, far-right forming a convex lane outline", ErrQuadOrder)
		}
	}
	return nil
}

func isColinear(a, b, c geometry.Point) bool {
	scale := b.Sub(a).Norm() * c.Sub(a).Norm()
	if scale == 0 {
		return true
	}
	return math.Abs(geometry.Cross(a, b, c)) <= colinearTolerance*scale
}

// Homography is a 3x3 projective transform in row-major order.
type Homography [9]float64

// ComputeHomography derives the transform taking the quad's corners onto
// the corners of frame. It validates the quad first.
func ComputeHomography(q Quad, frame LaneFrame) (*Homography, error) {
	if err := ValidateQuad(q); err != nil {
		return nil, err
	}
	if !(frame.WidthIn > 0) || !(frame.LengthIn > 0) {
		return nil, fmt.Errorf("%w: lane frame %.1fx%.1f in is empty", ErrDegenerateQuad, frame.WidthIn, frame.LengthIn)
	}

	src := q.Points()
	dst := frame.Corners()

	// Source pixels are centred and scaled before solving so the system
	// stays well conditioned for large frames.
	c, scale := normalisation(src)

	// Each correspondence (x,y) -> (u,v) contributes two rows of the
	// 8-unknown system with h33 fixed at 1.
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := (src[i].X-c.X)*scale, (src[i].Y-c.Y)*scale
		u, v := dst[i].X, dst[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateQuad, err)
	}
	hn := [9]float64{}
	for i := 0; i < 8; i++ {
		hn[i] = sol.AtVec(i)
	}
	hn[8] = 1

	// Fold the normalisation back in: H = Hn * T.
	var H Homography
	for r := 0; r < 3; r++ {
		h0, h1, h2 := hn[3*r], hn[3*r+1], hn[3*r+2]
		H[3*r] = h0 * scale
		H[3*r+1] = h1 * scale
		H[3*r+2] = h2 - scale*(h0*c.X+h1*c.Y)
	}
	return &H, nil
}

// normalisation returns the centroid of pts and the scale that brings their
// mean distance from it to sqrt(2).
func normalisation(pts [4]geometry.Point) (geometry.Point, float64) {
	var c geometry.Point
	for _, p := range pts {
		c = c.Add(p)
	}
	c = c.Mul(0.25)
	var mean float64
	for _, p := range pts {
		mean += p.Sub(c).Norm()
	}
	mean /= 4
	if mean == 0 {
		return c, 1
	}
	return c, math.Sqrt2 / mean
}

// Project applies the transform to p, dividing by the homogeneous coordinate.
func (h *Homography) Project(p geometry.Point) (geometry.Point, error) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < minHomogeneous {
		return geometry.Point{}, fmt.Errorf("%w: %v", ErrProjection, p)
	}
	return geometry.Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, nil
}
