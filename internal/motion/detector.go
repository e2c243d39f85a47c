// Package motion locates the most plausible moving object between two
// consecutive grayscale frames.
//
// Pipeline:
//  1. absolute difference of the two frames
//  2. Gaussian blur to suppress sensor noise
//  3. binary threshold at a fixed intensity delta
//  4. morphological open (speckle removal) then dilate (reconnect the blob)
//  5. external contours of the motion mask
//  6. area bounds + polygon-moment centroid per contour
//  7. score by area with a soft in-lane prior, keep the best
//
// Detection is a pure function of (previous frame, current frame, quad);
// the Detector only owns the read-only structuring element.
package motion

import (
	"image"

	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/geometry"
	"gocv.io/x/gocv"
)

// Detector runs the frame-differencing pipeline. It is safe for concurrent
// use; call Close when done to release the structuring element.
type Detector struct {
	cfg    Config
	kernel gocv.Mat
}

// NewDetector creates a Detector with the given parameters.
func NewDetector(cfg Config) *Detector {
	return &Detector{
		cfg:    cfg,
		kernel: gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(cfg.MorphKernel, cfg.MorphKernel)),
	}
}

// Config returns the detector parameters.
func (d *Detector) Config() Config {
	return d.cfg
}

// Close releases native resources.
func (d *Detector) Close() error {
	return d.kernel.Close()
}

// Detect returns the centroid (pixels) of the best motion candidate between
// prev and curr. An empty prev (first sampled frame) or mismatched frame
// geometry never yields a detection.
func (d *Detector) Detect(prev, curr gocv.Mat, quad calibration.Quad) (geometry.Point, bool) {
	best, ok := SelectBest(d.Candidates(prev, curr), quad, d.cfg)
	if !ok {
		return geometry.Point{}, false
	}
	return best.Centroid, true
}

// Candidates extracts every motion blob within the area bounds.
func (d *Detector) Candidates(prev, curr gocv.Mat) []Candidate {
	if prev.Empty() || curr.Empty() {
		return nil
	}
	if prev.Rows() != curr.Rows() || prev.Cols() != curr.Cols() || prev.Type() != curr.Type() {
		return nil
	}

	mask := gocv.NewMat()
	defer mask.Close()

	d.motionMask(prev, curr, &mask)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var cands []Candidate
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if !d.cfg.Accept(area) {
			continue
		}
		centroid, ok := contourCentroid(contour.ToPoints())
		if !ok {
			continue
		}
		cands = append(cands, Candidate{Centroid: centroid, Area: area})
	}
	return cands
}

// motionMask writes the cleaned binary motion mask of prev vs curr into dst.
func (d *Detector) motionMask(prev, curr gocv.Mat, dst *gocv.Mat) {
	k := d.cfg.BlurKernel
	gocv.AbsDiff(prev, curr, dst)
	gocv.GaussianBlur(*dst, dst, image.Pt(k, k), 0, 0, gocv.BorderDefault)
	gocv.Threshold(*dst, dst, float32(d.cfg.DiffThreshold), 255, gocv.ThresholdBinary)
	gocv.MorphologyEx(*dst, dst, gocv.MorphOpen, d.kernel)
	gocv.Dilate(*dst, dst, d.kernel)
}

func contourCentroid(pts []image.Point) (geometry.Point, bool) {
	poly := make([]geometry.Point, len(pts))
	for i, p := range pts {
		poly[i] = geometry.Point{X: float64(p.X), Y: float64(p.Y)}
	}
	_, c, ok := geometry.PolygonMoments(poly)
	return c, ok
}
