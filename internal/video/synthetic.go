package video

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/banshee-data/lane.report/internal/geometry"
	"gocv.io/x/gocv"
)

// Blob is a filled disc that travels linearly from Start to End over the
// clip length.
type Blob struct {
	Start  geometry.Point
	End    geometry.Point
	Radius float64
	Value  uint8
	// Visible reports whether the blob is drawn at t. Nil means always.
	Visible func(t time.Duration) bool
}

// At returns the blob centre at t for a clip of the given length.
func (b Blob) At(t, length time.Duration) geometry.Point {
	if length <= 0 {
		return b.Start
	}
	frac := math.Min(math.Max(float64(t)/float64(length), 0), 1)
	return geometry.Point{
		X: geometry.Lerp(b.Start.X, b.End.X, frac),
		Y: geometry.Lerp(b.Start.Y, b.End.Y, frac),
	}
}

// SyntheticClip is an in-memory grayscale clip used for demos and tests.
// It satisfies the same frame-source contract as File.
type SyntheticClip struct {
	Width      int
	Height     int
	Length     time.Duration
	Background uint8
	Blobs      []Blob
	// Drop reports frames the source fails to decode. Nil means none.
	Drop func(t time.Duration) bool
}

// Duration returns the clip length.
func (c *SyntheticClip) Duration() time.Duration {
	return c.Length
}

// Frame renders the clip at t as a single-channel Mat. The caller owns the
// returned Mat when ok is true.
func (c *SyntheticClip) Frame(t time.Duration) (gocv.Mat, bool) {
	if t < 0 || t > c.Length || (c.Drop != nil && c.Drop(t)) {
		return gocv.Mat{}, false
	}
	m, err := gocv.ImageGrayToMatGray(c.Image(t))
	if err != nil {
		return gocv.Mat{}, false
	}
	return m, true
}

// Image renders the clip at t.
func (c *SyntheticClip) Image(t time.Duration) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, c.Width, c.Height))
	for i := range img.Pix {
		img.Pix[i] = c.Background
	}
	for _, b := range c.Blobs {
		if b.Visible != nil && !b.Visible(t) {
			continue
		}
		drawDisc(img, b.At(t, c.Length), b.Radius, b.Value)
	}
	return img
}

// Close is a no-op; it lets SyntheticClip stand in for File.
func (c *SyntheticClip) Close() error {
	return nil
}

func drawDisc(img *image.Gray, centre geometry.Point, r float64, v uint8) {
	bounds := img.Bounds()
	x0 := max(int(math.Floor(centre.X-r)), bounds.Min.X)
	x1 := min(int(math.Ceil(centre.X+r)), bounds.Max.X-1)
	y0 := max(int(math.Floor(centre.Y-r)), bounds.Min.Y)
	y1 := min(int(math.Ceil(centre.Y+r)), bounds.Max.Y-1)
	r2 := r * r
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx, dy := float64(x)-centre.X, float64(y)-centre.Y
			if dx*dx+dy*dy <= r2 {
				img.SetGray(x, y, color.Gray{Y: v})
			}
		}
	}
}

// DemoClip returns a 2 s, 30 fps-equivalent clip of a ball travelling up
// the centre of a 100x390 px lane with a larger distractor moving outside
// it. Pair it with DemoQuad.
func DemoClip() *SyntheticClip {
	return &SyntheticClip{
		Width:      200,
		Height:     460,
		Length:     2 * time.Second,
		Background: 40,
		Blobs: []Blob{
			{Start: geometry.Point{X: 100, Y: 400}, End: geometry.Point{X: 100, Y: 50}, Radius: 8, Value: 220},
			{Start: geometry.Point{X: 20, Y: 440}, End: geometry.Point{X: 20, Y: 20}, Radius: 12, Value: 200},
		},
	}
}

// DemoQuad returns the calibration corners (near-left, near-right,
// far-left, far-right) that outline the lane drawn by DemoClip.
func DemoQuad() [4]geometry.Point {
	return [4]geometry.Point{
		{X: 50, Y: 420},
		{X: 150, Y: 420},
		{X: 50, Y: 30},
		{X: 150, Y: 30},
	}
}
