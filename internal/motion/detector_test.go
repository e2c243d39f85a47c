package motion

import (
	"testing"
	"time"

	"github.com/banshee-data/lane.report/internal/geometry"
	"github.com/banshee-data/lane.report/internal/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func framePair(t *testing.T, clip *video.SyntheticClip, at, step time.Duration) (gocv.Mat, gocv.Mat) {
	t.Helper()
	prev, ok := clip.Frame(at)
	require.True(t, ok)
	curr, ok := clip.Frame(at + step)
	require.True(t, ok)
	t.Cleanup(func() {
		prev.Close()
		curr.Close()
	})
	return prev, curr
}

func ballClip() *video.SyntheticClip {
	clip := video.DemoClip()
	clip.Blobs = clip.Blobs[:1]
	return clip
}

func TestDetectMovingBall(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	defer d.Close()

	clip := ballClip()
	prev, curr := framePair(t, clip, time.Second, 66*time.Millisecond)

	got, ok := d.Detect(prev, curr, testQuad)
	require.True(t, ok)

	// The motion mask spans both ball positions; its centroid sits between them.
	a := clip.Blobs[0].At(time.Second, clip.Length)
	b := clip.Blobs[0].At(time.Second+66*time.Millisecond, clip.Length)
	assert.InDelta(t, (a.X+b.X)/2, got.X, 3)
	assert.InDelta(t, (a.Y+b.Y)/2, got.Y, 3)
}

func TestDetectPrefersInLaneBlob(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	defer d.Close()

	clip := video.DemoClip()
	prev, curr := framePair(t, clip, 500*time.Millisecond, 66*time.Millisecond)

	cands := d.Candidates(prev, curr)
	require.GreaterOrEqual(t, len(cands), 2, "ball and distractor")

	got, ok := d.Detect(prev, curr, testQuad)
	require.True(t, ok)
	assert.True(t, testQuad.Contains(got), "picked %v", got)
	assert.InDelta(t, 100, got.X, 3)
}

func TestDetectOutOfLaneOnly(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	defer d.Close()

	clip := video.DemoClip()
	clip.Blobs = clip.Blobs[1:]
	prev, curr := framePair(t, clip, 500*time.Millisecond, 66*time.Millisecond)

	got, ok := d.Detect(prev, curr, testQuad)
	require.True(t, ok)
	assert.False(t, testQuad.Contains(got))
}

func TestDetectNoMotion(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	defer d.Close()

	clip := ballClip()
	prev, curr := framePair(t, clip, time.Second, 0)

	_, ok := d.Detect(prev, curr, testQuad)
	assert.False(t, ok)
}

func TestDetectWithoutPreviousFrame(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	defer d.Close()

	curr, ok := ballClip().Frame(0)
	require.True(t, ok)
	defer curr.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	_, ok = d.Detect(empty, curr, testQuad)
	assert.False(t, ok)
}

func TestDetectMismatchedFrames(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	defer d.Close()

	small := &video.SyntheticClip{Width: 50, Height: 50, Length: time.Second, Background: 40}
	prev, ok := small.Frame(0)
	require.True(t, ok)
	defer prev.Close()
	curr, ok := ballClip().Frame(0)
	require.True(t, ok)
	defer curr.Close()

	assert.Empty(t, d.Candidates(prev, curr))
}

func TestDetectTinyMotionRejected(t *testing.T) {
	t.Parallel()

	d := NewDetector(DefaultConfig())
	defer d.Close()

	clip := &video.SyntheticClip{
		Width: 200, Height: 200, Length: time.Second, Background: 40,
		Blobs: []video.Blob{{
			Start: geometry.Point{X: 100, Y: 100}, End: geometry.Point{X: 100, Y: 100}, Radius: 1, Value: 220,
			Visible: func(t time.Duration) bool { return t > 0 },
		}},
	}
	prev, curr := framePair(t, clip, 0, 100*time.Millisecond)

	_, ok := d.Detect(prev, curr, testQuad)
	assert.False(t, ok)
}
