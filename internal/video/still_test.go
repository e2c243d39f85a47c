package video

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func readGray(t *testing.T, path string) gocv.Mat {
	t.Helper()
	m := gocv.IMRead(path, gocv.IMReadGrayScale)
	require.False(t, m.Empty(), "read %s", path)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestExtractStill(t *testing.T) {
	out := filepath.Join(t.TempDir(), "still.png")
	require.NoError(t, ExtractStill(DemoClip(), out))

	m := readGray(t, out)
	assert.Equal(t, 460, m.Rows())
	assert.Equal(t, 200, m.Cols())
	// 500ms into the 2s demo the ball is a quarter of the way up the lane.
	assert.Equal(t, uint8(220), m.GetUCharAt(312, 100))
	assert.Equal(t, uint8(40), m.GetUCharAt(400, 100))
}

func TestExtractStillFallsBackToFirstFrame(t *testing.T) {
	clip := DemoClip()
	clip.Drop = func(t time.Duration) bool { return t > 0 }

	out := filepath.Join(t.TempDir(), "still.png")
	require.NoError(t, ExtractStill(clip, out))
	assert.Equal(t, uint8(220), readGray(t, out).GetUCharAt(400, 100))
}

func TestExtractStillAtPastEnd(t *testing.T) {
	out := filepath.Join(t.TempDir(), "still.png")
	require.NoError(t, ExtractStillAt(DemoClip(), 10*time.Second, out))
	assert.Equal(t, uint8(220), readGray(t, out).GetUCharAt(400, 100))
}

func TestExtractStillNoFrame(t *testing.T) {
	clip := DemoClip()
	clip.Drop = func(time.Duration) bool { return true }

	err := ExtractStill(clip, filepath.Join(t.TempDir(), "still.png"))
	assert.ErrorIs(t, err, ErrNoFrame)
}
