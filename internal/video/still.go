package video

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/lane.report/internal/monitoring"
	"gocv.io/x/gocv"
)

// StillOffset is where calibration stills are taken from. The opening
// frames of phone clips are often dark or blurred while exposure settles.
const StillOffset = 500 * time.Millisecond

// ErrNoFrame is returned when no frame could be decoded for a still.
var ErrNoFrame = errors.New("no frame could be decoded")

var logf = monitoring.Component("video")

// StillSource is a frame source that can be written as a still image.
type StillSource interface {
	Duration() time.Duration
	Frame(t time.Duration) (gocv.Mat, bool)
}

// ExtractStill writes the frame at StillOffset to out.
func ExtractStill(src StillSource, out string) error {
	return ExtractStillAt(src, StillOffset, out)
}

// ExtractStillAt writes the frame at offset at (or the first frame, if that
// fails or at lies past the end of the clip) to out. The image format
// follows the extension of out.
func ExtractStillAt(src StillSource, at time.Duration, out string) error {
	if d := src.Duration(); at < 0 || (d > 0 && at >= d) {
		at = 0
	}
	m, ok := src.Frame(at)
	if !ok && at != 0 {
		logf("no frame at %s, falling back to first frame", at)
		m, ok = src.Frame(0)
	}
	if !ok {
		return ErrNoFrame
	}
	defer m.Close()

	if !gocv.IMWrite(out, m) {
		return fmt.Errorf("write still %s: encoder failed", out)
	}
	return nil
}
