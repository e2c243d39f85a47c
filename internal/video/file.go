// Package video provides frame sources for trajectory sampling: decoded
// video files and synthetic clips.
package video

import (
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// ErrNotOpened is returned when the decoder cannot open a file.
var ErrNotOpened = errors.New("video could not be opened")

// File is a seekable, decoded video file. It is not safe for concurrent use.
type File struct {
	path     string
	capture  *gocv.VideoCapture
	duration time.Duration
	fps      float64
}

// OpenFile opens path for random-access frame reads.
func OpenFile(path string) (*File, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotOpened, path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotOpened, path)
	}

	f := &File{path: path, capture: vc, fps: vc.Get(gocv.VideoCaptureFPS)}
	frames := vc.Get(gocv.VideoCaptureFrameCount)
	if f.fps > 0 && frames > 0 {
		f.duration = time.Duration(frames / f.fps * float64(time.Second))
	}
	return f, nil
}

// Path returns the file the video was opened from.
func (f *File) Path() string {
	return f.path
}

// FPS returns the container frame rate, or 0 if unknown.
func (f *File) FPS() float64 {
	return f.fps
}

// Duration returns the clip length. It is zero when the container does not
// report a frame count or frame rate.
func (f *File) Duration() time.Duration {
	return f.duration
}

// Frame seeks to t and decodes the nearest frame. The caller owns the
// returned Mat when ok is true; when ok is false the Mat must not be used.
func (f *File) Frame(t time.Duration) (gocv.Mat, bool) {
	f.capture.Set(gocv.VideoCapturePosMsec, float64(t.Milliseconds()))
	m := gocv.NewMat()
	if ok := f.capture.Read(&m); !ok || m.Empty() {
		m.Close()
		return gocv.Mat{}, false
	}
	return m, true
}

// Close releases the decoder.
func (f *File) Close() error {
	return f.capture.Close()
}
