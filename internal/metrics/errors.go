package metrics

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientTracking is reported when too few raw detections were
	// collected across the clip.
	ErrInsufficientTracking = errors.New("insufficient tracking points")
	// ErrOutOfLane is reported when too few detections project onto the lane.
	ErrOutOfLane = errors.New("points outside lane, recalibrate")
)

// PointCountError carries the counts behind a fatal point shortage.
type PointCountError struct {
	Reason   error
	Observed int
	Required int
}

func (e *PointCountError) Error() string {
	return fmt.Sprintf("%v: got %d, need %d", e.Reason, e.Observed, e.Required)
}

func (e *PointCountError) Unwrap() error {
	return e.Reason
}
