package analysis

import (
	"context"
	"errors"

	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/metrics"
	"github.com/banshee-data/lane.report/internal/sampler"
)

// Remedy returns a corrective hint for a failed analysis, or "" when err
// has no known remedy.
func Remedy(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, calibration.ErrQuadOrder):
		return "Tap the lane corners in order: near-left, near-right, far-left, far-right."
	case errors.Is(err, calibration.ErrDegenerateQuad), errors.Is(err, calibration.ErrProjection):
		return "Recalibrate: the four corners must outline the lane, with no three in a line."
	case errors.Is(err, ErrInvalidDistance):
		return "Enter the far and breakpoint distances in feet, e.g. 50 and 40."
	case errors.Is(err, sampler.ErrNoDuration):
		return "The clip has no readable length. Record it again or re-export it as MP4."
	case errors.Is(err, metrics.ErrInsufficientTracking):
		return "Not enough tracking points. Try a brighter lane, a tripod, keeping the lane centred, or a longer clip."
	case errors.Is(err, metrics.ErrOutOfLane):
		return "Tracked points fell outside the lane. Recalibrate and set the far distance close to where you tapped (e.g. 45-55 ft)."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The analysis was stopped before it finished."
	}
	return ""
}
