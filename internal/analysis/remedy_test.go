package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/metrics"
	"github.com/banshee-data/lane.report/internal/sampler"
)

func TestRemedy(t *testing.T) {
	tests := []struct {
		err      error
		contains string
	}{
		{nil, ""},
		{errors.New("disk full"), ""},
		{fmt.Errorf("calibration: %w", calibration.ErrQuadOrder), "near-left, near-right"},
		{fmt.Errorf("calibration: %w", calibration.ErrDegenerateQuad), "Recalibrate"},
		{fmt.Errorf("sampling: %w", sampler.ErrNoDuration), "no readable length"},
		{&metrics.PointCountError{Reason: metrics.ErrInsufficientTracking, Observed: 3, Required: 8}, "tripod"},
		{fmt.Errorf("estimate: %w", &metrics.PointCountError{Reason: metrics.ErrOutOfLane}), "far distance"},
		{fmt.Errorf("calibration: %w", ErrInvalidDistance), "feet"},
		{fmt.Errorf("sampling: %w", context.Canceled), "stopped"},
	}
	for _, tt := range tests {
		got := Remedy(tt.err)
		if tt.contains == "" {
			if got != "" {
				t.Errorf("Remedy(%v) = %q, want empty", tt.err, got)
			}
			continue
		}
		if !strings.Contains(got, tt.contains) {
			t.Errorf("Remedy(%v) = %q, want it to mention %q", tt.err, got, tt.contains)
		}
	}
}
