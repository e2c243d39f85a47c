package report

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/lane.report/internal/analysis"
	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/metrics"
	"github.com/banshee-data/lane.report/internal/trajectory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *analysis.Result {
	board := 20
	x := 20.75
	mph := 15.3
	pts := make([]trajectory.LanePoint, 30)
	for i := range pts {
		t := float64(i) * 0.066
		pts[i] = trajectory.LanePoint{TSec: t, XIn: 20.75, YIn: 30 + 270*t}
	}
	return &analysis.Result{
		Request:     analysis.Request{FarFt: 50, BreakFt: 40},
		LaneWidthIn: calibration.LaneWidthIn,
		LanePoints:  pts,
		Metrics: metrics.Metrics{
			ArrowsBoard: &board, BreakpointBoard: &board, SpeedMPH: &mph,
			ArrowsXIn: &x, BreakpointXIn: &x,
			ArrowsYIn: 180, BreakpointYIn: 480,
			Speed: &metrics.SpeedFit{InterceptIn: 30, SlopeInPerSec: 270, Points: 25},
		},
	}
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, "demo shot", sampleResult()))

	out := buf.String()
	assert.True(t, strings.Contains(out, "<html"), "not an html page")
	assert.Contains(t, out, "demo shot")
	assert.Contains(t, out, "board 20")
	assert.Contains(t, out, "15.3 mph")
	assert.Contains(t, out, "Distance over time")
}

func TestWriteHTMLUndetermined(t *testing.T) {
	res := sampleResult()
	res.Metrics = metrics.Metrics{ArrowsYIn: 180, BreakpointYIn: 480}

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, "partial", res))
	assert.Contains(t, buf.String(), "not determined")
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, "demo shot", sampleResult()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dy(), img.Bounds().Dx(), "lane plot is portrait")
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, SavePNG(path, "demo shot", sampleResult()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSavePNGWithoutPoints(t *testing.T) {
	res := sampleResult()
	res.LanePoints = nil
	path := filepath.Join(t.TempDir(), "empty.png")
	assert.NoError(t, SavePNG(path, "empty", res))
}
