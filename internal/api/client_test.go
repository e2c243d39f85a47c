package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/banshee-data/lane.report/internal/analysis"
	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/db"
	"github.com/banshee-data/lane.report/internal/httputil"
	"github.com/banshee-data/lane.report/internal/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoRequest() analysis.Request {
	return analysis.Request{Quad: calibration.QuadFromPoints(video.DemoQuad()), FarFt: 50, BreakFt: 40}
}

func TestClientAgainstServer(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.mux)
	defer srv.Close()

	ctx := context.Background()
	c := NewClient(srv.URL+"/", nil)

	runID, err := c.Submit(ctx, "demo.mp4", demoRequest())
	require.NoError(t, err)

	detail, err := c.WaitRun(ctx, runID, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, db.RunStatusCompleted, detail.Run.Status)
	require.NotNil(t, detail.Run.SpeedMPH)
	assert.Greater(t, *detail.Run.SpeedMPH, 0.0)

	runs, err := c.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunID)

	var page bytes.Buffer
	require.NoError(t, c.Chart(ctx, runID, "html", &page))
	assert.Contains(t, page.String(), "<html")

	cfg, err := c.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50.0, cfg.GetDefaultFarFt())

	require.NoError(t, c.DeleteRun(ctx, runID))
	_, err = c.Run(ctx, runID)
	assert.True(t, httputil.IsStatus(err, http.StatusNotFound), "got %v", err)
}

func TestClientSubmitRejected(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.mux)
	defer srv.Close()

	req := demoRequest()
	req.FarFt = -1
	_, err := NewClient(srv.URL, nil).Submit(context.Background(), "demo.mp4", req)
	require.Error(t, err)
	assert.True(t, httputil.IsStatus(err, http.StatusBadRequest))
	assert.Contains(t, err.Error(), "distance")
}

func TestClientRequestShape(t *testing.T) {
	m := httputil.NewMockHTTPClient().
		AddResponse(http.StatusAccepted, `{"run_id":"r1"}`).
		AddResponse(http.StatusNoContent, "")
	c := NewClient("http://lane:8080", m)

	runID, err := c.Submit(context.Background(), "league/shot 1.mp4", demoRequest())
	require.NoError(t, err)
	assert.Equal(t, "r1", runID)
	require.NoError(t, c.DeleteRun(context.Background(), "r1"))

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "http://lane:8080/api/analyses", reqs[0].URL)
	assert.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))
	assert.JSONEq(t, `{
		"video": "league/shot 1.mp4",
		"quad": [[50,420],[150,420],[50,30],[150,30]],
		"far_ft": 50,
		"break_ft": 40
	}`, string(reqs[0].Body))
	assert.Equal(t, http.MethodDelete, reqs[1].Method)
	assert.Equal(t, "http://lane:8080/api/analyses/r1", reqs[1].URL)
}

func TestClientErrors(t *testing.T) {
	m := httputil.NewMockHTTPClient().
		AddErrorResponse(errors.New("connection refused")).
		AddResponse(http.StatusConflict, `{"error":"run is running"}`).
		AddResponse(http.StatusOK, `not json`)
	c := NewClient("http://lane", m)
	ctx := context.Background()

	_, err := c.ListRuns(ctx, 0)
	assert.ErrorContains(t, err, "connection refused")

	var buf bytes.Buffer
	err = c.Chart(ctx, "r1", "png", &buf)
	assert.True(t, httputil.IsStatus(err, http.StatusConflict))
	assert.ErrorContains(t, err, "run is running")

	_, err = c.Run(ctx, "r1")
	assert.ErrorContains(t, err, "decode response")

	reqs := m.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "http://lane/api/analyses", reqs[0].URL)
	assert.Equal(t, "http://lane/api/analyses/r1/chart?format=png", reqs[1].URL)
}

func TestClientWaitRunHonoursContext(t *testing.T) {
	m := httputil.NewMockHTTPClient()
	for i := 0; i < 100; i++ {
		m.AddResponse(http.StatusOK, `{"run":{"run_id":"r1","status":"running"},"running":true,"points":[]}`)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient("http://lane", m).WaitRun(ctx, "r1", 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
