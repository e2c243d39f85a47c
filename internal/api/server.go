// Package api serves analysis runs over HTTP: submit a clip for analysis,
// list and inspect runs, render a run's report, and read the tuning.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/lane.report/internal/analysis"
	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/db"
	"github.com/banshee-data/lane.report/internal/httputil"
	"github.com/banshee-data/lane.report/internal/report"
	"github.com/banshee-data/lane.report/internal/security"
)

// ANSI escape codes for the request log
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// DefaultListLimit is the number of runs GET /api/analyses returns when no
// limit is given.
const DefaultListLimit = 50

// deleteWait bounds how long DELETE waits for a cancelled run to record its
// failure before the row is removed.
const deleteWait = 5 * time.Second

// Server is the HTTP API over the analysis engine and the run store.
type Server struct {
	engine    *analysis.Engine
	manager   *analysis.RunManager
	runs      *db.AnalysisRunStore
	mediaDirs []string
}

// NewServer creates a server. Clip paths in requests must resolve inside one
// of mediaDirs.
func NewServer(engine *analysis.Engine, manager *analysis.RunManager, runs *db.AnalysisRunStore, mediaDirs []string) *Server {
	return &Server{
		engine:    engine,
		manager:   manager,
		runs:      runs,
		mediaDirs: mediaDirs,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs the status, method, URI and latency of every request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyses", s.handleAnalyses)
	mux.HandleFunc("/api/analyses/", s.handleAnalysis)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}

// submitRequest is the body of POST /api/analyses.
type submitRequest struct {
	Video string `json:"video"`
	analysis.Request
}

type submitResponse struct {
	RunID string `json:"run_id"`
}

// RunDetail is the body of GET /api/analyses/{id}.
type RunDetail struct {
	Run     *db.AnalysisRun `json:"run"`
	Running bool            `json:"running"`
	Points  []db.RunPoint   `json:"points"`
}

func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRuns(w, r)
	case http.MethodPost:
		s.submitRun(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.runs.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*db.AnalysisRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httputil.DecodeJSONBody(w, r, &req); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	path, err := security.ResolveMediaPath(req.Video, s.mediaDirs)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("video: %v", err))
		return
	}

	runID, err := s.manager.Submit(path, req.Request)
	switch {
	case isInvalidRequest(err):
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":  err.Error(),
			"remedy": analysis.Remedy(err),
		})
		return
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("Failed to start run: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, submitResponse{RunID: runID})
}

func isInvalidRequest(err error) bool {
	return errors.Is(err, analysis.ErrInvalidDistance) ||
		errors.Is(err, calibration.ErrDegenerateQuad) ||
		errors.Is(err, calibration.ErrQuadOrder)
}

// handleAnalysis serves /api/analyses/{id} and /api/analyses/{id}/chart.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/analyses/"), "/")
	runID, sub, _ := strings.Cut(rest, "/")
	if runID == "" {
		httputil.NotFound(w, "missing run id")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		s.showRun(w, runID)
	case sub == "" && r.Method == http.MethodDelete:
		s.deleteRun(w, r, runID)
	case sub == "chart" && r.Method == http.MethodGet:
		s.showChart(w, r, runID)
	case sub == "" || sub == "chart":
		httputil.MethodNotAllowed(w)
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown resource %q", sub))
	}
}

// getRun loads a run, writing the error response itself when it fails.
func (s *Server) getRun(w http.ResponseWriter, runID string) (*db.AnalysisRun, bool) {
	run, err := s.runs.GetRun(runID)
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load run: %v", err))
		return nil, false
	}
	return run, true
}

func (s *Server) showRun(w http.ResponseWriter, runID string) {
	run, ok := s.getRun(w, runID)
	if !ok {
		return
	}
	points, err := s.runs.GetPoints(runID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load points: %v", err))
		return
	}
	if points == nil {
		points = []db.RunPoint{}
	}
	httputil.WriteJSONOK(w, RunDetail{
		Run:     run,
		Running: s.manager.Running(runID),
		Points:  points,
	})
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request, runID string) {
	if s.manager.Cancel(runID) {
		ctx, cancel := context.WithTimeout(r.Context(), deleteWait)
		_, err := s.manager.Wait(ctx, runID)
		cancel()
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			httputil.WriteJSONError(w, http.StatusServiceUnavailable, "run did not stop in time")
			return
		}
	}

	err := s.runs.DeleteRun(runID)
	if errors.Is(err, db.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to delete run: %v", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// showChart renders a completed run as an HTML page, or as a PNG with
// ?format=png. ?download=1 serves it as an attachment.
func (s *Server) showChart(w http.ResponseWriter, r *http.Request, runID string) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "html"
	}
	if format != "html" && format != "png" {
		httputil.BadRequest(w, "Invalid 'format' parameter")
		return
	}

	run, ok := s.getRun(w, runID)
	if !ok {
		return
	}
	if run.Status != db.RunStatusCompleted {
		msg := fmt.Sprintf("run is %s", run.Status)
		if run.Error != "" {
			msg += ": " + run.Error
		}
		httputil.WriteJSONError(w, http.StatusConflict, msg)
		return
	}

	points, err := s.runs.GetPoints(runID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load points: %v", err))
		return
	}
	res, err := s.engine.Rebuild(run, points)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to rebuild run: %v", err))
		return
	}

	if r.URL.Query().Get("download") != "" {
		name := security.ReportFilename(run.SourcePath, "."+format)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}

	title := filepath.Base(run.SourcePath)
	if format == "png" {
		w.Header().Set("Content-Type", "image/png")
		err = report.WritePNG(w, title, res)
	} else {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = report.WriteHTML(w, title, res)
	}
	if err != nil {
		log.Printf("[api] failed to render chart for run %s: %v", runID, err)
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.engine.Tuning())
}
