package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/banshee-data/lane.report/internal/analysis"
	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/db"
	"github.com/banshee-data/lane.report/internal/video"
	"github.com/spf13/cobra"
)

// requestFlags are the calibration flags shared by analyze and submit.
type requestFlags struct {
	quad    string
	farFt   float64
	breakFt float64
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.quad, "quad", "", `lane corners in pixels, "x,y x,y x,y x,y" (near-left, near-right, far-left, far-right)`)
	cmd.Flags().Float64Var(&f.farFt, "far", 0, "distance in feet from the foul line to the far corners (default from tuning, 50)")
	cmd.Flags().Float64Var(&f.breakFt, "break", 0, "breakpoint distance in feet (default from tuning, 40)")
	_ = cmd.MarkFlagRequired("quad")
}

func (f *requestFlags) request() (analysis.Request, error) {
	quad, err := calibration.ParseQuad(f.quad)
	if err != nil {
		return analysis.Request{}, fmt.Errorf("--quad: %w", err)
	}
	return analysis.Request{Quad: quad, FarFt: f.farFt, BreakFt: f.breakFt}, nil
}

// reportFlags select the optional report files and output format.
type reportFlags struct {
	htmlPath string
	pngPath  string
	jsonOut  bool
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.htmlPath, "html", "", "write an interactive HTML report to this file")
	cmd.Flags().StringVar(&f.pngPath, "png", "", "write the lane plot as a PNG to this file")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print the full result as JSON")
}

func openVideo(path string) (analysis.Source, error) {
	f, err := video.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func newAnalyzeCmd(g *globalOptions) *cobra.Command {
	var (
		req  requestFlags
		rep  reportFlags
		save bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <video>",
		Short: "Analyse a clip and print the arrows board, breakpoint board and speed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := req.request()
			if err != nil {
				return err
			}
			return runAnalysis(cmd, g, args[0], openVideo, r, rep, save)
		},
	}
	req.register(cmd)
	rep.register(cmd)
	cmd.Flags().BoolVar(&save, "save", false, "record the run in the --db database")
	return cmd
}

// runAnalysis analyses the clip at sourcePath, optionally recording the run,
// and prints and renders the result. Ctrl-C cancels the analysis.
func runAnalysis(cmd *cobra.Command, g *globalOptions, sourcePath string, open analysis.Opener, req analysis.Request, rep reportFlags, save bool) error {
	tuning, err := g.loadTuning()
	if err != nil {
		return err
	}
	// Reject a bad calibration before opening the clip or the database.
	if err := req.WithDefaults(tuning).Validate(); err != nil {
		return err
	}

	engine := analysis.NewEngine(tuning)
	defer engine.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var res *analysis.Result
	if save {
		res, err = analyzeAndRecord(ctx, cmd, g, engine, sourcePath, open, req)
	} else {
		res, err = analyzeOnce(ctx, engine, sourcePath, open, req)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rep.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printResult(out, res, g.units)
	}
	return writeReports(out, g.fs, res, filepath.Base(sourcePath), rep.htmlPath, rep.pngPath)
}

func analyzeOnce(ctx context.Context, engine *analysis.Engine, sourcePath string, open analysis.Opener, req analysis.Request) (*analysis.Result, error) {
	src, err := open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sourcePath, err)
	}
	defer src.Close()
	return engine.Analyze(ctx, src, req)
}

func analyzeAndRecord(ctx context.Context, cmd *cobra.Command, g *globalOptions, engine *analysis.Engine, sourcePath string, open analysis.Opener, req analysis.Request) (*analysis.Result, error) {
	database, err := db.NewDB(g.dbPath)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	manager := analysis.NewRunManager(engine, db.NewAnalysisRunStore(database.DB), open, nil)
	defer manager.Close()

	runID, res, err := manager.Run(ctx, sourcePath, req)
	if runID != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Recorded run %s in %s\n", runID, g.dbPath)
	}
	return res, err
}
