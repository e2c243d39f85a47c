package main

import (
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/lane.report/internal/analysis"
	"github.com/banshee-data/lane.report/internal/db"
	"github.com/banshee-data/lane.report/internal/fsutil"
	"github.com/banshee-data/lane.report/internal/report"
	"github.com/banshee-data/lane.report/internal/units"
)

const notDetermined = "not determined"

func boardText(b *int, xIn *float64) string {
	if b == nil {
		return notDetermined
	}
	if xIn == nil {
		return fmt.Sprintf("board %d", *b)
	}
	return fmt.Sprintf("board %d (%.1f in)", *b, *xIn)
}

func speedText(mph *float64, unit string) string {
	if mph == nil {
		return notDetermined
	}
	return fmt.Sprintf("%.1f %s", units.ConvertSpeed(*mph, unit), unit)
}

// printResult writes the metrics of an analysis and how they were obtained.
func printResult(w io.Writer, res *analysis.Result, unit string) {
	m := res.Metrics
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Arrows (%.0f ft):\t%s\n", units.InchesToFeet(m.ArrowsYIn), boardText(m.ArrowsBoard, m.ArrowsXIn))
	fmt.Fprintf(tw, "Breakpoint (%.0f ft):\t%s\n", units.InchesToFeet(m.BreakpointYIn), boardText(m.BreakpointBoard, m.BreakpointXIn))
	speed := speedText(m.SpeedMPH, unit)
	if m.Speed != nil {
		speed += fmt.Sprintf(" (%d points between %.0f and %.0f ft)",
			m.Speed.Points, units.InchesToFeet(m.Speed.WindowMinIn), units.InchesToFeet(m.Speed.WindowMaxIn))
	}
	fmt.Fprintf(tw, "Speed:\t%s\n", speed)
	fmt.Fprintf(tw, "Frames:\t%d sampled every %s, %d missed\n", res.Sampling.Sampled, res.Sampling.Step, res.Sampling.Missed)
	fmt.Fprintf(tw, "Tracking:\t%d detections, %d on the lane\n", len(res.Detections), len(res.LanePoints))
	fmt.Fprintf(tw, "Elapsed:\t%s\n", res.Elapsed.Round(time.Millisecond))
	tw.Flush()
}

// printRun writes the summary of a stored run.
func printRun(w io.Writer, run *db.AnalysisRun, unit string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run:\t%s\n", run.RunID)
	fmt.Fprintf(tw, "Video:\t%s\n", run.SourcePath)
	fmt.Fprintf(tw, "Created:\t%s\n", run.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(tw, "Status:\t%s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", run.Error)
	}
	fmt.Fprintf(tw, "Calibration:\tquad %s, far %.0f ft, breakpoint %.0f ft\n", run.QuadJSON, run.FarFt, run.BreakFt)
	if run.Status == db.RunStatusCompleted {
		fmt.Fprintf(tw, "Arrows:\t%s\n", boardText(run.ArrowsBoard, nil))
		fmt.Fprintf(tw, "Breakpoint:\t%s\n", boardText(run.BreakBoard, nil))
		fmt.Fprintf(tw, "Speed:\t%s\n", speedText(run.SpeedMPH, unit))
		fmt.Fprintf(tw, "Frames:\t%d sampled, %d missed\n", run.SampledFrames, run.MissedFrames)
		fmt.Fprintf(tw, "Tracking:\t%d detections, %d on the lane\n", run.RawPoints, run.LanePoints)
	}
	tw.Flush()
}

// printRunTable writes one line per run.
func printRunTable(w io.Writer, runs []*db.AnalysisRun, unit string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCREATED\tSTATUS\tARROWS\tBREAKPOINT\tSPEED\tVIDEO")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunID, r.CreatedAt.Local().Format(time.DateTime), r.Status,
			shortBoard(r.ArrowsBoard), shortBoard(r.BreakBoard), shortSpeed(r.SpeedMPH, unit),
			filepath.Base(r.SourcePath))
	}
	tw.Flush()
}

func shortBoard(b *int) string {
	if b == nil {
		return "-"
	}
	return fmt.Sprint(*b)
}

func shortSpeed(mph *float64, unit string) string {
	if mph == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", units.ConvertSpeed(*mph, unit))
}

// writeReports renders res to the requested report files on fsys. Empty
// paths are skipped.
func writeReports(w io.Writer, fsys fsutil.FileSystem, res *analysis.Result, title, htmlPath, pngPath string) error {
	if htmlPath != "" {
		err := fsutil.WriteWith(fsys, htmlPath, func(f io.Writer) error {
			return report.WriteHTML(f, title, res)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %s\n", htmlPath)
	}
	if pngPath != "" {
		err := fsutil.WriteWith(fsys, pngPath, func(f io.Writer) error {
			return report.WritePNG(f, title, res)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %s\n", pngPath)
	}
	return nil
}
