package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/lane.report/internal/analysis"
	"github.com/banshee-data/lane.report/internal/api"
	"github.com/banshee-data/lane.report/internal/db"
	"github.com/banshee-data/lane.report/internal/fsutil"
	"github.com/banshee-data/lane.report/internal/report"
	"github.com/spf13/cobra"
)

// runStore is the view of recorded runs the runs commands work on: either
// the local database or a lane server.
type runStore interface {
	ListRuns(ctx context.Context, limit int) ([]*db.AnalysisRun, error)
	Run(ctx context.Context, runID string) (*api.RunDetail, error)
	DeleteRun(ctx context.Context, runID string) error
	Chart(ctx context.Context, runID, format string, w io.Writer) error
}

// localRuns reads runs straight from the database file.
type localRuns struct {
	db     *db.DB
	store  *db.AnalysisRunStore
	engine *analysis.Engine
}

func openLocalRuns(g *globalOptions) (*localRuns, error) {
	tuning, err := g.loadTuning()
	if err != nil {
		return nil, err
	}
	database, err := db.NewDB(g.dbPath)
	if err != nil {
		return nil, err
	}
	return &localRuns{
		db:     database,
		store:  db.NewAnalysisRunStore(database.DB),
		engine: analysis.NewEngine(tuning),
	}, nil
}

func (l *localRuns) Close() error {
	l.engine.Close()
	return l.db.Close()
}

func (l *localRuns) ListRuns(_ context.Context, limit int) ([]*db.AnalysisRun, error) {
	return l.store.ListRuns(limit)
}

func (l *localRuns) Run(_ context.Context, runID string) (*api.RunDetail, error) {
	run, err := l.store.GetRun(runID)
	if err != nil {
		return nil, err
	}
	points, err := l.store.GetPoints(runID)
	if err != nil {
		return nil, err
	}
	return &api.RunDetail{Run: run, Points: points}, nil
}

func (l *localRuns) DeleteRun(_ context.Context, runID string) error {
	return l.store.DeleteRun(runID)
}

func (l *localRuns) Chart(ctx context.Context, runID, format string, w io.Writer) error {
	detail, err := l.Run(ctx, runID)
	if err != nil {
		return err
	}
	if detail.Run.Status != db.RunStatusCompleted {
		return fmt.Errorf("run %s is %s", runID, detail.Run.Status)
	}
	res, err := l.engine.Rebuild(detail.Run, detail.Points)
	if err != nil {
		return err
	}
	title := filepath.Base(detail.Run.SourcePath)
	if format == "png" {
		return report.WritePNG(w, title, res)
	}
	return report.WriteHTML(w, title, res)
}

func newRunsCmd(g *globalOptions) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List, inspect and delete recorded runs",
	}
	cmd.PersistentFlags().StringVar(&server, "server", "", "lane server URL; by default runs are read from --db")

	// withRuns opens the run store for one command invocation.
	withRuns := func(fn func(ctx context.Context, rs runStore) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if server != "" {
				return fn(cmd.Context(), api.NewClient(server, nil))
			}
			local, err := openLocalRuns(g)
			if err != nil {
				return err
			}
			defer local.Close()
			return fn(cmd.Context(), local)
		}
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
	}
	list.Flags().IntVarP(&limit, "limit", "n", api.DefaultListLimit, "number of runs to show")
	list.RunE = func(cmd *cobra.Command, args []string) error {
		return withRuns(func(ctx context.Context, rs runStore) error {
			runs, err := rs.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			printRunTable(cmd.OutOrStdout(), runs, g.units)
			return nil
		})(cmd, args)
	}

	var (
		jsonOut  bool
		htmlPath string
		pngPath  string
	)
	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and optionally render its report",
		Args:  cobra.ExactArgs(1),
	}
	show.Flags().BoolVar(&jsonOut, "json", false, "print the run and its points as JSON")
	show.Flags().StringVar(&htmlPath, "html", "", "write the HTML report of a completed run")
	show.Flags().StringVar(&pngPath, "png", "", "write the lane plot of a completed run")
	show.RunE = func(cmd *cobra.Command, args []string) error {
		return withRuns(func(ctx context.Context, rs runStore) error {
			detail, err := rs.Run(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(detail); err != nil {
					return err
				}
			} else {
				printRun(out, detail.Run, g.units)
			}
			for _, c := range []struct{ format, path string }{{"html", htmlPath}, {"png", pngPath}} {
				if c.path == "" {
					continue
				}
				if err := saveChart(ctx, g.fs, rs, args[0], c.format, c.path); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote %s\n", c.path)
			}
			return nil
		})(cmd, args)
	}

	rm := &cobra.Command{
		Use:   "rm <run-id>...",
		Short: "Delete runs, cancelling them first if they are still running",
		Args:  cobra.MinimumNArgs(1),
	}
	rm.RunE = func(cmd *cobra.Command, args []string) error {
		return withRuns(func(ctx context.Context, rs runStore) error {
			var errs []error
			for _, id := range args {
				if err := rs.DeleteRun(ctx, id); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return errors.Join(errs...)
		})(cmd, args)
	}

	cmd.AddCommand(list, show, rm)
	return cmd
}

func saveChart(ctx context.Context, fsys fsutil.FileSystem, rs runStore, runID, format, path string) error {
	return fsutil.WriteWith(fsys, path, func(w io.Writer) error {
		return rs.Chart(ctx, runID, format, w)
	})
}
