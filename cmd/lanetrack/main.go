// Command lanetrack extracts a bowling ball's path from a lane video and
// reports its board at the arrows and the breakpoint, and its speed.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/lane.report/internal/analysis"
	"github.com/banshee-data/lane.report/internal/config"
	"github.com/banshee-data/lane.report/internal/fsutil"
	"github.com/banshee-data/lane.report/internal/monitoring"
	"github.com/banshee-data/lane.report/internal/units"
	"github.com/spf13/cobra"
)

// DefaultDBPath is where runs are recorded unless --db says otherwise.
const DefaultDBPath = "lane.db"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	dbPath     string
	configPath string
	units      string
	quiet      bool

	// fs receives report and chart files.
	fs fsutil.FileSystem
}

// loadTuning reads --config, or returns the built-in defaults.
func (o *globalOptions) loadTuning() (*config.TuningConfig, error) {
	if o.configPath == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(o.configPath)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{fs: fsutil.OSFileSystem{}}
	root := &cobra.Command{
		Use:   "lanetrack",
		Short: "Bowling lane trajectory and metrics from video",
		Long: `lanetrack follows the ball through a fixed-camera clip of a bowling lane,
maps its path onto the lane using four calibration corners, and reports the
board it crossed at the arrows and at the breakpoint, and its average speed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !units.IsValid(opts.units) {
				return fmt.Errorf("invalid --units %q (valid: %s)", opts.units, units.GetValidUnitsString())
			}
			if opts.quiet {
				monitoring.SetLogger(nil)
			}
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.dbPath, "db", DefaultDBPath, "SQLite database of analysis runs")
	pf.StringVar(&opts.configPath, "config", "", "tuning JSON (default: built-in defaults)")
	pf.StringVar(&opts.units, "units", units.MPH, "speed units: "+units.GetValidUnitsString())
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress progress logging")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newStillCmd(),
		newDemoCmd(opts),
		newRunsCmd(opts),
		newSubmitCmd(opts),
		newServeCmd(opts),
		newMigrateCmd(opts),
		newVersionCmd(),
	)
	return root
}

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if hint := analysis.Remedy(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}
