package main

import (
	"github.com/banshee-data/lane.report/internal/analysis"
	"github.com/banshee-data/lane.report/internal/calibration"
	"github.com/banshee-data/lane.report/internal/video"
	"github.com/spf13/cobra"
)

// demoSource names the synthetic clip in recorded runs.
const demoSource = "synthetic:demo"

func openDemo(string) (analysis.Source, error) {
	return video.DemoClip(), nil
}

func newDemoCmd(g *globalOptions) *cobra.Command {
	var (
		rep  reportFlags
		save bool
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Analyse a rendered clip of a ball rolling up the middle of the lane",
		Long: `demo renders a two second clip of a ball travelling straight up board 20
with a distractor moving beside the lane, and runs the full analysis on it.
It needs no video file and is a quick check that the toolchain works.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := analysis.Request{Quad: calibration.QuadFromPoints(video.DemoQuad()), FarFt: 50, BreakFt: 40}
			return runAnalysis(cmd, g, demoSource, openDemo, req, rep, save)
		},
	}
	rep.register(cmd)
	cmd.Flags().BoolVar(&save, "save", false, "record the run in the --db database")
	return cmd
}
