package main

import (
	"fmt"
	"time"

	"github.com/banshee-data/lane.report/internal/api"
	"github.com/banshee-data/lane.report/internal/db"
	"github.com/spf13/cobra"
)

func newSubmitCmd(g *globalOptions) *cobra.Command {
	var (
		req    requestFlags
		server string
		wait   bool
		poll   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "submit <video>",
		Short: "Queue a clip on a lane server",
		Long: `submit asks a running "lanetrack serve" to analyse a clip from its media
directory. The video path is resolved on the server, relative to its --media
directories.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := req.request()
			if err != nil {
				return err
			}
			client := api.NewClient(server, nil)
			runID, err := client.Submit(cmd.Context(), args[0], r)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submitted run %s\n", runID)
			if !wait {
				return nil
			}

			detail, err := client.WaitRun(cmd.Context(), runID, poll)
			if err != nil {
				return err
			}
			printRun(out, detail.Run, g.units)
			if detail.Run.Status == db.RunStatusFailed {
				return fmt.Errorf("run %s failed: %s", runID, detail.Run.Error)
			}
			return nil
		},
	}
	req.register(cmd)
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "lane server URL")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait for the run to finish and print it")
	cmd.Flags().DurationVar(&poll, "poll", api.DefaultPollInterval, "status poll interval with --wait")
	return cmd
}
