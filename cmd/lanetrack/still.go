package main

import (
	"fmt"
	"time"

	"github.com/banshee-data/lane.report/internal/video"
	"github.com/spf13/cobra"
)

func newStillCmd() *cobra.Command {
	var (
		out string
		at  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "still <video>",
		Short: "Save a frame to pick the lane corners on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := video.OpenFile(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if err := video.ExtractStillAt(f, at, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s clip at %.0f fps)\n",
				out, f.Duration().Round(time.Millisecond), f.FPS())
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "still.png", "image to write; the format follows the extension")
	cmd.Flags().DurationVar(&at, "at", video.StillOffset, "offset into the clip")
	return cmd
}
