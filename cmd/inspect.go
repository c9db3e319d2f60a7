package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/WesWeCan/mu-morphing-mirror/internal/store"
	"github.com/WesWeCan/mu-morphing-mirror/internal/utils"
	"github.com/spf13/cobra"
)

var inspectFrame int

var inspectCmd = &cobra.Command{
	Use:         "inspect <video-id>",
	Short:       "Show the regions stored for a scanned video",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{needsDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		info, err := DB.GetVideoInfo(cmd.Context(), args[0])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fmt.Fprintf(os.Stderr, "❌ No scan found for video %s.\n", args[0])
			} else {
				utils.ShowError("Failed to load video", err, nil)
			}
			return err
		}

		rs, err := DB.GetFrameRegions(cmd.Context(), args[0], inspectFrame)
		if err != nil {
			utils.ShowError("Failed to load regions", err, nil)
			return err
		}

		return writeInspect(cmd.OutOrStdout(), info, rs)
	},
}

func init() {
	inspectCmd.Flags().IntVarP(&inspectFrame, "frame", "f", -1, "Only show this frame index")
	rootCmd.AddCommand(inspectCmd)
}

func writeInspect(w io.Writer, info store.VideoInfo, rs []store.StoredRegion) error {
	fmt.Fprintf(w, "📼 %s (%.2f fps, scanned %s)\n", info.Path, info.FPS, info.IndexedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(w, "   detected %d, no pose %d, missing regions %d, estimator errors %d\n\n",
		info.Frames[store.StatusDetected], info.Frames[store.StatusNoDetection],
		info.Frames[store.StatusMissingRegions], info.Frames[store.StatusWorkerError])

	if len(rs) == 0 {
		_, err := fmt.Fprintln(w, "No regions stored.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tTIME\tLABEL\tX\tY\tWIDTH\tHEIGHT")
	fmt.Fprintln(tw, "-----\t----\t-----\t-\t-\t-----\t------")
	for _, r := range rs {
		ts := "-"
		if info.FPS > 0 {
			ts = fmtTime(float64(r.FrameIndex) / info.FPS)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%.1f\t%.1f\t%.1f\n", r.FrameIndex, ts, r.Label, r.X, r.Y, r.Width, r.Height)
	}
	return tw.Flush()
}
