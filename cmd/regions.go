package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/WesWeCan/mu-morphing-mirror/internal/log"
	"github.com/WesWeCan/mu-morphing-mirror/internal/pose"
	"github.com/WesWeCan/mu-morphing-mirror/internal/regions"
	"github.com/WesWeCan/mu-morphing-mirror/internal/render"
	"github.com/WesWeCan/mu-morphing-mirror/internal/utils"
	"github.com/spf13/cobra"
)

type regionsFlags struct {
	Raw        bool
	Table      bool
	DebugImage string
	DebugOut   string
}

var regionsOpts regionsFlags

var regionsCmd = &cobra.Command{
	Use:   "regions <pose.json|->",
	Short: "Derive body-part regions from pose estimator output",
	Long: "Reads a pose JSON document (one pose or an array of poses, first pose wins) and prints\n" +
		"the processed regions followed by the combined legs region.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runRegions(args[0], regionsOpts, cmd.OutOrStdout())
	},
}

func init() {
	regionsCmd.Flags().BoolVar(&regionsOpts.Raw, "raw", false, "Also print the raw per-part boxes")
	regionsCmd.Flags().BoolVar(&regionsOpts.Table, "table", false, "Print a table instead of JSON")
	regionsCmd.Flags().StringVar(&regionsOpts.DebugImage, "debug-image", "", "Frame to draw the regions on")
	regionsCmd.Flags().StringVar(&regionsOpts.DebugOut, "debug-out", "", "Where to write the debug drawing")
	regionsCmd.MarkFlagsRequiredTogether("debug-image", "debug-out")
	rootCmd.AddCommand(regionsCmd)
}

func runRegions(input string, opts regionsFlags, out io.Writer) error {
	poses, err := readPoses(input)
	if err != nil {
		utils.ShowError("Failed to read poses", err, nil)
		return err
	}

	frame, err := regions.Derive(regions.DefaultTable, poses)
	if err != nil {
		var missing *regions.MissingRegionsError
		if errors.As(err, &missing) {
			log.Warn(log.Fields{"run_id": runID, "parts": fmt.Sprint(missing.Parts)}, "pose incomplete, frame skipped")
		}
		utils.ShowError("Region derivation failed", err, nil)
		return err
	}

	if !frame.Detected {
		fmt.Fprintln(os.Stderr, "❌ No pose detected in input.")
	}

	if opts.DebugImage != "" {
		drawn := frame.Overlay()
		if opts.Raw {
			drawn = append(frame.Raw.List(), drawn...)
		}
		if err := render.DrawFile(opts.DebugImage, opts.DebugOut, drawn); err != nil {
			utils.ShowError("Failed to draw debug image", err, nil)
			return err
		}
		fmt.Fprintf(os.Stderr, "🖼️  Debug image written to %s\n", opts.DebugOut)
	}

	if opts.Table {
		return writeRegionsTable(out, frame, opts.Raw)
	}
	return writeRegionsJSON(out, frame, opts.Raw)
}

func readPoses(input string) ([]pose.Pose, error) {
	if input == "-" {
		return pose.Decode(os.Stdin)
	}
	f, err := os.Open(input)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return pose.Decode(f)
}

type regionsOutput struct {
	Detected bool             `json:"detected"`
	Raw      []regions.Region `json:"raw,omitempty"`
	Regions  []regions.Region `json:"regions"`
}

func writeRegionsJSON(w io.Writer, frame regions.Frame, withRaw bool) error {
	res := regionsOutput{Detected: frame.Detected, Regions: frame.Overlay()}
	if res.Regions == nil {
		res.Regions = []regions.Region{}
	}
	if withRaw && frame.Detected {
		res.Raw = frame.Raw.List()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func writeRegionsTable(w io.Writer, frame regions.Frame, withRaw bool) error {
	if !frame.Detected {
		_, err := fmt.Fprintln(w, "No regions.")
		return err
	}
	rows := frame.Overlay()
	if withRaw {
		rows = append(frame.Raw.List(), rows...)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tX\tY\tWIDTH\tHEIGHT\tKEYPOINTS")
	fmt.Fprintln(tw, "-----\t-\t-\t-----\t------\t---------")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.1f\t%.1f\t%.1f\t%.1f\t%d\n", r.Label, r.X, r.Y, r.Width, r.Height, len(r.Keypoints))
	}
	return tw.Flush()
}
