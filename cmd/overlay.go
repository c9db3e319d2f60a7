package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/WesWeCan/mu-morphing-mirror/internal/regions"
	"github.com/WesWeCan/mu-morphing-mirror/internal/render"
	"github.com/WesWeCan/mu-morphing-mirror/internal/store"
	"github.com/WesWeCan/mu-morphing-mirror/internal/types"
	"github.com/WesWeCan/mu-morphing-mirror/internal/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	overlayOpts   Options
	overlayOutput string
)

var overlayCmd = &cobra.Command{
	Use:         "overlay",
	Short:       "Render a copy of a scanned video with its stored regions drawn on every frame",
	Annotations: map[string]string{needsDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runOverlay(cmd.Context(), overlayOpts, overlayOutput)
	},
}

func init() {
	overlayCmd.Flags().StringVarP(&overlayOpts.InputPath, "input", "i", "", "Path to a previously scanned video")
	overlayCmd.Flags().StringVarP(&overlayOutput, "output", "o", "overlay.mp4", "Path to output video")
	overlayCmd.Flags().IntVarP(&overlayOpts.NumEngines, "engines", "e", 2, "Number of parallel drawing workers")

	overlayCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(overlayCmd)
}

// keyframes maps every video frame to the regions of the latest keyframe at or before it.
// A keyframe that was not detected maps to no regions, so nothing is drawn until
// the next detected keyframe.
type keyframes struct {
	index []int
	boxes map[int][]regions.Region
}

func newKeyframes(frames []store.FrameStatus, rows []store.StoredRegion) keyframes {
	k := keyframes{boxes: make(map[int][]regions.Region)}
	for _, f := range frames {
		k.index = append(k.index, f.Index)
	}
	for _, r := range rows {
		k.boxes[r.FrameIndex] = append(k.boxes[r.FrameIndex], regions.Region{
			Label:  r.Label,
			X:      r.X,
			Y:      r.Y,
			Width:  r.Width,
			Height: r.Height,
		})
	}
	sort.Ints(k.index)
	return k
}

// At returns the regions to draw on frame (1-based, as counted by scan).
func (k keyframes) At(frame int) []regions.Region {
	i := sort.SearchInts(k.index, frame+1) - 1
	if i < 0 {
		return nil
	}
	return k.boxes[k.index[i]]
}

type overlayResult struct {
	Index int
	Data  []byte
	Err   error
}

func runOverlay(ctx context.Context, opts Options, output string) error {
	// Cancelling on return kills FFmpeg if we bail out early
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if _, err := os.Stat(opts.InputPath); err != nil {
		utils.ShowError("Input file does not exist", err, nil)
		return err
	}

	// Writing over the input corrupts it
	inAbs, _ := filepath.Abs(opts.InputPath)
	outAbs, _ := filepath.Abs(output)
	if inAbs == outAbs {
		return fmt.Errorf("input and output paths must be different to prevent file corruption")
	}
	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}

	videoID, err := utils.GenerateVideoID(opts.InputPath)
	if err != nil {
		utils.ShowError("Failed to generate video ID", err, nil)
		return err
	}
	info, err := DB.GetVideoInfo(ctx, videoID)
	if err != nil {
		utils.ShowError("Video has not been scanned (run `mirror scan` first)", err, nil)
		return err
	}
	frames, err := DB.ListFrames(ctx, videoID)
	if err != nil {
		utils.ShowError("Failed to load keyframes", err, nil)
		return err
	}
	rows, err := DB.GetFrameRegions(ctx, videoID, -1)
	if err != nil {
		utils.ShowError("Failed to load regions", err, nil)
		return err
	}
	kf := newKeyframes(frames, rows)
	fmt.Fprintf(os.Stderr, "🎨 Drawing regions of %d detected keyframes onto %s\n", len(kf.boxes), filepath.Base(opts.InputPath))

	encoder := utils.NewFFmpegEncoder(ctx, output, info.FPS)
	encoderIn, err := encoder.StdinPipe()
	if err != nil {
		utils.ShowError("Failed to create encoder pipe", err, nil)
		return err
	}
	if err := encoder.Start(); err != nil {
		utils.ShowError("Failed to start encoder", err, encoder)
		return err
	}

	taskChan := make(chan types.FrameTask, opts.NumEngines)
	resultsChan := make(chan overlayResult, opts.NumEngines*2)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumEngines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskChan {
				out, err := render.DrawJPEG(task.Data, kf.At(task.Index))
				select {
				case resultsChan <- overlayResult{Index: task.Index, Data: out, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// decodeErr is written before taskChan closes and read after resultsChan drains
	decoder := utils.NewFFmpegCmd(ctx, opts.InputPath)
	var decodeErr error
	go func() {
		defer close(taskChan)
		_, decodeErr = utils.StreamJpegFrames(decoder, maxFrameSize, func(index int, frame []byte) bool {
			select {
			case taskChan <- types.FrameTask{Index: index, Data: append([]byte(nil), frame...)}:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	total := utils.GetTotalFrames(ctx, opts.InputPath)
	if total <= 0 {
		total = -1
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("🎨 Overlaying"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	// Re-order: drawing workers finish out of order
	buffer := make(map[int]overlayResult)
	nextFrame := 1
	for res := range resultsChan {
		buffer[res.Index] = res
		for {
			frame, ok := buffer[nextFrame]
			if !ok {
				break
			}
			delete(buffer, nextFrame)
			if frame.Err != nil {
				utils.ShowError(fmt.Sprintf("Failed to draw frame %d", frame.Index), frame.Err, nil)
				return frame.Err
			}
			if _, err := encoderIn.Write(frame.Data); err != nil {
				utils.ShowError("Encoder rejected frame", err, encoder)
				return err
			}
			bar.Add(1)
			nextFrame++
		}
	}
	bar.Finish()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if decodeErr != nil {
		utils.ShowError("Decoder process failed", decodeErr, decoder)
		return decodeErr
	}

	encoderIn.Close()
	if err := encoder.Wait(); err != nil {
		utils.ShowError("Encoder process failed", err, encoder)
		return err
	}

	fmt.Fprintf(os.Stderr, "\n✅ Overlay written to %s\n", output)
	return nil
}
