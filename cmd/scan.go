package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/WesWeCan/mu-morphing-mirror/internal/log"
	"github.com/WesWeCan/mu-morphing-mirror/internal/regions"
	"github.com/WesWeCan/mu-morphing-mirror/internal/render"
	"github.com/WesWeCan/mu-morphing-mirror/internal/store"
	"github.com/WesWeCan/mu-morphing-mirror/internal/types"
	"github.com/WesWeCan/mu-morphing-mirror/internal/utils"
	"github.com/WesWeCan/mu-morphing-mirror/internal/worker"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const megabyte = 1024 * 1024

// maxFrameSize bounds a single decoded JPEG frame.
const maxFrameSize = 64 * megabyte

const defaultWorkerCmd = "python3 -u python/pose_worker.py"

var scanOpts Options

var scanCmd = &cobra.Command{
	Use:         "scan",
	Short:       "Scan a video and store the body-part regions of every keyframe",
	Annotations: map[string]string{needsDB: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runScan(cmd.Context(), scanOpts)
	},
}

func init() {
	scanCmd.Flags().StringVarP(&scanOpts.InputPath, "input", "i", "", "Path to video")
	scanCmd.Flags().IntVarP(&scanOpts.NthFrame, "nth-frame", "n", 10, "Keyframe interval (e.g. scan every 10th frame)")
	scanCmd.Flags().IntVarP(&scanOpts.NumEngines, "engines", "e", 1, "Number of parallel pose estimator workers")
	scanCmd.Flags().StringVar(&scanOpts.WorkerCmd, "worker-cmd", defaultWorkerCmd, "Pose estimator command speaking the length-prefixed frame protocol")
	scanCmd.Flags().BoolVarP(&scanOpts.DebugScreenshots, "debug-screenshots", "d", false, "Save keyframes with their regions drawn to <data-dir>/debug_frames/")
	scanCmd.Flags().StringVar(&scanOpts.DataDir, "data-dir", "/data", "Directory for generated files")

	scanCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(scanCmd)
}

// Buffer pool to reduce GC pressure during scanning
var frameBufferPool = sync.Pool{
	New: func() interface{} { return make([]byte, 0, megabyte) },
}

// scanResult wraps the output from a worker to be sent to the aggregator
type scanResult struct {
	types.PoseResult
	JPEG []byte // kept only for debug screenshots
}

// frameSink persists keyframe outcomes. *store.Store satisfies it.
type frameSink interface {
	InsertFrame(ctx context.Context, videoID string, f store.FrameRecord) error
}

// scanSummary counts keyframe outcomes for the final report.
type scanSummary struct {
	Detected       int
	NoDetection    int
	MissingRegions int
	WorkerErrors   int
	Regions        int
}

// runScan orchestrates the video scanning process: DB registration, worker pool, FFmpeg streaming, and progress tracking.
func runScan(ctx context.Context, opts Options) error {
	if err := validateScanFlags(&opts); err != nil {
		utils.ShowError("Invalid scan options", err, nil)
		return err
	}
	argv, err := utils.SplitCommandLine(opts.WorkerCmd)
	if err == nil && len(argv) == 0 {
		err = errors.New("empty command")
	}
	if err != nil {
		err = fmt.Errorf("invalid --worker-cmd %q: %w", opts.WorkerCmd, err)
		utils.ShowError("Invalid scan options", err, nil)
		return err
	}

	videoID, err := utils.GenerateVideoID(opts.InputPath)
	if err != nil {
		utils.ShowError("Failed to generate video ID", err, nil)
		return err
	}

	fps, err := utils.GetVideoFPS(ctx, opts.InputPath)
	if err != nil {
		utils.ShowError("Failed to determine video FPS", err, nil)
		return err
	}

	if err := DB.EnsureVideoMetadata(ctx, videoID, opts.InputPath, fps); err != nil {
		utils.ShowError("Failed to register video metadata", err, nil)
		return err
	}
	log.Info(log.Fields{"run_id": runID, "video_id": videoID[:12], "fps": fps}, "scan started")
	fmt.Fprintf(os.Stderr, "📼 Processing Video ID: %s\n", videoID[:12])
	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d Pose Engines...\n", opts.NumEngines)

	totalVideoFrames := utils.GetTotalFrames(ctx, opts.InputPath)
	if totalVideoFrames <= 0 {
		// Unknown total: the bar renders as a spinner
		totalVideoFrames = -1
	}

	bar := progressbar.NewOptions(totalVideoFrames,
		progressbar.OptionSetDescription("🔍 Mirror Scanning"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	debugDir := ""
	if opts.DebugScreenshots {
		debugDir = filepath.Join(opts.DataDir, "debug_frames", videoID)
		if err := os.MkdirAll(debugDir, 0755); err != nil {
			utils.ShowError("Failed to create debug directory", err, nil)
			return err
		}
	}

	taskChan := make(chan types.FrameTask, opts.NumEngines)
	resultsChan := make(chan scanResult, opts.NumEngines*2)
	var wg sync.WaitGroup

	// Aggregator must run concurrently to prevent deadlock on resultsChan
	var summary scanSummary
	aggDone := make(chan struct{})
	go func() {
		summary = processResults(ctx, resultsChan, DB, videoID, opts.NthFrame, debugDir)
		close(aggDone)
	}()

	for i := 0; i < opts.NumEngines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			startWorker(ctx, workerID, argv, taskChan, resultsChan, opts.DebugScreenshots)
		}(i)
	}

	sentFrames := 0
	start := time.Now()
	ffmpeg := utils.NewFFmpegCmd(ctx, opts.InputPath)
	totalFrames, decodeErr := utils.StreamJpegFrames(ffmpeg, maxFrameSize, func(index int, frame []byte) bool {
		bar.Add(1)
		if index%opts.NthFrame != 0 {
			return true
		}

		buf := frameBufferPool.Get().([]byte)
		if cap(buf) < len(frame) {
			buf = make([]byte, len(frame))
		}
		buf = buf[:len(frame)]
		copy(buf, frame)

		select {
		case taskChan <- types.FrameTask{Index: index, Data: buf}:
			sentFrames++
			return true
		case <-ctx.Done():
			return false
		}
	})

	close(taskChan)
	wg.Wait()
	close(resultsChan)
	<-aggDone
	bar.Finish()

	if ctx.Err() != nil {
		fmt.Fprintf(os.Stderr, "\n🛑 Scan interrupted after %d keyframes.\n", sentFrames)
		return ctx.Err()
	}
	if decodeErr != nil {
		utils.Die("FFmpeg decoding failed", decodeErr, ffmpeg)
	}

	printSummary(summary, sentFrames, totalFrames, fps, time.Since(start))
	log.Info(log.Fields{
		"run_id":          runID,
		"video_id":        videoID[:12],
		"keyframes":       sentFrames,
		"detected":        summary.Detected,
		"missing_regions": summary.MissingRegions,
	}, "scan complete")
	return nil
}

// startWorker manages the lifecycle of a single pose estimator process.
// It reads tasks from the channel, sends them to the estimator, and forwards the poses to the aggregator.
func startWorker(ctx context.Context, id int, argv []string, tasks <-chan types.FrameTask, results chan<- scanResult, keepFrames bool) {
	w, err := worker.NewPoseWorker(ctx, id, argv)
	if err != nil {
		utils.Die("Worker startup failed", err, nil)
	}
	defer w.Close()

	for task := range tasks {
		poses, err := w.ProcessFrame(task.Data)

		res := scanResult{PoseResult: types.PoseResult{Index: task.Index, Poses: poses}}
		if keepFrames {
			res.JPEG = append([]byte(nil), task.Data...)
		}
		// Return buffer to pool as soon as the estimator is done with it
		frameBufferPool.Put(task.Data[:0])

		if err != nil {
			if ctx.Err() != nil {
				// Cancelled: the estimator was killed under us
				res.Err = ctx.Err()
				results <- res
				continue
			}
			if !errors.Is(err, worker.ErrEstimator) {
				// Wait for process to exit and capture final stderr logs
				w.Close()
				utils.Die("Pose estimator crashed", err, w.Cmd)
			}
			log.Warn(log.Fields{"run_id": runID, "worker": id, "frame": task.Index, "error": err.Error()}, "estimator failed on frame")
			res.Err = err
		}

		// Always send, even on failure, so the aggregator never waits on a hole
		results <- res
	}
}

// processResults reorders worker output, derives the regions of each keyframe
// in frame order and persists them.
func processResults(ctx context.Context, results <-chan scanResult, sink frameSink, videoID string, nth int, debugDir string) scanSummary {
	// Buffer for re-ordering frames (Worker 2 might finish before Worker 1)
	buffer := make(map[int]scanResult)
	nextFrame := nth
	var sum scanSummary

	for res := range results {
		buffer[res.Index] = res

		for {
			frame, ok := buffer[nextFrame]
			if !ok {
				break
			}
			delete(buffer, nextFrame)
			nextFrame += nth

			rec := deriveRecord(frame, &sum)
			if err := sink.InsertFrame(ctx, videoID, rec); err != nil {
				if ctx.Err() != nil {
					continue
				}
				utils.Die(fmt.Sprintf("Failed to persist frame %d", rec.Index), err, nil)
			}

			if debugDir != "" && len(frame.JPEG) > 0 && rec.Status == store.StatusDetected {
				writeDebugFrame(debugDir, rec, frame.JPEG)
			}
		}
	}

	if len(buffer) > 0 {
		log.Warn(log.Fields{"run_id": runID, "pending": len(buffer)}, "results left unordered at end of scan")
	}
	return sum
}

// deriveRecord turns one worker result into the record that gets stored.
func deriveRecord(res scanResult, sum *scanSummary) store.FrameRecord {
	rec := store.FrameRecord{Index: res.Index}
	if res.Err != nil {
		sum.WorkerErrors++
		rec.Status = store.StatusWorkerError
		rec.Detail = res.Err.Error()
		return rec
	}

	frame, err := regions.Derive(regions.DefaultTable, res.Poses)
	switch {
	case err != nil:
		sum.MissingRegions++
		rec.Status = store.StatusMissingRegions
		rec.Detail = err.Error()
		log.Debug(log.Fields{"run_id": runID, "frame": res.Index, "error": err.Error()}, "frame skipped")
	case !frame.Detected:
		sum.NoDetection++
		rec.Status = store.StatusNoDetection
	default:
		sum.Detected++
		rec.Status = store.StatusDetected
		rec.Regions = frame.Overlay()
		sum.Regions += len(rec.Regions)
	}
	return rec
}

// writeDebugFrame saves the keyframe with its regions drawn. Failures only warn.
func writeDebugFrame(dir string, rec store.FrameRecord, jpeg []byte) {
	drawn, err := render.DrawJPEG(jpeg, rec.Regions)
	if err != nil {
		log.Warn(log.Fields{"run_id": runID, "frame": rec.Index, "error": err.Error()}, "debug frame not drawn")
		return
	}
	name := filepath.Join(dir, fmt.Sprintf("frame_%06d.jpg", rec.Index))
	if err := os.WriteFile(name, drawn, 0644); err != nil {
		log.Warn(log.Fields{"run_id": runID, "frame": rec.Index, "error": err.Error()}, "debug frame not written")
	}
}

func printSummary(sum scanSummary, sent, total int, fps float64, elapsed time.Duration) {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "📊 SCAN SUMMARY\n")
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "🎞️  Keyframes:          %d of %d (%s of video)\n", sent, total, fmtTime(float64(total)/fps))
	fmt.Fprintf(os.Stderr, "🧍 Detected:           %d (%d regions)\n", sum.Detected, sum.Regions)
	fmt.Fprintf(os.Stderr, "👻 No pose:            %d\n", sum.NoDetection)
	fmt.Fprintf(os.Stderr, "🧩 Missing regions:    %d\n", sum.MissingRegions)
	if sum.WorkerErrors > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  Estimator errors:   %d\n", sum.WorkerErrors)
	}
	fmt.Fprintf(os.Stderr, "⏱️  Elapsed:            %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

// validateScanFlags ensures all CLI arguments are valid before starting heavy processes.
func validateScanFlags(opts *Options) error {
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %w", err)
		}
		return fmt.Errorf("unable to access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path %s is a directory, expected a video file", opts.InputPath)
	}
	if opts.NthFrame < 1 {
		return fmt.Errorf("invalid nth-frame interval: must be >= 1, got %d", opts.NthFrame)
	}
	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}
	if opts.WorkerCmd == "" {
		opts.WorkerCmd = defaultWorkerCmd
	}
	if opts.DebugScreenshots && opts.DataDir == "" {
		return errors.New("debug screenshots need a data directory")
	}
	return nil
}

func fmtTime(seconds float64) string {
	duration := time.Duration(seconds * float64(time.Second))
	h := int(duration.Hours())
	m := int(duration.Minutes()) % 60
	s := int(duration.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
