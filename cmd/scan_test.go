package cmd

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/WesWeCan/mu-morphing-mirror/internal/pose"
	"github.com/WesWeCan/mu-morphing-mirror/internal/regions"
	"github.com/WesWeCan/mu-morphing-mirror/internal/store"
	"github.com/WesWeCan/mu-morphing-mirror/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink collects stored frames in call order.
type recordingSink struct {
	frames []store.FrameRecord
	err    error
}

func (s *recordingSink) InsertFrame(ctx context.Context, videoID string, f store.FrameRecord) error {
	s.frames = append(s.frames, f)
	return s.err
}

// fullPose returns a pose with every landmark present and named.
func fullPose() pose.Pose {
	var p pose.Pose
	for i, name := range pose.LandmarkNames {
		p.Keypoints = append(p.Keypoints, pose.Keypoint{Name: name, X: 100 + float64(i%7)*10, Y: 40 + float64(i)*12})
	}
	return p
}

func result(index int, poses []pose.Pose, err error) scanResult {
	return scanResult{PoseResult: types.PoseResult{Index: index, Poses: poses, Err: err}}
}

func TestProcessResults_Ordering(t *testing.T) {
	results := make(chan scanResult, 8)
	// Workers finish out of order
	results <- result(30, []pose.Pose{fullPose()}, nil)
	results <- result(10, nil, nil)
	results <- result(40, nil, errors.New("pose worker error: timeout"))
	results <- result(20, []pose.Pose{{Keypoints: fullPose().Keypoints[:11]}}, nil)
	close(results)

	sink := &recordingSink{}
	sum := processResults(context.Background(), results, sink, "vid", 10, "")

	require.Len(t, sink.frames, 4)
	for i, f := range sink.frames {
		assert.Equal(t, (i+1)*10, f.Index, "frames must be stored in order")
	}

	assert.Equal(t, store.StatusNoDetection, sink.frames[0].Status)
	assert.Equal(t, store.StatusMissingRegions, sink.frames[1].Status)
	assert.Contains(t, sink.frames[1].Detail, "missing regions")
	assert.Equal(t, store.StatusDetected, sink.frames[2].Status)
	assert.Len(t, sink.frames[2].Regions, 12)
	assert.Equal(t, regions.LegsLabel, sink.frames[2].Regions[11].Label)
	assert.Equal(t, store.StatusWorkerError, sink.frames[3].Status)

	assert.Equal(t, scanSummary{Detected: 1, NoDetection: 1, MissingRegions: 1, WorkerErrors: 1, Regions: 12}, sum)
}

func TestProcessResults_Hole(t *testing.T) {
	// Frame 10 never arrives: nothing after it may be stored out of order
	results := make(chan scanResult, 2)
	results <- result(20, nil, nil)
	results <- result(30, nil, nil)
	close(results)

	sink := &recordingSink{}
	sum := processResults(context.Background(), results, sink, "vid", 10, "")
	assert.Empty(t, sink.frames)
	assert.Equal(t, scanSummary{}, sum)
}

func TestDeriveRecord_MultiplePoses(t *testing.T) {
	second := fullPose()
	for i := range second.Keypoints {
		second.Keypoints[i].X += 500
	}
	var sum scanSummary
	rec := deriveRecord(result(5, []pose.Pose{fullPose(), second}, nil), &sum)

	require.Equal(t, store.StatusDetected, rec.Status)
	only, err := regions.Derive(regions.DefaultTable, []pose.Pose{fullPose()})
	require.NoError(t, err)
	assert.Equal(t, only.Overlay(), rec.Regions, "only the first pose is used")
}

func TestFmtTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00"},
		{65, "00:01:05"},
		{3661, "01:01:01"},
	}

	for _, tt := range tests {
		if got := fmtTime(tt.seconds); got != tt.want {
			t.Errorf("fmtTime(%v) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

func TestValidateScanFlags(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "video.mp4")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{
			name:    "Valid options",
			opts:    Options{InputPath: tmpFile.Name(), NthFrame: 1, NumEngines: 2},
			wantErr: false,
		},
		{
			name:    "Input file does not exist",
			opts:    Options{InputPath: "nonexistent.mp4"},
			wantErr: true,
		},
		{
			name:    "Input is directory",
			opts:    Options{InputPath: tmpDir},
			wantErr: true,
		},
		{
			name:    "Invalid NthFrame",
			opts:    Options{InputPath: tmpFile.Name(), NthFrame: 0},
			wantErr: true,
		},
		{
			name:    "Debug without data dir",
			opts:    Options{InputPath: tmpFile.Name(), NthFrame: 1, DebugScreenshots: true},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateScanFlags(&tt.opts); (err != nil) != tt.wantErr {
				t.Errorf("validateScanFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateScanFlags_Defaults(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "video.mp4")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	opts := Options{InputPath: tmpFile.Name(), NthFrame: 3}
	require.NoError(t, validateScanFlags(&opts))
	assert.Equal(t, 1, opts.NumEngines)
	assert.Equal(t, defaultWorkerCmd, opts.WorkerCmd)
}
