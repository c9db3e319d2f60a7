package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/WesWeCan/mu-morphing-mirror/internal/pose"
	"github.com/WesWeCan/mu-morphing-mirror/internal/regions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway Postgres container and returns a connected Store.
// It requires Docker to be running.
func startPostgres(t *testing.T) (*Store, context.Context) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Wrapped to recover from panics inside testcontainers (e.g. socket not found)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Fatalf("Docker not available, cannot run integration test: %v", err)
	}

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("mirror_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := New(ctx, connStr)
	require.NoError(t, err, "Failed to connect to store")
	t.Cleanup(func() { s.Close(ctx) })
	return s, ctx
}

func TestStoreIntegration(t *testing.T) {
	s, ctx := startPostgres(t)

	t.Run("corpses", func(t *testing.T) {
		id, err := s.CreateCorpse(ctx, "/videos/dancer.mp4", []string{"front.png", "side.png"})
		require.NoError(t, err)
		assert.Positive(t, id)

		_, err = s.CreateCorpse(ctx, "/videos/empty.mp4", nil)
		require.NoError(t, err)

		c, err := s.GetCorpse(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "/videos/dancer.mp4", c.Path)
		assert.Equal(t, []string{"front.png", "side.png"}, c.BaseImages)
		assert.False(t, c.CreatedAt.IsZero())

		all, err := s.ListCorpses(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, id, all[0].ID)
		assert.Empty(t, all[1].BaseImages)

		require.NoError(t, s.DeleteCorpse(ctx, id))
		_, err = s.GetCorpse(ctx, id)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.True(t, errors.Is(s.DeleteCorpse(ctx, id), ErrNotFound))
	})

	t.Run("frames", func(t *testing.T) {
		const videoID = "vid_123"
		require.NoError(t, s.EnsureVideoMetadata(ctx, videoID, "/tmp/video.mp4", 30))

		score := 0.9
		head := regions.Region{Label: "head_processed", X: 10, Y: 20, Width: 70, Height: 73.5,
			Keypoints: []pose.Keypoint{{Name: "nose", X: 45, Y: 50, Score: &score}}}
		legs := regions.Region{Label: regions.LegsLabel, X: 85, Y: 245, Width: 130, Height: 197.5}

		require.NoError(t, s.InsertFrame(ctx, videoID, FrameRecord{Index: 10, Status: StatusDetected, Regions: []regions.Region{head, legs}}))
		require.NoError(t, s.InsertFrame(ctx, videoID, FrameRecord{Index: 20, Status: StatusNoDetection}))
		require.NoError(t, s.InsertFrame(ctx, videoID, FrameRecord{Index: 30, Status: StatusMissingRegions, Detail: "missing regions: left_foot"}))

		got, err := s.GetFrameRegions(ctx, videoID, -1)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "head_processed", got[0].Label)
		assert.Equal(t, 73.5, got[0].Height)
		require.Len(t, got[0].Keypoints, 1)
		assert.Equal(t, "nose", got[0].Keypoints[0].Name)
		assert.Equal(t, regions.LegsLabel, got[1].Label)
		assert.Empty(t, got[1].Keypoints)

		frames, err := s.ListFrames(ctx, videoID)
		require.NoError(t, err)
		assert.Equal(t, []FrameStatus{
			{Index: 10, Status: StatusDetected},
			{Index: 20, Status: StatusNoDetection},
			{Index: 30, Status: StatusMissingRegions, Detail: "missing regions: left_foot"},
		}, frames)

		one, err := s.GetFrameRegions(ctx, videoID, 20)
		require.NoError(t, err)
		assert.Empty(t, one)

		info, err := s.GetVideoInfo(ctx, videoID)
		require.NoError(t, err)
		assert.Equal(t, 30.0, info.FPS)
		assert.Equal(t, map[string]int{StatusDetected: 1, StatusNoDetection: 1, StatusMissingRegions: 1}, info.Frames)

		// A re-scan starts from a clean slate
		require.NoError(t, s.EnsureVideoMetadata(ctx, videoID, "/tmp/video.mp4", 25))
		got, err = s.GetFrameRegions(ctx, videoID, -1)
		require.NoError(t, err)
		assert.Empty(t, got)

		_, err = s.GetVideoInfo(ctx, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, s.Reset(ctx))
		_, err := s.ListCorpses(ctx)
		assert.Error(t, err, "tables should be gone after Reset")
	})
}

type noopLogger struct{}

func (n noopLogger) Printf(format string, v ...interface{}) {}
