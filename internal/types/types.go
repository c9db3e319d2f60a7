package types

import "github.com/WesWeCan/mu-morphing-mirror/internal/pose"

// FrameTask represents a single JPEG frame sent to a pose worker
type FrameTask struct {
	Index int
	Data  []byte
}

// PoseResult is what a pose worker returns for one frame
type PoseResult struct {
	Index int
	Poses []pose.Pose
	Err   error // worker-side failure for this frame only
}
