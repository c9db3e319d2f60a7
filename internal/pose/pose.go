// Package pose holds the keypoint data handed over by the pose-estimation model.
package pose

import (
	"encoding/json"
	"fmt"
	"io"
)

// Keypoint is a named 2D joint estimate in frame pixel coordinates.
type Keypoint struct {
	Name  string   `json:"name"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Score *float64 `json:"score,omitempty"`
}

// Keypoint3D is a named joint estimate in model world coordinates.
type Keypoint3D struct {
	Name  string   `json:"name"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Z     float64  `json:"z"`
	Score *float64 `json:"score,omitempty"`
}

// Pose is the full set of keypoints for one detected person.
// Both slices are indexed by landmark position, not by name.
type Pose struct {
	Keypoints   []Keypoint   `json:"keypoints"`
	Keypoints3D []Keypoint3D `json:"keypoints3D,omitempty"`
}

// Find returns the first keypoint with the given name.
func Find(kps []Keypoint, name string) (Keypoint, bool) {
	for _, kp := range kps {
		if kp.Name == name {
			return kp, true
		}
	}
	return Keypoint{}, false
}

// Decode reads a JSON document holding either a single pose object or an array of poses.
func Decode(r io.Reader) ([]Pose, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode pose JSON: %w", err)
	}

	// The estimator emits an array, hand-written fixtures often hold one pose
	var poses []Pose
	if err := json.Unmarshal(raw, &poses); err == nil {
		return poses, nil
	}

	var single Pose
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("pose JSON is neither an object nor an array: %w", err)
	}
	return []Pose{single}, nil
}
