package regions

import "github.com/WesWeCan/mu-morphing-mirror/internal/pose"

// Region is an axis-aligned box in frame pixel coordinates together with the
// keypoints it was derived from. Raw, processed and combined regions share it.
type Region struct {
	Label       string            `json:"label"`
	X           float64           `json:"x"`
	Y           float64           `json:"y"`
	Width       float64           `json:"width"`
	Height      float64           `json:"height"`
	Keypoints   []pose.Keypoint   `json:"keypoints,omitempty"`
	Keypoints3D []pose.Keypoint3D `json:"keypoints3D,omitempty"`
}

// Center returns the centroid of the box.
func (r Region) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

func (r Region) Right() float64  { return r.X + r.Width }
func (r Region) Bottom() float64 { return r.Y + r.Height }

// resize returns r scaled to w x h around the centroid of r.
func (r Region) resize(label string, w, h float64) Region {
	return Region{
		Label:       label,
		X:           r.X - (w-r.Width)/2,
		Y:           r.Y - (h-r.Height)/2,
		Width:       w,
		Height:      h,
		Keypoints:   cloneKeypoints(r.Keypoints),
		Keypoints3D: cloneKeypoints3D(r.Keypoints3D),
	}
}

func cloneKeypoints(kps []pose.Keypoint) []pose.Keypoint {
	if kps == nil {
		return nil
	}
	return append(make([]pose.Keypoint, 0, len(kps)), kps...)
}

func cloneKeypoints3D(kps []pose.Keypoint3D) []pose.Keypoint3D {
	if kps == nil {
		return nil
	}
	return append(make([]pose.Keypoint3D, 0, len(kps)), kps...)
}
