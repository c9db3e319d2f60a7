package regions

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/WesWeCan/mu-morphing-mirror/internal/pose"
)

// RawSet holds the unadjusted box of every part. A nil entry marks a part
// that could not be built from the pose.
type RawSet [PartCount]*Region

// Missing lists the parts without a raw box.
func (s RawSet) Missing() []Part {
	var missing []Part
	for _, p := range Parts() {
		if s[p] == nil {
			missing = append(missing, p)
		}
	}
	return missing
}

// List returns the present raw boxes in part order.
func (s RawSet) List() []Region {
	out := make([]Region, 0, PartCount)
	for _, r := range s {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// BuildRaw computes the bounding box of each part's keypoints.
// Keypoint scores are not consulted. A part referencing a landmark the pose
// does not carry, or one with a non-finite coordinate, is left nil so that
// Process rejects the frame instead of producing NaN geometry.
func BuildRaw(t Table, p pose.Pose) RawSet {
	// 3D keypoints are optional and all-or-nothing, so that every region's
	// Keypoints3D stays index-aligned with its Keypoints
	with3D := len(p.Keypoints3D) >= len(p.Keypoints)

	var set RawSet
	for _, part := range Parts() {
		set[part] = buildPart(part, t[part], p, with3D)
	}
	return set
}

func buildPart(part Part, indices []int, p pose.Pose, with3D bool) *Region {
	if len(indices) == 0 {
		return nil
	}

	kps := make([]pose.Keypoint, 0, len(indices))
	var kps3D []pose.Keypoint3D
	if with3D {
		kps3D = make([]pose.Keypoint3D, 0, len(indices))
	}
	xs := make([]float64, 0, len(indices))
	ys := make([]float64, 0, len(indices))

	for _, idx := range indices {
		if idx < 0 || idx >= len(p.Keypoints) {
			return nil
		}
		kp := p.Keypoints[idx]
		if !finite(kp.X) || !finite(kp.Y) {
			return nil
		}
		kps = append(kps, kp)
		xs = append(xs, kp.X)
		ys = append(ys, kp.Y)

		if with3D {
			kps3D = append(kps3D, p.Keypoints3D[idx])
		}
	}

	minX, minY := floats.Min(xs), floats.Min(ys)
	return &Region{
		Label:       RawLabel(part),
		X:           minX,
		Y:           minY,
		Width:       floats.Max(xs) - minX,
		Height:      floats.Max(ys) - minY,
		Keypoints:   kps,
		Keypoints3D: kps3D,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
