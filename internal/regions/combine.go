package regions

import (
	"math"

	"github.com/WesWeCan/mu-morphing-mirror/internal/pose"
)

// Combine merges the processed left and right legs into one region. The
// union is shortened by the mean processed foot height so the legs artwork
// stops above the feet artwork.
func Combine(p Processed) Region {
	left, right := p.Parts[LeftLeg], p.Parts[RightLeg]

	x := math.Min(left.X, right.X)
	y := math.Min(left.Y, right.Y)
	w := math.Max(left.Right(), right.Right()) - x
	h := math.Max(left.Bottom(), right.Bottom()) - y
	h -= (p.Parts[LeftFoot].Height + p.Parts[RightFoot].Height) / 2

	kps := make([]pose.Keypoint, 0, len(left.Keypoints)+len(right.Keypoints))
	kps = append(append(kps, left.Keypoints...), right.Keypoints...)
	kps3D := make([]pose.Keypoint3D, 0, len(left.Keypoints3D)+len(right.Keypoints3D))
	kps3D = append(append(kps3D, left.Keypoints3D...), right.Keypoints3D...)

	return Region{
		Label:       LegsLabel,
		X:           x,
		Y:           y,
		Width:       w,
		Height:      h,
		Keypoints:   kps,
		Keypoints3D: kps3D,
	}
}
