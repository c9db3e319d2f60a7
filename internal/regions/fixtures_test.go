package regions

import (
	"github.com/WesWeCan/mu-morphing-mirror/internal/pose"
)

type pt struct{ x, y float64 }

// canonicalPoints is a person facing the camera, symmetric about x=150 below
// the head. Raw torso width is 100, raw head box is 80x40 at (110,30).
var canonicalPoints = [pose.NumLandmarks]pt{
	pose.Nose:           {150, 60},
	pose.LeftEyeInner:   {160, 30},
	pose.LeftEye:        {165, 30},
	pose.LeftEyeOuter:   {170, 30},
	pose.RightEyeInner:  {140, 30},
	pose.RightEye:       {135, 30},
	pose.RightEyeOuter:  {130, 30},
	pose.LeftEar:        {190, 50},
	pose.RightEar:       {110, 50},
	pose.MouthLeft:      {160, 70},
	pose.MouthRight:     {140, 70},
	pose.LeftShoulder:   {200, 100},
	pose.RightShoulder:  {100, 100},
	pose.LeftElbow:      {240, 170},
	pose.RightElbow:     {60, 170},
	pose.LeftWrist:      {250, 240},
	pose.RightWrist:     {50, 240},
	pose.LeftPinky:      {260, 260},
	pose.RightPinky:     {40, 260},
	pose.LeftIndex:      {250, 265},
	pose.RightIndex:     {50, 265},
	pose.LeftThumb:      {245, 250},
	pose.RightThumb:     {55, 250},
	pose.LeftHip:        {190, 250},
	pose.RightHip:       {110, 250},
	pose.LeftKnee:       {195, 350},
	pose.RightKnee:      {105, 350},
	pose.LeftAnkle:      {200, 450},
	pose.RightAnkle:     {100, 450},
	pose.LeftHeel:       {195, 465},
	pose.RightHeel:      {105, 465},
	pose.LeftFootIndex:  {205, 475},
	pose.RightFootIndex: {95, 475},
}

func poseFromPoints(points []pt) pose.Pose {
	p := pose.Pose{
		Keypoints:   make([]pose.Keypoint, len(points)),
		Keypoints3D: make([]pose.Keypoint3D, len(points)),
	}
	for i, c := range points {
		name := pose.LandmarkNames[i]
		p.Keypoints[i] = pose.Keypoint{Name: name, X: c.x, Y: c.y}
		p.Keypoints3D[i] = pose.Keypoint3D{Name: name, X: c.x / 1000, Y: c.y / 1000, Z: float64(i) / 100}
	}
	return p
}

func canonicalPose() pose.Pose {
	return poseFromPoints(canonicalPoints[:])
}

// mirroredPose reflects every keypoint about x=axis and swaps left/right names
// so that the anatomy stays consistent.
func mirroredPose(p pose.Pose, axis float64) pose.Pose {
	out := pose.Pose{Keypoints: make([]pose.Keypoint, len(p.Keypoints))}
	for i := range p.Keypoints {
		twin := mirrorIndex(i)
		src := p.Keypoints[twin]
		out.Keypoints[i] = pose.Keypoint{Name: pose.LandmarkNames[i], X: 2*axis - src.X, Y: src.Y}
	}
	return out
}

func mirrorIndex(i int) int {
	name := pose.LandmarkNames[i]
	var twin string
	switch {
	case len(name) > 5 && name[:5] == "left_":
		twin = "right_" + name[5:]
	case len(name) > 6 && name[:6] == "right_":
		twin = "left_" + name[6:]
	case name == "mouth_left":
		twin = "mouth_right"
	case name == "mouth_right":
		twin = "mouth_left"
	default:
		return i
	}
	for j, n := range pose.LandmarkNames {
		if n == twin {
			return j
		}
	}
	return i
}
