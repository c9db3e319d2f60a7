package regions

import (
	"fmt"

	"github.com/WesWeCan/mu-morphing-mirror/internal/pose"
)

// Table maps each part to the landmark indices that define it.
// It is static configuration: build it once with NewTable and share it read-only.
type Table [PartCount][]int

// DefaultTable is the BlazePose body part table.
var DefaultTable = MustTable(Table{
	Head: {
		pose.Nose,
		pose.LeftEyeInner, pose.LeftEye, pose.LeftEyeOuter,
		pose.RightEyeInner, pose.RightEye, pose.RightEyeOuter,
		pose.LeftEar, pose.RightEar,
		pose.MouthLeft, pose.MouthRight,
	},
	Torso:     {pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip},
	RightArm:  {pose.RightShoulder, pose.RightElbow, pose.RightWrist, pose.RightThumb},
	LeftArm:   {pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, pose.LeftThumb},
	RightHand: {pose.RightWrist, pose.RightPinky, pose.RightIndex, pose.RightThumb},
	LeftHand:  {pose.LeftWrist, pose.LeftPinky, pose.LeftIndex, pose.LeftThumb},
	RightLeg:  {pose.RightHip, pose.RightKnee, pose.RightAnkle, pose.RightFootIndex},
	LeftLeg:   {pose.LeftHip, pose.LeftKnee, pose.LeftAnkle, pose.LeftFootIndex},
	RightFoot: {pose.RightAnkle, pose.RightHeel, pose.RightFootIndex},
	LeftFoot:  {pose.LeftAnkle, pose.LeftHeel, pose.LeftFootIndex},
})

// requiredJoints lists the joints Process looks up by name for a part.
var requiredJoints = map[Part][3]string{
	RightArm: {"right_shoulder", "right_elbow", "right_wrist"},
	LeftArm:  {"left_shoulder", "left_elbow", "left_wrist"},
	RightLeg: {"right_hip", "right_knee", "right_ankle"},
	LeftLeg:  {"left_hip", "left_knee", "left_ankle"},
}

// NewTable validates t and returns it.
func NewTable(t Table) (Table, error) {
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// MustTable is like NewTable but panics on a malformed table.
// Meant for package-level tables that must fail at start-up.
func MustTable(t Table) Table {
	t, err := NewTable(t)
	if err != nil {
		panic(err)
	}
	return t
}

// Validate checks that every part lists at least one in-range landmark and
// that the named joints used by the limb heuristics are covered.
func (t Table) Validate() error {
	for _, p := range Parts() {
		indices := t[p]
		if len(indices) == 0 {
			return &ConfigError{Part: p, Reason: "no landmark indices"}
		}
		covered := make(map[string]bool, len(indices))
		for _, idx := range indices {
			if idx < 0 || idx >= pose.NumLandmarks {
				return &ConfigError{Part: p, Reason: fmt.Sprintf("landmark index %d out of range [0,%d)", idx, pose.NumLandmarks)}
			}
			covered[pose.LandmarkNames[idx]] = true
		}
		for _, joint := range requiredJoints[p] {
			if joint != "" && !covered[joint] {
				return &ConfigError{Part: p, Reason: fmt.Sprintf("joint %q not covered", joint)}
			}
		}
	}
	return nil
}
