package regions

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WesWeCan/mu-morphing-mirror/internal/pose"
)

const epsilon = 1e-9

func processCanonical(t *testing.T) (RawSet, Processed) {
	t.Helper()
	raw := BuildRaw(DefaultTable, canonicalPose())
	processed, err := Process(raw)
	require.NoError(t, err)
	return raw, processed
}

func mustProcess(t *testing.T, raw RawSet) Processed {
	t.Helper()
	processed, err := Process(raw)
	require.NoError(t, err)
	return processed
}

func TestProcess_KeypointsNotShared(t *testing.T) {
	raw, processed := processCanonical(t)

	processed.Parts[Head].Keypoints[0].X = -1
	processed.Parts[Head].Keypoints3D[0].Z = -1
	processed.Parts[LeftArm].Keypoints[0].Y = -1

	assert.NotEqual(t, -1.0, raw[Head].Keypoints[0].X, "processed head aliases raw head")
	assert.NotEqual(t, -1.0, raw[Head].Keypoints3D[0].Z, "processed head 3D aliases raw head")
	assert.NotEqual(t, -1.0, processed.Hair.Keypoints[0].X, "hair aliases processed head")
	assert.NotEqual(t, -1.0, processed.Hair.Keypoints3D[0].Z, "hair 3D aliases processed head")
	assert.NotEqual(t, -1.0, raw[LeftArm].Keypoints[0].Y, "processed arm aliases raw arm")
}

func TestProcess_HeadFromTorso(t *testing.T) {
	raw, processed := processCanonical(t)
	require.Equal(t, 100.0, raw[Torso].Width)
	require.Equal(t, 80.0, raw[Head].Width)
	require.Equal(t, 40.0, raw[Head].Height)

	head := processed.Parts[Head]
	assert.Equal(t, "head_processed", head.Label)
	assert.InDelta(t, 70.0, head.Width, epsilon)
	assert.InDelta(t, 73.5, head.Height, epsilon)
	assert.InDelta(t, raw[Head].X+5, head.X, epsilon)
	assert.InDelta(t, 13.25, head.Y, epsilon)
}

func TestProcess_Hair(t *testing.T) {
	_, processed := processCanonical(t)
	head := processed.Parts[Head]
	hair := processed.Hair

	assert.Equal(t, HairLabel, hair.Label)
	assert.InDelta(t, 63.0, hair.Width, epsilon)
	assert.InDelta(t, 40.425, hair.Height, epsilon)
	assert.InDelta(t, head.X+3.5, hair.X, epsilon)
	assert.InDelta(t, head.Y-25.725, hair.Y, epsilon)

	// Hair shares the head's horizontal center
	hx, _ := hair.Center()
	headX, _ := head.Center()
	assert.InDelta(t, headX, hx, epsilon)
	assert.Equal(t, head.Keypoints, hair.Keypoints)
}

func TestProcess_PartSizes(t *testing.T) {
	_, processed := processCanonical(t)

	tests := []struct {
		part          Part
		width, height float64
	}{
		{Torso, 91.875, 187.5},
		{RightArm, 52.5, 164.5},
		{LeftArm, 72.5, 164.5},
		{RightHand, 45, 37.5},
		{LeftHand, 45, 37.5},
		{RightLeg, 35, 235}, // width clamped from 20.25
		{LeftLeg, 35, 235},
		{RightFoot, 35, 37.5}, // width clamped from 15
		{LeftFoot, 35, 37.5},
	}

	for _, tt := range tests {
		t.Run(tt.part.String(), func(t *testing.T) {
			got := processed.Parts[tt.part]
			assert.Equal(t, ProcessedLabel(tt.part), got.Label)
			assert.InDelta(t, tt.width, got.Width, epsilon, "width")
			assert.InDelta(t, tt.height, got.Height, epsilon, "height")
		})
	}
}

func TestProcess_ArmAsymmetryOnMirroredInput(t *testing.T) {
	p := mirroredPose(canonicalPose(), 150)
	raw := BuildRaw(DefaultTable, p)
	require.InDelta(t, raw[RightArm].Width, raw[LeftArm].Width, epsilon)

	processed, err := Process(raw)
	require.NoError(t, err)

	right := processed.Parts[RightArm].Width
	left := processed.Parts[LeftArm].Width
	assert.InDelta(t, 1.45/1.05, left/right, epsilon)
	assert.InDelta(t, processed.Parts[RightArm].Height, processed.Parts[LeftArm].Height, epsilon)
}

func TestProcess_ArmClampUsesHeadHeight(t *testing.T) {
	p := canonicalPose()
	// Collapse the right arm onto the shoulder height
	for _, idx := range []int{pose.RightElbow, pose.RightWrist, pose.RightThumb} {
		p.Keypoints[idx].X = 100
		p.Keypoints[idx].Y = 100
	}

	processed, err := Process(BuildRaw(DefaultTable, p))
	require.NoError(t, err)

	head := processed.Parts[Head]
	arm := processed.Parts[RightArm]
	assert.InDelta(t, head.Width*0.5, arm.Width, epsilon)
	assert.InDelta(t, head.Height*0.5, arm.Height, epsilon)
}

func TestProcess_MissingRegion(t *testing.T) {
	for _, part := range Parts() {
		t.Run(part.String(), func(t *testing.T) {
			raw := BuildRaw(DefaultTable, canonicalPose())
			raw[part] = nil

			processed, err := Process(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingRegions))

			var missing *MissingRegionsError
			require.True(t, errors.As(err, &missing))
			assert.Equal(t, []Part{part}, missing.Parts)
			assert.Equal(t, Processed{}, processed)
		})
	}
}

func TestProcess_MissingNamedJoint(t *testing.T) {
	p := canonicalPose()
	p.Keypoints[pose.RightElbow].Name = ""
	p.Keypoints[pose.LeftKnee].Name = "knee"

	processed, err := Process(BuildRaw(DefaultTable, p))
	require.ErrorIs(t, err, ErrMissingRegions)
	assert.Equal(t, Processed{}, processed)

	var missing *MissingRegionsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []Part{RightArm, LeftLeg}, missing.Parts)
	assert.Contains(t, err.Error(), "right_elbow")
	assert.Contains(t, err.Error(), "left_knee")
}

func TestProcess_ListOrder(t *testing.T) {
	_, processed := processCanonical(t)

	var labels []string
	for _, r := range processed.List() {
		labels = append(labels, r.Label)
	}
	assert.Equal(t, []string{
		"head_processed", "hair_processed", "torso_processed",
		"right_arm_processed", "left_arm_processed",
		"right_hand_processed", "left_hand_processed",
		"right_leg_processed", "left_leg_processed",
		"right_foot_processed", "left_foot_processed",
	}, labels)
}

// Random poses exercise the clamps and the centroid invariant on geometry
// the canonical fixture does not cover.
func TestProcess_InvariantsOnRandomPoses(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		points := make([]pt, pose.NumLandmarks)
		for j := range points {
			points[j] = pt{rng.Float64() * 640, rng.Float64() * 480}
		}
		raw := BuildRaw(DefaultTable, poseFromPoints(points))
		processed, err := Process(raw)
		require.NoError(t, err)

		head := processed.Parts[Head]
		minW := head.Width * 0.5
		minH := head.Height * 0.5

		for _, part := range Parts() {
			got := processed.Parts[part]
			assert.GreaterOrEqual(t, got.Width, 0.0, "%s width", part)
			assert.GreaterOrEqual(t, got.Height, 0.0, "%s height", part)

			// Centroid of the raw box is preserved for every part
			rx, ry := raw[part].Center()
			px, py := got.Center()
			assert.InDelta(t, rx, px, 1e-6, "%s center x", part)
			assert.InDelta(t, ry, py, 1e-6, "%s center y", part)

			switch part {
			case RightArm, LeftArm:
				assert.GreaterOrEqual(t, got.Width, minW-epsilon, "%s min width", part)
				assert.GreaterOrEqual(t, got.Height, minH-epsilon, "%s min height", part)
			case RightHand, LeftHand, RightLeg, LeftLeg, RightFoot, LeftFoot:
				assert.GreaterOrEqual(t, got.Width, minW-epsilon, "%s min width", part)
				assert.GreaterOrEqual(t, got.Height, minW-epsilon, "%s min height", part)
			}
		}
	}
}
