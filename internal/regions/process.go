package regions

import (
	"fmt"
	"math"
	"strings"

	"github.com/WesWeCan/mu-morphing-mirror/internal/pose"
)

// Size heuristics. These values are part of the overlay contract; artwork is
// drawn against boxes of exactly these proportions.
const (
	headWidthOfTorso   = 0.70
	headAspect         = 1.05
	hairWidthOfHead    = 0.90
	hairHeightOfHead   = 0.55
	hairLiftOfHead     = 0.35
	torsoWidthOfHead   = 1.25
	torsoHeightScale   = 1.25
	rightArmWidthScale = 1.05
	leftArmWidthScale  = 1.45 // differs from the right arm, kept as observed
	lowerLimbScale     = 1.35
	handWidthScale     = 3
	handHeightScale    = 1.5
	legWidthScale      = 1.35
	footScale          = 1.5

	// Limbs, hands and feet never shrink below half of the head.
	minFractionOfHead = 0.50
)

// Processed holds the adjusted region of every part plus the hair region,
// which is derived from the head.
type Processed struct {
	Parts [PartCount]Region
	Hair  Region
}

// List returns the processed regions in overlay order: head, hair, then the
// remaining parts in table order.
func (p Processed) List() []Region {
	out := make([]Region, 0, PartCount+1)
	out = append(out, p.Parts[Head], p.Hair)
	for _, part := range Parts() {
		if part != Head {
			out = append(out, p.Parts[part])
		}
	}
	return out
}

// limbJoints are the three named joints whose vertical spans size an arm or leg.
type limbJoints struct {
	upper, middle, lower pose.Keypoint
}

// span is the upper segment plus the lower segment stretched by lowerLimbScale.
func (j limbJoints) span() float64 {
	return math.Abs(j.upper.Y-j.middle.Y) + math.Abs(j.middle.Y-j.lower.Y)*lowerLimbScale
}

// Process converts raw boxes into overlay regions. It fails closed: if any
// part or any required joint is absent it returns a MissingRegionsError and
// an empty Processed.
func Process(raw RawSet) (Processed, error) {
	if missing := raw.Missing(); len(missing) > 0 {
		return Processed{}, &MissingRegionsError{Parts: missing}
	}

	limbs, err := lookupLimbs(raw)
	if err != nil {
		return Processed{}, err
	}

	var out Processed

	// Head size comes from the torso, the face keypoints alone are too tight
	torsoRaw := raw[Torso]
	headW := torsoRaw.Width * headWidthOfTorso
	head := raw[Head].resize(ProcessedLabel(Head), headW, headW*headAspect)
	out.Parts[Head] = head

	hairW := head.Width * hairWidthOfHead
	out.Hair = Region{
		Label:       HairLabel,
		X:           head.X - (hairW-head.Width)/2,
		Y:           head.Y - head.Height*hairLiftOfHead,
		Width:       hairW,
		Height:      head.Height * hairHeightOfHead,
		Keypoints:   cloneKeypoints(head.Keypoints),
		Keypoints3D: cloneKeypoints3D(head.Keypoints3D),
	}

	out.Parts[Torso] = torsoRaw.resize(ProcessedLabel(Torso), head.Height*torsoWidthOfHead, torsoRaw.Height*torsoHeightScale)

	minW := head.Width * minFractionOfHead
	minH := head.Height * minFractionOfHead

	armScale := map[Part]float64{RightArm: rightArmWidthScale, LeftArm: leftArmWidthScale}
	for _, part := range []Part{RightArm, LeftArm} {
		r := raw[part]
		w := math.Max(r.Width*armScale[part], minW)
		h := math.Max(limbs[part].span(), minH)
		out.Parts[part] = r.resize(ProcessedLabel(part), w, h)
	}

	// Hands, legs and feet clamp both sides against the head width
	for _, part := range []Part{RightHand, LeftHand} {
		r := raw[part]
		w := math.Max(r.Width*handWidthScale, minW)
		h := math.Max(r.Height*handHeightScale, minW)
		out.Parts[part] = r.resize(ProcessedLabel(part), w, h)
	}

	for _, part := range []Part{RightLeg, LeftLeg} {
		r := raw[part]
		w := math.Max(r.Width*legWidthScale, minW)
		h := math.Max(limbs[part].span(), minW)
		out.Parts[part] = r.resize(ProcessedLabel(part), w, h)
	}

	for _, part := range []Part{RightFoot, LeftFoot} {
		r := raw[part]
		w := math.Max(r.Width*footScale, minW)
		h := math.Max(r.Height*footScale, minW)
		out.Parts[part] = r.resize(ProcessedLabel(part), w, h)
	}

	return out, nil
}

// lookupLimbs resolves shoulder/elbow/wrist and hip/knee/ankle by name.
func lookupLimbs(raw RawSet) (map[Part]limbJoints, error) {
	limbs := make(map[Part]limbJoints, len(requiredJoints))
	var missingParts []Part
	var missingJoints []string

	for _, part := range []Part{RightArm, LeftArm, RightLeg, LeftLeg} {
		names := requiredJoints[part]
		var found [3]pose.Keypoint
		ok := true
		for i, name := range names {
			kp, exists := pose.Find(raw[part].Keypoints, name)
			if !exists {
				ok = false
				missingJoints = append(missingJoints, name)
				continue
			}
			found[i] = kp
		}
		if !ok {
			missingParts = append(missingParts, part)
			continue
		}
		limbs[part] = limbJoints{upper: found[0], middle: found[1], lower: found[2]}
	}

	if len(missingParts) > 0 {
		return nil, &MissingRegionsError{
			Parts:  missingParts,
			Detail: fmt.Sprintf("joints not found: %s", strings.Join(missingJoints, ", ")),
		}
	}
	return limbs, nil
}
