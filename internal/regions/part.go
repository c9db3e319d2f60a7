package regions

// Part identifies one of the canonical body parts.
type Part int

const (
	Head Part = iota
	Torso
	RightArm
	LeftArm
	RightHand
	LeftHand
	RightLeg
	LeftLeg
	RightFoot
	LeftFoot

	// PartCount is the number of canonical parts. Every frame needs all of them.
	PartCount
)

var partNames = [PartCount]string{
	"head",
	"torso",
	"right_arm",
	"left_arm",
	"right_hand",
	"left_hand",
	"right_leg",
	"left_leg",
	"right_foot",
	"left_foot",
}

func (p Part) String() string {
	if p < 0 || p >= PartCount {
		return "unknown"
	}
	return partNames[p]
}

// Valid reports whether p is one of the canonical parts.
func (p Part) Valid() bool {
	return p >= 0 && p < PartCount
}

// Parts returns all canonical parts in table order.
func Parts() []Part {
	parts := make([]Part, PartCount)
	for i := range parts {
		parts[i] = Part(i)
	}
	return parts
}

// ParsePart resolves a canonical label such as "left_hand".
func ParsePart(label string) (Part, bool) {
	for i, name := range partNames {
		if name == label {
			return Part(i), true
		}
	}
	return 0, false
}

// Label suffixes for traceability of where a box came from.
const (
	rawSuffix       = "_pose"
	processedSuffix = "_processed"

	HairLabel = "hair_processed"
	LegsLabel = "legs"
)

// RawLabel is the label given to the unadjusted box of p.
func RawLabel(p Part) string { return p.String() + rawSuffix }

// ProcessedLabel is the label given to the adjusted box of p.
func ProcessedLabel(p Part) string { return p.String() + processedSuffix }
