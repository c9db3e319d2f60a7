package regions

import "github.com/WesWeCan/mu-morphing-mirror/internal/pose"

// Frame is the full region set derived for one video frame.
type Frame struct {
	// Detected is false when the frame held no pose. The other fields are
	// then empty and the caller skips rendering.
	Detected  bool
	Raw       RawSet
	Processed Processed
	Legs      Region
}

// Overlay returns the regions handed to the compositor: the processed
// regions in overlay order followed by the combined legs region.
func (f Frame) Overlay() []Region {
	if !f.Detected {
		return nil
	}
	return append(f.Processed.List(), f.Legs)
}

// Derive runs the region pipeline on the first pose of a frame.
// Additional poses are ignored.
func Derive(t Table, poses []pose.Pose) (Frame, error) {
	if len(poses) == 0 {
		return Frame{}, nil
	}

	raw := BuildRaw(t, poses[0])
	processed, err := Process(raw)
	if err != nil {
		return Frame{}, err
	}

	return Frame{
		Detected:  true,
		Raw:       raw,
		Processed: processed,
		Legs:      Combine(processed),
	}, nil
}
