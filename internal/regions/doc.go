// Package regions derives overlay anchor regions from the keypoints of one pose.
//
// Pipeline: BuildRaw turns a pose into one axis-aligned box per body part,
// Process applies the per-part size heuristics around each raw centroid, and
// Combine merges both processed legs into a single "legs" region. Derive runs
// all three for a frame. Every stage returns a new value and never mutates
// its input, so a frame can be dropped at any point without leftover state.
//
// Regions come from keypoint geometry only. An earlier approach segmented the
// frame with color-coded body-part masks and raycast outward from each part
// centroid to find its edges. It was dropped because the mask model could not
// separate overlapping people, so boxes bled between persons in a crowd.
//
// No SQL, rendering or I/O is allowed in this package.
package regions
