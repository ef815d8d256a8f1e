// Package pose converts per-frame body skeletons into the joint angles
// consumed by the REBA classifier.
package pose

// Joint indexes a landmark in the fixed-size skeleton array. The numbering
// matches the upstream estimator's published 33-point layout.
type Joint int

const (
	Nose Joint = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex

	NumJoints
)

// MinConfidence is the floor below which a landmark is treated as missing.
const MinConfidence = 0.5

// Landmark is a single detected joint position. Coordinates are in the
// estimator's normalised image frame; Confidence is in [0,1].
type Landmark struct {
	X          float64
	Y          float64
	Z          float64
	Confidence float64
}

// Skeleton is one frame's full landmark set, produced by the upstream pose
// estimator. Immutable once produced.
type Skeleton [NumJoints]Landmark

// At returns the landmark for j and whether it passed the confidence floor.
func (s *Skeleton) At(j Joint) (Landmark, bool) {
	if s == nil || j < 0 || j >= NumJoints {
		return Landmark{}, false
	}
	lm := s[j]
	if lm.Confidence < MinConfidence {
		return Landmark{}, false
	}
	return lm, true
}

// Side selects which arm and leg the single-sided metrics are computed from.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Valid reports whether s is a recognised side label.
func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

func midpoint(a, b Landmark) Landmark {
	return Landmark{
		X: (a.X + b.X) / 2,
		Y: (a.Y + b.Y) / 2,
		Z: (a.Z + b.Z) / 2,
	}
}
