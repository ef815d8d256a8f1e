package pose

import "math"

// epsilon guards the arccos denominator against near-zero segment lengths.
const epsilon = 1e-8

// Angle is an optional degree value. Valid is false when any required
// landmark was missing or below the confidence floor; an invalid angle is
// never the same thing as zero degrees.
type Angle struct {
	Degrees float64
	Valid   bool
}

func angle(deg float64) Angle { return Angle{Degrees: deg, Valid: true} }

// AngleSet holds the six joint angles REBA scores from, computed once per
// frame. Independent metrics fail independently: a missing ankle only
// invalidates Leg.
type AngleSet struct {
	Neck     Angle
	Trunk    Angle
	UpperArm Angle
	Forearm  Angle
	Wrist    Angle
	Leg      Angle
}

// Complete reports whether every angle in the set is defined.
func (a AngleSet) Complete() bool {
	return a.Neck.Valid && a.Trunk.Valid && a.UpperArm.Valid &&
		a.Forearm.Valid && a.Wrist.Valid && a.Leg.Valid
}

// vertexAngle returns the angle in degrees at p2 between segments p2->p1 and
// p2->p3. The cosine is clamped to [-1,1] to tolerate floating-point drift.
func vertexAngle(p1, p2, p3 Landmark) float64 {
	v1x, v1y, v1z := p1.X-p2.X, p1.Y-p2.Y, p1.Z-p2.Z
	v2x, v2y, v2z := p3.X-p2.X, p3.Y-p2.Y, p3.Z-p2.Z

	dot := v1x*v2x + v1y*v2y + v1z*v2z
	n1 := math.Sqrt(v1x*v1x + v1y*v1y + v1z*v1z)
	n2 := math.Sqrt(v2x*v2x + v2y*v2y + v2z*v2z)

	cos := dot / (n1*n2 + epsilon)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// angleFromVertical returns the angle in degrees between the segment
// lower->upper and the downward vertical. Only X/Y are used: the estimator's
// Z is too noisy for gravity-relative metrics, and image-frame Y increases
// downward so "up" is (0,-1).
func angleFromVertical(upper, lower Landmark) float64 {
	vx, vy := upper.X-lower.X, upper.Y-lower.Y

	// dot with the unit vector (0,-1)
	dot := -vy
	n := math.Sqrt(vx*vx + vy*vy)

	cos := dot / (n + epsilon)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// ComputeAngles derives the six REBA angles from one skeleton. Single-sided
// metrics (upper arm, forearm, wrist, leg) use the requested side only.
func ComputeAngles(skel *Skeleton, side Side) AngleSet {
	var out AngleSet
	if skel == nil {
		return out
	}
	out.Neck = neckAngle(skel)
	out.Trunk = trunkAngle(skel)
	out.UpperArm = upperArmAngle(skel, side)
	out.Forearm = forearmAngle(out.UpperArm)
	out.Wrist = wristAngle(skel, side)
	out.Leg = legAngle(skel, side)
	return out
}

// neckAngle is the eye-midpoint -> shoulder-midpoint segment measured
// against vertical. Requires both eyes and both shoulders.
func neckAngle(skel *Skeleton) Angle {
	le, ok1 := skel.At(LeftEye)
	re, ok2 := skel.At(RightEye)
	ls, ok3 := skel.At(LeftShoulder)
	rs, ok4 := skel.At(RightShoulder)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Angle{}
	}
	return angle(angleFromVertical(midpoint(le, re), midpoint(ls, rs)))
}

// trunkAngle is the shoulder-midpoint -> hip-midpoint segment measured
// against vertical. Requires both shoulders and both hips.
func trunkAngle(skel *Skeleton) Angle {
	ls, ok1 := skel.At(LeftShoulder)
	rs, ok2 := skel.At(RightShoulder)
	lh, ok3 := skel.At(LeftHip)
	rh, ok4 := skel.At(RightHip)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Angle{}
	}
	return angle(angleFromVertical(midpoint(ls, rs), midpoint(lh, rh)))
}

func upperArmAngle(skel *Skeleton, side Side) Angle {
	shoulder, elbow, wrist := LeftShoulder, LeftElbow, LeftWrist
	if side != SideLeft {
		shoulder, elbow, wrist = RightShoulder, RightElbow, RightWrist
	}
	s, ok1 := skel.At(shoulder)
	e, ok2 := skel.At(elbow)
	w, ok3 := skel.At(wrist)
	if !ok1 || !ok2 || !ok3 {
		return Angle{}
	}
	return angle(vertexAngle(s, e, w))
}

// forearmAngle is a pure derivation: 180° minus the elbow vertex angle, so a
// defined pair always satisfies forearm + upper_arm == 180°.
func forearmAngle(upperArm Angle) Angle {
	if !upperArm.Valid {
		return Angle{}
	}
	return angle(180 - upperArm.Degrees)
}

// wristAngle is the deviation from a straight elbow-wrist-index line.
func wristAngle(skel *Skeleton, side Side) Angle {
	elbow, wrist, index := LeftElbow, LeftWrist, LeftIndex
	if side != SideLeft {
		elbow, wrist, index = RightElbow, RightWrist, RightIndex
	}
	e, ok1 := skel.At(elbow)
	w, ok2 := skel.At(wrist)
	i, ok3 := skel.At(index)
	if !ok1 || !ok2 || !ok3 {
		return Angle{}
	}
	return angle(math.Abs(180 - vertexAngle(e, w, i)))
}

func legAngle(skel *Skeleton, side Side) Angle {
	hip, knee, ankle := LeftHip, LeftKnee, LeftAnkle
	if side != SideLeft {
		hip, knee, ankle = RightHip, RightKnee, RightAnkle
	}
	h, ok1 := skel.At(hip)
	k, ok2 := skel.At(knee)
	a, ok3 := skel.At(ankle)
	if !ok1 || !ok2 || !ok3 {
		return Angle{}
	}
	return angle(vertexAngle(h, k, a))
}
