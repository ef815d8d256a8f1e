// Package reba implements the Rapid Entire Body Assessment scoring method
// (Hignett & McAtamney, 2000): per-part scores from joint angles, the three
// published lookup tables, and the final risk band.
package reba

import "github.com/banshee-data/posture.report/internal/pose"

// Coupling describes the hand-hold quality qualifier.
type Coupling string

const (
	CouplingGood         Coupling = "good"
	CouplingFair         Coupling = "fair"
	CouplingPoor         Coupling = "poor"
	CouplingUnacceptable Coupling = "unacceptable"
)

// Qualifiers are the observational adjustments an assessor supplies
// alongside the measured angles. The zero value is the neutral assessment:
// bilateral support, no twist, no load, good coupling.
type Qualifiers struct {
	TrunkTwisted  bool
	TrunkSideBent bool

	NeckTwisted  bool
	NeckSideBent bool

	// SingleLegStance is true when weight is borne on one leg; false means
	// bilateral support (the default posture).
	SingleLegStance bool

	ArmAbducted    bool
	ShoulderRaised bool
	ArmSupported   bool

	WristTwisted bool

	LoadKg     float64
	ShockForce bool

	Coupling Coupling

	StaticHold     bool
	HighRepetition bool
	RapidChange    bool
}

// PartScores are the six per-body-part scores after threshold and qualifier
// adjustment.
type PartScores struct {
	Trunk    int `json:"trunk_score"`
	Neck     int `json:"neck_score"`
	Leg      int `json:"leg_score"`
	UpperArm int `json:"upper_arm_score"`
	Forearm  int `json:"forearm_score"`
	Wrist    int `json:"wrist_score"`
}

// Group is one posture group: the table lookup plus its additive adjustment
// (load for group A, coupling for group B).
type Group struct {
	Posture    int `json:"posture_score"`
	Adjustment int `json:"adjustment_score"`
	Score      int `json:"group_score"`
}

// Result is the full classification of one frame. Immutable once produced.
// An unscored frame (any angle undefined) carries FinalScore 0 and
// RiskLevel "unknown".
type Result struct {
	Scored        bool       `json:"scored"`
	Parts         PartScores `json:"parts"`
	GroupA        Group      `json:"group_a"`
	GroupB        Group      `json:"group_b"`
	TableCScore   int        `json:"table_c_score"`
	ActivityScore int        `json:"activity_score"`
	FinalScore    int        `json:"final_score"`
	RiskLevel     RiskLevel  `json:"risk_level"`
}

// Detail flattens the result into the export key set.
func (r Result) Detail() map[string]any {
	if !r.Scored {
		return map[string]any{}
	}
	return map[string]any{
		"trunk_score":     r.Parts.Trunk,
		"neck_score":      r.Parts.Neck,
		"leg_score":       r.Parts.Leg,
		"upper_arm_score": r.Parts.UpperArm,
		"forearm_score":   r.Parts.Forearm,
		"wrist_score":     r.Parts.Wrist,
		"posture_score_a": r.GroupA.Posture,
		"load_score":      r.GroupA.Adjustment,
		"score_a":         r.GroupA.Score,
		"posture_score_b": r.GroupB.Posture,
		"coupling_score":  r.GroupB.Adjustment,
		"score_b":         r.GroupB.Score,
		"score_c":         r.TableCScore,
		"activity_score":  r.ActivityScore,
		"final_score":     r.FinalScore,
		"risk_level":      string(r.RiskLevel),
	}
}

// Unscored is the sentinel result for frames where any angle is undefined.
func Unscored() Result {
	return Result{RiskLevel: RiskUnknown}
}

// Classify scores one frame. Pure and deterministic: no partial scoring, no
// side effects. Qualifier and load values outside their expected domain are
// clamped, never rejected.
func Classify(angles pose.AngleSet, q Qualifiers) Result {
	if !angles.Complete() {
		return Unscored()
	}

	parts := PartScores{
		Trunk:    ScoreTrunk(angles.Trunk.Degrees, q.TrunkTwisted, q.TrunkSideBent),
		Neck:     ScoreNeck(angles.Neck.Degrees, q.NeckTwisted, q.NeckSideBent),
		Leg:      ScoreLeg(angles.Leg.Degrees, !q.SingleLegStance),
		UpperArm: ScoreUpperArm(angles.UpperArm.Degrees, q.ArmAbducted, q.ShoulderRaised, q.ArmSupported),
		Forearm:  ScoreForearm(angles.Forearm.Degrees),
		Wrist:    ScoreWrist(angles.Wrist.Degrees, q.WristTwisted),
	}

	postureA := LookupTableA(parts.Trunk, parts.Neck, parts.Leg)
	load := LoadScore(q.LoadKg, q.StaticHold, q.HighRepetition, q.ShockForce)
	groupA := Group{Posture: postureA, Adjustment: load, Score: postureA + load}

	postureB := LookupTableB(parts.UpperArm, parts.Forearm, parts.Wrist)
	coupling := CouplingScore(q.Coupling)
	groupB := Group{Posture: postureB, Adjustment: coupling, Score: postureB + coupling}

	tableCScore := LookupTableC(groupA.Score, groupB.Score)
	activity := ActivityScore(q.StaticHold, q.HighRepetition, q.RapidChange)
	final := tableCScore + activity

	return Result{
		Scored:        true,
		Parts:         parts,
		GroupA:        groupA,
		GroupB:        groupB,
		TableCScore:   tableCScore,
		ActivityScore: activity,
		FinalScore:    final,
		RiskLevel:     RiskLevelForScore(final),
	}
}

// ScoreTrunk scores trunk flexion measured from vertical: erect ≤5°,
// then 20° and 60° steps, +1 for twist or side bend, capped at 5.
func ScoreTrunk(deg float64, twisted, sideBent bool) int {
	score := 1
	switch {
	case deg <= 5:
		score = 1
	case deg <= 20:
		score = 2
	case deg <= 60:
		score = 3
	default:
		score = 4
	}
	if twisted || sideBent {
		score++
	}
	return clamp(score, 1, 5)
}

// ScoreNeck scores neck flexion from vertical: ≤20° scores 1, beyond 2,
// +1 for twist or side bend, capped at 3.
func ScoreNeck(deg float64, twisted, sideBent bool) int {
	score := 1
	if deg > 20 {
		score = 2
	}
	if twisted || sideBent {
		score++
	}
	return clamp(score, 1, 3)
}

// ScoreLeg scores the legs from knee flexion: bilateral support and ≤30°
// scores 1, otherwise 2, +1 for 30-60° flexion, +2 beyond 60°, capped at 4.
func ScoreLeg(deg float64, bilateralSupport bool) int {
	score := 2
	if bilateralSupport && deg <= 30 {
		score = 1
	}
	switch {
	case deg >= 30 && deg <= 60:
		score++
	case deg > 60:
		score += 2
	}
	return clamp(score, 1, 4)
}

// ScoreUpperArm scores upper-arm elevation: ≤20° scores 1, then 45° and 90°
// steps; +1 abducted, +1 shoulder raised, -1 supported; clamped to [1,6].
func ScoreUpperArm(deg float64, abducted, shoulderRaised, supported bool) int {
	score := 1
	switch {
	case deg <= 20:
		score = 1
	case deg <= 45:
		score = 2
	case deg <= 90:
		score = 3
	default:
		score = 4
	}
	if abducted {
		score++
	}
	if shoulderRaised {
		score++
	}
	if supported {
		score--
	}
	return clamp(score, 1, 6)
}

// ScoreForearm scores elbow flexion: the 60-100° working range scores 1,
// anything outside scores 2.
func ScoreForearm(deg float64) int {
	if deg >= 60 && deg <= 100 {
		return 1
	}
	return 2
}

// ScoreWrist scores wrist deviation from neutral: ≤15° scores 1, beyond 2,
// +1 for twist or radial/ulnar deviation, capped at 3.
func ScoreWrist(deg float64, twisted bool) int {
	score := 1
	if deg > 15 {
		score = 2
	}
	if twisted {
		score++
	}
	return clamp(score, 1, 3)
}

// LoadScore scores load/force: <5kg scores 0, <10kg scores 1, else 2;
// static or repetitive handling forces at least 2; +1 for shock or sudden
// force; capped at 3. Negative weights clamp to zero load.
func LoadScore(kg float64, static, repetitive, shock bool) int {
	score := 0
	switch {
	case kg < 5:
		score = 0
	case kg < 10:
		score = 1
	default:
		score = 2
	}
	if static || repetitive {
		if score < 2 {
			score = 2
		}
	}
	if shock {
		score++
	}
	return clamp(score, 0, 3)
}

// CouplingScore maps hand-hold quality to its additive score. An
// unrecognised label scores 0 — the no-penalty default the method's
// published worksheet leaves unspecified; arguably it should penalise, but
// the historical behaviour is kept.
func CouplingScore(c Coupling) int {
	switch c {
	case CouplingGood:
		return 0
	case CouplingFair:
		return 1
	case CouplingPoor:
		return 2
	case CouplingUnacceptable:
		return 3
	default:
		return 0
	}
}

// ActivityScore adds +1 for each of static hold, high repetition and large
// rapid postural change.
func ActivityScore(static, repetitive, rapidChange bool) int {
	score := 0
	if static {
		score++
	}
	if repetitive {
		score++
	}
	if rapidChange {
		score++
	}
	return score
}
