package stats

import (
	"sync"
	"time"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
)

// AngleSeries names the six tracked angle series, in export column order.
var AngleSeries = []string{
	"neck_angle",
	"trunk_angle",
	"upper_arm_angle",
	"forearm_angle",
	"wrist_angle",
	"leg_angle",
}

// Accumulator aggregates one session's streaming statistics: an OnlineStats
// per tracked series, the five-bucket risk histogram and the session time
// bounds. All methods are safe for concurrent callers — Welford's update is
// not lock-free, so Update serialises under a mutex.
type Accumulator struct {
	mu sync.Mutex

	score  OnlineStats
	angles map[string]*OnlineStats
	risk   map[reba.RiskLevel]int64

	firstSeen   time.Time
	lastSeen    time.Time
	totalFrames int64
	validFrames int64
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	a := &Accumulator{
		angles: make(map[string]*OnlineStats, len(AngleSeries)),
		risk:   make(map[reba.RiskLevel]int64, len(reba.Levels)),
	}
	for _, name := range AngleSeries {
		a.angles[name] = &OnlineStats{}
	}
	return a
}

// Update folds one processed frame into the session statistics. Undefined
// angles are skipped silently and an unscored result advances only the
// total frame count.
func (a *Accumulator) Update(angles pose.AngleSet, result reba.Result, ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalFrames++
	if a.firstSeen.IsZero() {
		a.firstSeen = ts
	}
	a.lastSeen = ts

	if result.Scored {
		a.validFrames++
		a.score.Update(float64(result.FinalScore))
		a.risk[result.RiskLevel]++
	}

	a.updateAngle("neck_angle", angles.Neck)
	a.updateAngle("trunk_angle", angles.Trunk)
	a.updateAngle("upper_arm_angle", angles.UpperArm)
	a.updateAngle("forearm_angle", angles.Forearm)
	a.updateAngle("wrist_angle", angles.Wrist)
	a.updateAngle("leg_angle", angles.Leg)
}

func (a *Accumulator) updateAngle(name string, angle pose.Angle) {
	if !angle.Valid {
		return
	}
	a.angles[name].Update(angle.Degrees)
}

// Basic summarises frame counts for the session.
type Basic struct {
	TotalFrames   int64   `json:"total_frames"`
	ValidFrames   int64   `json:"valid_frames"`
	InvalidFrames int64   `json:"invalid_frames"`
	SuccessRate   float64 `json:"success_rate"`
}

// RiskDistribution is the five-bucket histogram with percentages over
// scored frames.
type RiskDistribution struct {
	Counts      map[string]int64   `json:"counts"`
	Percentages map[string]float64 `json:"percentages"`
}

// TimeStats is the session duration and derived throughput.
type TimeStats struct {
	DurationSeconds float64 `json:"duration_seconds"`
	AverageFPS      float64 `json:"average_fps"`
}

// SessionStats is a consistent point-in-time view of all accumulated
// statistics.
type SessionStats struct {
	Basic            Basic               `json:"basic"`
	Score            Snapshot            `json:"reba_score"`
	RiskDistribution RiskDistribution    `json:"risk_distribution"`
	Angles           map[string]Snapshot `json:"angles"`
	Time             TimeStats           `json:"time"`
}

// Stats returns the current session statistics.
func (a *Accumulator) Stats() SessionStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	basic := Basic{
		TotalFrames:   a.totalFrames,
		ValidFrames:   a.validFrames,
		InvalidFrames: a.totalFrames - a.validFrames,
	}
	if a.totalFrames > 0 {
		basic.SuccessRate = float64(a.validFrames) / float64(a.totalFrames) * 100
	}

	dist := RiskDistribution{
		Counts:      make(map[string]int64, len(reba.Levels)),
		Percentages: make(map[string]float64, len(reba.Levels)),
	}
	var scored int64
	for _, level := range reba.Levels {
		scored += a.risk[level]
	}
	for _, level := range reba.Levels {
		n := a.risk[level]
		dist.Counts[string(level)] = n
		if scored > 0 {
			dist.Percentages[string(level)] = float64(n) / float64(scored) * 100
		} else {
			dist.Percentages[string(level)] = 0
		}
	}

	angles := make(map[string]Snapshot, len(AngleSeries))
	for _, name := range AngleSeries {
		if s := a.angles[name]; s.Count() > 0 {
			angles[name] = s.Get()
		}
	}

	var t TimeStats
	if !a.firstSeen.IsZero() {
		t.DurationSeconds = a.lastSeen.Sub(a.firstSeen).Seconds()
		if t.DurationSeconds > 0 {
			t.AverageFPS = float64(a.totalFrames) / t.DurationSeconds
		}
	}

	return SessionStats{
		Basic:            basic,
		Score:            a.score.Get(),
		RiskDistribution: dist,
		Angles:           angles,
		Time:             t,
	}
}

// Reset clears all accumulated state at a session boundary.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.score.Reset()
	for _, s := range a.angles {
		s.Reset()
	}
	a.risk = make(map[reba.RiskLevel]int64, len(reba.Levels))
	a.firstSeen = time.Time{}
	a.lastSeen = time.Time{}
	a.totalFrames = 0
	a.validFrames = 0
}
