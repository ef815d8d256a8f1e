// Package stats provides constant-memory streaming statistics over unbounded
// series of per-frame scores and angles.
package stats

import "math"

// OnlineStats accumulates count, mean, variance, min and max of a numeric
// series in O(1) memory using Welford's incremental algorithm. A naive
// sum-of-squares pass would need either two passes or lose precision on long
// sessions; Welford's update is single-pass and numerically stable.
//
// Not safe for concurrent use; the owner serialises updates.
type OnlineStats struct {
	count int64
	mean  float64
	m2    float64 // sum of squared deviations from the running mean
	min   float64
	max   float64
}

// Snapshot is a point-in-time read of an OnlineStats. StdDev is the
// population standard deviation (divide by count, not count-1). All fields
// are zero when Count is zero.
type Snapshot struct {
	Count  int64   `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Update folds one value into the accumulator.
func (s *OnlineStats) Update(value float64) {
	s.count++
	delta := value - s.mean
	s.mean += delta / float64(s.count)
	delta2 := value - s.mean
	s.m2 += delta * delta2

	if s.count == 1 {
		s.min = value
		s.max = value
		return
	}
	if value < s.min {
		s.min = value
	}
	if value > s.max {
		s.max = value
	}
}

// Count returns the number of values folded in so far.
func (s *OnlineStats) Count() int64 { return s.count }

// Get returns the current snapshot.
func (s *OnlineStats) Get() Snapshot {
	if s.count == 0 {
		return Snapshot{}
	}
	return Snapshot{
		Count:  s.count,
		Mean:   s.mean,
		StdDev: math.Sqrt(s.m2 / float64(s.count)),
		Min:    s.min,
		Max:    s.max,
	}
}

// Reset returns the accumulator to its initial empty state.
func (s *OnlineStats) Reset() {
	*s = OnlineStats{}
}
