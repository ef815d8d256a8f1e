package stats

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestOnlineStatsEmpty(t *testing.T) {
	var s OnlineStats
	snap := s.Get()
	if snap != (Snapshot{}) {
		t.Errorf("empty snapshot = %+v, want zero value", snap)
	}
	if s.Count() != 0 {
		t.Errorf("Count = %d, want 0", s.Count())
	}
}

func TestOnlineStatsSingleValue(t *testing.T) {
	var s OnlineStats
	s.Update(42)
	snap := s.Get()
	if snap.Count != 1 || snap.Mean != 42 || snap.Min != 42 || snap.Max != 42 {
		t.Errorf("snapshot = %+v, want count/mean/min/max all 42", snap)
	}
	if snap.StdDev != 0 {
		t.Errorf("StdDev = %v, want 0 for a single value", snap.StdDev)
	}
}

func TestOnlineStatsSequence(t *testing.T) {
	var s OnlineStats
	for v := 1; v <= 100; v++ {
		s.Update(float64(v))
	}
	snap := s.Get()

	if snap.Count != 100 {
		t.Errorf("Count = %d, want 100", snap.Count)
	}
	if snap.Mean != 50.5 {
		t.Errorf("Mean = %v, want 50.5", snap.Mean)
	}
	if snap.Min != 1 || snap.Max != 100 {
		t.Errorf("Min/Max = %v/%v, want 1/100", snap.Min, snap.Max)
	}
	// Population variance of 1..n is (n²-1)/12.
	want := math.Sqrt((100*100 - 1) / 12.0)
	if math.Abs(snap.StdDev-want) > 1e-9 {
		t.Errorf("StdDev = %v, want %v", snap.StdDev, want)
	}
}

// Welford's single-pass result agrees with a two-pass reference over a
// less regular series.
func TestOnlineStatsMatchesTwoPass(t *testing.T) {
	values := []float64{3.2, 7.9, 1.1, 14.6, 5.5, 9.3, 2.8, 11.0, 6.6, 4.4}

	var s OnlineStats
	for _, v := range values {
		s.Update(v)
	}
	snap := s.Get()

	wantMean := stat.Mean(values, nil)
	// gonum's Variance is sample variance; rescale to population.
	n := float64(len(values))
	wantStd := math.Sqrt(stat.Variance(values, nil) * (n - 1) / n)

	if math.Abs(snap.Mean-wantMean) > 1e-12 {
		t.Errorf("Mean = %v, want %v", snap.Mean, wantMean)
	}
	if math.Abs(snap.StdDev-wantStd) > 1e-12 {
		t.Errorf("StdDev = %v, want %v", snap.StdDev, wantStd)
	}
}

func TestOnlineStatsReset(t *testing.T) {
	var s OnlineStats
	s.Update(1)
	s.Update(2)
	s.Reset()
	if s.Count() != 0 {
		t.Errorf("Count after Reset = %d, want 0", s.Count())
	}
	if s.Get() != (Snapshot{}) {
		t.Errorf("snapshot after Reset = %+v, want zero value", s.Get())
	}
}
