package report

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/session"
)

func plotRecords(n int) []session.SessionRecord {
	out := make([]session.SessionRecord, 0, n)
	for i := 0; i < n; i++ {
		score := 1 + i%11
		out = append(out, session.SessionRecord{
			FrameID:   i,
			Timestamp: time.Now(),
			Angles: pose.AngleSet{
				Neck:  pose.Angle{Degrees: 10 + float64(i%20), Valid: true},
				Trunk: pose.Angle{Degrees: 25 + float64(i%15), Valid: true},
				Leg:   pose.Angle{Degrees: 170, Valid: true},
			},
			Score:     score,
			RiskLevel: reba.RiskLevelForScore(score),
		})
	}
	return out
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("plot not written: %v", err)
	}
	defer f.Close()
	if _, err := png.Decode(f); err != nil {
		t.Errorf("%s is not a decodable PNG: %v", filepath.Base(path), err)
	}
}

func TestSavePlots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	if err := SavePlots(plotRecords(50), dir); err != nil {
		t.Fatal(err)
	}
	assertPNG(t, filepath.Join(dir, "score_timeline.png"))
	assertPNG(t, filepath.Join(dir, "angle_timelines.png"))
}

func TestSavePlotsNoScoredFrames(t *testing.T) {
	dir := t.TempDir()
	records := []session.SessionRecord{
		{FrameID: 0, RiskLevel: reba.RiskUnknown},
		{FrameID: 1, RiskLevel: reba.RiskUnknown},
	}
	// Nothing to draw is not an error, and no empty plot is produced.
	if err := SavePlots(records, dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "score_timeline.png")); !os.IsNotExist(err) {
		t.Error("score plot written with no scored frames")
	}
	if _, err := os.Stat(filepath.Join(dir, "angle_timelines.png")); !os.IsNotExist(err) {
		t.Error("angle plot written with no valid angles")
	}
}

func TestSavePlotsEmpty(t *testing.T) {
	if err := SavePlots(nil, t.TempDir()); err != nil {
		t.Fatal(err)
	}
}
