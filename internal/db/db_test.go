package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/stats"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "posture.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func storedRecord(frameID, score int) session.SessionRecord {
	return session.SessionRecord{
		FrameID:   frameID,
		Timestamp: time.Date(2026, 3, 1, 9, 0, frameID, 0, time.UTC),
		Angles: pose.AngleSet{
			Neck:  pose.Angle{Degrees: 10 + float64(frameID), Valid: true},
			Trunk: pose.Angle{Degrees: 20, Valid: true},
			Leg:   pose.Angle{}, // undefined, stored as NULL
		},
		Score:     score,
		RiskLevel: reba.RiskLevelForScore(score),
		Detail:    map[string]any{"final_score": float64(score)},
	}
}

func sampleStats() stats.SessionStats {
	return stats.SessionStats{
		Basic: stats.Basic{TotalFrames: 3, ValidFrames: 3, SuccessRate: 100},
		Score: stats.Snapshot{Count: 3, Mean: 6, Min: 2, Max: 9},
	}
}

func TestSaveSessionRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	summary := session.Summary{
		SessionID: "sess-1",
		Source:    "replay://log",
		StartedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC),
	}
	records := []session.SessionRecord{
		storedRecord(0, 2),
		storedRecord(1, 9),
		storedRecord(2, 7),
	}
	if err := db.SaveSession(ctx, summary, sampleStats(), records); err != nil {
		t.Fatal(err)
	}

	sessions, err := db.Sessions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	row := sessions[0]
	if row.SessionID != "sess-1" || row.Source != "replay://log" {
		t.Errorf("session row = %+v", row)
	}
	if row.TotalFrames != 3 || row.ValidFrames != 3 {
		t.Errorf("frame counts = %d/%d, want 3/3", row.TotalFrames, row.ValidFrames)
	}
	if row.MeanScore != 6 || row.MaxScore != 9 {
		t.Errorf("scores = %v/%v, want 6/9", row.MeanScore, row.MaxScore)
	}

	st, err := db.SessionStats(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Basic.TotalFrames != 3 || st.Score.Mean != 6 {
		t.Errorf("stored stats = %+v", st)
	}
}

func TestSaveSessionReplaces(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	summary := session.Summary{SessionID: "sess-1", StartedAt: time.Now()}
	if err := db.SaveSession(ctx, summary, sampleStats(), []session.SessionRecord{storedRecord(0, 9)}); err != nil {
		t.Fatal(err)
	}
	// Saving the same session again replaces both the summary and records.
	if err := db.SaveSession(ctx, summary, sampleStats(), []session.SessionRecord{storedRecord(1, 9), storedRecord(2, 9)}); err != nil {
		t.Fatal(err)
	}

	sessions, err := db.Sessions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions after replace, want 1", len(sessions))
	}

	frames, err := db.HighRiskFrames(ctx, "sess-1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 {
		t.Errorf("got %d frame records after replace, want 2", len(frames))
	}
}

func TestHighRiskFrames(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	summary := session.Summary{SessionID: "sess-1", StartedAt: time.Now()}
	records := []session.SessionRecord{
		storedRecord(0, 2),
		storedRecord(1, 9),
		storedRecord(2, 12),
	}
	if err := db.SaveSession(ctx, summary, sampleStats(), records); err != nil {
		t.Fatal(err)
	}

	frames, err := db.HighRiskFrames(ctx, "sess-1", 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d high-risk frames, want 2", len(frames))
	}
	if frames[0].FrameID != 1 || frames[1].FrameID != 2 {
		t.Errorf("frame order: %d, %d", frames[0].FrameID, frames[1].FrameID)
	}

	rec := frames[0]
	if !rec.Angles.Neck.Valid || rec.Angles.Neck.Degrees != 11 {
		t.Errorf("neck angle = %+v, want 11", rec.Angles.Neck)
	}
	// NULL columns come back as undefined angles, not zeros.
	if rec.Angles.Leg.Valid {
		t.Error("undefined leg angle resurrected as a measurement")
	}
	if rec.RiskLevel != reba.RiskHigh {
		t.Errorf("risk level = %q, want high", rec.RiskLevel)
	}
	if rec.Detail["final_score"] != float64(9) {
		t.Errorf("detail = %v", rec.Detail)
	}

	none, err := db.HighRiskFrames(ctx, "sess-1", 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("threshold 20 matched %d frames", len(none))
	}
}

func TestSessionsOrderAndLimit(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		summary := session.Summary{
			SessionID: string(rune('a' + i)),
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := db.SaveSession(ctx, summary, stats.SessionStats{}, nil); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := db.Sessions(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("limit ignored: got %d sessions", len(sessions))
	}
	// Most recent first.
	if sessions[0].SessionID != "c" || sessions[1].SessionID != "b" {
		t.Errorf("session order: %s, %s", sessions[0].SessionID, sessions[1].SessionID)
	}
}

func TestSessionStatsUnknownSession(t *testing.T) {
	db := testDB(t)
	if _, err := db.SessionStats(context.Background(), "nope"); err == nil {
		t.Error("stats for an unknown session succeeded")
	}
}
