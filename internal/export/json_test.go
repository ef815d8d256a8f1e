package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/stats"
)

func TestBuildDocument(t *testing.T) {
	ring := session.NewRing(5)
	for i := 0; i < 8; i++ {
		ring.Push(session.SessionRecord{FrameID: i, Timestamp: time.Now()})
	}

	info := SessionInfo{SessionID: "abc", TotalFrames: 8, Source: "replay"}
	doc := BuildDocument(info, ring, stats.SessionStats{})

	if doc.SessionInfo.BufferSize != 5 {
		t.Errorf("buffer size = %d, want the ring length 5", doc.SessionInfo.BufferSize)
	}
	if len(doc.RecentFrames) != 5 {
		t.Fatalf("recent frames = %d, want 5", len(doc.RecentFrames))
	}
	if doc.RecentFrames[0].FrameID != 3 {
		t.Errorf("oldest retained frame = %d, want 3", doc.RecentFrames[0].FrameID)
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	ring := session.NewRing(10)
	ring.Push(session.SessionRecord{
		FrameID:   1,
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Score:     4,
		RiskLevel: "medium",
	})

	info := SessionInfo{
		SessionID:   "s-1",
		StartTime:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC),
		TotalFrames: 1,
		Source:      "replay",
	}
	doc := BuildDocument(info, ring, stats.SessionStats{
		Basic: stats.Basic{TotalFrames: 1, ValidFrames: 1, SuccessRate: 100},
	})

	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		t.Fatal(err)
	}

	var decoded Document
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(doc, decoded); diff != "" {
		t.Errorf("document changed across serialisation (-want +got):\n%s", diff)
	}

	// The wire keys are the stable export schema.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"session_info", "recent_frames", "statistics"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("document missing top-level key %q", key)
		}
	}
}
