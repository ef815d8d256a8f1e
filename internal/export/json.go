package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/posture.report/internal/session"
	"github.com/banshee-data/posture.report/internal/stats"
)

// SessionInfo identifies one analysis session in the structured export.
type SessionInfo struct {
	SessionID   string    `json:"session_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	TotalFrames int64     `json:"total_frames"`
	BufferSize  int       `json:"recent_buffer_size"`
	Source      string    `json:"source,omitempty"`
}

// Document is the full structured export: session metadata, the retained
// recent frames and the accumulated statistics.
type Document struct {
	SessionInfo  SessionInfo             `json:"session_info"`
	RecentFrames []session.SessionRecord `json:"recent_frames"`
	Statistics   stats.SessionStats      `json:"statistics"`
}

// WriteJSON serialises the document to w, indented.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode session json: %w", err)
	}
	return nil
}

// BuildDocument assembles the structured export from the session's live
// components.
func BuildDocument(info SessionInfo, ring *session.Ring, st stats.SessionStats) Document {
	records := ring.Records()
	info.BufferSize = len(records)
	return Document{
		SessionInfo:  info,
		RecentFrames: records,
		Statistics:   st,
	}
}
