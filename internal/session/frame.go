// Package session drives the real-time analysis loop: frame acquisition,
// angle extraction, REBA classification, pause/seek control and result
// publication.
package session

import (
	"time"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
)

// Frame is one image buffer pulled from a source. Pixels is packed RGBA,
// fixed-size for the session; the analysis core never inspects pixel data,
// it only forwards frames to the estimator and the recorder.
type Frame struct {
	Index     int
	Width     int
	Height    int
	Pixels    []byte
	Timestamp time.Time
}

// FrameSource abstracts a camera or file. Read returns the next frame and
// false at end of stream. TotalFrames is 0 for live sources. Release must be
// idempotent only from the owner's side: the pipeline calls it exactly once.
type FrameSource interface {
	Read() (Frame, bool)
	Seek(frameIndex int)
	TotalFrames() int
	Release()
}

// PoseEstimator is the upstream black box: given a frame it returns zero or
// one skeleton.
type PoseEstimator interface {
	Detect(f Frame) (*pose.Skeleton, bool)
}

// SessionRecord is the per-frame row kept in the bounded recent-frame
// buffer and exported to CSV/JSON.
type SessionRecord struct {
	FrameID   int            `json:"frame_id"`
	Timestamp time.Time      `json:"timestamp"`
	Angles    pose.AngleSet  `json:"angles"`
	Score     int            `json:"reba_score"`
	RiskLevel reba.RiskLevel `json:"risk_level"`
	Detail    map[string]any `json:"detail,omitempty"`
}
