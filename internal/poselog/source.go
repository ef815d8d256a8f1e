package poselog

import (
	"sync"
	"time"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/session"
)

// ReplaySource adapts a Replayer to the pipeline: it is both the frame
// source and the pose estimator, returning the recorded detection for each
// replayed frame. Frames carry no pixel data.
type ReplaySource struct {
	rp *Replayer

	mu        sync.Mutex
	skeletons map[int]*PoseFrame
}

// NewReplaySource opens the log at basePath for pipeline replay.
func NewReplaySource(basePath string) (*ReplaySource, error) {
	rp, err := NewReplayer(basePath)
	if err != nil {
		return nil, err
	}
	return &ReplaySource{
		rp:        rp,
		skeletons: make(map[int]*PoseFrame),
	}, nil
}

// Read returns the next replayed frame and stashes its detection for the
// Detect call that follows.
func (s *ReplaySource) Read() (session.Frame, bool) {
	pf, err := s.rp.ReadFrame()
	if err != nil {
		return session.Frame{}, false
	}
	s.mu.Lock()
	s.skeletons[int(pf.FrameID)] = pf
	s.mu.Unlock()
	return session.Frame{
		Index:     int(pf.FrameID),
		Width:     pf.Width,
		Height:    pf.Height,
		Timestamp: time.Unix(0, pf.TimestampNs),
	}, true
}

// Seek repositions the replay.
func (s *ReplaySource) Seek(frameIndex int) {
	s.rp.Seek(uint64(frameIndex)) //nolint:errcheck // out-of-range seeks are ignored
}

// TotalFrames returns the recorded frame count.
func (s *ReplaySource) TotalFrames() int {
	return int(s.rp.TotalFrames())
}

// Release closes the underlying replayer.
func (s *ReplaySource) Release() {
	s.rp.Close()
}

// Detect returns the recorded skeleton for the frame, reproducing misses
// where the original estimator found nothing.
func (s *ReplaySource) Detect(f session.Frame) (*pose.Skeleton, bool) {
	s.mu.Lock()
	pf, ok := s.skeletons[f.Index]
	delete(s.skeletons, f.Index)
	s.mu.Unlock()
	if !ok || !pf.Detected {
		return nil, false
	}
	skel := pf.Skeleton
	return &skel, true
}
