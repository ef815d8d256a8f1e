package poselog

import (
	"errors"
	"io"
	"testing"

	"github.com/banshee-data/posture.report/internal/pose"
)

func recordedSkeleton(seed float64) pose.Skeleton {
	var s pose.Skeleton
	for j := pose.Joint(0); j < pose.NumJoints; j++ {
		s[j] = pose.Landmark{
			X:          seed + float64(j)*0.01,
			Y:          seed + float64(j)*0.02,
			Confidence: 0.9,
		}
	}
	return s
}

func writeLog(t *testing.T, dir string, frames int, missAt int) {
	t.Helper()
	rec, err := NewRecorder(dir, "test-estimator")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < frames; i++ {
		pf := PoseFrame{
			FrameID:     uint64(i),
			TimestampNs: int64(i) * 33_000_000,
			Width:       640,
			Height:      480,
			Detected:    i != missAt,
			Skeleton:    recordedSkeleton(float64(i) * 0.001),
		}
		if err := rec.Record(pf); err != nil {
			t.Fatalf("record frame %d: %v", i, err)
		}
	}
	if rec.FrameCount() != uint64(frames) {
		t.Fatalf("FrameCount = %d, want %d", rec.FrameCount(), frames)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRecordReplayRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, 5, -1)

	rp, err := NewReplayer(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer rp.Close()

	hdr := rp.Header()
	if hdr.TotalFrames != 5 {
		t.Errorf("header total frames = %d, want 5", hdr.TotalFrames)
	}
	if hdr.Source != "test-estimator" {
		t.Errorf("header source = %q", hdr.Source)
	}
	if hdr.Width != 640 || hdr.Height != 480 {
		t.Errorf("header dimensions = %dx%d, want 640x480", hdr.Width, hdr.Height)
	}
	if hdr.StartNs != 0 || hdr.EndNs != 4*33_000_000 {
		t.Errorf("header time bounds = %d..%d", hdr.StartNs, hdr.EndNs)
	}

	for i := 0; i < 5; i++ {
		pf, err := rp.ReadFrame()
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if pf.FrameID != uint64(i) {
			t.Errorf("frame %d has ID %d", i, pf.FrameID)
		}
		if !pf.Detected {
			t.Errorf("frame %d lost its detection", i)
		}
		want := recordedSkeleton(float64(i) * 0.001)
		if pf.Skeleton != want {
			t.Errorf("frame %d skeleton mismatch", i)
		}
	}
	if _, err := rp.ReadFrame(); !errors.Is(err, io.EOF) {
		t.Errorf("read past end = %v, want EOF", err)
	}
}

func TestReplayerSeek(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, 10, -1)

	rp, err := NewReplayer(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer rp.Close()

	if err := rp.Seek(7); err != nil {
		t.Fatal(err)
	}
	pf, err := rp.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if pf.FrameID != 7 {
		t.Errorf("frame after Seek(7) has ID %d", pf.FrameID)
	}
	if rp.CurrentFrame() != 8 {
		t.Errorf("CurrentFrame = %d after reading frame 7", rp.CurrentFrame())
	}

	// Seeking backwards rewinds.
	if err := rp.Seek(2); err != nil {
		t.Fatal(err)
	}
	pf, err = rp.ReadFrame()
	if err != nil {
		t.Fatal(err)
	}
	if pf.FrameID != 2 {
		t.Errorf("frame after Seek(2) has ID %d", pf.FrameID)
	}

	if err := rp.Seek(10); err == nil {
		t.Error("out-of-range seek accepted")
	}
}

func TestRecorderClosed(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, "x")
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	// Close is idempotent; Record after Close fails.
	if err := rec.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := rec.Record(PoseFrame{}); err == nil {
		t.Error("Record after Close succeeded")
	}
}

func TestReplaySource(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, 4, 2) // frame 2 is a recorded miss

	src, err := NewReplaySource(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Release()

	if src.TotalFrames() != 4 {
		t.Errorf("TotalFrames = %d, want 4", src.TotalFrames())
	}

	for i := 0; i < 4; i++ {
		frame, ok := src.Read()
		if !ok {
			t.Fatalf("Read failed at frame %d", i)
		}
		if frame.Index != i || frame.Width != 640 || frame.Height != 480 {
			t.Errorf("frame %d = %+v", i, frame)
		}
		if frame.Timestamp.IsZero() {
			t.Errorf("frame %d has no timestamp", i)
		}

		skel, detected := src.Detect(frame)
		if i == 2 {
			if detected {
				t.Error("recorded miss replayed as a detection")
			}
			continue
		}
		if !detected || skel == nil {
			t.Fatalf("frame %d lost its detection", i)
		}
		if want := recordedSkeleton(float64(i) * 0.001); *skel != want {
			t.Errorf("frame %d skeleton mismatch", i)
		}
	}

	if _, ok := src.Read(); ok {
		t.Error("Read past end succeeded")
	}

	// Seek then read resumes from the target.
	src.Seek(1)
	frame, ok := src.Read()
	if !ok || frame.Index != 1 {
		t.Errorf("frame after Seek(1) = %+v, ok=%v", frame, ok)
	}
}
