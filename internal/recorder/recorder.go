package recorder

import (
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/posture.report/internal/export"
	"github.com/banshee-data/posture.report/internal/session"
)

// DefaultStopTimeout bounds how long Stop waits for the writer to drain.
const DefaultStopTimeout = 10 * time.Second

// Config contains configuration for a Recorder.
type Config struct {
	// FPS recorded in the frame-log header.
	FPS float64
	// QueueCapacity bounds the handoff queue (default 120).
	QueueCapacity int
	// Strategy is the full-queue policy (default DropOldest).
	Strategy Strategy
	// StopTimeout bounds Stop's wait for the writer (default 10s).
	StopTimeout time.Duration
	// Logger is optional; if nil, uses log.Default().
	Logger *log.Logger
}

// Recorder persists each queued frame three ways: an appended frame-log
// container (lazily opened on the first item), a per-frame PNG still, and
// one CSV row flushed per write. All disk I/O happens on a single
// background goroutine; Enqueue never blocks the publisher.
//
// Output layout per session:
//
//	{dir}/video.framelog
//	{dir}/images/frame_000001.png
//	{dir}/reba_data.csv
type Recorder struct {
	fps         float64
	stopTimeout time.Duration
	logger      *log.Logger

	mu        sync.Mutex
	recording bool
	dir       string
	queue     *Queue
	doneCh    chan struct{}

	queueCapacity int
	strategy      Strategy
}

// New returns a stopped recorder; call Start to begin a session.
func New(cfg Config) *Recorder {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Recorder{
		fps:           fps,
		stopTimeout:   stopTimeout,
		logger:        logger,
		queueCapacity: cfg.QueueCapacity,
		strategy:      cfg.Strategy,
	}
}

// Recording reports whether a session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Drops returns the number of items discarded by backpressure in the
// current session.
func (r *Recorder) Drops() int64 {
	r.mu.Lock()
	q := r.queue
	r.mu.Unlock()
	if q == nil {
		return 0
	}
	return q.Drops()
}

// Start creates the output directory tree and launches the background
// writer. A recorder already running is stopped first.
func (r *Recorder) Start(dir string) error {
	if r.Recording() {
		r.Stop()
	}
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0o755); err != nil {
		return fmt.Errorf("create recording directory: %w", err)
	}

	csvFile, err := os.Create(filepath.Join(dir, "reba_data.csv"))
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	csvWriter, err := export.NewCSVWriter(csvFile)
	if err != nil {
		csvFile.Close()
		return err
	}

	r.mu.Lock()
	r.dir = dir
	r.queue = NewQueue(r.queueCapacity, r.strategy)
	r.doneCh = make(chan struct{})
	r.recording = true
	queue, doneCh := r.queue, r.doneCh
	r.mu.Unlock()

	go r.writeLoop(queue, doneCh, dir, csvFile, csvWriter)
	return nil
}

// Enqueue hands one frame and its analysis snapshot to the writer. On a
// full queue the configured strategy applies; the call never blocks.
func (r *Recorder) Enqueue(frame session.Frame, rec session.SessionRecord) {
	r.mu.Lock()
	recording, queue := r.recording, r.queue
	r.mu.Unlock()
	if !recording || queue == nil {
		return
	}
	queue.Push(Item{Frame: frame, Record: rec})
}

// Stop closes the queue, waits for the writer to drain and close its
// outputs, bounded by the stop timeout, and returns the output directory.
// A writer that misses the deadline is logged and abandoned rather than
// hanging the caller.
func (r *Recorder) Stop() string {
	r.mu.Lock()
	if !r.recording {
		dir := r.dir
		r.mu.Unlock()
		return dir
	}
	r.recording = false
	queue, doneCh, dir := r.queue, r.doneCh, r.dir
	r.mu.Unlock()

	queue.Close()
	select {
	case <-doneCh:
	case <-time.After(r.stopTimeout):
		r.logger.Printf("recorder: writer did not drain within %v, proceeding", r.stopTimeout)
	}
	return dir
}

// writeLoop is the background writer: pop, persist three ways, repeat
// until the queue closes, then close the outputs.
func (r *Recorder) writeLoop(queue *Queue, doneCh chan struct{}, dir string, csvFile *os.File, csvWriter *export.CSVWriter) {
	defer close(doneCh)

	var frameLog *FrameLog
	defer func() {
		if frameLog != nil {
			if err := frameLog.Close(); err != nil {
				r.logger.Printf("recorder: close frame log: %v", err)
			}
		}
		if err := csvFile.Close(); err != nil {
			r.logger.Printf("recorder: close csv: %v", err)
		}
	}()

	for {
		item, ok := queue.Pop()
		if !ok {
			return
		}

		// Open the container lazily: dimensions come from the first frame.
		if frameLog == nil && len(item.Frame.Pixels) > 0 {
			fl, err := CreateFrameLog(filepath.Join(dir, "video.framelog"), item.Frame.Width, item.Frame.Height, r.fps)
			if err != nil {
				r.logger.Printf("recorder: %v", err)
			} else {
				frameLog = fl
			}
		}
		if frameLog != nil && len(item.Frame.Pixels) > 0 {
			if err := frameLog.Append(item.Frame.Pixels); err != nil {
				r.logger.Printf("recorder: %v", err)
			}
		}

		if err := r.writeStill(dir, item.Frame, item.Record.FrameID); err != nil {
			r.logger.Printf("recorder: %v", err)
		}

		if err := csvWriter.Write(item.Record); err != nil {
			r.logger.Printf("recorder: %v", err)
		}
	}
}

func (r *Recorder) writeStill(dir string, frame session.Frame, frameID int) error {
	if len(frame.Pixels) == 0 || frame.Width <= 0 || frame.Height <= 0 {
		return nil
	}
	img := &image.RGBA{
		Pix:    frame.Pixels,
		Stride: 4 * frame.Width,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
	path := filepath.Join(dir, "images", fmt.Sprintf("frame_%06d.png", frameID))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create still: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode still: %w", err)
	}
	return nil
}
