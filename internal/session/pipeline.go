package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
)

// State is the pipeline lifecycle. A pending seek target is orthogonal to
// the state and may be set from any of them.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrStopTimeout is returned when the worker fails to exit within the
// configured stop timeout. The caller may proceed; the condition is logged,
// never a hang.
var ErrStopTimeout = errors.New("session: worker did not stop within timeout")

// AngleResult pairs one frame's angle set with its classification. It is
// also the pipeline's single-slot cache entry for skipped frames.
type AngleResult struct {
	Angles pose.AngleSet
	Result reba.Result
}

// fpsWindow is the frame interval over which throughput is re-measured.
const fpsWindow = 30

// PipelineConfig wires a Pipeline.
type PipelineConfig struct {
	// Open acquires the frame source. It is called on the worker goroutine;
	// an open failure emits an error event and the pipeline terminates
	// without ever entering Running.
	Open func() (FrameSource, error)

	// Estimator is the upstream pose detector.
	Estimator PoseEstimator

	// Events receives published results. Required.
	Events *Events

	// Side selects the arm/leg used for single-sided angles.
	Side pose.Side

	// Qualifiers are the assessor-supplied REBA adjustments.
	Qualifiers reba.Qualifiers

	// SkipInterval classifies every Nth frame, reusing the cached result in
	// between. Values <= 1 classify every frame.
	SkipInterval int

	// PollInterval bounds pause/stop signal visibility (default 50ms).
	PollInterval time.Duration

	// LoopDelay optionally throttles the read loop.
	LoopDelay time.Duration

	// StopTimeout bounds how long Stop waits for the worker (default 5s).
	StopTimeout time.Duration

	// Logger is optional; if nil, uses log.Default().
	Logger *log.Logger
}

// Pipeline pulls frames from a source on a dedicated worker goroutine,
// derives angles and REBA scores, and publishes one frame-processed event
// per iteration. Pause, seek and stop are flags written by the controller
// and read by the worker within one polling interval.
type Pipeline struct {
	open      func() (FrameSource, error)
	estimator PoseEstimator
	events    *Events
	logger    *log.Logger

	skipInterval int
	pollInterval time.Duration
	loopDelay    time.Duration
	stopTimeout  time.Duration

	mu         sync.Mutex
	state      State
	started    bool
	side       pose.Side
	qualifiers reba.Qualifiers

	paused      atomic.Bool
	pendingSeek atomic.Int64 // -1 when no seek is pending

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
	wakeCh   chan struct{}

	currentFrame atomic.Int64
	totalFrames  atomic.Int64
}

// NewPipeline validates cfg and returns an idle pipeline. Each pipeline
// drives exactly one session; start a new one per analysis run.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Open == nil {
		return nil, errors.New("session: PipelineConfig.Open is required")
	}
	if cfg.Estimator == nil {
		return nil, errors.New("session: PipelineConfig.Estimator is required")
	}
	if cfg.Events == nil {
		return nil, errors.New("session: PipelineConfig.Events is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	side := cfg.Side
	if !side.Valid() {
		side = pose.SideRight
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = 5 * time.Second
	}
	p := &Pipeline{
		open:         cfg.Open,
		estimator:    cfg.Estimator,
		events:       cfg.Events,
		logger:       logger,
		skipInterval: cfg.SkipInterval,
		pollInterval: pollInterval,
		loopDelay:    cfg.LoopDelay,
		stopTimeout:  stopTimeout,
		side:         side,
		qualifiers:   cfg.Qualifiers,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		wakeCh:       make(chan struct{}, 1),
	}
	p.pendingSeek.Store(-1)
	return p, nil
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Start launches the worker goroutine. It may be called once per pipeline.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return errors.New("session: pipeline already started")
	}
	p.started = true
	p.mu.Unlock()

	go p.run()
	return nil
}

// Pause suspends frame reads. The worker keeps servicing seeks while paused.
func (p *Pipeline) Pause() {
	p.paused.Store(true)
	p.mu.Lock()
	if p.state == StateRunning {
		p.state = StatePaused
	}
	p.mu.Unlock()
}

// Resume continues a paused session.
func (p *Pipeline) Resume() {
	p.paused.Store(false)
	p.mu.Lock()
	if p.state == StatePaused {
		p.state = StateRunning
	}
	p.mu.Unlock()
	p.wake()
}

// Seek requests a reposition to frameIndex. While running it is applied at
// the top of the next iteration; while paused it produces a single preview
// frame without leaving Paused.
func (p *Pipeline) Seek(frameIndex int) {
	if frameIndex < 0 {
		return
	}
	p.pendingSeek.Store(int64(frameIndex))
	p.wake()
}

// SetParameters updates side and qualifiers mid-session. The next freshly
// classified frame picks them up.
func (p *Pipeline) SetParameters(side pose.Side, q reba.Qualifiers) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if side.Valid() {
		p.side = side
	}
	p.qualifiers = q
}

// Stop requests cooperative shutdown and waits for the worker to exit,
// bounded by the stop timeout. Safe to call multiple times and from any
// state.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	neverStarted := !p.started
	if neverStarted {
		p.started = true
		p.state = StateStopped
	}
	p.mu.Unlock()

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wake()
	if neverStarted {
		return nil
	}

	select {
	case <-p.doneCh:
		return nil
	case <-time.After(p.stopTimeout):
		p.logger.Printf("session: pipeline worker still running after %v, proceeding", p.stopTimeout)
		return ErrStopTimeout
	}
}

// Progress returns the last published position.
func (p *Pipeline) Progress() (current, total int) {
	return int(p.currentFrame.Load()), int(p.totalFrames.Load())
}

func (p *Pipeline) wake() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

func (p *Pipeline) stopping() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

func (p *Pipeline) takeSeek() (int, bool) {
	v := p.pendingSeek.Swap(-1)
	if v < 0 {
		return 0, false
	}
	return int(v), true
}

func (p *Pipeline) parameters() (pose.Side, reba.Qualifiers) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.side, p.qualifiers
}

// run is the worker loop. It owns the frame source for its whole lifetime
// and releases it exactly once on the way out.
func (p *Pipeline) run() {
	defer close(p.doneCh)

	src, err := p.open()
	if err != nil {
		p.setState(StateStopped)
		p.events.emitError(fmt.Errorf("open frame source: %w", err))
		p.events.emitFinished()
		return
	}
	released := false
	release := func() {
		if !released {
			released = true
			src.Release()
		}
	}
	defer release()

	p.setState(StateRunning)
	total := src.TotalFrames()
	p.totalFrames.Store(int64(total))

	// Single-slot result cache for skipped frames. Stale is visible on the
	// published event so consumers can tell reuse from fresh classification.
	var cached AngleResult
	cacheValid := false

	frameCount := 0
	fps := 0.0
	windowStart := time.Now()

	for {
		if p.stopping() {
			break
		}
		if !p.waitWhilePaused(src) {
			break
		}
		if target, ok := p.takeSeek(); ok {
			src.Seek(target)
		}

		frame, ok := src.Read()
		if !ok {
			break
		}
		p.currentFrame.Store(int64(frame.Index + 1))
		p.events.emitProgress(ProgressEvent{CurrentFrame: frame.Index + 1, TotalFrames: total})

		fresh := p.skipInterval <= 1 || frameCount%p.skipInterval == 0 || !cacheValid
		if fresh {
			cached = p.analyse(frame)
			cacheValid = true
		}

		frameCount++
		if frameCount%fpsWindow == 0 {
			elapsed := time.Since(windowStart).Seconds()
			if elapsed > 0 {
				fps = fpsWindow / elapsed
			}
			windowStart = time.Now()
		}

		p.events.emitFrame(FrameEvent{
			Frame:  frame,
			Angles: cached,
			FPS:    fps,
			Stale:  !fresh,
		})

		if p.loopDelay > 0 {
			select {
			case <-p.stopCh:
			case <-time.After(p.loopDelay):
			}
		}
	}

	release()
	p.setState(StateStopped)
	p.events.emitFinished()
}

// waitWhilePaused blocks while the pause flag is set, servicing pending
// seeks immediately: reposition, read exactly one frame, publish a preview
// event with cleared analysis fields, re-seek so resume re-reads the same
// frame, then keep waiting. Returns false when stopping.
func (p *Pipeline) waitWhilePaused(src FrameSource) bool {
	for p.paused.Load() {
		if p.stopping() {
			return false
		}
		if target, ok := p.takeSeek(); ok {
			src.Seek(target)
			p.currentFrame.Store(int64(target))
			if frame, ok := src.Read(); ok {
				src.Seek(target)
				p.events.emitFrame(FrameEvent{
					Frame:   frame,
					Angles:  AngleResult{Result: reba.Unscored()},
					Preview: true,
				})
			}
			continue
		}
		select {
		case <-p.stopCh:
			return false
		case <-p.wakeCh:
		case <-time.After(p.pollInterval):
		}
	}
	return !p.stopping()
}

// analyse runs detection, angle extraction and classification for one
// frame. A missed detection yields an empty angle set and the unscored
// sentinel, never an error.
func (p *Pipeline) analyse(f Frame) AngleResult {
	skel, ok := p.estimator.Detect(f)
	if !ok {
		return AngleResult{Result: reba.Unscored()}
	}
	side, quals := p.parameters()
	angles := pose.ComputeAngles(skel, side)
	return AngleResult{Angles: angles, Result: reba.Classify(angles, quals)}
}
