package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/posture.report/internal/pose"
	"github.com/banshee-data/posture.report/internal/reba"
	"github.com/banshee-data/posture.report/internal/stats"
)

// FrameSink receives each processed frame for background persistence. The
// call runs on the pipeline worker and must not block.
type FrameSink interface {
	Enqueue(frame Frame, rec SessionRecord)
}

// Summary identifies one completed or in-flight session.
type Summary struct {
	SessionID string    `json:"session_id"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Store persists a finished session: its summary, accumulated statistics and
// the retained recent records.
type Store interface {
	SaveSession(ctx context.Context, summary Summary, st stats.SessionStats, records []SessionRecord) error
}

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	// Open acquires the frame source for each session.
	Open func() (FrameSource, error)

	// Estimator is the upstream pose detector.
	Estimator PoseEstimator

	// Source labels the frame origin in summaries (a path or device name).
	Source string

	// Sink optionally receives every processed frame (the recorder).
	Sink FrameSink

	// Store optionally persists session summaries at Stop.
	Store Store

	// Side, Qualifiers, SkipInterval, PollInterval, LoopDelay and StopTimeout
	// are passed through to the pipeline.
	Side         pose.Side
	Qualifiers   reba.Qualifiers
	SkipInterval int
	PollInterval time.Duration
	LoopDelay    time.Duration
	StopTimeout  time.Duration

	// RingCapacity bounds the recent-frame buffer (default 10000).
	RingCapacity int

	// Logger is optional; if nil, uses log.Default().
	Logger *log.Logger
}

// Controller is the session facade: it owns the event registry, the
// recent-frame ring and the statistics accumulator, and drives one pipeline
// per analysis run. Sessions are identified by a fresh UUID at each Start.
type Controller struct {
	cfg    ControllerConfig
	logger *log.Logger

	events *Events
	ring   *Ring
	acc    *stats.Accumulator

	mu        sync.Mutex
	pipeline  *Pipeline
	sessionID string
	startedAt time.Time
	endedAt   time.Time
}

// NewController validates cfg and returns an idle controller.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Open == nil {
		return nil, errors.New("session: ControllerConfig.Open is required")
	}
	if cfg.Estimator == nil {
		return nil, errors.New("session: ControllerConfig.Estimator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	c := &Controller{
		cfg:    cfg,
		logger: logger,
		events: NewEvents(),
		ring:   NewRing(cfg.RingCapacity),
		acc:    stats.NewAccumulator(),
	}
	c.events.OnFrame(c.handleFrame)
	c.events.OnFinished(c.handleFinished)
	return c, nil
}

// Events exposes the registry so additional consumers (API, charts) can
// subscribe before Start.
func (c *Controller) Events() *Events { return c.events }

// Ring exposes the recent-frame buffer.
func (c *Controller) Ring() *Ring { return c.ring }

// Stats returns the session statistics so far.
func (c *Controller) Stats() stats.SessionStats { return c.acc.Stats() }

// SessionID returns the identifier of the current (or most recent) session.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Summary returns the current session's identity and time bounds.
func (c *Controller) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Summary{
		SessionID: c.sessionID,
		Source:    c.cfg.Source,
		StartedAt: c.startedAt,
		EndedAt:   c.endedAt,
	}
}

// State reports the pipeline state, or idle before the first Start.
func (c *Controller) State() State {
	c.mu.Lock()
	p := c.pipeline
	c.mu.Unlock()
	if p == nil {
		return StateIdle
	}
	return p.State()
}

// Progress reports the pipeline position, 0/0 before the first Start.
func (c *Controller) Progress() (current, total int) {
	c.mu.Lock()
	p := c.pipeline
	c.mu.Unlock()
	if p == nil {
		return 0, 0
	}
	return p.Progress()
}

// Start begins a new analysis session: fresh UUID, cleared statistics and
// ring, new pipeline. A still-running session is an error; stop it first.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pipeline != nil {
		switch c.pipeline.State() {
		case StateRunning, StatePaused:
			return errors.New("session: already running")
		}
	}

	p, err := NewPipeline(PipelineConfig{
		Open:         c.cfg.Open,
		Estimator:    c.cfg.Estimator,
		Events:       c.events,
		Side:         c.cfg.Side,
		Qualifiers:   c.cfg.Qualifiers,
		SkipInterval: c.cfg.SkipInterval,
		PollInterval: c.cfg.PollInterval,
		LoopDelay:    c.cfg.LoopDelay,
		StopTimeout:  c.cfg.StopTimeout,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}

	c.sessionID = uuid.NewString()
	c.startedAt = time.Now()
	c.endedAt = time.Time{}
	c.acc.Reset()
	c.ring.Clear()
	c.pipeline = p

	c.logger.Printf("session: starting %s (source %q)", c.sessionID, c.cfg.Source)
	return p.Start()
}

// Pause suspends the current session.
func (c *Controller) Pause() {
	if p := c.currentPipeline(); p != nil {
		p.Pause()
	}
}

// Resume continues a paused session.
func (c *Controller) Resume() {
	if p := c.currentPipeline(); p != nil {
		p.Resume()
	}
}

// Seek repositions the current session's source.
func (c *Controller) Seek(frameIndex int) {
	if p := c.currentPipeline(); p != nil {
		p.Seek(frameIndex)
	}
}

// SetParameters updates side and qualifiers mid-session.
func (c *Controller) SetParameters(side pose.Side, q reba.Qualifiers) {
	if p := c.currentPipeline(); p != nil {
		p.SetParameters(side, q)
	}
}

// Stop ends the session, waits for the pipeline bounded by its stop
// timeout, and persists the summary when a store is configured. A stop
// timeout is logged and persistence proceeds with what was accumulated.
func (c *Controller) Stop(ctx context.Context) error {
	p := c.currentPipeline()
	if p == nil {
		return nil
	}
	if err := p.Stop(); err != nil {
		c.logger.Printf("session: %v", err)
	}

	c.mu.Lock()
	if c.endedAt.IsZero() {
		c.endedAt = time.Now()
	}
	c.mu.Unlock()

	if c.cfg.Store == nil {
		return nil
	}
	summary := c.Summary()
	if summary.SessionID == "" {
		return nil
	}
	if err := c.cfg.Store.SaveSession(ctx, summary, c.acc.Stats(), c.ring.Records()); err != nil {
		return fmt.Errorf("persist session %s: %w", summary.SessionID, err)
	}
	return nil
}

func (c *Controller) currentPipeline() *Pipeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipeline
}

// handleFrame folds each published frame into the ring and the statistics
// and forwards it to the sink. Preview frames from seek-while-paused carry
// no analysis and are not recorded.
func (c *Controller) handleFrame(ev FrameEvent) {
	if ev.Preview {
		return
	}
	ts := ev.Frame.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	rec := SessionRecord{
		FrameID:   ev.Frame.Index,
		Timestamp: ts,
		Angles:    ev.Angles.Angles,
		Score:     ev.Angles.Result.FinalScore,
		RiskLevel: ev.Angles.Result.RiskLevel,
		Detail:    ev.Angles.Result.Detail(),
	}
	c.ring.Push(rec)
	c.acc.Update(ev.Angles.Angles, ev.Angles.Result, ts)
	if c.cfg.Sink != nil {
		c.cfg.Sink.Enqueue(ev.Frame, rec)
	}
}

func (c *Controller) handleFinished() {
	c.mu.Lock()
	if c.endedAt.IsZero() {
		c.endedAt = time.Now()
	}
	c.mu.Unlock()
}
