package session

import "sync"

// FrameEvent is published once per loop iteration, whether or not the frame
// was freshly classified. Stale marks a result reused from the single-slot
// cache on a skipped frame; Preview marks the single cleared-analysis frame
// published when a seek is serviced while paused.
type FrameEvent struct {
	Frame   Frame
	Angles  AngleResult
	FPS     float64
	Stale   bool
	Preview bool
}

// ProgressEvent reports loop position. TotalFrames is 0 for live sources.
type ProgressEvent struct {
	CurrentFrame int
	TotalFrames  int
}

// Events is a thread-safe handler registry crossing the worker→consumer
// boundary. Handlers run synchronously on the worker goroutine, so they must
// not block; anything slow belongs behind the recorder's queue.
type Events struct {
	mu       sync.Mutex
	frame    []func(FrameEvent)
	progress []func(ProgressEvent)
	errs     []func(error)
	finished []func()
}

// NewEvents returns an empty registry.
func NewEvents() *Events { return &Events{} }

// OnFrame registers a frame-processed handler.
func (e *Events) OnFrame(h func(FrameEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frame = append(e.frame, h)
}

// OnProgress registers a progress handler.
func (e *Events) OnProgress(h func(ProgressEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = append(e.progress, h)
}

// OnError registers a terminal-error handler.
func (e *Events) OnError(h func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errs = append(e.errs, h)
}

// OnFinished registers an end-of-session handler; it fires exactly once per
// session.
func (e *Events) OnFinished(h func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = append(e.finished, h)
}

func (e *Events) emitFrame(ev FrameEvent) {
	for _, h := range e.handlersFrame() {
		h(ev)
	}
}

func (e *Events) emitProgress(ev ProgressEvent) {
	e.mu.Lock()
	hs := append([]func(ProgressEvent){}, e.progress...)
	e.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

func (e *Events) emitError(err error) {
	e.mu.Lock()
	hs := append([]func(error){}, e.errs...)
	e.mu.Unlock()
	for _, h := range hs {
		h(err)
	}
}

func (e *Events) emitFinished() {
	e.mu.Lock()
	hs := append([]func(){}, e.finished...)
	e.mu.Unlock()
	for _, h := range hs {
		h()
	}
}

func (e *Events) handlersFrame() []func(FrameEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]func(FrameEvent){}, e.frame...)
}
