package session

import (
	"sync"
	"time"

	"github.com/banshee-data/posture.report/internal/reba"
)

// DefaultRingCapacity bounds the recent-frame buffer at roughly five
// minutes of 30fps footage.
const DefaultRingCapacity = 10000

// Ring is a fixed-capacity buffer of the most recent session records.
// When full, the oldest record is evicted; length never exceeds capacity.
// Safe for concurrent use.
type Ring struct {
	mu    sync.Mutex
	buf   []SessionRecord
	head  int // next write position
	count int
}

// NewRing returns a ring holding at most capacity records. A non-positive
// capacity falls back to DefaultRingCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring{buf: make([]SessionRecord, capacity)}
}

// Push appends a record, evicting the oldest when full.
func (r *Ring) Push(rec SessionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Len returns the number of retained records.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Capacity returns the fixed maximum length.
func (r *Ring) Capacity() int { return len(r.buf) }

// Records returns the retained records in arrival order, oldest first.
func (r *Ring) Records() []SessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SessionRecord, 0, r.count)
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Find returns the retained record for frameID, if still buffered.
func (r *Ring) Find(frameID int) (SessionRecord, bool) {
	for _, rec := range r.Records() {
		if rec.FrameID == frameID {
			return rec, true
		}
	}
	return SessionRecord{}, false
}

// InRange returns records whose timestamps fall in [from, to].
func (r *Ring) InRange(from, to time.Time) []SessionRecord {
	var out []SessionRecord
	for _, rec := range r.Records() {
		if !rec.Timestamp.Before(from) && !rec.Timestamp.After(to) {
			out = append(out, rec)
		}
	}
	return out
}

// ByRiskLevel returns the retained records at the given risk band.
func (r *Ring) ByRiskLevel(level reba.RiskLevel) []SessionRecord {
	var out []SessionRecord
	for _, rec := range r.Records() {
		if rec.RiskLevel == level {
			out = append(out, rec)
		}
	}
	return out
}

// HighRisk returns the retained records at or above the score threshold.
func (r *Ring) HighRisk(threshold int) []SessionRecord {
	var out []SessionRecord
	for _, rec := range r.Records() {
		if rec.Score >= threshold {
			out = append(out, rec)
		}
	}
	return out
}

// Clear empties the ring at a session boundary.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.count = 0
}
