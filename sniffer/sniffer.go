// Package sniffer implements the observational BREAK/MAB width recorder
// spec.md §1 lists as an external collaborator and §4.1 specifies inline
// ("Widths are posted to a bounded queue with overwrite-on-full
// semantics"), grounded on the teacher's driver/stub ring-buffer-backed
// fake for the bounded-queue shape.
package sniffer

import "sync"

// Width is one observed BREAK or MAB pulse, timestamped at the edge that
// starts it: a BREAK at its falling edge, a MAB at its rising edge (spec.md §4.1 "positive edge while in-break ⇒ BREAK width;
// subsequent negative edge ⇒ MAB width").
type Width struct {
	Kind      Kind
	Microsecs uint32
	Timestamp int64
}

type Kind uint8

const (
	KindBreak Kind = iota
	KindMAB
)

// Recorder is a bounded, overwrite-on-full queue of observed pulse
// widths. It never blocks a caller posting a new width (spec.md §4.1
// "purely observational and never blocks the engine").
type Recorder struct {
	mu   sync.Mutex
	buf  []Width
	head int // next write position
	size int // number of valid entries, <= len(buf)
}

// NewRecorder allocates a Recorder holding up to cap entries.
func NewRecorder(cap int) *Recorder {
	if cap <= 0 {
		cap = 256
	}
	return &Recorder{buf: make([]Width, cap)}
}

// Post appends w, silently overwriting the oldest entry once the
// recorder is full.
func (r *Recorder) Post(w Width) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.head] = w
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// Drain removes and returns every currently queued width, oldest first.
func (r *Recorder) Drain() []Width {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Width, r.size)
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	r.size = 0
	r.head = 0
	return out
}

// Len reports the number of currently queued widths.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// EdgeTracker turns a stream of GPIO edge timestamps into BREAK/MAB
// widths and posts them to a Recorder, implementing spec.md §4.1's
// sniffer ISR logic outside of any real interrupt context. It is fed only
// through explicit FallingEdge/RisingEdge calls; nothing in this module
// drives it from hal events.
type EdgeTracker struct {
	rec *Recorder

	inBreak    bool
	breakStart int64
	mabStart   int64
}

// NewEdgeTracker builds a tracker posting widths to rec.
func NewEdgeTracker(rec *Recorder) *EdgeTracker {
	return &EdgeTracker{rec: rec}
}

// RisingEdge and FallingEdge feed one GPIO transition at timestamp ts
// (monotonic microseconds) into the tracker. A falling edge marks the line
// going low (BREAK start, or MAB end if one is in progress); a rising edge
// marks the line going high (BREAK end / MAB start), per spec.md §4.1:
// "positive edge while in-break ⇒ BREAK width; subsequent negative edge ⇒
// MAB width".
func (t *EdgeTracker) FallingEdge(ts int64) {
	if t.mabStart != 0 {
		width := ts - t.mabStart
		if width > 0 {
			t.rec.Post(Width{Kind: KindMAB, Microsecs: uint32(width), Timestamp: t.mabStart})
		}
		t.mabStart = 0
	}
	t.inBreak = true
	t.breakStart = ts
}

func (t *EdgeTracker) RisingEdge(ts int64) {
	if !t.inBreak {
		return
	}
	t.inBreak = false
	width := ts - t.breakStart
	if width > 0 {
		t.rec.Post(Width{Kind: KindBreak, Microsecs: uint32(width), Timestamp: t.breakStart})
	}
	t.mabStart = ts
}
