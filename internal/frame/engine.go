package frame

import (
	"sync"
	"time"

	"github.com/openlx/dmxrdm/internal/hal"
)

// Flags mirrors spec.md §3's Port flags bitset. It is mutated only while
// Engine.spin (the spinlock stand-in) is held.
type Flags uint16

const (
	Enabled Flags = 1 << iota
	Idle
	Sending
	SentLast
	InBreak
	InMAB
	HasData
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// DefaultBufCap holds the largest frame the engine must buffer: a full
// 513-byte DMX frame (start code + 512 slots), which dominates the 257-byte
// maximum RDM PDU plus header (spec.md §3).
const DefaultBufCap = 513

// Timing window bounds enforced by SetBreakLen/SetMABLen (spec.md §4.1).
const (
	MinBreakUS = 92
	MaxBreakUS = 1_000_000
	MinMABUS   = 12
	MaxMABUS   = 1_000_000
)

// rxTimeoutUS is the receive-timeout window armed after turning the bus
// around for an expected RDM response: the responder's 2 ms ACK/processing
// budget (E1.20) plus slack (spec.md §4.1 step 5).
const rxTimeoutUS = 2800

// PacketEvent is handed to a waiting caller exactly once per completed or
// failed receive (spec.md §4.1 "Failure semantics": one wakeup per event).
type PacketEvent struct {
	Size int
	Kind Kind
	Err  RxError
}

type rxState uint8

const (
	stateIdleWaitBreak rxState = iota
	stateReceiving
	statePostPacket
)

type txPhase uint8

const (
	txIdle txPhase = iota
	txInBreak
	txInMAB
	txPushing
	txWaitDone
	txTurnaround
)

// Engine drives one port's DMX/RDM line state machine from hal.Port
// interrupts (spec.md §4.1), and the classifier (spec.md §4.2) that decides
// when a receive completes. It owns the shared RX/TX byte buffer. All
// fields below spin are shared with the hal.Port callback (modeling an
// ISR) and must only be touched while spin is held; critical sections are
// kept constant-time, matching spec.md §5.
type Engine struct {
	hw hal.Port

	spin sync.Mutex // stands in for the per-port spinlock (spec.md §5)

	flags Flags
	state rxState
	buf   []byte
	head  int // -1 == waiting for BREAK
	rxSize int
	txSize int

	lastSlotTS int64
	breakLenUS uint32
	mabLenUS   uint32

	tx        txPhase
	txTurn    bool // turn bus around for a response after this TX
	awaitResp bool // turnaround complete; waiting for RX_BREAK or the 2800us timeout

	pending PacketEvent
	wake    chan struct{} // single-slot wakeup token (spec.md §3 "task waiting")
}

// NewEngine builds an Engine of the given buffer capacity (0 selects
// DefaultBufCap) driving hw.
func NewEngine(hw hal.Port, bufCap int) *Engine {
	if bufCap <= 0 {
		bufCap = DefaultBufCap
	}
	e := &Engine{
		hw:         hw,
		buf:        make([]byte, bufCap),
		head:       -1,
		rxSize:     bufCap,
		breakLenUS: 176,
		mabLenUS:   16,
		wake:       make(chan struct{}, 1),
	}
	hw.SetCallback(e.onEvent)
	return e
}

// Enable arms the receive state machine to wait for the next BREAK and
// unmasks receive interrupts (spec.md §4.1 IDLE_WAIT_BREAK).
func (e *Engine) Enable() {
	e.spin.Lock()
	e.flags |= Enabled | Idle
	e.state = stateIdleWaitBreak
	e.head = -1
	e.spin.Unlock()
	e.hw.EnableIRQ(hal.IRQAll)
}

// Disable masks receive interrupts only; any in-flight transmission
// completes undisturbed (spec.md §5 "Disable/enable").
func (e *Engine) Disable() {
	e.hw.DisableIRQ(hal.IRQRxBreak | hal.IRQRxData | hal.IRQRxTimeout | hal.IRQRxFramingErr | hal.IRQRxOverflow | hal.IRQRxClash)
	e.spin.Lock()
	e.flags &^= Enabled
	e.spin.Unlock()
}

// SetBreakLen clamps us into [MinBreakUS, MaxBreakUS] and applies it,
// returning the value actually applied (spec.md §4.1 "the engine never
// raises an error ... it silently clamps").
func (e *Engine) SetBreakLen(us uint32) uint32 {
	applied := clamp(us, MinBreakUS, MaxBreakUS)
	e.spin.Lock()
	e.breakLenUS = applied
	e.spin.Unlock()
	return applied
}

// SetMABLen clamps us into [MinMABUS, MaxMABUS] and applies it.
func (e *Engine) SetMABLen(us uint32) uint32 {
	applied := clamp(us, MinMABUS, MaxMABUS)
	e.spin.Lock()
	e.mabLenUS = applied
	e.spin.Unlock()
	return applied
}

func clamp(v, lo, hi uint32) uint32 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// SetBaud delegates to the HAL, which clamps into the DMX/RDM window and
// returns the applied value.
func (e *Engine) SetBaud(baud uint32) uint32 { return e.hw.SetBaudRate(baud) }

// IsIdle reports whether no transmission is in flight; an unread received
// packet does not affect it.
func (e *Engine) IsIdle() bool {
	e.spin.Lock()
	defer e.spin.Unlock()
	return e.flags.Has(Idle) && !e.flags.Has(Sending)
}

// LastSlotTimestamp returns the monotonic microsecond timestamp of the most
// recently transferred slot byte, in either direction.
func (e *Engine) LastSlotTimestamp() int64 {
	e.spin.Lock()
	defer e.spin.Unlock()
	return e.lastSlotTS
}

// Send arms the transmit state machine with data (already sized to
// txSize), asserting BREAK and driving MAB/data/turnaround per spec.md
// §4.1. turnaround requests that the bus be turned around to listen for an
// RDM response once transmission completes. A Manchester
// DISC_UNIQUE_BRANCH reply, which carries no BREAK, goes through SendRaw
// instead.
func (e *Engine) Send(data []byte, turnaround bool) error {
	if len(data) > len(e.buf) {
		return ErrDataOverflow
	}

	e.spin.Lock()
	copy(e.buf, data)
	e.txSize = len(data)
	e.flags &^= Idle
	e.flags |= Sending
	e.txTurn = turnaround
	e.head = 0
	e.spin.Unlock()

	e.hw.SetRTS(false)
	e.hw.ClearIRQ(hal.IRQTxDone | hal.IRQTimer)
	e.hw.InvertTX(true)
	e.spin.Lock()
	e.tx = txInBreak
	breakLen := e.breakLenUS
	e.flags |= InBreak
	e.spin.Unlock()
	e.hw.TimerSetAlarm(breakLen)
	e.hw.TimerStart()
	return nil
}

// SendRaw transmits data with no BREAK/MAB framing at all, used for the one
// reply spec.md §4.4 step 8 names as omitting the BREAK: the
// Manchester-encoded DISC_UNIQUE_BRANCH response.
func (e *Engine) SendRaw(data []byte) error {
	if len(data) > len(e.buf) {
		return ErrDataOverflow
	}
	e.spin.Lock()
	copy(e.buf, data)
	e.txSize = len(data)
	e.head = 0
	e.flags &^= Idle
	e.flags |= Sending
	e.tx = txPushing
	e.spin.Unlock()

	e.hw.SetRTS(false)
	e.hw.ClearIRQ(hal.IRQTxDone)
	e.hw.EnableIRQ(hal.IRQTxDone)
	e.pushTx()
	return nil
}

// WaitIdle blocks until the engine is idle (no transmission in flight) or
// timeout elapses, returning false on timeout.
func (e *Engine) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if e.IsIdle() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// Receive waits up to timeout for HasData to be set, then returns a copy of
// the received bytes and the tagged outcome (spec.md §4.5 Receive). A
// timeout or a spurious wakeup (port disabled mid-wait) is reported as
// RxErrTimeout with zero size, per spec.md §5 "Cancellation".
func (e *Engine) Receive(timeout time.Duration) (PacketEvent, []byte) {
	deadline := time.Now().Add(timeout)
	for {
		e.spin.Lock()
		has := e.flags.Has(HasData)
		if has {
			ev := e.pending
			out := make([]byte, ev.Size)
			copy(out, e.buf[:ev.Size])
			e.flags &^= HasData
			e.head = -1
			e.state = stateIdleWaitBreak
			e.spin.Unlock()
			return ev, out
		}
		e.spin.Unlock()

		select {
		case <-e.wake:
			continue
		case <-time.After(time.Until(deadline)):
			return PacketEvent{Err: RxErrTimeout}, nil
		}
	}
}

func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// onEvent is installed as the hal.Port callback; it implements the
// receive and transmit state machines of spec.md §4.1. It must never
// block, matching the ISR contract.
func (e *Engine) onEvent(ev hal.Event) {
	switch ev.Kind {
	case hal.EventRxBreak:
		e.onRxBreak(ev)
	case hal.EventRxData:
		e.onRxData(ev)
	case hal.EventRxFramingErr:
		e.completeRx(RxErrFraming)
	case hal.EventRxOverflow:
		e.completeRx(RxErrOverflow)
	case hal.EventRxClash:
		e.completeRx(RxErrCollision)
	case hal.EventRxTimeout:
		e.completeRx(RxErrTimeout)
	case hal.EventTxDone:
		e.finishTx(ev.Timestamp)
	case hal.EventTimer:
		e.onTimer(ev)
	}
}

func (e *Engine) onRxBreak(ev hal.Event) {
	e.spin.Lock()
	defer e.spin.Unlock()
	if e.awaitResp {
		e.awaitResp = false
		e.hw.TimerPause()
	}
	if !e.flags.Has(Enabled) {
		return
	}
	if e.state == stateReceiving && e.head >= 0 {
		// A BREAK mid-packet, with the classifier never having signalled
		// completion, recalibrates the DMX size estimate for next time and
		// silently restarts (spec.md §4.1 RECEIVING: "on the next RX_BREAK
		// ... update rolling rx_size").
		e.rxSize = e.head
	}
	e.flags |= InBreak
	e.flags &^= HasData
	e.head = 0
	e.state = stateReceiving
}

func (e *Engine) onRxData(ev hal.Event) {
	e.spin.Lock()
	if e.awaitResp {
		e.awaitResp = false
		e.hw.TimerPause()
	}
	if e.head < 0 {
		e.head = 0
	}
	n := copy(e.buf[e.head:], ev.Data)
	e.head += n
	e.lastSlotTS = ev.Timestamp
	if e.head > len(e.buf) {
		e.head = len(e.buf)
	}
	complete, kind, rxErr := Classify(e.buf, e.head, e.rxSize)
	if !complete {
		e.spin.Unlock()
		return
	}
	size := e.head
	e.spin.Unlock()
	e.postPacket(size, kind, rxErr)
}

func (e *Engine) completeRx(err RxError) {
	e.spin.Lock()
	size := e.head
	if size < 0 {
		size = 0
	}
	e.spin.Unlock()
	e.postPacket(size, KindNone, err)
}

func (e *Engine) postPacket(size int, kind Kind, rxErr RxError) {
	e.spin.Lock()
	e.flags |= HasData
	e.state = statePostPacket
	e.pending = PacketEvent{Size: size, Kind: kind, Err: rxErr}
	e.spin.Unlock()
	e.signal()
}

func (e *Engine) onTimer(ev hal.Event) {
	e.spin.Lock()
	phase := e.tx
	awaiting := e.awaitResp
	if awaiting {
		e.awaitResp = false
	}
	e.spin.Unlock()

	if awaiting {
		e.completeRx(RxErrTimeout)
		return
	}

	switch phase {
	case txInBreak:
		e.hw.InvertTX(false)
		e.spin.Lock()
		e.flags &^= InBreak
		e.flags |= InMAB
		e.tx = txInMAB
		mab := e.mabLenUS
		e.spin.Unlock()
		e.hw.TimerSetAlarm(mab)
		e.hw.TimerStart()
	case txInMAB:
		e.spin.Lock()
		e.flags &^= InMAB
		e.tx = txPushing
		e.spin.Unlock()
		e.hw.TimerPause()
		e.hw.EnableIRQ(hal.IRQTxDone)
		e.pushTx()
	}
}

// pushTx drains the remaining TX payload into the HAL's FIFO with a single
// WriteFIFO call. hal.Port defines no TX-data event, so nothing calls
// pushTx again after a partial write: a backend whose WriteFIFO accepts
// fewer bytes than remain leaves the transfer unfinished. The mock backend
// always takes the whole slice.
func (e *Engine) pushTx() {
	e.spin.Lock()
	remaining := e.buf[e.head:e.txSize]
	e.spin.Unlock()
	if len(remaining) == 0 {
		return
	}
	n := e.hw.WriteFIFO(remaining)
	e.spin.Lock()
	e.head += n
	done := e.head >= e.txSize
	e.spin.Unlock()
	if done {
		e.finishTx(e.hw.Now())
	}
}

// finishTx implements spec.md §4.1 step 5 (TX_DONE). It is invoked either
// directly by pushTx (synchronous HAL backends) or via EventTxDone (a
// backend that raises the interrupt asynchronously); the tx-phase guard
// makes a duplicate call from both paths harmless.
func (e *Engine) finishTx(ts int64) {
	e.spin.Lock()
	if e.tx != txPushing {
		e.spin.Unlock()
		return
	}
	e.spin.Unlock()
	e.onTxDone(hal.Event{Kind: hal.EventTxDone, Timestamp: ts})
}

func (e *Engine) onTxDone(ev hal.Event) {
	e.spin.Lock()
	e.lastSlotTS = ev.Timestamp
	turn := e.txTurn
	e.flags &^= Sending
	e.tx = txIdle
	e.txTurn = false
	e.spin.Unlock()

	if !turn {
		e.spin.Lock()
		e.flags |= Idle
		e.flags |= SentLast
		e.spin.Unlock()
		e.signal()
		return
	}

	// Bus turnaround: become a listener for the expected RDM response
	// (spec.md §4.1 step 5).
	e.hw.SetRTS(true)
	e.hw.ResetRxFIFO()
	e.hw.ClearIRQ(hal.IRQRxBreak | hal.IRQRxData | hal.IRQRxFramingErr | hal.IRQRxOverflow | hal.IRQRxClash)
	e.hw.EnableIRQ(hal.IRQRxBreak | hal.IRQRxData | hal.IRQRxFramingErr | hal.IRQRxOverflow | hal.IRQRxClash)
	e.spin.Lock()
	e.head = -1
	e.state = stateIdleWaitBreak
	e.flags |= Idle
	e.awaitResp = true
	e.spin.Unlock()
	e.hw.TimerSetAlarm(rxTimeoutUS)
	e.hw.TimerStart()
}
