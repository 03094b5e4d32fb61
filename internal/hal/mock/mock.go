// Package mock provides a software hal.Port used by host-side tests, the way
// the teacher's driver/stub package provided a software transport.RadioDriver
// for its tests. It models FIFOs and a hardware timer in memory and exposes
// Inject/TxLog helpers so tests can drive the framing engine without real
// UART hardware.
package mock

import (
	"sync"
	"time"

	"github.com/openlx/dmxrdm/internal/hal"
)

// Port is an in-memory hal.Port. It is safe for concurrent use.
type Port struct {
	mu       sync.Mutex
	cb       func(hal.Event)
	irqMask  hal.IRQ
	rxFIFO   []byte
	baud     uint32
	inverted bool
	receive  bool // RTS state; true means listening

	txLog [][]byte // one entry per WriteFIFO call, for test inspection

	timer      *time.Timer
	timerArmed bool

	epoch time.Time
}

// New returns a ready-to-use mock port with the RDM-nominal baud rate.
func New() *Port {
	return &Port{
		baud:    250_000,
		receive: true,
		epoch:   time.Now(),
	}
}

func (p *Port) EnableIRQ(mask hal.IRQ)  { p.mu.Lock(); p.irqMask |= mask; p.mu.Unlock() }
func (p *Port) DisableIRQ(mask hal.IRQ) { p.mu.Lock(); p.irqMask &^= mask; p.mu.Unlock() }
func (p *Port) ClearIRQ(hal.IRQ)        {}

func (p *Port) ReadFIFO(buf []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(buf, p.rxFIFO)
	p.rxFIFO = p.rxFIFO[n:]
	return n
}

func (p *Port) WriteFIFO(data []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	p.txLog = append(p.txLog, cp)
	return len(data)
}

func (p *Port) ResetRxFIFO() { p.mu.Lock(); p.rxFIFO = nil; p.mu.Unlock() }
func (p *Port) ResetTxFIFO() {}

func (p *Port) SetRTS(receive bool) { p.mu.Lock(); p.receive = receive; p.mu.Unlock() }

func (p *Port) SetBaudRate(baud uint32) uint32 {
	applied := clampBaud(baud)
	p.mu.Lock()
	p.baud = applied
	p.mu.Unlock()
	return applied
}

func clampBaud(baud uint32) uint32 {
	switch {
	case baud < 245_000:
		return 245_000
	case baud > 255_000:
		return 255_000
	default:
		return baud
	}
}

func (p *Port) InvertTX(invert bool) { p.mu.Lock(); p.inverted = invert; p.mu.Unlock() }

func (p *Port) RxLevel() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rxFIFO)
}

func (p *Port) TimerSetAlarm(us uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(time.Duration(us)*time.Microsecond, func() {
		p.mu.Lock()
		armed := p.timerArmed
		cb := p.cb
		p.mu.Unlock()
		if armed && cb != nil {
			cb(hal.Event{Kind: hal.EventTimer, Timestamp: p.Now()})
		}
	})
	p.timerArmed = false
}

func (p *Port) TimerStart() { p.mu.Lock(); p.timerArmed = true; p.mu.Unlock() }

func (p *Port) TimerPause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timerArmed = false
	if p.timer != nil {
		p.timer.Stop()
	}
}

func (p *Port) SetCallback(cb func(hal.Event)) { p.mu.Lock(); p.cb = cb; p.mu.Unlock() }

func (p *Port) Now() int64 { return time.Since(p.epoch).Microseconds() }

// Inject synthesizes a BREAK followed by a data drain, the way a real UART's
// RX_BREAK/RX_DATA interrupts would fire for an incoming frame. It is the
// mock equivalent of the teacher's stub.Driver.InjectRx.
func (p *Port) Inject(data []byte) {
	p.mu.Lock()
	cb := p.cb
	p.mu.Unlock()
	if cb == nil {
		return
	}
	cb(hal.Event{Kind: hal.EventRxBreak, Timestamp: p.Now()})
	p.mu.Lock()
	p.rxFIFO = append(p.rxFIFO, data...)
	p.mu.Unlock()
	cb(hal.Event{Kind: hal.EventRxData, Data: data, Timestamp: p.Now()})
}

// InjectError synthesizes a non-data RX interrupt (framing error, overflow,
// or collision) without any accompanying bytes.
func (p *Port) InjectError(kind hal.EventKind) {
	p.mu.Lock()
	cb := p.cb
	p.mu.Unlock()
	if cb != nil {
		cb(hal.Event{Kind: kind, Timestamp: p.Now()})
	}
}

// TxLog returns every byte slice handed to WriteFIFO since the last Reset,
// in order, the way stub.Driver.GetTxLog lets tests inspect what a
// transmitter actually sent.
func (p *Port) TxLog() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.txLog))
	copy(out, p.txLog)
	return out
}

// ResetTxLog clears the recorded transmit log.
func (p *Port) ResetTxLog() { p.mu.Lock(); p.txLog = nil; p.mu.Unlock() }

var _ hal.Port = (*Port)(nil)
