// Package serialhal implements hal.Port on top of a real RS-485-over-USB
// adapter reachable from a host process, using go.bug.st/serial the way
// Thermoquad-heliostat's cmd.OpenSerialConnection does. It backs the
// dmxctl diagnostic CLI; it is not used by the unit tests, which run
// against internal/hal/mock instead.
package serialhal

import (
	"log"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/openlx/dmxrdm/internal/hal"
)

// Port drives a DMX/RDM port over a real serial device. Most RS-485-over-USB
// adapters cannot assert a line-level UART break directly, so BREAK is
// emulated the way the spec allows: a single 0x00 byte is written at 9600
// baud, holding the line low for about 937.5 µs (start bit plus eight zero
// bits) whatever break_len is set to, then the DMX baud rate is restored
// for the data phase. This mirrors spec.md §4.1's "invert TX for
// UARTs that cannot natively produce a long BREAK".
type Port struct {
	mu   sync.Mutex
	port serial.Port
	name string
	baud uint32

	cb      func(hal.Event)
	irqMask hal.IRQ
	rxBuf   []byte

	timer      *time.Timer
	timerArmed bool
	inverted   bool

	epoch   time.Time
	closeCh chan struct{}
}

// Open opens the named serial device (e.g. "/dev/ttyUSB0") for DMX/RDM use.
func Open(name string) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: 250_000,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.TwoStopBits,
	}
	sp, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	p := &Port{
		port:    sp,
		name:    name,
		baud:    250_000,
		epoch:   time.Now(),
		closeCh: make(chan struct{}),
	}
	go p.readLoop()
	return p, nil
}

func (p *Port) Close() error {
	close(p.closeCh)
	return p.port.Close()
}

func (p *Port) readLoop() {
	buf := make([]byte, 512)
	for {
		select {
		case <-p.closeCh:
			return
		default:
		}
		n, err := p.port.Read(buf)
		if err != nil {
			log.Printf("[serialhal %s] read error: %v", p.name, err)
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		p.mu.Lock()
		p.rxBuf = append(p.rxBuf, data...)
		cb := p.cb
		mask := p.irqMask
		p.mu.Unlock()
		if cb != nil && mask&hal.IRQRxData != 0 {
			cb(hal.Event{Kind: hal.EventRxData, Data: data, Timestamp: p.Now()})
		}
	}
}

func (p *Port) EnableIRQ(mask hal.IRQ)  { p.mu.Lock(); p.irqMask |= mask; p.mu.Unlock() }
func (p *Port) DisableIRQ(mask hal.IRQ) { p.mu.Lock(); p.irqMask &^= mask; p.mu.Unlock() }
func (p *Port) ClearIRQ(hal.IRQ)        {}

func (p *Port) ReadFIFO(buf []byte) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := copy(buf, p.rxBuf)
	p.rxBuf = p.rxBuf[n:]
	return n
}

func (p *Port) WriteFIFO(data []byte) int {
	n, err := p.port.Write(data)
	if err != nil {
		log.Printf("[serialhal %s] write error: %v", p.name, err)
		return 0
	}
	return n
}

func (p *Port) ResetRxFIFO() { p.mu.Lock(); p.rxBuf = nil; p.mu.Unlock() }
func (p *Port) ResetTxFIFO() {}

func (p *Port) SetRTS(receive bool) {
	_ = p.port.SetRTS(!receive)
}

func (p *Port) SetBaudRate(baud uint32) uint32 {
	applied := baud
	switch {
	case applied < 245_000:
		applied = 245_000
	case applied > 255_000:
		applied = 255_000
	}
	p.mu.Lock()
	p.baud = applied
	p.mu.Unlock()
	_ = p.port.SetMode(&serial.Mode{BaudRate: int(applied), DataBits: 8, Parity: serial.NoParity, StopBits: serial.TwoStopBits})
	return applied
}

func (p *Port) InvertTX(invert bool) {
	p.mu.Lock()
	p.inverted = invert
	p.mu.Unlock()
	if invert {
		// Hold the line low for the break window by dropping to a very
		// low baud rate and clocking out a single zero byte.
		_ = p.port.SetMode(&serial.Mode{BaudRate: 9600, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit})
		_, _ = p.port.Write([]byte{0x00})
	} else {
		p.mu.Lock()
		baud := p.baud
		p.mu.Unlock()
		_ = p.port.SetMode(&serial.Mode{BaudRate: int(baud), DataBits: 8, Parity: serial.NoParity, StopBits: serial.TwoStopBits})
	}
}

func (p *Port) RxLevel() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rxBuf)
}

func (p *Port) TimerSetAlarm(us uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(time.Duration(us)*time.Microsecond, func() {
		p.mu.Lock()
		armed, cb := p.timerArmed, p.cb
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

var _ hal.Port = (*Port)(nil)
