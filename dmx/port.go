package dmx

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/openlx/dmxrdm/internal/frame"
	"github.com/openlx/dmxrdm/internal/hal"
	"github.com/openlx/dmxrdm/rdm"
	"github.com/openlx/dmxrdm/sniffer"
)

// Port is the per-UART driver façade (spec.md §3 "Port"): it owns the HAL
// handle indirectly through *frame.Engine, the RDM store/responder/
// controller, and the recursive-mutex/spinlock concurrency model.
// Grounded on the teacher's transport.Receiver/transport.Transmitter pair,
// generalized into one object that owns both directions of the line the
// way the original source's single dmx_driver_t does.
type Port struct {
	id int

	engine *frame.Engine

	// mu is the "recursive mutex" spec.md §5 calls for. Composite
	// operations (RDMRequest, Discover) take mu exactly once at the
	// public entry point and then drive the framing engine directly
	// through a Transport that never touches mu itself — the "internal
	// unlocked variants and a thin outer wrapper" spec.md §9 suggests,
	// specialized so the only primitive that needs an unlocked sibling is
	// the engine, which already has its own independent spinlock.
	mu sync.Mutex

	store     *rdm.Store
	responder *rdm.Responder
	uid       rdm.UID

	personalities      []Personality
	currentPersonality int
	dmxStartAddress    uint16

	nvs NVS

	sniffer *sniffer.Recorder

	installed bool
}

// lock acquires the port mutex, in the teacher's style of a thin wrapper
// around sync.Mutex rather than a channel-based semaphore. It is not
// reentrant: every public entry point takes it exactly once, and none
// calls another locking method while holding it.
func (p *Port) lock() {
	p.mu.Lock()
}

func (p *Port) unlock() {
	p.mu.Unlock()
}

// newPort constructs an uninstalled Port bound to hw. id is the registry
// slot index (spec.md §9 "global driver table").
func newPort(id int, hw hal.Port) *Port {
	return &Port{id: id, engine: frame.NewEngine(hw, 0)}
}

// Install brings up the port per spec.md §3 "Lifecycle": registers the
// required PIDs, seeds them from NVS if cfg.NVS is set, and enables the
// framing engine. Calling Install on an already-installed port returns
// ErrAlreadyInstalled without side effects.
func (p *Port) Install(cfg Config, uid rdm.UID) error {
	p.lock()
	defer p.unlock()
	if p.installed {
		return ErrAlreadyInstalled
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return err
	}

	store := rdm.NewStore(cfg.ParameterHeapSize, cfg.ParameterTableCap, cfg.QueueCap)
	responder := rdm.NewResponder(uid, store)

	current := cfg.Personalities[cfg.DefaultPersonality-1]
	startAddr := uint16(1)
	if current.Footprint == 0 {
		startAddr = 0xFFFF // NONE, spec.md §3
	}

	rp := rdm.RequiredParameters{
		Info: rdm.DeviceInfo{
			ProtocolVersionMajor: 1,
			ModelID:              cfg.ModelID,
			ProductCategory:      cfg.ProductCategory,
			SoftwareVersionID:    cfg.SoftwareVersionID,
			DMXFootprint:         uint16(current.Footprint),
			CurrentPersonality:   uint8(cfg.DefaultPersonality),
			PersonalityCount:     uint8(len(cfg.Personalities)),
			DMXStartAddress:      startAddr,
			SubDeviceCount:       0,
			SensorCount:          0,
		},
		SoftwareVersionLabel: cfg.SoftwareVersionLabel,
		DeviceLabel:          cfg.DeviceLabel,
		ManufacturerLabel:    cfg.ManufacturerLabel,
		OnIdentify: func(on bool) {
			log.Printf("[dmx] port %d identify=%v", p.id, on)
		},
	}
	if err := rdm.RegisterRequiredParameters(store, responder, rp); err != nil {
		return err
	}
	if err := registerPersonalityParams(store, cfg.Personalities, cfg.DefaultPersonality); err != nil {
		return err
	}
	if current.Footprint > 0 {
		if err := rdm.RegisterDMXStartAddress(store, startAddr); err != nil {
			return err
		}
	}

	p.store = store
	p.responder = responder
	p.uid = uid
	p.personalities = cfg.Personalities
	p.currentPersonality = cfg.DefaultPersonality
	p.dmxStartAddress = startAddr
	p.nvs = cfg.NVS
	p.installed = true

	if cfg.NVS != nil {
		p.restoreFromNVS()
		store.SetOnChange(rdm.PIDDMXStartAddress, p.persistOnChange)
		store.SetOnChange(rdm.PIDDeviceLabel, p.persistOnChange)
		store.SetOnChange(rdm.PIDIdentifyDevice, p.persistOnChange)
	}

	p.engine.Enable()
	return nil
}

// Delete tears the port down (spec.md §3 "Lifecycle"): disables the
// engine and drops every reference so the parameter heap can be
// collected, leaving the port ready for a fresh Install.
func (p *Port) Delete() error {
	p.lock()
	defer p.unlock()
	if !p.installed {
		return ErrNotInstalled
	}
	p.engine.Disable()
	p.store = nil
	p.responder = nil
	p.sniffer = nil
	p.installed = false
	return nil
}

// Enable and Disable forward to the framing engine, letting a caller
// safely interleave with flash writes that stall the ISR (spec.md §3).
func (p *Port) Enable() error {
	p.lock()
	defer p.unlock()
	if !p.installed {
		return ErrNotInstalled
	}
	p.engine.Enable()
	return nil
}

func (p *Port) Disable() error {
	p.lock()
	defer p.unlock()
	if !p.installed {
		return ErrNotInstalled
	}
	p.engine.Disable()
	return nil
}

// ID returns this port's registry slot index (spec.md §9 "global driver
// table"), stable for the port's lifetime.
func (p *Port) ID() int { return p.id }

// UID returns this port's bound RDM device UID.
func (p *Port) UID() rdm.UID {
	p.lock()
	defer p.unlock()
	return p.uid
}

// Store exposes the parameter store for advanced callers that need to
// register manufacturer-specific PIDs after Install (spec.md §3
// "Parameters are added only between install and delete").
func (p *Port) Store() *rdm.Store {
	p.lock()
	defer p.unlock()
	return p.store
}

func (p *Port) persistOnChange(pid rdm.PID, data []byte) {
	if p.nvs == nil {
		return
	}
	if err := p.nvs.Set(nvsKey(uint16(pid)), data); err != nil {
		log.Printf("[dmx] port %d: nvs persist pid %#04x failed: %v", p.id, pid, err)
	}
}

func (p *Port) restoreFromNVS() {
	for _, pid := range []rdm.PID{rdm.PIDDMXStartAddress, rdm.PIDDeviceLabel, rdm.PIDIdentifyDevice} {
		data, ok := p.nvs.Get(nvsKey(uint16(pid)))
		if !ok {
			continue
		}
		if _, err := p.store.Set(pid, data); err != nil {
			log.Printf("[dmx] port %d: nvs restore pid %#04x failed: %v", p.id, pid, err)
		}
	}
}

// Send transmits a raw DMX or RDM frame, waiting for the engine to go
// idle first (spec.md §4.5 "send: waits until the engine is idle, arms
// TX"). turnaround requests listening for an RDM response afterward.
func (p *Port) Send(data []byte, turnaround bool) error {
	p.lock()
	defer p.unlock()
	if !p.installed {
		return ErrNotInstalled
	}
	if !p.engine.WaitIdle(time.Second) {
		return ErrTimeout
	}
	return p.engine.Send(data, turnaround)
}

// Receive waits up to timeout for a complete frame (spec.md §4.5
// "receive").
func (p *Port) Receive(timeout time.Duration) (frame.PacketEvent, []byte) {
	p.lock()
	defer p.unlock()
	if !p.installed {
		return frame.PacketEvent{Err: frame.RxErrTimeout}, nil
	}
	return p.engine.Receive(timeout)
}

// DispatchIncoming feeds one fully-framed RDM request to this port's
// responder and transmits the reply if any (spec.md §4.4, invoked by the
// caller once Receive reports KindRDM).
func (p *Port) DispatchIncoming(req []byte) error {
	p.lock()
	defer p.unlock()
	if !p.installed {
		return ErrNotInstalled
	}
	resp := p.responder.Dispatch(req)
	if resp == nil {
		return nil
	}
	discReply := len(resp) >= 1 && resp[0] != rdm.StartCodeRDM
	if discReply {
		return p.engine.SendRaw(resp)
	}
	return p.engine.Send(resp, false)
}

// portTransport adapts *Port to rdm.Transport for rdm.Controller, keeping the
// rdm package free of any internal/frame or internal/hal dependency.
type portTransport struct{ p *Port }

// Transport returns an rdm.Transport backed by this port's engine,
// suitable for rdm.NewController (spec.md §4.5).
func (p *Port) Transport() rdm.Transport { return portTransport{p: p} }

func (t portTransport) SendRequest(ctx context.Context, data []byte) error {
	return t.p.engine.Send(data, true)
}

func (t portTransport) ReceiveResponse(ctx context.Context, timeout time.Duration) ([]byte, error) {
	ev, data := t.p.engine.Receive(timeout)
	switch ev.Err {
	case frame.RxErrNone:
		return data, nil
	case frame.RxErrTimeout:
		return nil, ErrTimeout
	case frame.RxErrCollision:
		return nil, ErrDataCollision
	case frame.RxErrChecksum:
		// The rdm decoders re-check the checksum and report the mismatch
		// (as a collision, for a discovery response).
		return data, nil
	default:
		return nil, ErrImproperSlot
	}
}

// EnableSniffer attaches a bounded width recorder of the given capacity,
// reachable via Sniffer() for later export (spec.md §5.2).
func (p *Port) EnableSniffer(capacity int) error {
	p.lock()
	defer p.unlock()
	if !p.installed {
		return ErrNotInstalled
	}
	p.sniffer = sniffer.NewRecorder(capacity)
	return nil
}

// DisableSniffer detaches the width recorder, if any.
func (p *Port) DisableSniffer() {
	p.lock()
	defer p.unlock()
	p.sniffer = nil
}

// Sniffer returns the port's currently attached width recorder, or nil.
func (p *Port) Sniffer() *sniffer.Recorder {
	p.lock()
	defer p.unlock()
	return p.sniffer
}

// Controller returns an rdm.Controller sourced from this port's UID and
// driving this port's engine directly (spec.md §4.5). Callers composing
// discovery or manual RDM exchanges take Port's mutex for the whole
// operation by calling RDMRequest/Discover below rather than using this
// directly from concurrent goroutines.
func (p *Port) Controller() *rdm.Controller {
	return rdm.NewController(p.Transport(), p.uid)
}

// RDMRequest sends a single GET/SET request and returns the response
// parameter data, holding the port mutex for the duration (spec.md §4.5
// "rdm_request ... takes the port mutex throughout").
func (p *Port) RDMRequest(ctx context.Context, dest rdm.UID, cc rdm.CommandClass, pid rdm.PID, pd []byte) ([]byte, error) {
	p.lock()
	defer p.unlock()
	if !p.installed {
		return nil, ErrNotInstalled
	}
	return p.Controller().Request(ctx, dest, cc, rdm.Root, pid, pd)
}

// Discover runs a full discovery sweep, holding the port mutex for the
// duration and invoking found once per isolated responder (spec.md §4.5
// "discover_with_callback").
func (p *Port) Discover(ctx context.Context, found func(rdm.UID)) error {
	p.lock()
	defer p.unlock()
	if !p.installed {
		return ErrNotInstalled
	}
	return rdm.Discover(ctx, p.Controller(), found)
}
