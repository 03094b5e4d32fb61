package dmx

import (
	"crypto/rand"
	"sync"

	"github.com/openlx/dmxrdm/internal/hal"
	"github.com/openlx/dmxrdm/rdm"
)

// registry is the process-wide driver table spec.md §9 calls for
// ("Global driver table ... model this as a process-scoped registry with
// install inserting and delete removing; enforce exclusive install via a
// per-slot atomic"), grounded on the original source's dmx_driver array
// and realized here as a mutex-guarded slice rather than a fixed C array,
// since Go has no fixed-size global table idiom in the retrieved pack.
type registry struct {
	mu    sync.Mutex
	ports []*Port

	boundUID    rdm.UID
	boundUIDSet bool
}

var global = &registry{}

// NewPort allocates a Port driven by hw and inserts it into the
// process-wide table, returning the new port (its slot index is Port.ID;
// spec.md §9). The port
// is not installed yet; call Install before use.
func NewPort(hw hal.Port) *Port {
	global.mu.Lock()
	defer global.mu.Unlock()
	id := len(global.ports)
	p := newPort(id, hw)
	global.ports = append(global.ports, p)
	return p
}

// bindingUID returns the process-wide RDM device UID, deriving it once
// from a random 32-bit device field the first time any port installs
// (spec.md §5 "Process-wide state": "a single RDM device UID is derived
// once from the MAC address on first install"; this module has no MAC
// address to read, so it draws from crypto/rand instead — documented in
// DESIGN.md). manufacturerID identifies the vendor/module owner.
func bindingUID(manufacturerID uint16) rdm.UID {
	global.mu.Lock()
	defer global.mu.Unlock()
	if global.boundUIDSet {
		return global.boundUID
	}
	var b [4]byte
	_, _ = rand.Read(b[:])
	deviceID := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	global.boundUID = rdm.UID{ManufacturerID: manufacturerID, DeviceID: deviceID}
	global.boundUIDSet = true
	return global.boundUID
}

// Install brings a port up using the process-wide binding UID, the
// convenience entry point most callers use (spec.md §3 "install(port,
// config, personalities)"). manufacturerID is only consulted the first
// time any port installs; subsequent ports share the already-derived UID
// (spec.md §5: "Subsequent ports expose the same UID").
func Install(p *Port, manufacturerID uint16, cfg Config) error {
	return p.Install(cfg, bindingUID(manufacturerID))
}

// Delete removes p from service and drops it from the process-wide
// table, matching spec.md §3 "delete(port)" / invariant 2 ("the driver
// table slot is null").
func Delete(p *Port) error {
	if err := p.Delete(); err != nil {
		return err
	}
	global.mu.Lock()
	defer global.mu.Unlock()
	for i, q := range global.ports {
		if q == p {
			global.ports = append(global.ports[:i], global.ports[i+1:]...)
			break
		}
	}
	return nil
}

// Ports returns a snapshot of every currently registered port.
func Ports() []*Port {
	global.mu.Lock()
	defer global.mu.Unlock()
	out := make([]*Port, len(global.ports))
	copy(out, global.ports)
	return out
}
