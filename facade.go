// Package dmxrdm provides a façade to the DMX512/RDM driver stack. It
// re-exports the types most callers need from dmx and rdm so a program
// can depend on this one package, the way the teacher's facade.go
// re-exported protocol/transport types under the nrfcomm package.
package dmxrdm

import (
	"github.com/openlx/dmxrdm/dmx"
	"github.com/openlx/dmxrdm/internal/hal"
	"github.com/openlx/dmxrdm/rdm"
)

// Two constructor files provide the concrete HAL backends, the way the
// teacher's NewTransmitter/NewReceiver picked driver/stub vs driver/nrf;
// neither is gated by a build tag, so both are in every build and the
// caller picks one:
//   - constructors_host.go   - development/testing, an in-memory mock.Port
//   - constructors_serial.go - a real RS-485-over-USB adapter via go.bug.st/serial

// Re-export types callers need without reaching into dmx/rdm directly.
type (
	Port        = dmx.Port
	Config      = dmx.Config
	Personality = dmx.Personality
	NVS         = dmx.NVS

	UID          = rdm.UID
	CommandClass = rdm.CommandClass
	PID          = rdm.PID
	SubDevice    = rdm.SubDevice
	Definition   = rdm.Definition
	Handler      = rdm.Handler
	Response     = rdm.Response
	NackReason   = rdm.NackReason
	DeviceInfo   = rdm.DeviceInfo
)

// HALPort is the hardware abstraction a Port is driven through, exposed
// for callers that bring their own backend (a real microcontroller
// UART/timer/GPIO triple, say) rather than one of this package's
// constructors.
type HALPort = hal.Port

// Command class constants (spec.md §3/§6), re-exported for callers that
// register manufacturer-specific PIDs.
const (
	CCDiscovery = rdm.CCDiscoveryCommand
	CCGet       = rdm.CCGetCommand
	CCSet       = rdm.CCSetCommand
)

// Error taxonomy (spec.md §6/§7), re-exported from dmx, which aliases
// rdm's own sentinel errors 1:1.
var (
	ErrInvalidArg       = dmx.ErrInvalidArg
	ErrInvalidState     = dmx.ErrInvalidState
	ErrNoMem            = dmx.ErrNoMem
	ErrTimeout          = dmx.ErrTimeout
	ErrInvalidCRC       = dmx.ErrInvalidCRC
	ErrInvalidResponse  = dmx.ErrInvalidResponse
	ErrDataOverflow     = dmx.ErrDataOverflow
	ErrImproperSlot     = dmx.ErrImproperSlot
	ErrDataCollision    = dmx.ErrDataCollision
	ErrPacketSize       = dmx.ErrPacketSize
	ErrAlreadyInstalled = dmx.ErrAlreadyInstalled
	ErrNotInstalled     = dmx.ErrNotInstalled
)

// Root is sub-device 0, the only sub-device this driver supports
// (spec.md §1 Non-goals: no more than one RDM sub-device per port).
const Root = rdm.Root

// NewPortOn allocates and registers a Port driven by hw, mirroring the
// teacher's NewTransmitterWithDriver/NewReceiverWithDriver pattern for
// callers that already hold a concrete hal.Port (e.g. an
// internal/hal/serialhal.Port opened against a real adapter).
func NewPortOn(hw HALPort) *Port {
	return dmx.NewPort(hw)
}

// Install brings p up using the process-wide binding UID (spec.md §5
// "Process-wide state"), the convenience entry point most callers use.
func Install(p *Port, manufacturerID uint16, cfg Config) error {
	return dmx.Install(p, manufacturerID, cfg)
}

// Delete tears p down and removes it from the process-wide registry.
func Delete(p *Port) error {
	return dmx.Delete(p)
}

// Ports returns every currently registered port.
func Ports() []*Port {
	return dmx.Ports()
}

// ParseUID parses the "MMMM:DDDDDDDD" hex form UID.String produces.
func ParseUID(s string) (UID, error) {
	return rdm.ParseUID(s)
}
