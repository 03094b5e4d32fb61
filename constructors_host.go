// This file provides the in-memory HAL backend used for development and
// testing, the way the teacher's constructors_host.go bound
// NewTransmitter/NewReceiver to driver/stub for host builds. Unlike the
// teacher, this module has no embedded-target HAL in scope (spec.md §1
// treats the UART/GPIO/timer HAL as an external collaborator), so this
// constructor is not build-tag gated — it is simply the default way to
// get a running Port without real hardware.
package dmxrdm

import (
	"github.com/openlx/dmxrdm/dmx"
	"github.com/openlx/dmxrdm/internal/hal/mock"
)

// NewPort allocates a Port backed by an in-memory mock.Port, suitable for
// unit tests and local development, mirroring the teacher's
// NewTransmitter(id)/NewReceiver(id) convenience constructors.
func NewPort() *Port {
	return dmx.NewPort(mock.New())
}

// NewMockPort is an alias for NewPort that also returns the underlying
// mock.Port so tests can inject traffic and inspect the TX log directly.
func NewMockPort() (*Port, *mock.Port) {
	hw := mock.New()
	return dmx.NewPort(hw), hw
}
