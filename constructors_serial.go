// This file provides the real-hardware HAL backend: a port driven over a
// host-attached RS-485-over-USB adapter, the way the teacher's
// constructors_nrf.go bound NewTransmitter/NewReceiver to driver/nrf for
// embedded builds. This module targets no embedded platform of its own
// (spec.md §1 keeps the microcontroller HAL out of scope), so the
// "other" backend here is the one concrete hardware path this module
// does own: a real serial device, used by cmd/dmxctl (SPEC_FULL.md §3).
package dmxrdm

import (
	"github.com/openlx/dmxrdm/dmx"
	"github.com/openlx/dmxrdm/internal/hal/serialhal"
)

// NewSerialPort opens the named serial device (e.g. "/dev/ttyUSB0") and
// returns a Port driven through it, alongside the underlying
// serialhal.Port for callers that need to Close it explicitly.
func NewSerialPort(device string) (*Port, *serialhal.Port, error) {
	hw, err := serialhal.Open(device)
	if err != nil {
		return nil, nil, err
	}
	return dmx.NewPort(hw), hw, nil
}
