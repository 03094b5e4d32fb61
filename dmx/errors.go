// Package dmx implements the per-port driver façade: install/delete
// lifecycle, the recursive-mutex/spinlock concurrency model, personality
// management, and the glue between internal/frame's engine and rdm's
// responder/controller, grounded on the teacher's transport.Receiver and
// transport.Transmitter plus the process-wide driver-table pattern implied
// by the original source's dmx_driver array.
package dmx

import "github.com/openlx/dmxrdm/rdm"

// Sentinel errors alias the rdm package's taxonomy 1:1 (spec.md §6/§7):
// dmx callers see the same error values rdm.Controller/rdm.Store return,
// so a caller that imports only dmx never needs to reach into rdm to
// recognize an error category.
var (
	ErrInvalidArg      = rdm.ErrInvalidArg
	ErrInvalidState    = rdm.ErrInvalidState
	ErrNoMem           = rdm.ErrNoMem
	ErrTimeout         = rdm.ErrTimeout
	ErrInvalidCRC      = rdm.ErrInvalidCRC
	ErrInvalidResponse = rdm.ErrInvalidResponse
	ErrDataOverflow    = rdm.ErrDataOverflow
	ErrImproperSlot    = rdm.ErrImproperSlot
	ErrDataCollision   = rdm.ErrDataCollision
	ErrPacketSize      = rdm.ErrPacketSize

	// ErrAlreadyInstalled and ErrNotInstalled are dmx-specific: they guard
	// the Install/Delete lifecycle (spec.md §3 "Lifecycle"), which has no
	// equivalent in rdm.
	ErrAlreadyInstalled = installError("dmx: port already installed")
	ErrNotInstalled     = installError("dmx: port not installed")
)

type installError string

func (e installError) Error() string { return string(e) }

// IsTimeout reports whether err represents a timeout condition, delegating
// to rdm.IsTimeout (spec.md §7).
func IsTimeout(err error) bool { return rdm.IsTimeout(err) }
