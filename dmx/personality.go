package dmx

import (
	"encoding/binary"

	"github.com/openlx/dmxrdm/rdm"
)

// registerPersonalityParams wires DMX_PERSONALITY and
// DMX_PERSONALITY_DESCRIPTION (spec.md §3 "the nine always-registered
// PIDs ... DMX_PERSONALITY (+ DESCRIPTION"). DMX_START_ADDRESS is not
// registered here: Install registers it separately when the default
// personality's footprint is nonzero.
func registerPersonalityParams(s *rdm.Store, personalities []Personality, current int) error {
	if err := s.AddNew(rdm.PIDDMXPersonality, rdm.Definition{
		PID:       rdm.PIDDMXPersonality,
		CC:        rdm.CCSGet | rdm.CCSSet,
		AllocSize: 1,
		Handler:   dmxPersonalityHandler(personalities),
	}, []byte{byte(current)}); err != nil {
		return err
	}
	return s.AddDeterministic(rdm.PIDDMXPersonalityDesc, rdm.Definition{
		PID:     rdm.PIDDMXPersonalityDesc,
		CC:      rdm.CCSGet,
		Handler: dmxPersonalityDescHandler(personalities),
	})
}

// dmxPersonalityHandler returns a GET/SET handler for DMX_PERSONALITY
// (PID 0x00E0). SET validates the requested index against the registered
// personality list; it does not itself update DEVICE_INFO's footprint
// field or DMX_START_ADDRESS — Port.SetPersonality below does that as
// part of the same composite operation the real driver performs under
// its port mutex.
func dmxPersonalityHandler(personalities []Personality) rdm.Handler {
	return func(s *rdm.Store, cc rdm.CommandClass, sub rdm.SubDevice, pd []byte) rdm.Response {
		switch cc {
		case rdm.CCGetCommand:
			data, err := s.Get(rdm.PIDDMXPersonality)
			if err != nil {
				return rdm.Nack(rdm.NackHardwareFault)
			}
			out := append(data, byte(len(personalities)))
			return rdm.Ack(out)
		case rdm.CCSetCommand:
			if len(pd) != 1 {
				return rdm.Nack(rdm.NackFormatError)
			}
			idx := int(pd[0])
			if idx < 1 || idx > len(personalities) {
				return rdm.Nack(rdm.NackDataOutOfRange)
			}
			if _, err := s.SetAndQueue(rdm.PIDDMXPersonality, pd[:1]); err != nil {
				return rdm.Nack(rdm.NackHardwareFault)
			}
			return rdm.Ack(nil)
		default:
			return rdm.Nack(rdm.NackUnsupportedCommandClass)
		}
	}
}

// dmxPersonalityDescHandler returns a GET handler for
// DMX_PERSONALITY_DESCRIPTION (PID 0x00E1), which takes a 1-byte
// personality index in its request PD and answers with that
// personality's footprint and description.
func dmxPersonalityDescHandler(personalities []Personality) rdm.Handler {
	return func(s *rdm.Store, cc rdm.CommandClass, sub rdm.SubDevice, pd []byte) rdm.Response {
		if cc != rdm.CCGetCommand || len(pd) != 1 {
			return rdm.Nack(rdm.NackFormatError)
		}
		idx := int(pd[0])
		if idx < 1 || idx > len(personalities) {
			return rdm.Nack(rdm.NackDataOutOfRange)
		}
		pers := personalities[idx-1]
		out := make([]byte, 3, 3+len(pers.Description))
		out[0] = pd[0]
		binary.BigEndian.PutUint16(out[1:3], uint16(pers.Footprint))
		out = append(out, []byte(pers.Description)...)
		return rdm.Ack(out)
	}
}

// SetPersonality changes the port's active personality, updating
// DEVICE_INFO's footprint/current-personality fields and re-deriving
// DMX_START_ADDRESS's legality (spec.md §9 REDESIGN decision), holding the
// port mutex for the whole composite operation. A switch to a personality
// with a nonzero footprint registers DMX_START_ADDRESS if it is missing; a
// switch to a zero-footprint personality sets DEVICE_INFO's start address
// to 0xFFFF but leaves an already-registered DMX_START_ADDRESS in the
// parameter table.
func (p *Port) SetPersonality(idx int) error {
	p.lock()
	defer p.unlock()
	if !p.installed {
		return ErrNotInstalled
	}
	if idx < 1 || idx > len(p.personalities) {
		return ErrInvalidArg
	}

	info, err := p.store.Get(rdm.PIDDeviceInfo)
	if err != nil {
		return err
	}
	pers := p.personalities[idx-1]
	binary.BigEndian.PutUint16(info[10:12], uint16(pers.Footprint))
	info[12] = byte(idx)

	startAddr := p.dmxStartAddress
	hadFootprint := p.personalities[p.currentPersonality-1].Footprint > 0
	hasFootprint := pers.Footprint > 0
	switch {
	case hasFootprint && !hadFootprint:
		startAddr = 1
		if err := rdm.RegisterDMXStartAddress(p.store, startAddr); err != nil && err != rdm.ErrAlreadyExists {
			return err
		}
	case !hasFootprint:
		startAddr = 0xFFFF
	}
	binary.BigEndian.PutUint16(info[14:16], startAddr)

	if _, err := p.store.Set(rdm.PIDDeviceInfo, info); err != nil {
		return err
	}
	if _, err := p.store.SetAndQueue(rdm.PIDDMXPersonality, []byte{byte(idx)}); err != nil {
		return err
	}

	p.currentPersonality = idx
	p.dmxStartAddress = startAddr
	return nil
}
