package rdm

import "encoding/binary"

// Responder dispatches incoming RDM request packets against a Store,
// grounded on the teacher's protocol.DecodeFrame dispatch-by-type shape,
// generalized from a fixed switch over two message kinds to a PID table
// lookup (spec.md §4.4).
type Responder struct {
	UID   UID
	Store *Store

	muted bool
}

// NewResponder builds a Responder bound to uid and backed by s. s must
// already have the required PIDs registered (see RegisterRequiredParameters).
func NewResponder(uid UID, s *Store) *Responder {
	return &Responder{UID: uid, Store: s}
}

// Dispatch processes one fully-framed RDM request packet (as decoded by
// DecodeRequest) and returns the wire bytes of the response, or nil if no
// response should be sent (spec.md §4.4 steps 1-7).
//
// Broadcast suppression: a request addressed to UID.BroadcastAll or to the
// manufacturer-broadcast UID never produces a response, matching real
// fixtures that would otherwise collide on the bus.
func (r *Responder) Dispatch(req []byte) []byte {
	h, pd, err := DecodeRequest(req)
	if err != nil {
		return nil // malformed packets are silently dropped, spec.md §4.4 step 1
	}

	if h.CC == CCDiscoveryCommand && h.PID == PIDDiscUniqueBranch {
		return r.dispatchDiscUniqueBranch(h, pd)
	}

	if !r.UID.Matches(h.Dest) {
		return nil
	}
	// A destination that matches our own UID exactly is never a
	// broadcast, even if its bit pattern happens to look like one (an
	// all-ones device field coincides with a valid device UID for at
	// least one spec.md §8 fixture) — only an address that matched via
	// Matches' BroadcastAll/manufacturer-broadcast rule, and not an exact
	// address match, suppresses the reply.
	broadcast := h.Dest != r.UID && h.Dest.IsBroadcast()

	handler, ccs, ok := r.Store.handlerFor(h.PID)
	if !ok {
		if broadcast {
			return nil
		}
		return r.nack(h, NackUnknownPID)
	}
	if !ccs.Allows(h.CC) {
		if broadcast {
			return nil
		}
		return r.nack(h, NackUnsupportedCommandClass)
	}
	if h.Sub != Root {
		if broadcast {
			return nil
		}
		return r.nack(h, NackSubDeviceOutOfRange)
	}

	resp := handler(r.Store, h.CC, h.Sub, pd)
	if broadcast {
		return nil
	}
	return r.encodeResponse(h, resp)
}

// dispatchDiscUniqueBranch answers a DISC_UNIQUE_BRANCH search, replying
// only when this responder is unmuted and its UID falls within [lo, hi]
// inclusive (spec.md §4.5 discovery algorithm). The reply omits the normal
// RDM header entirely: it is the Manchester-encoded response built by
// EncodeDiscoveryResponse, sent without a preceding BREAK (spec.md §4.2).
func (r *Responder) dispatchDiscUniqueBranch(h Header, pd []byte) []byte {
	if r.muted || len(pd) != 12 {
		return nil
	}
	lo := UIDFromBytes(pd[0:6])
	hi := UIDFromBytes(pd[6:12])
	if r.UID.Compare(lo) < 0 || r.UID.Compare(hi) > 0 {
		return nil
	}
	return EncodeDiscoveryResponse(r.UID, DefaultDiscoveryPreamble)
}

func (r *Responder) nack(h Header, reason NackReason) []byte {
	return r.encodeResponse(h, Nack(reason))
}

func (r *Responder) encodeResponse(h Header, resp Response) []byte {
	respHdr := Header{
		Dest:         h.Src,
		Src:          r.UID,
		TN:           h.TN,
		PortID:       uint8(resp.Type),
		MessageCount: r.Store.MessageCount(),
		Sub:          h.Sub,
		CC:           h.CC.Response(),
		PID:          h.PID,
	}

	var pd []byte
	switch resp.Type {
	case ResponseACK:
		pd = resp.Data
	case ResponseACKTimer:
		pd = []byte{byte(resp.DeferMs >> 8), byte(resp.DeferMs)}
	case ResponseNACKReason:
		pd = []byte{byte(resp.Reason >> 8), byte(resp.Reason)}
	}

	out, err := EncodeRequest(respHdr, pd)
	if err != nil {
		return nil
	}
	return out
}

// trimTrailingZero strips trailing NUL padding from a fixed-size storage
// slab holding a variable-length ASCII string (spec.md §4.3 DEVICE_LABEL).
func trimTrailingZero(b []byte) []byte {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return b[:n]
}

// SetMuted sets or clears this responder's discovery-mute flag, invoked by
// the DISC_MUTE/DISC_UN_MUTE handlers below.
func (r *Responder) SetMuted(muted bool) { r.muted = muted }

// Muted reports this responder's current discovery-mute flag.
func (r *Responder) Muted() bool { return r.muted }

// --- default handlers for required/common PIDs (spec.md §9) ---

// ManufacturerLabelHandler returns a GET handler for MANUFACTURER_LABEL
// (PID 0x0081).
func ManufacturerLabelHandler() Handler {
	return func(s *Store, cc CommandClass, sub SubDevice, pd []byte) Response {
		if cc != CCGetCommand {
			return Nack(NackUnsupportedCommandClass)
		}
		data, err := s.Get(PIDManufacturerLabel)
		if err != nil {
			return Nack(NackHardwareFault)
		}
		return Ack(data)
	}
}

// DeviceInfoHandler returns an ACK handler for DEVICE_INFO (PID 0x0060),
// reading the fixed-format device-info struct directly from the Store.
func DeviceInfoHandler() Handler {
	return func(s *Store, cc CommandClass, sub SubDevice, pd []byte) Response {
		data, err := s.Get(PIDDeviceInfo)
		if err != nil {
			return Nack(NackHardwareFault)
		}
		return Ack(data)
	}
}

// SoftwareVersionLabelHandler returns an ACK handler for
// SOFTWARE_VERSION_LABEL (PID 0x00C0).
func SoftwareVersionLabelHandler() Handler {
	return func(s *Store, cc CommandClass, sub SubDevice, pd []byte) Response {
		data, err := s.Get(PIDSoftwareVersionLabel)
		if err != nil {
			return Nack(NackHardwareFault)
		}
		return Ack(data)
	}
}

// IdentifyDeviceHandler returns a GET/SET handler for IDENTIFY_DEVICE
// (PID 0x1000), invoking cb after every accepted SET, whether or not the
// identify state changed.
func IdentifyDeviceHandler(cb func(on bool)) Handler {
	return func(s *Store, cc CommandClass, sub SubDevice, pd []byte) Response {
		switch cc {
		case CCGetCommand:
			data, err := s.Get(PIDIdentifyDevice)
			if err != nil {
				return Nack(NackHardwareFault)
			}
			return Ack(data)
		case CCSetCommand:
			if len(pd) != 1 || (pd[0] != 0 && pd[0] != 1) {
				return Nack(NackFormatError)
			}
			if _, err := s.Set(PIDIdentifyDevice, pd); err != nil {
				return Nack(NackHardwareFault)
			}
			if cb != nil {
				cb(pd[0] == 1)
			}
			return Ack(nil)
		default:
			return Nack(NackUnsupportedCommandClass)
		}
	}
}

// DeviceLabelHandler returns a GET/SET handler for DEVICE_LABEL
// (PID 0x0082), a variable-length ASCII string up to 32 bytes.
func DeviceLabelHandler() Handler {
	return func(s *Store, cc CommandClass, sub SubDevice, pd []byte) Response {
		switch cc {
		case CCGetCommand:
			data, err := s.Get(PIDDeviceLabel)
			if err != nil {
				return Nack(NackHardwareFault)
			}
			return Ack(trimTrailingZero(data))
		case CCSetCommand:
			if len(pd) > 32 {
				return Nack(NackFormatError)
			}
			padded := make([]byte, 32)
			copy(padded, pd)
			if _, err := s.SetAndQueue(PIDDeviceLabel, padded); err != nil {
				return Nack(NackHardwareFault)
			}
			return Ack(nil)
		default:
			return Nack(NackUnsupportedCommandClass)
		}
	}
}

// DMXStartAddressHandler returns a GET/SET handler for DMX_START_ADDRESS
// (PID 0x00F0), rejecting out-of-range addresses per spec.md §4.3.
func DMXStartAddressHandler() Handler {
	return func(s *Store, cc CommandClass, sub SubDevice, pd []byte) Response {
		switch cc {
		case CCGetCommand:
			data, err := s.Get(PIDDMXStartAddress)
			if err != nil {
				return Nack(NackHardwareFault)
			}
			return Ack(data)
		case CCSetCommand:
			if len(pd) != 2 {
				return Nack(NackFormatError)
			}
			addr := binary.BigEndian.Uint16(pd)
			if addr == 0 || addr > 512 {
				return Nack(NackDataOutOfRange)
			}
			if _, err := s.SetAndQueue(PIDDMXStartAddress, pd); err != nil {
				return Nack(NackHardwareFault)
			}
			return Ack(nil)
		default:
			return Nack(NackUnsupportedCommandClass)
		}
	}
}

// SupportedParametersHandler returns a GET handler for
// SUPPORTED_PARAMETERS (PID 0x0050), listing every registered
// manufacturer-specific PID (standard PIDs are implied and excluded,
// spec.md §4.3).
func SupportedParametersHandler() Handler {
	return func(s *Store, cc CommandClass, sub SubDevice, pd []byte) Response {
		if cc != CCGetCommand {
			return Nack(NackUnsupportedCommandClass)
		}
		ids := make([]PID, s.Count())
		s.List(ids)
		out := make([]byte, 0, len(ids)*2)
		for _, pid := range ids {
			if pid < PIDManufacturerSpecificBegin || pid > PIDManufacturerSpecificEnd {
				continue
			}
			out = append(out, byte(pid>>8), byte(pid))
		}
		return Ack(out)
	}
}

// ParameterDescriptionHandler returns a GET handler for
// PARAMETER_DESCRIPTION (PID 0x0051), describing a manufacturer-specific
// PID named in the request's parameter data.
func ParameterDescriptionHandler() Handler {
	return func(s *Store, cc CommandClass, sub SubDevice, pd []byte) Response {
		if cc != CCGetCommand || len(pd) != 2 {
			return Nack(NackFormatError)
		}
		pid := PID(binary.BigEndian.Uint16(pd))
		def, err := s.Schema(pid)
		if err != nil {
			return Nack(NackDataOutOfRange)
		}
		var defaultVal uint32
		for _, b := range def.Default {
			defaultVal = defaultVal<<8 | uint32(b)
		}
		out := make([]byte, 2, 2+20+1+len(def.Description))
		binary.BigEndian.PutUint16(out, uint16(pid))
		out = append(out,
			byte(def.PDLSize),
			0, 0, // data type (unused by this responder)
			0, // command class
			0, // type
			def.Unit,
			def.Prefix,
			byte(def.Min>>24), byte(def.Min>>16), byte(def.Min>>8), byte(def.Min),
			byte(defaultVal>>24), byte(defaultVal>>16), byte(defaultVal>>8), byte(defaultVal),
			byte(def.Max>>24), byte(def.Max>>16), byte(def.Max>>8), byte(def.Max),
		)
		out = append(out, []byte(def.Description)...)
		return Ack(out)
	}
}

// QueuedMessageHandler returns a GET handler for QUEUED_MESSAGE
// (PID 0x0020): dequeues and re-encodes the oldest pending parameter
// change as if it had been requested directly (spec.md §3 "Queued-message
// ring").
func QueuedMessageHandler() Handler {
	return func(s *Store, cc CommandClass, sub SubDevice, pd []byte) Response {
		if cc != CCGetCommand {
			return Nack(NackUnsupportedCommandClass)
		}
		pid, ok := s.Dequeue()
		if !ok {
			return Nack(NackDataOutOfRange)
		}
		data, err := s.Get(pid)
		if err != nil {
			return Nack(NackHardwareFault)
		}
		out := make([]byte, 2+len(data))
		binary.BigEndian.PutUint16(out, uint16(pid))
		copy(out[2:], data)
		return Ack(out)
	}
}

// DiscMuteHandler and DiscUnMuteHandler answer DISC_MUTE/DISC_UN_MUTE
// (spec.md §4.5), toggling the responder's mute flag and ACKing with the
// control-field/binding-UID PDU the controller expects.
func DiscMuteHandler(r *Responder) Handler {
	return func(s *Store, cc CommandClass, sub SubDevice, pd []byte) Response {
		if cc != CCDiscoveryCommand {
			return Nack(NackUnsupportedCommandClass)
		}
		r.SetMuted(true)
		return Ack([]byte{0x00, 0x00})
	}
}

func DiscUnMuteHandler(r *Responder) Handler {
	return func(s *Store, cc CommandClass, sub SubDevice, pd []byte) Response {
		if cc != CCDiscoveryCommand {
			return Nack(NackUnsupportedCommandClass)
		}
		r.SetMuted(false)
		return Ack([]byte{0x00, 0x00})
	}
}
