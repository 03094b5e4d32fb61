package rdm

import "encoding/binary"

// DeviceInfo mirrors the fixed 19-byte DEVICE_INFO structure (ANSI E1.20
// §10.5.1 / spec.md §4.3).
type DeviceInfo struct {
	ProtocolVersionMajor, ProtocolVersionMinor uint8
	ModelID                                    uint16
	ProductCategory                            uint16
	SoftwareVersionID                          uint32
	DMXFootprint                               uint16
	CurrentPersonality, PersonalityCount       uint8
	DMXStartAddress                            uint16
	SubDeviceCount                             uint16
	SensorCount                                uint8
}

// Bytes encodes d into the wire form Get(PIDDeviceInfo) returns.
func (d DeviceInfo) Bytes() []byte {
	b := make([]byte, 19)
	b[0], b[1] = d.ProtocolVersionMajor, d.ProtocolVersionMinor
	binary.BigEndian.PutUint16(b[2:4], d.ModelID)
	binary.BigEndian.PutUint16(b[4:6], d.ProductCategory)
	binary.BigEndian.PutUint32(b[6:10], d.SoftwareVersionID)
	binary.BigEndian.PutUint16(b[10:12], d.DMXFootprint)
	b[12], b[13] = d.CurrentPersonality, d.PersonalityCount
	binary.BigEndian.PutUint16(b[14:16], d.DMXStartAddress)
	binary.BigEndian.PutUint16(b[16:18], d.SubDeviceCount)
	b[18] = d.SensorCount
	return b
}

// RequiredParameters bundles the arguments RegisterRequiredParameters needs
// to seed a fresh Store for one responder identity (spec.md §4.3, §9).
// DMXStartAddress is registered separately by the caller (see
// RegisterDMXStartAddress) only when the current personality's footprint
// is nonzero (spec.md §9 REDESIGN decision).
type RequiredParameters struct {
	Info               DeviceInfo
	SoftwareVersionLabel string
	DeviceLabel        string
	ManufacturerLabel  string
	OnIdentify         func(on bool)
}

// RegisterRequiredParameters allocates and registers every PID a compliant
// responder must support except DMX_START_ADDRESS (see
// RegisterDMXStartAddress) and DMX_PERSONALITY/DMX_PERSONALITY_DESCRIPTION
// (registered by the dmx package); DISC_UNIQUE_BRANCH has no table entry,
// as Dispatch answers it directly. It wires r's discovery-mute state into
// DISC_MUTE/DISC_UN_MUTE and rp's callbacks into IDENTIFY_DEVICE
// (spec.md §4.3 "Required parameters"). Callers add manufacturer-specific
// PIDs afterward with s.AddNew/AddDeterministic directly.
func RegisterRequiredParameters(s *Store, r *Responder, rp RequiredParameters) error {
	type reg struct {
		pid PID
		def Definition
		init []byte
	}
	regs := []reg{
		{PIDDeviceInfo, Definition{PID: PIDDeviceInfo, CC: CCSGet, Format: "", AllocSize: 19, Handler: DeviceInfoHandler()}, rp.Info.Bytes()},
		{PIDSoftwareVersionLabel, Definition{PID: PIDSoftwareVersionLabel, CC: CCSGet, AllocSize: len(rp.SoftwareVersionLabel), Handler: SoftwareVersionLabelHandler()}, []byte(rp.SoftwareVersionLabel)},
		{PIDManufacturerLabel, Definition{PID: PIDManufacturerLabel, CC: CCSGet, AllocSize: len(rp.ManufacturerLabel), Handler: ManufacturerLabelHandler()}, []byte(rp.ManufacturerLabel)},
		{PIDDeviceLabel, Definition{PID: PIDDeviceLabel, CC: CCSGet | CCSSet, AllocSize: 32, Handler: DeviceLabelHandler()}, []byte(rp.DeviceLabel)},
		{PIDIdentifyDevice, Definition{PID: PIDIdentifyDevice, CC: CCSGet | CCSSet, AllocSize: 1, Handler: IdentifyDeviceHandler(rp.OnIdentify)}, []byte{0}},
	}
	for _, e := range regs {
		if err := s.AddNew(e.pid, e.def, e.init); err != nil {
			return err
		}
	}

	if err := s.AddDeterministic(PIDSupportedParameters, Definition{PID: PIDSupportedParameters, CC: CCSGet, Handler: SupportedParametersHandler()}); err != nil {
		return err
	}
	if err := s.AddDeterministic(PIDParameterDescription, Definition{PID: PIDParameterDescription, CC: CCSGet, Handler: ParameterDescriptionHandler()}); err != nil {
		return err
	}
	if err := s.AddDeterministic(PIDQueuedMessage, Definition{PID: PIDQueuedMessage, CC: CCSGet, Handler: QueuedMessageHandler()}); err != nil {
		return err
	}
	if err := s.AddDeterministic(PIDDiscMute, Definition{PID: PIDDiscMute, CC: CCSDisc, Handler: DiscMuteHandler(r)}); err != nil {
		return err
	}
	if err := s.AddDeterministic(PIDDiscUnMute, Definition{PID: PIDDiscUnMute, CC: CCSDisc, Handler: DiscUnMuteHandler(r)}); err != nil {
		return err
	}
	return nil
}

// RegisterDMXStartAddress registers DMX_START_ADDRESS with initial value
// addr. Callers invoke this only when the current personality's footprint
// is nonzero (spec.md §9 REDESIGN decision: "mandatory when footprint > 0
// and forbidden otherwise") and must not call it otherwise.
func RegisterDMXStartAddress(s *Store, addr uint16) error {
	return s.AddNew(PIDDMXStartAddress, Definition{
		PID:       PIDDMXStartAddress,
		CC:        CCSGet | CCSSet,
		AllocSize: 2,
		Handler:   DMXStartAddressHandler(),
	}, []byte{byte(addr >> 8), byte(addr)})
}
