// Package rdm implements RDM (ANSI E1.20) parameter storage, wire
// serialization, responder dispatch, controller primitives, and discovery,
// grounded on the teacher's protocol package for wire-format shape and on
// npat-efault-modbus's packers.go for the pack/unpack style of a
// request/response wire protocol.
package rdm

import "time"

// Wire-level start codes and framing bytes (spec.md §6).
const (
	StartCodeDMX  = 0x00
	StartCodeRDM  = 0xCC // RDM_SC
	SubStartCode  = 0x01 // RDM_SUB_SC
	Preamble      = 0xFE
	Delimiter     = 0xAA
	MaxPreambleLen = 7
)

// CommandClass identifies whether a message is a discovery, get, or set
// request, or the corresponding response (request CC + 1).
type CommandClass uint8

const (
	CCDiscoveryCommand         CommandClass = 0x10
	CCDiscoveryCommandResponse CommandClass = 0x11
	CCGetCommand               CommandClass = 0x20
	CCGetCommandResponse       CommandClass = 0x21
	CCSetCommand               CommandClass = 0x30
	CCSetCommandResponse       CommandClass = 0x31
)

// Response returns the response command class for a request class.
func (c CommandClass) Response() CommandClass { return c + 1 }

// ResponseType is the value carried in the port-id/response-type field of a
// response packet.
type ResponseType uint8

const (
	ResponseACK         ResponseType = 0x00
	ResponseACKTimer    ResponseType = 0x01
	ResponseNACKReason  ResponseType = 0x02
	ResponseACKOverflow ResponseType = 0x03
)

// NackReason enumerates the RDM NACK reason codes this responder emits.
type NackReason uint16

const (
	NackUnknownPID              NackReason = 0x0000
	NackFormatError             NackReason = 0x0001
	NackHardwareFault           NackReason = 0x0002
	NackProxyReject             NackReason = 0x0003
	NackWriteProtect            NackReason = 0x0004
	NackUnsupportedCommandClass NackReason = 0x0005
	NackDataOutOfRange          NackReason = 0x0006
	NackBufferFull              NackReason = 0x0007
	NackPacketSizeUnsupported   NackReason = 0x0008
	NackSubDeviceOutOfRange     NackReason = 0x0009
	NackProxyBufferFull         NackReason = 0x000A
)

// PID is a 16-bit RDM parameter identifier.
type PID uint16

// Required and commonly-implemented PIDs (ANSI E1.20 §A.1).
const (
	PIDDiscUniqueBranch PID = 0x0001
	PIDDiscMute         PID = 0x0002
	PIDDiscUnMute       PID = 0x0003

	PIDQueuedMessage PID = 0x0020

	PIDSupportedParameters      PID = 0x0050
	PIDParameterDescription     PID = 0x0051
	PIDDeviceInfo               PID = 0x0060
	PIDManufacturerLabel        PID = 0x0081
	PIDDeviceLabel              PID = 0x0082
	PIDSoftwareVersionLabel     PID = 0x00C0
	PIDDMXPersonality           PID = 0x00E0
	PIDDMXPersonalityDesc       PID = 0x00E1
	PIDDMXStartAddress          PID = 0x00F0
	PIDIdentifyDevice           PID = 0x1000

	PIDManufacturerSpecificBegin PID = 0x8000
	PIDManufacturerSpecificEnd   PID = 0xFFDF
)

// CommandClassSet is the set of command classes a parameter's schema
// supports: some subset of {DISC, GET, SET}. GET_SET is represented as
// both CCSGet and CCSSet set simultaneously.
type CommandClassSet uint8

const (
	CCSDisc CommandClassSet = 1 << iota
	CCSGet
	CCSSet
)

func (s CommandClassSet) Allows(cc CommandClass) bool {
	switch cc {
	case CCDiscoveryCommand:
		return s&CCSDisc != 0
	case CCGetCommand:
		return s&CCSGet != 0
	case CCSetCommand:
		return s&CCSSet != 0
	default:
		return false
	}
}

// SubDevice identifies the addressed sub-unit. Only Root (0) is supported
// (spec.md §1 non-goals).
type SubDevice uint16

const Root SubDevice = 0x0000

// HeaderSize is the number of bytes from the destination UID through the
// PID field, inclusive, excluding the start code/sub-start-code/length
// and the PDL byte.
const HeaderSize = 20

// MaxPDL is the largest parameter-data length a request or response may
// carry (spec.md §4.4 step 5).
const MaxPDL = 231

// Controller timing (spec.md §4.5).
const (
	ControllerTimeout       = 23 * time.Millisecond
	BroadcastGuardTime      = 176*time.Microsecond + 3*time.Millisecond
	DiscoveryMaxDepth       = 49
	DiscoveryRetriesPerNode = 3
)

// checksum computes the RDM checksum: the 16-bit unsigned sum of all bytes,
// big-endian on the wire (spec.md §6).
func checksum(b []byte) uint16 {
	var sum uint16
	for _, c := range b {
		sum += uint16(c)
	}
	return sum
}
