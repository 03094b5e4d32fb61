package rdm

import (
	"encoding/binary"
	"fmt"
)

// ParseUID parses the "MMMM:DDDDDDDD" hex form UID.String produces.
func ParseUID(s string) (UID, error) {
	var mfr uint16
	var dev uint32
	if _, err := fmt.Sscanf(s, "%04X:%08X", &mfr, &dev); err != nil {
		return UID{}, fmt.Errorf("rdm: invalid uid %q: %w", s, err)
	}
	return UID{ManufacturerID: mfr, DeviceID: dev}, nil
}

// UID is a 48-bit RDM device identifier: a 16-bit manufacturer ID and a
// 32-bit device ID, encoded big-endian on the wire (spec.md §3/§6).
type UID struct {
	ManufacturerID uint16
	DeviceID       uint32
}

// BroadcastAll is the UID with all ones in both fields (FFFF:FFFFFFFF);
// every responder answers a request addressed to it.
var BroadcastAll = UID{ManufacturerID: 0xFFFF, DeviceID: 0xFFFFFFFF}

// ManufacturerBroadcast returns the UID that broadcasts to every responder
// registered under the given manufacturer ID.
func ManufacturerBroadcast(manufacturerID uint16) UID {
	return UID{ManufacturerID: manufacturerID, DeviceID: 0xFFFFFFFF}
}

// IsBroadcast reports whether u is the universal or a manufacturer
// broadcast UID.
func (u UID) IsBroadcast() bool { return u.DeviceID == 0xFFFFFFFF }

// Matches reports whether a request addressed to dest should be answered by
// a responder whose UID is u.
func (u UID) Matches(dest UID) bool {
	if dest == u {
		return true
	}
	if dest == BroadcastAll {
		return true
	}
	return dest.DeviceID == 0xFFFFFFFF && dest.ManufacturerID == u.ManufacturerID
}

// Compare orders UIDs lexicographically over the 48-bit concatenation,
// returning <0, 0, >0 the way bytes.Compare does.
func (u UID) Compare(v UID) int {
	switch {
	case u.ManufacturerID != v.ManufacturerID:
		if u.ManufacturerID < v.ManufacturerID {
			return -1
		}
		return 1
	case u.DeviceID != v.DeviceID:
		if u.DeviceID < v.DeviceID {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Less reports whether u sorts before v.
func (u UID) Less(v UID) bool { return u.Compare(v) < 0 }

// Next returns the UID immediately following u in the 48-bit address
// space, wrapping the manufacturer field on device-field overflow. Used by
// discovery when bisecting a range.
func (u UID) Next() UID {
	if u.DeviceID == 0xFFFFFFFF {
		return UID{ManufacturerID: u.ManufacturerID + 1, DeviceID: 0}
	}
	return UID{ManufacturerID: u.ManufacturerID, DeviceID: u.DeviceID + 1}
}

// Prev returns the UID immediately preceding u, mirroring Next.
func (u UID) Prev() UID {
	if u.DeviceID == 0 {
		return UID{ManufacturerID: u.ManufacturerID - 1, DeviceID: 0xFFFFFFFF}
	}
	return UID{ManufacturerID: u.ManufacturerID, DeviceID: u.DeviceID - 1}
}

// Mid returns the midpoint of the closed range [lo, hi], used to bisect a
// discovery branch.
func Mid(lo, hi UID) UID {
	l := uint64(lo.ManufacturerID)<<32 | uint64(lo.DeviceID)
	h := uint64(hi.ManufacturerID)<<32 | uint64(hi.DeviceID)
	m := l + (h-l)/2
	return UID{ManufacturerID: uint16(m >> 32), DeviceID: uint32(m)}
}

// FlipEndian swaps the byte order of the 48-bit UID. Some real-world
// responders misencode the UID; discovery retries once with this applied
// (spec.md §4.5, §9).
func (u UID) FlipEndian() UID {
	b := u.Bytes()
	var f [6]byte
	for i := range b {
		f[i] = b[5-i]
	}
	return UIDFromBytes(f[:])
}

// Bytes encodes u into its big-endian 6-byte wire form.
func (u UID) Bytes() [6]byte {
	var b [6]byte
	binary.BigEndian.PutUint16(b[0:2], u.ManufacturerID)
	binary.BigEndian.PutUint32(b[2:6], u.DeviceID)
	return b
}

// UIDFromBytes decodes a 6-byte big-endian wire form into a UID. Panics if
// b is shorter than 6 bytes; callers must length-check first.
func UIDFromBytes(b []byte) UID {
	return UID{
		ManufacturerID: binary.BigEndian.Uint16(b[0:2]),
		DeviceID:       binary.BigEndian.Uint32(b[2:6]),
	}
}

func (u UID) String() string {
	return fmt.Sprintf("%04X:%08X", u.ManufacturerID, u.DeviceID)
}
