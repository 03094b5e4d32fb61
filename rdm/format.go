package rdm

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// field is one parsed element of a parameter format string (spec.md §4.3).
type field struct {
	kind    byte
	literal []byte // decoded bytes, valid when kind == '#'
}

// ParseFormat parses a format string into its field sequence. single
// reports whether the format anchors exactly one instance, either because
// it ends in '$' or because its last field is 'a'/'A' or 'v'/'V' (those
// field kinds are only ever valid at the end of a single instance).
func ParseFormat(format string) (fields []field, single bool, err error) {
	for i := 0; i < len(format); i++ {
		c := format[i]
		switch c {
		case 'b', 'B', 'w', 'W', 'd', 'D', 'u', 'U', 'v', 'V', 'a', 'A':
			fields = append(fields, field{kind: c})
			if c == 'a' || c == 'A' || c == 'v' || c == 'V' {
				single = true
			}
		case '$':
			single = true
		case '#':
			j := i + 1
			for j < len(format) && isHexDigit(format[j]) {
				j++
			}
			if j == i+1 || (j-i-1)%2 != 0 {
				return nil, false, fmt.Errorf("rdm: malformed literal in format %q", format)
			}
			lit, decErr := hex.DecodeString(format[i+1 : j])
			if decErr != nil {
				return nil, false, fmt.Errorf("rdm: malformed literal in format %q: %w", format, decErr)
			}
			fields = append(fields, field{kind: '#', literal: lit})
			i = j - 1
		default:
			return nil, false, fmt.Errorf("rdm: unknown format character %q in %q", c, format)
		}
	}
	return fields, single, nil
}

// FieldSize returns the fixed wire size of one instance of kind, and
// whether that size is variable (only 'a'/'A' is variable).
func FieldSize(kind byte) (size int, variable bool) {
	switch kind {
	case 'b', 'B':
		return 1, false
	case 'w', 'W':
		return 2, false
	case 'd', 'D':
		return 4, false
	case 'u', 'U', 'v', 'V':
		return 6, false
	case 'a', 'A':
		return 32, true
	default:
		return 0, false
	}
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Marshal serializes values against format, producing the wire bytes for
// exactly one instance. Literal ('#') fields and the '$' anchor consume no
// values. A 'v'/'V' field whose UID value is the zero UID is omitted from
// the output, per spec.md §4.3.
func Marshal(format string, values ...any) ([]byte, error) {
	fields, _, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	var out []byte
	vi := 0
	next := func() (any, error) {
		if vi >= len(values) {
			return nil, fmt.Errorf("rdm: format %q needs more values than provided", format)
		}
		v := values[vi]
		vi++
		return v, nil
	}
	for _, f := range fields {
		switch f.kind {
		case '#':
			out = append(out, f.literal...)
		case 'b', 'B':
			v, err := next()
			if err != nil {
				return nil, err
			}
			b, ok := v.(uint8)
			if !ok {
				return nil, fmt.Errorf("rdm: field %q wants uint8, got %T", string(f.kind), v)
			}
			out = append(out, b)
		case 'w', 'W':
			v, err := next()
			if err != nil {
				return nil, err
			}
			w, ok := v.(uint16)
			if !ok {
				return nil, fmt.Errorf("rdm: field %q wants uint16, got %T", string(f.kind), v)
			}
			var buf [2]byte
			binary.BigEndian.PutUint16(buf[:], w)
			out = append(out, buf[:]...)
		case 'd', 'D':
			v, err := next()
			if err != nil {
				return nil, err
			}
			d, ok := v.(uint32)
			if !ok {
				return nil, fmt.Errorf("rdm: field %q wants uint32, got %T", string(f.kind), v)
			}
			var buf [4]byte
			binary.BigEndian.PutUint32(buf[:], d)
			out = append(out, buf[:]...)
		case 'u', 'U':
			v, err := next()
			if err != nil {
				return nil, err
			}
			u, ok := v.(UID)
			if !ok {
				return nil, fmt.Errorf("rdm: field %q wants UID, got %T", string(f.kind), v)
			}
			b := u.Bytes()
			out = append(out, b[:]...)
		case 'v', 'V':
			v, err := next()
			if err != nil {
				return nil, err
			}
			u, ok := v.(UID)
			if !ok {
				return nil, fmt.Errorf("rdm: field %q wants UID, got %T", string(f.kind), v)
			}
			if u != (UID{}) {
				b := u.Bytes()
				out = append(out, b[:]...)
			}
		case 'a', 'A':
			v, err := next()
			if err != nil {
				return nil, err
			}
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("rdm: field %q wants string, got %T", string(f.kind), v)
			}
			if len(s) > 32 {
				s = s[:32]
			}
			out = append(out, []byte(s)...)
		}
	}
	return out, nil
}

// Unmarshal deserializes exactly one instance of format from data,
// returning the decoded values in format order as byte/uint16/uint32/UID/
// string, matching the types Marshal accepts.
func Unmarshal(format string, data []byte) ([]any, error) {
	fields, _, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	var out []any
	for idx, f := range fields {
		switch f.kind {
		case '#':
			if len(data) < len(f.literal) {
				return nil, fmt.Errorf("%w: literal truncated", ErrPacketSize)
			}
			data = data[len(f.literal):]
		case 'b', 'B':
			if len(data) < 1 {
				return nil, fmt.Errorf("%w: byte field truncated", ErrPacketSize)
			}
			out = append(out, data[0])
			data = data[1:]
		case 'w', 'W':
			if len(data) < 2 {
				return nil, fmt.Errorf("%w: word field truncated", ErrPacketSize)
			}
			out = append(out, binary.BigEndian.Uint16(data))
			data = data[2:]
		case 'd', 'D':
			if len(data) < 4 {
				return nil, fmt.Errorf("%w: dword field truncated", ErrPacketSize)
			}
			out = append(out, binary.BigEndian.Uint32(data))
			data = data[4:]
		case 'u', 'U':
			if len(data) < 6 {
				return nil, fmt.Errorf("%w: uid field truncated", ErrPacketSize)
			}
			out = append(out, UIDFromBytes(data[:6]))
			data = data[6:]
		case 'v', 'V':
			if len(data) == 0 {
				out = append(out, UID{})
				continue
			}
			if len(data) < 6 {
				return nil, fmt.Errorf("%w: optional uid field truncated", ErrPacketSize)
			}
			out = append(out, UIDFromBytes(data[:6]))
			data = data[6:]
		case 'a', 'A':
			s := data
			if len(s) > 32 {
				s = s[:32]
			}
			if i := indexByte(s, 0); i >= 0 {
				s = s[:i]
			}
			out = append(out, string(s))
			data = nil
		}
		_ = idx
	}
	return out, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// InstanceSize returns the fixed wire size of one pass over fields, and
// false if any field has variable length ('a'/'A').
func InstanceSize(format string) (size int, fixed bool, err error) {
	fields, _, err := ParseFormat(format)
	if err != nil {
		return 0, false, err
	}
	for _, f := range fields {
		if f.kind == '#' {
			size += len(f.literal)
			continue
		}
		fs, variable := FieldSize(f.kind)
		if variable {
			return 0, false, nil
		}
		size += fs
	}
	return size, true, nil
}

// RepeatCount returns how many repeated instances of format fit in a
// buffer of n bytes, per spec.md §4.3: "without $ or a trailing a/v, a
// buffer of length n is repeatedly serialized as n / field_size
// instances".
func RepeatCount(format string, n int) (int, error) {
	size, fixed, err := InstanceSize(format)
	if err != nil {
		return 0, err
	}
	if !fixed || size == 0 {
		return 0, fmt.Errorf("rdm: format %q has no fixed instance size", format)
	}
	return n / size, nil
}

// UnmarshalAll decodes every repeated instance of format found in data,
// per spec.md §4.3's repetition rule. format must name exactly one field
// and must not end in '$', 'a'/'A', or 'v'/'V'.
func UnmarshalAll(format string, data []byte) ([]any, error) {
	size, fixed, err := InstanceSize(format)
	if err != nil {
		return nil, err
	}
	if !fixed || size == 0 {
		return nil, fmt.Errorf("rdm: format %q is not repeatable", format)
	}
	var out []any
	for len(data) >= size {
		vals, err := Unmarshal(format, data[:size])
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
		data = data[size:]
	}
	return out, nil
}
