package frame

import "errors"

var (
	errMalformedPreamble = errors.New("frame: malformed discovery-response preamble")
	errMalformedLength   = errors.New("frame: malformed discovery-response length")
	errChecksumMismatch  = errors.New("frame: discovery-response checksum mismatch")

	// ErrDataOverflow is returned by Send/SendRaw when the caller-supplied
	// data exceeds the engine's buffer capacity.
	ErrDataOverflow = errors.New("frame: data exceeds buffer capacity")
)
