package frame

import "testing"

func TestClassifyDMX(t *testing.T) {
	buf := make([]byte, 600)
	buf[0] = 0x00 // DMX start code

	if complete, kind, _ := Classify(buf, 10, 0); complete || kind != KindDMX {
		t.Fatalf("unknown rx size should never complete: got complete=%v kind=%v", complete, kind)
	}
	if complete, kind, _ := Classify(buf, 100, 100); !complete || kind != KindDMX {
		t.Fatalf("expected complete DMX frame at head==rxSize, got complete=%v kind=%v", complete, kind)
	}
	if complete, _, _ := Classify(buf, 99, 100); complete {
		t.Fatalf("expected incomplete DMX frame before head reaches rxSize")
	}
}

func TestClassifyRDM(t *testing.T) {
	// sub-start-code 0x01, message length 24 (header only, no PD), so total
	// expected = 24 + 2 = 26 bytes.
	buf := make([]byte, 30)
	buf[0] = startCodeRDM
	buf[1] = subStartCode
	buf[2] = 24

	sum := checksum(buf[:24])
	buf[24] = byte(sum >> 8)
	buf[25] = byte(sum)

	if complete, _, _ := Classify(buf, 10, 0); complete {
		t.Fatalf("expected incomplete RDM packet before length known")
	}
	complete, kind, rxErr := Classify(buf, 26, 0)
	if !complete || kind != KindRDM || rxErr != RxErrNone {
		t.Fatalf("expected complete clean RDM packet, got complete=%v kind=%v err=%v", complete, kind, rxErr)
	}

	buf[25] ^= 0xFF // corrupt checksum
	complete, kind, rxErr = Classify(buf, 26, 0)
	if !complete || kind != KindRDM || rxErr != RxErrChecksum {
		t.Fatalf("expected checksum error on corrupted RDM packet, got complete=%v err=%v", complete, rxErr)
	}
}

func TestClassifyDiscoveryResponse(t *testing.T) {
	for preambleLen := 0; preambleLen <= 7; preambleLen++ {
		uid := [6]byte{0x05, 0xE0, 0x00, 0x00, 0x00, byte(preambleLen + 1)}
		buf := encodeDiscoveryResponseForTest(t, preambleLen, uid)

		complete, kind, rxErr := Classify(buf, len(buf), 0)
		if !complete || kind != KindRDMDiscResp || rxErr != RxErrNone {
			t.Fatalf("preambleLen=%d: expected clean complete disc response, got complete=%v err=%v", preambleLen, complete, rxErr)
		}

		decoded, err := DecodeDiscoveryResponse(buf)
		if err != nil {
			t.Fatalf("preambleLen=%d: DecodeDiscoveryResponse: %v", preambleLen, err)
		}
		for i := 0; i < 6; i++ {
			if decoded[i] != uid[i] {
				t.Fatalf("preambleLen=%d: decoded[%d]=%#x want %#x", preambleLen, i, decoded[i], uid[i])
			}
		}
	}
}

func TestClassifyDiscoveryResponsePreambleLen8Rejected(t *testing.T) {
	buf := make([]byte, 8)
	for i := range buf {
		buf[i] = preamble
	}
	complete, _, rxErr := Classify(buf, len(buf), 0)
	if !complete || rxErr != RxErrMalformedLength {
		t.Fatalf("expected malformed-length rejection for 8-byte preamble, got complete=%v err=%v", complete, rxErr)
	}
}

// encodeDiscoveryResponseForTest builds the wire form without depending on
// the rdm package, to keep this package's tests dependency-free.
func encodeDiscoveryResponseForTest(t *testing.T, preambleN int, uid [6]byte) []byte {
	t.Helper()
	wire := make([]byte, 0, preambleN+1+16)
	for i := 0; i < preambleN; i++ {
		wire = append(wire, preamble)
	}
	wire = append(wire, delimiter)

	encodePair := func(b byte) (byte, byte) {
		return b | 0xAA, b | 0x55
	}

	var uidWire [12]byte
	for i, b := range uid {
		lo, hi := encodePair(b)
		uidWire[2*i], uidWire[2*i+1] = lo, hi
	}
	wire = append(wire, uidWire[:]...)

	var sum uint16
	for _, b := range uidWire {
		sum += uint16(b)
	}
	checksumBytes := [2]byte{byte(sum >> 8), byte(sum)}
	for _, b := range checksumBytes {
		lo, hi := encodePair(b)
		wire = append(wire, lo, hi)
	}
	return wire
}
