package rdm

import "testing"

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	h := Header{
		Dest:         UID{ManufacturerID: 0x05E0, DeviceID: 0x00000001},
		Src:          UID{ManufacturerID: 0x05E0, DeviceID: 0x00000002},
		TN:           7,
		PortID:       1,
		MessageCount: 0,
		Sub:          Root,
		CC:           CCGetCommand,
		PID:          PIDDeviceInfo,
	}
	pd := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	wire, err := EncodeRequest(h, pd)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}

	got, gotPD, err := DecodeRequest(wire)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if got != h {
		t.Fatalf("decoded header = %+v, want %+v", got, h)
	}
	if string(gotPD) != string(pd) {
		t.Fatalf("decoded pd = %v, want %v", gotPD, pd)
	}
}

func TestDecodeRequestRejectsBadChecksum(t *testing.T) {
	h := Header{Dest: BroadcastAll, Src: UID{}, CC: CCGetCommand, PID: PIDDeviceInfo}
	wire, err := EncodeRequest(h, nil)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	wire[len(wire)-1] ^= 0xFF
	if _, _, err := DecodeRequest(wire); err != ErrInvalidCRC {
		t.Fatalf("err = %v, want ErrInvalidCRC", err)
	}
}

func TestDecodeRequestRejectsBadStartCode(t *testing.T) {
	h := Header{Dest: BroadcastAll, Src: UID{}, CC: CCGetCommand, PID: PIDDeviceInfo}
	wire, _ := EncodeRequest(h, nil)
	wire[0] = 0x00
	if _, _, err := DecodeRequest(wire); err != ErrInvalidArg {
		t.Fatalf("err = %v, want ErrInvalidArg", err)
	}
}

func TestEncodeDecodeDiscoveryResponseRoundTrip(t *testing.T) {
	uid := UID{ManufacturerID: 0x05E0, DeviceID: 0x12345678}
	for preambleLen := 0; preambleLen <= MaxPreambleLen; preambleLen++ {
		wire := EncodeDiscoveryResponse(uid, preambleLen)
		got, err := DecodeDiscoveryResponse(wire)
		if err != nil {
			t.Fatalf("preambleLen=%d: DecodeDiscoveryResponse: %v", preambleLen, err)
		}
		if got != uid {
			t.Fatalf("preambleLen=%d: got %v, want %v", preambleLen, got, uid)
		}
	}
}

func TestDecodeDiscoveryResponseRejectsCorruptChecksum(t *testing.T) {
	uid := UID{ManufacturerID: 0x05E0, DeviceID: 0x12345678}
	wire := EncodeDiscoveryResponse(uid, 2)
	wire[len(wire)-1] ^= 0xFF
	if _, err := DecodeDiscoveryResponse(wire); err != ErrInvalidCRC {
		t.Fatalf("err = %v, want ErrInvalidCRC", err)
	}
}
