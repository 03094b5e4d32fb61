package rdm

import "testing"

func newTestResponder(t *testing.T) (*Responder, UID) {
	t.Helper()
	uid := UID{ManufacturerID: 0x05E0, DeviceID: 0x00000001}
	s := NewStore(4096, 34, 16)
	r := NewResponder(uid, s)
	rp := RequiredParameters{
		Info:                 DeviceInfo{ProtocolVersionMajor: 1, DMXFootprint: 1, PersonalityCount: 1, CurrentPersonality: 1},
		SoftwareVersionLabel: "1.0.0",
		DeviceLabel:          "test fixture",
		ManufacturerLabel:    "acme",
	}
	if err := RegisterRequiredParameters(s, r, rp); err != nil {
		t.Fatalf("RegisterRequiredParameters: %v", err)
	}
	return r, uid
}

func TestResponderDeviceInfoRoundTrip(t *testing.T) {
	r, uid := newTestResponder(t)
	ctrl := UID{ManufacturerID: 0x05E0, DeviceID: 0xAAAAAAAA}

	req := Header{Dest: uid, Src: ctrl, TN: 1, PortID: 1, Sub: Root, CC: CCGetCommand, PID: PIDDeviceInfo}
	wire, err := EncodeRequest(req, nil)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}

	respWire := r.Dispatch(wire)
	if respWire == nil {
		t.Fatal("expected a response")
	}
	h, pd, err := DecodeRequest(respWire)
	if err != nil {
		t.Fatalf("DecodeRequest(response): %v", err)
	}
	if h.CC != CCGetCommandResponse || h.PortID != uint8(ResponseACK) {
		t.Fatalf("unexpected response header: %+v", h)
	}
	if len(pd) != 19 {
		t.Fatalf("device info pd len = %d, want 19", len(pd))
	}
}

func TestResponderUnknownPIDNacks(t *testing.T) {
	r, uid := newTestResponder(t)
	ctrl := UID{ManufacturerID: 0x05E0, DeviceID: 0xAAAAAAAA}

	req := Header{Dest: uid, Src: ctrl, TN: 2, PortID: 1, Sub: Root, CC: CCGetCommand, PID: 0x9999}
	wire, _ := EncodeRequest(req, nil)

	respWire := r.Dispatch(wire)
	h, pd, err := DecodeRequest(respWire)
	if err != nil {
		t.Fatalf("DecodeRequest(response): %v", err)
	}
	if h.PortID != uint8(ResponseNACKReason) {
		t.Fatalf("portID = %d, want NACK", h.PortID)
	}
	if len(pd) != 2 || NackReason(uint16(pd[0])<<8|uint16(pd[1])) != NackUnknownPID {
		t.Fatalf("unexpected nack pd: %v", pd)
	}
}

func TestResponderBroadcastNeverReplies(t *testing.T) {
	r, _ := newTestResponder(t)
	ctrl := UID{ManufacturerID: 0x05E0, DeviceID: 0xAAAAAAAA}

	req := Header{Dest: BroadcastAll, Src: ctrl, TN: 3, PortID: 1, Sub: Root, CC: CCGetCommand, PID: PIDDeviceInfo}
	wire, _ := EncodeRequest(req, nil)

	if resp := r.Dispatch(wire); resp != nil {
		t.Fatalf("expected no response to broadcast, got %v", resp)
	}
}

func TestResponderDiscUniqueBranchMatchesRange(t *testing.T) {
	r, uid := newTestResponder(t)

	lo := UID{ManufacturerID: 0, DeviceID: 0}
	hi := BroadcastAll
	req := Header{Dest: BroadcastAll, Src: UID{}, CC: CCDiscoveryCommand, PID: PIDDiscUniqueBranch}
	loB, hiB := lo.Bytes(), hi.Bytes()
	pd := append(append([]byte{}, loB[:]...), hiB[:]...)
	wire, _ := EncodeRequest(req, pd)

	resp := r.Dispatch(wire)
	if resp == nil {
		t.Fatal("expected a discovery response")
	}
	got, err := DecodeDiscoveryResponse(resp)
	if err != nil {
		t.Fatalf("DecodeDiscoveryResponse: %v", err)
	}
	if got != uid {
		t.Fatalf("got %v, want %v", got, uid)
	}
}

func TestResponderDiscUniqueBranchSilentWhenMuted(t *testing.T) {
	r, _ := newTestResponder(t)
	r.SetMuted(true)

	lo := UID{ManufacturerID: 0, DeviceID: 0}
	hi := BroadcastAll
	req := Header{Dest: BroadcastAll, Src: UID{}, CC: CCDiscoveryCommand, PID: PIDDiscUniqueBranch}
	loB, hiB := lo.Bytes(), hi.Bytes()
	pd := append(append([]byte{}, loB[:]...), hiB[:]...)
	wire, _ := EncodeRequest(req, pd)

	if resp := r.Dispatch(wire); resp != nil {
		t.Fatalf("expected no response while muted, got %v", resp)
	}
}

func TestResponderDiscMuteUnmute(t *testing.T) {
	r, uid := newTestResponder(t)
	ctrl := UID{ManufacturerID: 0x05E0, DeviceID: 0xAAAAAAAA}

	req := Header{Dest: uid, Src: ctrl, TN: 4, PortID: 1, Sub: Root, CC: CCDiscoveryCommand, PID: PIDDiscMute}
	wire, _ := EncodeRequest(req, nil)
	if resp := r.Dispatch(wire); resp == nil {
		t.Fatal("expected ACK for DISC_MUTE")
	}
	if !r.Muted() {
		t.Fatal("expected responder to be muted after DISC_MUTE")
	}

	req.PID = PIDDiscUnMute
	req.TN = 5
	wire, _ = EncodeRequest(req, nil)
	if resp := r.Dispatch(wire); resp == nil {
		t.Fatal("expected ACK for DISC_UN_MUTE")
	}
	if r.Muted() {
		t.Fatal("expected responder to be unmuted after DISC_UN_MUTE")
	}
}

func TestResponderDeviceLabelSetGet(t *testing.T) {
	r, uid := newTestResponder(t)
	ctrl := UID{ManufacturerID: 0x05E0, DeviceID: 0xAAAAAAAA}

	setReq := Header{Dest: uid, Src: ctrl, TN: 6, PortID: 1, Sub: Root, CC: CCSetCommand, PID: PIDDeviceLabel}
	wire, _ := EncodeRequest(setReq, []byte("new label"))
	resp := r.Dispatch(wire)
	h, _, err := DecodeRequest(resp)
	if err != nil || h.PortID != uint8(ResponseACK) {
		t.Fatalf("SET DEVICE_LABEL did not ACK: err=%v h=%+v", err, h)
	}

	getReq := Header{Dest: uid, Src: ctrl, TN: 7, PortID: 1, Sub: Root, CC: CCGetCommand, PID: PIDDeviceLabel}
	wire, _ = EncodeRequest(getReq, nil)
	resp = r.Dispatch(wire)
	_, pd, err := DecodeRequest(resp)
	if err != nil {
		t.Fatalf("GET DEVICE_LABEL: %v", err)
	}
	if string(pd) != "new label" {
		t.Fatalf("label = %q, want %q", pd, "new label")
	}
}
