package rdm

import (
	"context"
	"testing"
	"time"
)

// loopbackTransport connects a Controller directly to one Responder in
// memory, standing in for a real dmx.Port-backed Transport in tests that
// only care about the controller/responder request-response contract.
type loopbackTransport struct {
	r       *Responder
	pending []byte
}

func (t *loopbackTransport) SendRequest(ctx context.Context, data []byte) error {
	t.pending = t.r.Dispatch(data)
	return nil
}

func (t *loopbackTransport) ReceiveResponse(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if t.pending == nil {
		return nil, ErrTimeout
	}
	return t.pending, nil
}

func newLoopbackController(t *testing.T) (*Controller, *Responder, UID) {
	t.Helper()
	r, uid := newTestResponder(t)
	lt := &loopbackTransport{r: r}
	ctrl := NewController(lt, UID{ManufacturerID: 0x7FF0, DeviceID: 1})
	return ctrl, r, uid
}

func TestControllerRequestACKRoundTrip(t *testing.T) {
	ctrl, _, uid := newLoopbackController(t)

	data, err := ctrl.Request(context.Background(), uid, CCGetCommand, Root, PIDDeviceInfo, nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(data) != 19 {
		t.Fatalf("device info len = %d, want 19", len(data))
	}
}

func TestControllerRequestNACK(t *testing.T) {
	ctrl, _, uid := newLoopbackController(t)

	_, err := ctrl.Request(context.Background(), uid, CCGetCommand, Root, 0x9999, nil)
	nerr, ok := err.(*NackError)
	if !ok {
		t.Fatalf("err = %v (%T), want *NackError", err, err)
	}
	if nerr.Reason != NackUnknownPID {
		t.Fatalf("reason = %v, want NackUnknownPID", nerr.Reason)
	}
}

func TestControllerRequestBroadcastNoResponse(t *testing.T) {
	ctrl, _, _ := newLoopbackController(t)

	data, err := ctrl.Request(context.Background(), BroadcastAll, CCSetCommand, Root, PIDDeviceLabel, []byte("x"))
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if data != nil {
		t.Fatalf("data = %v, want nil for a broadcast request", data)
	}
}

const testDeferredPID PID = 0x8010

// deferredHandler always defers to QUEUED_MESSAGE, exercising the
// ACK_TIMER re-poll path (spec.md §4.5).
func deferredHandler() Handler {
	return func(s *Store, cc CommandClass, sub SubDevice, pd []byte) Response {
		if cc != CCGetCommand {
			return Nack(NackUnsupportedCommandClass)
		}
		s.Enqueue(PIDDeviceLabel)
		return AckTimer(1)
	}
}

func TestControllerRequestACKTimerDefersToQueuedMessage(t *testing.T) {
	ctrl, r, uid := newLoopbackController(t)
	if err := r.Store.AddDeterministic(testDeferredPID, Definition{
		PID:     testDeferredPID,
		CC:      CCSGet,
		Handler: deferredHandler(),
	}); err != nil {
		t.Fatalf("AddDeterministic: %v", err)
	}

	data, err := ctrl.Request(context.Background(), uid, CCGetCommand, Root, testDeferredPID, nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(data) < 2 || PID(uint16(data[0])<<8|uint16(data[1])) != PIDDeviceLabel {
		t.Fatalf("queued message pid mismatch: %v", data)
	}
	if got := string(trimTrailingZero(data[2:])); got != "test fixture" {
		t.Fatalf("queued message data = %q, want %q", got, "test fixture")
	}
}

func TestControllerDiscMuteUnmuteRoundTrip(t *testing.T) {
	ctrl, r, uid := newLoopbackController(t)

	if err := ctrl.SendDiscMute(context.Background(), uid); err != nil {
		t.Fatalf("SendDiscMute: %v", err)
	}
	if !r.Muted() {
		t.Fatal("expected responder muted after SendDiscMute")
	}

	if err := ctrl.SendDiscUnMuteAll(context.Background()); err != nil {
		t.Fatalf("SendDiscUnMuteAll: %v", err)
	}
}

func TestControllerSendDiscUniqueBranchFindsUID(t *testing.T) {
	ctrl, _, uid := newLoopbackController(t)

	got, err := ctrl.SendDiscUniqueBranch(context.Background(), UID{}, BroadcastAll.Prev())
	if err != nil {
		t.Fatalf("SendDiscUniqueBranch: %v", err)
	}
	if got != uid {
		t.Fatalf("got %v, want %v", got, uid)
	}
}
