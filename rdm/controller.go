package rdm

import (
	"context"
	"time"
)

// Transport is the minimum surface a controller needs from the framing
// layer: send a request (after the driver's own BREAK/MAB framing) and
// receive whatever arrives within timeout. dmx.Port implements this by
// wrapping its *frame.Engine, keeping this package free of any hal/frame
// dependency (spec.md §4.5).
type Transport interface {
	SendRequest(ctx context.Context, data []byte) error
	ReceiveResponse(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// Controller drives synchronous RDM request/response exchanges over a
// Transport, grounded on the teacher's driver.Driver send/receive pairing
// but generalized from a single fire-and-forget packet to the
// request-then-poll-for-ACK_TIMER loop RDM requires (spec.md §4.5).
type Controller struct {
	Transport Transport
	SrcUID    UID

	tn uint8 // transaction number, incremented per request
}

// NewController builds a Controller that sources every request from
// srcUID over t.
func NewController(t Transport, srcUID UID) *Controller {
	return &Controller{Transport: t, SrcUID: srcUID}
}

func (c *Controller) nextTN() uint8 {
	c.tn++
	return c.tn
}

// Request sends a GET or SET command to dest for pid, returning the
// response's parameter data. Broadcast destinations (spec.md §4.5: "a
// broadcast request never solicits a response") return nil, nil
// immediately after the mandatory guard time.
//
// A single ACK_TIMER deferral is honored by re-polling after the
// advertised delay (spec.md §9 Open Question decision: "no bounded
// retry loop beyond the one mandated re-poll"). ACK_OVERFLOW is treated
// as a protocol violation from this responder's perspective (spec.md §9)
// and surfaces as ErrInvalidResponse.
func (c *Controller) Request(ctx context.Context, dest UID, cc CommandClass, sub SubDevice, pid PID, pd []byte) ([]byte, error) {
	if cc != CCGetCommand && cc != CCSetCommand {
		return nil, ErrInvalidArg
	}

	req := Header{
		Dest:   dest,
		Src:    c.SrcUID,
		TN:     c.nextTN(),
		PortID: 1,
		Sub:    sub,
		CC:     cc,
		PID:    pid,
	}
	wire, err := EncodeRequest(req, pd)
	if err != nil {
		return nil, err
	}
	if err := c.Transport.SendRequest(ctx, wire); err != nil {
		return nil, err
	}

	if dest.IsBroadcast() {
		time.Sleep(BroadcastGuardTime)
		return nil, nil
	}

	resp, err := c.awaitResponse(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Type == ResponseACKTimer {
		deferDs := uint16(resp.Data[0])<<8 | uint16(resp.Data[1])
		time.Sleep(time.Duration(deferDs) * 100 * time.Millisecond)
		return c.pollQueuedMessage(ctx, dest)
	}
	return resp.Data, nil
}

type decodedResponse struct {
	Type ResponseType
	Data []byte
}

func (c *Controller) awaitResponse(ctx context.Context, req Header) (decodedResponse, error) {
	raw, err := c.Transport.ReceiveResponse(ctx, ControllerTimeout)
	if err != nil {
		return decodedResponse{}, err
	}
	h, pd, err := DecodeRequest(raw)
	if err != nil {
		return decodedResponse{}, ErrInvalidResponse
	}
	if h.CC != req.CC.Response() || h.PID != req.PID || h.TN != req.TN || !h.Src.Matches(req.Dest) {
		return decodedResponse{}, ErrInvalidResponse
	}

	switch ResponseType(h.PortID) {
	case ResponseACK:
		return decodedResponse{Type: ResponseACK, Data: pd}, nil
	case ResponseACKTimer:
		if len(pd) != 2 {
			return decodedResponse{}, ErrInvalidResponse
		}
		return decodedResponse{Type: ResponseACKTimer, Data: pd}, nil
	case ResponseNACKReason:
		if len(pd) != 2 {
			return decodedResponse{}, ErrInvalidResponse
		}
		return decodedResponse{}, &NackError{Reason: NackReason(uint16(pd[0])<<8 | uint16(pd[1]))}
	case ResponseACKOverflow:
		return decodedResponse{}, ErrInvalidResponse
	default:
		return decodedResponse{}, ErrInvalidResponse
	}
}

// pollQueuedMessage re-requests via QUEUED_MESSAGE after an ACK_TIMER
// deferral, the mechanism by which a responder delivers an answer it
// could not produce within the original transaction (spec.md §4.5).
func (c *Controller) pollQueuedMessage(ctx context.Context, dest UID) ([]byte, error) {
	req := Header{
		Dest:   dest,
		Src:    c.SrcUID,
		TN:     c.nextTN(),
		PortID: 1,
		Sub:    Root,
		CC:     CCGetCommand,
		PID:    PIDQueuedMessage,
	}
	wire, err := EncodeRequest(req, nil)
	if err != nil {
		return nil, err
	}
	if err := c.Transport.SendRequest(ctx, wire); err != nil {
		return nil, err
	}
	resp, err := c.awaitResponse(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// SendDiscUniqueBranch issues a DISC_UNIQUE_BRANCH search over [lo, hi]
// and returns the single responding UID, or ErrTimeout if nothing
// answered within the discovery timeout (spec.md §4.5 step "send
// DISC_UNIQUE_BRANCH(lo, hi)"). A collision (more than one responder
// replying at once) is reported as ErrDataCollision so the caller can
// bisect the range.
func (c *Controller) SendDiscUniqueBranch(ctx context.Context, lo, hi UID) (UID, error) {
	req := Header{
		Dest:   BroadcastAll,
		Src:    c.SrcUID,
		TN:     c.nextTN(),
		PortID: 1,
		Sub:    Root,
		CC:     CCDiscoveryCommand,
		PID:    PIDDiscUniqueBranch,
	}
	loB, hiB := lo.Bytes(), hi.Bytes()
	pd := append(append([]byte{}, loB[:]...), hiB[:]...)
	wire, err := EncodeRequest(req, pd)
	if err != nil {
		return UID{}, err
	}
	if err := c.Transport.SendRequest(ctx, wire); err != nil {
		return UID{}, err
	}

	raw, err := c.Transport.ReceiveResponse(ctx, ControllerTimeout)
	if err != nil {
		return UID{}, err
	}
	uid, err := DecodeDiscoveryResponse(raw)
	if err != nil {
		if err == ErrInvalidCRC {
			return UID{}, ErrDataCollision
		}
		return UID{}, ErrInvalidResponse
	}
	return uid, nil
}

// SendDiscMute addresses a single responder with DISC_MUTE and returns nil
// once it ACKs. SendDiscUnMuteAll broadcasts DISC_UN_MUTE to every
// responder and waits out BroadcastGuardTime; no reply is read.
func (c *Controller) SendDiscMute(ctx context.Context, dest UID) error {
	return c.sendDiscControl(ctx, dest, PIDDiscMute)
}

func (c *Controller) SendDiscUnMuteAll(ctx context.Context) error {
	req := Header{
		Dest:   BroadcastAll,
		Src:    c.SrcUID,
		TN:     c.nextTN(),
		PortID: 1,
		Sub:    Root,
		CC:     CCDiscoveryCommand,
		PID:    PIDDiscUnMute,
	}
	wire, err := EncodeRequest(req, nil)
	if err != nil {
		return err
	}
	err = c.Transport.SendRequest(ctx, wire)
	if err == nil {
		time.Sleep(BroadcastGuardTime)
	}
	return err
}

func (c *Controller) sendDiscControl(ctx context.Context, dest UID, pid PID) error {
	req := Header{
		Dest:   dest,
		Src:    c.SrcUID,
		TN:     c.nextTN(),
		PortID: 1,
		Sub:    Root,
		CC:     CCDiscoveryCommand,
		PID:    pid,
	}
	wire, err := EncodeRequest(req, nil)
	if err != nil {
		return err
	}
	if err := c.Transport.SendRequest(ctx, wire); err != nil {
		return err
	}
	_, err = c.awaitResponse(ctx, req)
	return err
}
