package ctcp

import (
	"testing"
	"time"

	"github.com/coursenet/pcprouter/wire"
)

type fakeDatagram struct {
	sent [][]byte
}

func (d *fakeDatagram) Send(b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	d.sent = append(d.sent, cp)
	return nil
}

func (d *fakeDatagram) Recv() ([]byte, error) { return nil, nil }

type fakeHost struct {
	delivered []byte
	eof       bool
	bufSpace  int
	removed   bool
	ended     bool
	input     [][]byte
}

func (h *fakeHost) Input() ([]byte, bool) {
	if len(h.input) == 0 {
		return nil, false
	}
	next := h.input[0]
	h.input = h.input[1:]
	return next, true
}

func (h *fakeHost) Output(b []byte) int {
	if b == nil {
		h.eof = true
		return 0
	}
	h.delivered = append(h.delivered, b...)
	return len(b)
}

func (h *fakeHost) BufSpace() int {
	if h.bufSpace == 0 {
		return 1 << 20
	}
	return h.bufSpace
}

func (h *fakeHost) Remove()    { h.removed = true }
func (h *fakeHost) EndClient() { h.ended = true }

func encodeSeg(t *testing.T, seqno, ackno uint32, flags uint32, payload []byte) []byte {
	t.Helper()
	seg := &wire.CtcpSegment{SeqNo: seqno, AckNo: ackno, Flags: flags, Window: 1440, Payload: payload}
	buf := make([]byte, wire.CtcpHeaderLen+len(payload))
	n, err := wire.EncodeCtcp(seg, buf)
	if err != nil {
		t.Fatal(err)
	}
	return buf[:n]
}

func TestOrderedDeliveryOutOfOrderSegments(t *testing.T) {
	dg := &fakeDatagram{}
	host := &fakeHost{}
	conn := New(dg, host, DefaultConfig(), 1, 1, nil)

	seg1461 := encodeSeg(t, 1461, 1, wire.CtcpAckFlag, make([]byte, 1460))
	seg2921 := encodeSeg(t, 2921, 1, wire.CtcpAckFlag, []byte("tail"))
	seg1 := encodeSeg(t, 1, 1, wire.CtcpAckFlag, make([]byte, 1460))

	conn.OnDatagram(seg2921)
	if len(host.delivered) != 0 {
		t.Fatal("out-of-order segment must not be delivered yet")
	}
	conn.OnDatagram(seg1)
	conn.OnDatagram(seg1461)

	if len(host.delivered) != 1460*2+4 {
		t.Fatalf("expected all three segments delivered in order, got %d bytes", len(host.delivered))
	}
	if conn.ackno != seqIncrementBy(1, uint32(1460*2+4)) {
		t.Fatalf("expected ackno to advance past all delivered bytes, got %d", conn.ackno)
	}

	before := len(dg.sent)
	conn.OnDatagram(seg2921)
	if len(dg.sent) != before+1 {
		t.Fatal("expected duplicate segment to trigger an ACK-only response")
	}
}

func TestTeardown(t *testing.T) {
	dg := &fakeDatagram{}
	host := &fakeHost{input: [][]byte{}}
	conn := New(dg, host, DefaultConfig(), 1, 1, nil)

	conn.OnInput() // EOF: host.Input returns ok=false immediately
	if !conn.sentFin {
		t.Fatal("expected FIN to be sent on EOF")
	}
	if conn.unacked.empty() {
		t.Fatal("expected unacked to contain the FIN")
	}

	finAck := encodeSeg(t, 1, seqIncrement(1), wire.CtcpAckFlag, nil)
	conn.OnDatagram(finAck)
	if !conn.ourFinAcked {
		t.Fatal("expected our FIN to be acked")
	}

	peerFin := encodeSeg(t, 1, seqIncrement(1), wire.CtcpAckFlag|wire.CtcpFinFlag, nil)
	conn.OnDatagram(peerFin)

	if !conn.peerFinSeen {
		t.Fatal("expected peer FIN to be observed")
	}
	if !host.eof {
		t.Fatal("expected conn_output(nil, 0) to signal EOF to the application")
	}
	if !conn.Destroyed() {
		t.Fatal("expected connection destroyed after both FINs resolve")
	}
	if !host.removed || !host.ended {
		t.Fatal("expected conn_remove and end_client to be called")
	}
}

func TestRetransmitExhaustionDestroysConnection(t *testing.T) {
	clock := time.Now()
	dg := &fakeDatagram{}
	host := &fakeHost{}
	cfg := DefaultConfig()
	cfg.RetransmitLimit = 5
	conn := New(dg, host, cfg, 1, 1, func() time.Time { return clock })

	host.input = [][]byte{[]byte("data")}
	conn.OnInput()

	for i := 0; i < cfg.RetransmitLimit; i++ {
		clock = clock.Add(time.Duration(cfg.RtTimeoutMs) * time.Millisecond)
		conn.OnTick()
	}
	if conn.Destroyed() {
		t.Fatal("should not be destroyed before the limit is reached")
	}
	clock = clock.Add(time.Duration(cfg.RtTimeoutMs) * time.Millisecond)
	conn.OnTick()
	if !conn.Destroyed() {
		t.Fatal("expected connection destroyed after exhausting retransmits")
	}
}
