// Package ctcp implements the reliable byte-stream connection core:
// segment buffers, the read/receive/output/timer FSM, and connection
// teardown, layered over an unreliable datagram service and a host
// application buffer.
package ctcp

import (
	"log"
	"time"

	rp "github.com/Clouded-Sabre/ringpool/lib"

	"github.com/coursenet/pcprouter/bbr"
	"github.com/coursenet/pcprouter/netio"
	"github.com/coursenet/pcprouter/wire"
)

// Connection is a single cTCP stream. Per the concurrency model, all
// four entry points (OnInput/OnDatagram/OnOutput/OnTick) are called
// single-threadedly by the host; Connection does no locking of its
// own.
type Connection struct {
	datagram netio.Datagram
	host     netio.ConnHost
	cfg      Config
	bbr      *bbr.State
	now      func() time.Time
	pool     *rp.RingPool

	seqno uint32
	ackno uint32

	unacked  unackedQueue
	unoutput unoutputSet

	// pendingOut holds bytes already pulled from host.Input() but not yet
	// handed to sendData, because the chunk host.Input() returned was
	// larger than the send window had room for. host.Input() is a
	// one-shot pull, so anything read past what fits this round must be
	// kept here rather than dropped.
	pendingOut []byte

	sentFin      bool
	peerFinSeen  bool
	ourFinAcked  bool
	finSeq       uint32

	retransmitCount  int
	lastRetransmitAt time.Time

	deliveredBytes uint64

	destroyed bool
}

// New creates a connection with an initial sequence number, as would
// follow a completed handshake (handshake mechanics are out of scope
// here; init starts the reliable-delivery core directly).
func New(datagram netio.Datagram, host netio.ConnHost, cfg Config, initialSeq, initialAck uint32, now func() time.Time) *Connection {
	if now == nil {
		now = time.Now
	}
	return &Connection{
		datagram: datagram,
		host:     host,
		cfg:      cfg,
		bbr:      bbr.New(uint64(cfg.SendWindow), now().UnixNano(), now),
		now:      now,
		pool:     newSegmentPool(),
		seqno:    initialSeq,
		ackno:    initialAck,
	}
}

// Destroyed reports whether the connection has completed teardown or
// been abandoned after retransmit exhaustion; the host should drop it
// from its live-connection set once this returns true.
func (c *Connection) Destroyed() bool {
	return c.destroyed
}

// OnInput is called when the application has data (or EOF) to send.
func (c *Connection) OnInput() {
	if c.sentFin || c.destroyed {
		return
	}
	inflight := c.unacked.inflightBytes()
	if inflight >= c.cfg.SendWindow {
		return
	}

	maxRead := c.cfg.SendWindow - inflight
	if maxRead > MaxSegDataSize {
		maxRead = MaxSegDataSize
	}

	if len(c.pendingOut) == 0 {
		data, ok := c.host.Input()
		if !ok {
			// EOF: emit FIN consuming one sequence number.
			c.sendFin()
			return
		}
		if len(data) == 0 {
			return
		}
		c.pendingOut = append(c.pendingOut, data...)
	}

	send := c.pendingOut
	if uint32(len(send)) > maxRead {
		send = send[:maxRead]
	}
	c.sendData(send)
	c.pendingOut = c.pendingOut[len(send):]
}

func (c *Connection) sendData(payload []byte) {
	// The retained copy of payload lives in a pooled chunk, not the
	// slice host.Input() handed back, so the host is free to reuse its
	// own buffer the moment this call returns.
	chunk := c.pool.GetElement()
	if err := chunk.Data.(*segmentChunk).Copy(payload); err != nil {
		log.Printf("ctcp: sendData: %v", err)
		return
	}
	pooled := chunk.Data.(*segmentChunk).GetSlice()

	seg := &wire.CtcpSegment{
		SeqNo:   c.seqno,
		AckNo:   c.ackno,
		Flags:   wire.CtcpAckFlag,
		Window:  uint16(c.cfg.RecvWindow),
		Payload: pooled,
	}
	c.transmit(seg)

	c.unacked.push(&sentSegment{
		bytes:                c.encode(seg),
		firstSeq:             c.seqno,
		byteLen:              uint32(len(pooled)),
		firstSendAt:          c.now(),
		deliveredBytesAtSend: c.deliveredBytes,
		chunk:                chunk,
	})
	c.seqno = seqIncrementBy(c.seqno, uint32(len(pooled)))
}

func (c *Connection) sendFin() {
	seg := &wire.CtcpSegment{
		SeqNo:  c.seqno,
		AckNo:  c.ackno,
		Flags:  wire.CtcpAckFlag | wire.CtcpFinFlag,
		Window: uint16(c.cfg.RecvWindow),
	}
	c.transmit(seg)

	c.finSeq = c.seqno
	c.unacked.push(&sentSegment{
		bytes:       c.encode(seg),
		firstSeq:    c.seqno,
		byteLen:     0,
		isFin:       true,
		firstSendAt: c.now(),
	})
	c.sentFin = true
	c.seqno = seqIncrement(c.seqno)
}

func (c *Connection) sendPureAck() {
	seg := &wire.CtcpSegment{
		SeqNo:  c.seqno,
		AckNo:  c.ackno,
		Flags:  wire.CtcpAckFlag,
		Window: uint16(c.cfg.RecvWindow),
	}
	c.transmit(seg)
}

func (c *Connection) encode(seg *wire.CtcpSegment) []byte {
	buf := make([]byte, wire.CtcpHeaderLen+len(seg.Payload))
	n, err := wire.EncodeCtcp(seg, buf)
	if err != nil {
		return nil
	}
	return buf[:n]
}

func (c *Connection) transmit(seg *wire.CtcpSegment) {
	buf := c.encode(seg)
	if buf == nil {
		return
	}
	if err := c.datagram.Send(buf); err != nil {
		log.Printf("ctcp: datagram_send: %v", err)
	}
}

// OnDatagram handles one received segment.
func (c *Connection) OnDatagram(raw []byte) {
	if c.destroyed {
		return
	}
	if !wire.VerifyCtcpChecksum(raw) {
		return
	}
	seg, err := wire.DecodeCtcp(raw)
	if err != nil {
		return
	}

	isFin := seg.Flags&wire.CtcpFinFlag != 0
	hasData := len(seg.Payload) > 0

	if (hasData || isFin) && seqLess(seg.SeqNo, c.ackno) {
		c.sendPureAck()
		return
	}

	if seg.Flags&wire.CtcpAckFlag != 0 {
		removed := c.unacked.removeAcked(seg.AckNo)
		for _, s := range removed {
			if s.chunk != nil {
				c.pool.ReturnElement(s.chunk)
			}
			if s.firstSendAt.IsZero() {
				continue
			}
			elapsed := c.now().Sub(s.firstSendAt)
			if elapsed <= 0 {
				elapsed = time.Microsecond
			}
			elapsedUs := uint64(elapsed / time.Microsecond)
			if elapsedUs == 0 {
				elapsedUs = 1
			}
			deliveredNow := c.deliveredBytes + uint64(s.byteLen)
			// bytes/µs shifted left bbr.BwUnitShift, matching btl_bw's
			// fixed-point representation.
			bwSample := (deliveredNow - s.deliveredBytesAtSend) << bbr.BwUnitShift / elapsedUs
			c.deliveredBytes = deliveredNow
			c.bbr.OnAck(bwSample, elapsed)
			c.retransmitCount = 0
		}
		if c.sentFin && seqGreaterOrEqual(seg.AckNo, seqIncrement(c.finSeq)) {
			c.ourFinAcked = true
		}
		c.bbr.SetInflight(uint64(c.unacked.inflightBytes()))
	}

	if hasData || isFin {
		rseg := &receivedSegment{seqno: seg.SeqNo, isFin: isFin}
		if hasData {
			chunk := c.pool.GetElement()
			if err := chunk.Data.(*segmentChunk).Copy(seg.Payload); err != nil {
				log.Printf("ctcp: OnDatagram: %v", err)
				return
			}
			rseg.chunk = chunk
			rseg.payload = chunk.Data.(*segmentChunk).GetSlice()
		}
		if !c.unoutput.insert(rseg) {
			if rseg.chunk != nil {
				c.pool.ReturnElement(rseg.chunk)
			}
			c.sendPureAck()
			return
		}
		if isFin {
			c.peerFinSeen = true
		}
	}

	c.OnOutput()
}

// OnOutput delivers any in-order buffered data to the application.
func (c *Connection) OnOutput() {
	delivered := false
	for !c.unoutput.empty() {
		head := c.unoutput.head()
		if head.seqno != c.ackno {
			break
		}
		if head.isFin {
			if c.host.BufSpace() <= 0 {
				break
			}
			c.host.Output(nil)
			c.ackno = seqIncrement(c.ackno)
			c.unoutput.popHead()
			delivered = true
			continue
		}
		if c.host.BufSpace() < len(head.payload) {
			break
		}
		n := c.host.Output(head.payload)
		c.ackno = seqIncrementBy(c.ackno, uint32(n))
		if head.chunk != nil {
			c.pool.ReturnElement(head.chunk)
		}
		c.unoutput.popHead()
		delivered = true
	}
	if delivered {
		c.sendPureAck()
	}

	if c.sentFin && c.ourFinAcked && c.peerFinSeen {
		c.flushAndDestroy()
	}
}

func (c *Connection) flushAndDestroy() {
	for !c.unoutput.empty() {
		head := c.unoutput.head()
		if head.isFin {
			c.unoutput.popHead()
			continue
		}
		c.host.Output(head.payload)
		if head.chunk != nil {
			c.pool.ReturnElement(head.chunk)
		}
		c.unoutput.popHead()
	}
	c.destroy()
}

// OnTick drives retransmission and teardown completion.
func (c *Connection) OnTick() {
	if c.destroyed {
		return
	}
	if !c.unacked.empty() {
		if c.retransmitCount >= c.cfg.RetransmitLimit {
			c.destroy()
			return
		}
		if c.lastRetransmitAt.IsZero() || c.now().Sub(c.lastRetransmitAt) >= time.Duration(c.cfg.RtTimeoutMs)*time.Millisecond {
			head := c.unacked.head()
			if err := c.datagram.Send(head.bytes); err != nil {
				log.Printf("ctcp: retransmit: %v", err)
			}
			c.retransmitCount++
			c.lastRetransmitAt = c.now()
		}
	}
	if c.sentFin && c.ourFinAcked && c.peerFinSeen {
		c.flushAndDestroy()
	}
}

func (c *Connection) destroy() {
	c.destroyed = true
	c.host.Remove()
	c.host.EndClient()
}
