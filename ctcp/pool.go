package ctcp

import (
	"fmt"

	rp "github.com/Clouded-Sabre/ringpool/lib"
)

// segmentPoolSize bounds how many payload chunks a connection keeps
// recycled at once; oversized relative to SendWindow/RecvWindow so the
// pool never blocks the FSM waiting for a chunk back.
const segmentPoolSize = 256

var emptySegmentSlice []byte

// segmentChunk is the ringpool element type backing every payload
// buffered in unacked or unoutput, the same role lib.Payload plays for
// PcpPacket chunks.
type segmentChunk struct {
	buf []byte
	n   int
}

func newSegmentChunk(params ...interface{}) rp.DataInterface {
	if len(emptySegmentSlice) == 0 {
		emptySegmentSlice = make([]byte, MaxSegDataSize)
	}
	return &segmentChunk{buf: make([]byte, MaxSegDataSize)}
}

func (c *segmentChunk) SetContent(s string) {
	c.buf = []byte(s)
	c.n = len(s)
}

func (c *segmentChunk) Reset() {
	copy(c.buf, emptySegmentSlice)
	c.n = 0
}

func (c *segmentChunk) PrintContent() {}

func (c *segmentChunk) Copy(src []byte) error {
	if len(src) > len(c.buf) {
		return fmt.Errorf("ctcp: segment chunk copy: source %d bytes exceeds chunk capacity %d", len(src), len(c.buf))
	}
	copy(c.buf, src)
	c.n = len(src)
	return nil
}

func (c *segmentChunk) GetSlice() []byte {
	return c.buf[:c.n]
}

// newSegmentPool builds the per-connection ring pool, mirroring
// lib.NewPcpCore's Pool = rp.NewRingPool(...) construction.
func newSegmentPool() *rp.RingPool {
	return rp.NewRingPool("ctcp: ", segmentPoolSize, newSegmentChunk, MaxSegDataSize)
}
