package ctcp

import (
	"sort"
	"time"

	rp "github.com/Clouded-Sabre/ringpool/lib"
)

// sentSegment is one outstanding entry in unacked: a segment transmitted
// but not yet cumulatively acknowledged. firstSendAt and
// deliveredBytesAtSend are the BBR sampling state stamped at send time.
// chunk is the pooled
// payload backing bytes' trailing data, returned to the pool once the
// segment is acked; it is nil for pure-ACK/FIN segments that carry no
// payload.
type sentSegment struct {
	bytes                []byte
	firstSeq             uint32
	byteLen              uint32
	isFin                bool
	firstSendAt          time.Time
	deliveredBytesAtSend uint64
	chunk                *rp.Element
}

// unackedQueue is a FIFO sorted by send order (equivalently by
// firstSeq); removal from the front happens as cumulative acks arrive.
type unackedQueue struct {
	segs []*sentSegment
}

func (q *unackedQueue) push(s *sentSegment) {
	q.segs = append(q.segs, s)
}

func (q *unackedQueue) empty() bool {
	return len(q.segs) == 0
}

func (q *unackedQueue) head() *sentSegment {
	if q.empty() {
		return nil
	}
	return q.segs[0]
}

// removeAcked drops every segment whose firstSeq+byteLen <= ackno from
// the front, returning them in removal order for BBR sampling. The
// caller is responsible for returning each segment's pooled chunk, if
// any, once it is done reading the sample data off it.
func (q *unackedQueue) removeAcked(ackno uint32) []*sentSegment {
	var removed []*sentSegment
	i := 0
	for i < len(q.segs) {
		s := q.segs[i]
		end := seqIncrementBy(s.firstSeq, s.byteLen)
		if seqLessOrEqual(end, ackno) {
			removed = append(removed, s)
			i++
			continue
		}
		break
	}
	q.segs = q.segs[i:]
	return removed
}

// inflightBytes returns last.firstSeq+last.byteLen - first.firstSeq, or
// 0 if the queue is empty, used for send-window accounting.
func (q *unackedQueue) inflightBytes() uint32 {
	if q.empty() {
		return 0
	}
	first := q.segs[0]
	last := q.segs[len(q.segs)-1]
	return seqIncrementBy(last.firstSeq, last.byteLen) - first.firstSeq
}

// receivedSegment is one entry in unoutput: a received segment not yet
// delivered to the application. chunk is the pooled buffer backing
// payload, returned once the segment is delivered or dropped as a
// duplicate.
type receivedSegment struct {
	seqno   uint32
	payload []byte
	isFin   bool
	chunk   rp.DataInterface
}

func (s *receivedSegment) byteLen() uint32 {
	return uint32(len(s.payload))
}

// unoutputSet is an ordered set keyed by seqno, strictly increasing,
// duplicates rejected.
type unoutputSet struct {
	segs []*receivedSegment
}

// insert adds seg in seqno order. Returns false if seqno is already
// present (a duplicate, which the caller answers with a fresh
// cumulative ACK rather than buffering again).
func (u *unoutputSet) insert(seg *receivedSegment) bool {
	i := sort.Search(len(u.segs), func(i int) bool {
		return seqGreaterOrEqual(u.segs[i].seqno, seg.seqno)
	})
	if i < len(u.segs) && u.segs[i].seqno == seg.seqno {
		return false
	}
	u.segs = append(u.segs, nil)
	copy(u.segs[i+1:], u.segs[i:])
	u.segs[i] = seg
	return true
}

func (u *unoutputSet) empty() bool {
	return len(u.segs) == 0
}

func (u *unoutputSet) head() *receivedSegment {
	if u.empty() {
		return nil
	}
	return u.segs[0]
}

func (u *unoutputSet) popHead() {
	u.segs = u.segs[1:]
}
