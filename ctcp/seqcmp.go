package ctcp

import "math"

// seqIncrement and seqIncrementBy advance a 32-bit wrapping sequence
// number; the uint64 intermediate makes the wraparound implicit.
func seqIncrement(seq uint32) uint32 {
	return uint32(uint64(seq) + 1)
}

func seqIncrementBy(seq, inc uint32) uint32 {
	return uint32(uint64(seq) + uint64(inc))
}

// seqGreater compares two wrapping sequence numbers, choosing whichever
// direction around the 32-bit ring is shorter.
func seqGreater(seq1, seq2 uint32) bool {
	if seq1 == seq2 {
		return false
	}
	diff := int64(seq1) - int64(seq2)
	if diff < 0 {
		diff = -diff
	}
	wrapDiff := int64(math.MaxUint32 + 1 - diff)

	distance := diff
	if wrapDiff < diff {
		distance = wrapDiff
	}
	return (distance+int64(seq2))%(math.MaxUint32+1) == int64(seq1)
}

func seqGreaterOrEqual(seq1, seq2 uint32) bool {
	return seqGreater(seq1, seq2) || seq1 == seq2
}

func seqLess(seq1, seq2 uint32) bool {
	return !seqGreaterOrEqual(seq1, seq2)
}

func seqLessOrEqual(seq1, seq2 uint32) bool {
	return !seqGreater(seq1, seq2)
}
