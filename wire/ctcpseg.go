package wire

import (
	"encoding/binary"
	"fmt"
)

// cTCP has no gopacket layer of its own, so its 18-byte segment header is
// hand-rolled with encoding/binary instead.
const (
	CtcpHeaderLen = 18

	CtcpAckFlag uint32 = 1 << 0
	CtcpFinFlag uint32 = 1 << 1
)

// CtcpSegment is a decoded cTCP segment header plus its payload.
type CtcpSegment struct {
	SeqNo, AckNo uint32
	Flags        uint32
	Window       uint16
	Checksum     uint16
	Payload      []byte
}

// DecodeCtcp parses a cTCP segment from buf.
func DecodeCtcp(buf []byte) (*CtcpSegment, error) {
	if len(buf) < CtcpHeaderLen {
		return nil, fmt.Errorf("wire: ctcp segment too short (%d bytes)", len(buf))
	}
	s := &CtcpSegment{
		SeqNo:    binary.BigEndian.Uint32(buf[0:4]),
		AckNo:    binary.BigEndian.Uint32(buf[4:8]),
		Flags:    binary.BigEndian.Uint32(buf[10:14]),
		Window:   binary.BigEndian.Uint16(buf[14:16]),
		Checksum: binary.BigEndian.Uint16(buf[16:18]),
	}
	segLen := int(binary.BigEndian.Uint16(buf[8:10]))
	if CtcpHeaderLen+segLen > len(buf) {
		return nil, fmt.Errorf("wire: ctcp segment length %d exceeds buffer (%d)", segLen, len(buf))
	}
	if segLen > 0 {
		s.Payload = buf[CtcpHeaderLen : CtcpHeaderLen+segLen]
	}
	return s, nil
}

// EncodeCtcp serializes s into buf, which must be at least CtcpHeaderLen+
// len(s.Payload) bytes, and stamps the checksum. Returns the number of
// bytes written.
func EncodeCtcp(s *CtcpSegment, buf []byte) (int, error) {
	total := CtcpHeaderLen + len(s.Payload)
	if len(buf) < total {
		return 0, fmt.Errorf("wire: buffer (%d) too small for ctcp segment (%d)", len(buf), total)
	}
	binary.BigEndian.PutUint32(buf[0:4], s.SeqNo)
	binary.BigEndian.PutUint32(buf[4:8], s.AckNo)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(s.Payload)))
	binary.BigEndian.PutUint32(buf[10:14], s.Flags)
	binary.BigEndian.PutUint16(buf[14:16], s.Window)
	binary.BigEndian.PutUint16(buf[16:18], 0)
	copy(buf[CtcpHeaderLen:total], s.Payload)
	SetChecksum(buf[:total], 16)
	return total, nil
}

// VerifyCtcpChecksum checks a decoded segment's checksum field against the
// raw bytes it was decoded from.
func VerifyCtcpChecksum(buf []byte) bool {
	total := CtcpHeaderLen + (len(buf) - CtcpHeaderLen)
	if total > len(buf) {
		total = len(buf)
	}
	return VerifyChecksum(buf[:total], 16)
}
