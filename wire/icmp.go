package wire

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ICMPv4HeaderLen is the 8-byte common ICMPv4 header (type, code, checksum,
// and the 4-byte id/seq or unused/next-mtu field).
const ICMPv4HeaderLen = 8

// DecodeICMPv4 parses an ICMPv4 header and returns it with its trailing
// payload (echo data, or the quoted offending datagram for errors).
func DecodeICMPv4(buf []byte) (*layers.ICMPv4, []byte, error) {
	if len(buf) < ICMPv4HeaderLen {
		return nil, nil, fmt.Errorf("wire: icmpv4 header too short (%d bytes)", len(buf))
	}
	var icmp layers.ICMPv4
	if err := icmp.DecodeFromBytes(buf, gopacket.NilDecodeFeedback); err != nil {
		return nil, nil, fmt.Errorf("wire: decode icmpv4: %w", err)
	}
	return &icmp, icmp.Payload, nil
}

// VerifyICMPv4Checksum checks buf's checksum per RFC 792 (one's complement
// over the whole ICMP message).
func VerifyICMPv4Checksum(buf []byte) bool {
	return VerifyChecksum(buf, 2)
}

// EncodeICMPv4 serializes an ICMPv4 header around payload and stamps its
// checksum via SetChecksum.
func EncodeICMPv4(icmp *layers.ICMPv4, payload []byte) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: false}
	if err := gopacket.SerializeLayers(buf, opts, icmp, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("wire: encode icmpv4: %w", err)
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	SetChecksum(out, 2)
	return out, nil
}
