package wire

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// IPv4HeaderLen is the fixed 20-byte header size this core supports; IP
// options are rejected rather than parsed.
const IPv4HeaderLen = 20

// DecodeIPv4 parses a fixed 20-byte IPv4 header (no options) from buf.
// The returned Payload ends where the header's total-length field says,
// so trailing Ethernet padding is not included.
func DecodeIPv4(buf []byte) (*layers.IPv4, error) {
	if len(buf) < IPv4HeaderLen {
		return nil, fmt.Errorf("wire: ipv4 header too short (%d bytes)", len(buf))
	}
	if buf[0]>>4 != 4 {
		return nil, fmt.Errorf("wire: not an ipv4 packet (version %d)", buf[0]>>4)
	}
	ihl := int(buf[0]&0x0f) * 4
	if ihl != IPv4HeaderLen {
		return nil, fmt.Errorf("wire: ipv4 options not supported (ihl=%d)", ihl)
	}
	var ip layers.IPv4
	if err := ip.DecodeFromBytes(buf[:IPv4HeaderLen], gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("wire: decode ipv4: %w", err)
	}
	end := len(buf)
	if l := int(ip.Length); l >= IPv4HeaderLen && l < end {
		end = l
	}
	ip.Payload = buf[IPv4HeaderLen:end]
	return &ip, nil
}

// VerifyIPv4Checksum checks buf's header checksum per §4.1's verify rule.
func VerifyIPv4Checksum(buf []byte) bool {
	if len(buf) < IPv4HeaderLen {
		return false
	}
	return VerifyChecksum(buf[:IPv4HeaderLen], 10)
}

// EncodeIPv4 serializes a fixed 20-byte IPv4 header around payload and
// stamps the header checksum via SetChecksum, per §4.1's explicit
// set_checksum rule (gopacket's own checksum computation is not used so the
// core stays bit-exact with the spec's RFC 1071 contract).
func EncodeIPv4(hdr *layers.IPv4, payload []byte) ([]byte, error) {
	hdr.Version = 4
	hdr.IHL = 5
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: false}
	if err := gopacket.SerializeLayers(buf, opts, hdr, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("wire: encode ipv4: %w", err)
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	SetChecksum(out[:IPv4HeaderLen], 10)
	return out, nil
}
