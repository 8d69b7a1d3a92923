package wire

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ARPHeaderLen is the size of an Ethernet/IPv4 ARP packet: 8 fixed bytes
// plus two hardware addresses (6 bytes) and two protocol addresses (4 bytes).
const ARPHeaderLen = 28

// DecodeARP parses an ARP packet from buf.
func DecodeARP(buf []byte) (*layers.ARP, error) {
	if len(buf) < ARPHeaderLen {
		return nil, fmt.Errorf("wire: arp packet too short (%d bytes)", len(buf))
	}
	var a layers.ARP
	if err := a.DecodeFromBytes(buf, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("wire: decode arp: %w", err)
	}
	return &a, nil
}

// EncodeARP serializes an ARP packet.
func EncodeARP(a *layers.ARP) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, a); err != nil {
		return nil, fmt.Errorf("wire: encode arp: %w", err)
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}
