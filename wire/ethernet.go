package wire

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// EthernetHeaderLen is the fixed Ethernet II header size (no 802.1Q).
const EthernetHeaderLen = 14

// EthernetFrame is a decoded Ethernet II header plus its payload.
type EthernetFrame struct {
	DstMAC, SrcMAC [6]byte
	EtherType      layers.EthernetType
	Payload        []byte
}

// DecodeEthernet parses an Ethernet II header from buf. It rejects buffers
// shorter than the declared header.
func DecodeEthernet(buf []byte) (*EthernetFrame, error) {
	if len(buf) < EthernetHeaderLen {
		return nil, fmt.Errorf("wire: ethernet frame too short (%d bytes)", len(buf))
	}
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(buf, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("wire: decode ethernet: %w", err)
	}
	f := &EthernetFrame{EtherType: eth.EthernetType, Payload: eth.Payload}
	copy(f.DstMAC[:], eth.DstMAC)
	copy(f.SrcMAC[:], eth.SrcMAC)
	return f, nil
}

// EncodeEthernet serializes an Ethernet II header around payload.
func EncodeEthernet(dst, src [6]byte, etherType layers.EthernetType, payload []byte) ([]byte, error) {
	eth := &layers.Ethernet{
		DstMAC:       net.HardwareAddr(dst[:]),
		SrcMAC:       net.HardwareAddr(src[:]),
		EthernetType: etherType,
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("wire: encode ethernet: %w", err)
	}
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out, nil
}
