package router

import (
	"net"

	"github.com/google/gopacket/layers"

	"github.com/coursenet/pcprouter/arp"
	"github.com/coursenet/pcprouter/iface"
	"github.com/coursenet/pcprouter/wire"
)

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
var zeroMAC = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

func (e *Engine) handleARP(eth *wire.EthernetFrame, inIf *iface.Interface) {
	if len(eth.Payload) < wire.ARPHeaderLen {
		return
	}
	a, err := wire.DecodeARP(eth.Payload)
	if err != nil {
		return
	}

	targetIP := net.IP(a.DstProtAddress)
	switch a.Operation {
	case layers.ARPRequest:
		if targetIP.Equal(inIf.IPv4) {
			e.sendARPReply(inIf, a)
		}
	case layers.ARPReply:
		if targetIP.Equal(inIf.IPv4) {
			senderIP := wire.IPv4ToUint32(net.IP(a.SourceProtAddress))
			senderMAC := net.HardwareAddr(a.SourceHwAddress)
			req, ok := e.Arp.Insert(senderIP, senderMAC)
			if ok {
				e.drainRequest(req, inIf.MAC, senderMAC)
			}
		}
	default:
		// drop
	}
}

// sendARPReply answers a request targeting one of our addresses. The
// sender is not cached: ARP replies are the only path that populates
// the cache, matching the reference design's rule that a request is
// never proactively answered by caching the asker.
func (e *Engine) sendARPReply(inIf *iface.Interface, req *layers.ARP) {
	reply := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   inIf.MAC,
		SourceProtAddress: inIf.IPv4.To4(),
		DstHwAddress:      req.SourceHwAddress,
		DstProtAddress:    req.SourceProtAddress,
	}
	arpBytes, err := wire.EncodeARP(reply)
	if err != nil {
		return
	}
	frame, err := wire.EncodeEthernet(macArr(req.SourceHwAddress), macArr(inIf.MAC), layers.EthernetTypeARP, arpBytes)
	if err != nil {
		return
	}
	e.transmit(inIf.Name, frame)
}

// drainRequest transmits every pending frame of a now-resolved request,
// stamping the final source/destination MACs, in FIFO insertion order.
func (e *Engine) drainRequest(req *arp.Request, srcMAC, dstMAC net.HardwareAddr) {
	for _, pf := range req.Pending {
		e.stampAndSend(pf.Bytes, srcMAC, dstMAC, pf.OutInterface)
	}
}

// broadcastARPRequest emits a fresh ARP request for ip out outIf,
// sourced from the interface's own IP/MAC, target MAC unknown (all
// zero), Ethernet-broadcast.
func (e *Engine) broadcastARPRequest(ip uint32, outIf *iface.Interface) {
	req := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   outIf.MAC,
		SourceProtAddress: outIf.IPv4.To4(),
		DstHwAddress:      zeroMAC,
		DstProtAddress:    wire.Uint32ToIPv4(ip).To4(),
	}
	arpBytes, err := wire.EncodeARP(req)
	if err != nil {
		return
	}
	frame, err := wire.EncodeEthernet(macArr(broadcastMAC), macArr(outIf.MAC), layers.EthernetTypeARP, arpBytes)
	if err != nil {
		return
	}
	e.transmit(outIf.Name, frame)
}
