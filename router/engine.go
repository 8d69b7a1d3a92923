// Package router implements the forwarding engine: frame dispatch, IPv4
// forwarding, ARP resolution, and ICMP error generation.
package router

import (
	"encoding/binary"
	"log"
	"net"
	"sync"

	"github.com/google/gopacket/layers"

	"github.com/coursenet/pcprouter/arp"
	"github.com/coursenet/pcprouter/iface"
	"github.com/coursenet/pcprouter/route"
	"github.com/coursenet/pcprouter/wire"
)

// ICMP type/code pairs this engine ever generates. Named explicitly per
// RFC 792 rather than trusting a library's own code constants, since
// the wire contract here is fixed and small.
const (
	icmpTypeEchoReply   = 0
	icmpTypeDestUnreach = 3
	icmpTypeEchoRequest = 8
	icmpTypeTimeExceeded = 11

	icmpCodeNetUnreach  = 0
	icmpCodeHostUnreach = 1
	icmpCodePortUnreach = 3
	icmpCodeTTLExceeded = 0
)

// LinkLayer is the out-of-scope host collaborator that hands the engine
// incoming frame bytes and accepts outgoing ones.
type LinkLayer interface {
	SendFrame(ifaceName string, frame []byte) error
}

// Engine dispatches incoming frames, produces ICMP errors, and drives
// forwarding. It owns no goroutines of its own besides the sweeper loop
// started by RunSweeper; OnFrame runs synchronously on the caller's
// receive task, matching the single-actor-per-entry-point model the
// rest of this core follows.
type Engine struct {
	Ifaces *iface.Table
	Routes *route.Table
	Arp    *arp.Cache
	Link   LinkLayer

	closeSignal chan struct{}
	wg          sync.WaitGroup
}

// New builds a forwarding engine over a fixed interface table, routing
// table, and ARP cache.
func New(ifaces *iface.Table, routes *route.Table, cache *arp.Cache, link LinkLayer) *Engine {
	return &Engine{
		Ifaces:      ifaces,
		Routes:      routes,
		Arp:         cache,
		Link:        link,
		closeSignal: make(chan struct{}),
	}
}

// Close stops the sweeper goroutine, if running, and waits for it to exit.
func (e *Engine) Close() {
	close(e.closeSignal)
	e.wg.Wait()
}

// OnFrame is the entry point for a frame received on inIfName.
func (e *Engine) OnFrame(frame []byte, inIfName string) {
	if len(frame) < wire.EthernetHeaderLen {
		return
	}
	eth, err := wire.DecodeEthernet(frame)
	if err != nil {
		return
	}
	inIf, ok := e.Ifaces.Get(inIfName)
	if !ok {
		return
	}

	switch eth.EtherType {
	case layers.EthernetTypeARP:
		e.handleARP(eth, inIf)
	case layers.EthernetTypeIPv4:
		e.handleIPv4(eth, inIf)
	default:
		// silently drop
	}
}

func (e *Engine) handleIPv4(eth *wire.EthernetFrame, inIf *iface.Interface) {
	if len(eth.Payload) < wire.IPv4HeaderLen {
		return
	}
	if !wire.VerifyIPv4Checksum(eth.Payload) {
		return
	}
	ip, err := wire.DecodeIPv4(eth.Payload)
	if err != nil {
		return
	}

	if e.Ifaces.OwnsIP(ip.DstIP) {
		e.handleForUs(eth, ip, inIf)
		return
	}

	if ip.TTL == 0 {
		return
	}
	ip.TTL--
	if ip.TTL == 0 {
		e.sendICMPError(eth, ip, inIf, icmpTypeTimeExceeded, icmpCodeTTLExceeded)
		return
	}

	dstU32 := wire.IPv4ToUint32(ip.DstIP)
	rt, ok := e.Routes.Lookup(dstU32)
	if !ok {
		e.sendICMPError(eth, ip, inIf, icmpTypeDestUnreach, icmpCodeNetUnreach)
		return
	}
	outIf, ok := e.Ifaces.Get(rt.InterfaceName)
	if !ok {
		return
	}

	nextHop := rt.NextHop(dstU32)

	outFrame, err := e.reencode(ip, outIf)
	if err != nil {
		return
	}

	if mac, hit := e.Arp.Lookup(nextHop); hit {
		e.stampAndSend(outFrame, outIf.MAC, mac, outIf.Name)
		return
	}
	e.Arp.Enqueue(nextHop, arp.PendingFrame{
		Bytes:        outFrame,
		OutInterface: outIf.Name,
		OrigInIfName: inIf.Name,
		OrigSrcMAC:   net.HardwareAddr(eth.SrcMAC[:]),
	})
}

// reencode rebuilds the Ethernet+IPv4 frame to transmit after the TTL
// decrement and checksum recompute, leaving src/dst MAC zeroed: the
// caller (an immediate ARP hit or the ARP-reply drain path) stamps those
// once the next hop is resolved, and stamps EtherType up front so the
// pending-queue path has nothing left to fill in but the two MACs.
func (e *Engine) reencode(ip *layers.IPv4, outIf *iface.Interface) ([]byte, error) {
	payload, err := wire.EncodeIPv4(ip, ip.Payload)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, wire.EthernetHeaderLen+len(payload))
	binary.BigEndian.PutUint16(frame[12:14], uint16(layers.EthernetTypeIPv4))
	copy(frame[wire.EthernetHeaderLen:], payload)
	return frame, nil
}

func (e *Engine) stampAndSend(frame []byte, srcMAC, dstMAC net.HardwareAddr, outIfName string) {
	copy(frame[0:6], dstMAC)
	copy(frame[6:12], srcMAC)
	e.transmit(outIfName, frame)
}

func (e *Engine) transmit(ifName string, frame []byte) {
	if err := e.Link.SendFrame(ifName, frame); err != nil {
		log.Printf("router: send_frame(%s): %v", ifName, err)
	}
}

func (e *Engine) handleForUs(eth *wire.EthernetFrame, ip *layers.IPv4, inIf *iface.Interface) {
	if ip.Protocol == layers.IPProtocolICMPv4 {
		icmp, icmpPayload, err := wire.DecodeICMPv4(ip.Payload)
		if err == nil && icmp.TypeCode.Type() == icmpTypeEchoRequest {
			e.sendEchoReply(eth, ip, icmp, icmpPayload, inIf)
			return
		}
	}
	e.sendICMPError(eth, ip, inIf, icmpTypeDestUnreach, icmpCodePortUnreach)
}

func (e *Engine) sendEchoReply(eth *wire.EthernetFrame, ip *layers.IPv4, reqICMP *layers.ICMPv4, payload []byte, inIf *iface.Interface) {
	reply := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(icmpTypeEchoReply, 0),
		Id:       reqICMP.Id,
		Seq:      reqICMP.Seq,
	}
	icmpBytes, err := wire.EncodeICMPv4(reply, payload)
	if err != nil {
		return
	}
	e.sendICMPReply(eth, ip, inIf, icmpBytes)
}

// sendICMPError builds and transmits a type-3/type-11 ICMP error
// quoting the offending datagram's header plus its first 8 payload
// bytes, per the uniform reflection rule.
func (e *Engine) sendICMPError(eth *wire.EthernetFrame, ip *layers.IPv4, inIf *iface.Interface, icmpType, icmpCode uint8) {
	quoted, err := wire.EncodeIPv4(ip, ip.Payload)
	if err != nil {
		return
	}
	if len(quoted) > wire.IPv4HeaderLen+8 {
		quoted = quoted[:wire.IPv4HeaderLen+8]
	}

	// The header's unused/next-MTU word is layers.ICMPv4's Id/Seq pair:
	// unused (Id) stays 0 and next-MTU goes in Seq.
	var nextMTU uint16
	if icmpType == icmpTypeDestUnreach {
		nextMTU = 1500
	}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(icmpType, icmpCode), Seq: nextMTU}
	icmpBytes, err := wire.EncodeICMPv4(icmp, quoted)
	if err != nil {
		return
	}
	e.sendICMPReply(eth, ip, inIf, icmpBytes)
}

// sendICMPReply applies the uniform ICMP reflection rule: eth.src =
// in_if.mac, eth.dst = origin eth.src; ip.src = in_if.ip, ip.dst =
// origin ip.src, ttl=60, DF set, fresh checksum.
func (e *Engine) sendICMPReply(origEth *wire.EthernetFrame, origIP *layers.IPv4, inIf *iface.Interface, icmpBytes []byte) {
	frame, err := buildICMPFrame(macArr(inIf.MAC), macArr(origEth.SrcMAC[:]), inIf.IPv4, origIP.SrcIP, icmpBytes)
	if err != nil {
		return
	}
	e.transmit(inIf.Name, frame)
}

// buildICMPFrame assembles an Ethernet+IPv4 frame carrying an
// already-encoded ICMP message, per the uniform ttl=60/DF-set/
// fresh-checksum reply contract.
func buildICMPFrame(srcMAC, dstMAC [6]byte, srcIP, dstIP net.IP, icmpBytes []byte) ([]byte, error) {
	replyIP := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      60,
		Protocol: layers.IPProtocolICMPv4,
		Flags:    layers.IPv4DontFragment,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	ipBytes, err := wire.EncodeIPv4(replyIP, icmpBytes)
	if err != nil {
		return nil, err
	}
	return wire.EncodeEthernet(dstMAC, srcMAC, layers.EthernetTypeIPv4, ipBytes)
}

func macArr(b []byte) [6]byte {
	var m [6]byte
	copy(m[:], b)
	return m
}
