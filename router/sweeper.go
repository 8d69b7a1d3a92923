package router

import (
	"log"
	"time"

	"github.com/google/gopacket/layers"

	"github.com/coursenet/pcprouter/arp"
	"github.com/coursenet/pcprouter/wire"
)

// RunSweeper starts the 1 Hz ARP sweeper goroutine. It is a separate
// actor from OnFrame per the concurrency model: the cache's internal
// mutex is what makes the two safe to run concurrently, not anything
// in Engine.
func (e *Engine) RunSweeper() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(arp.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-e.closeSignal:
				return
			case <-ticker.C:
				e.runOneSweep()
			}
		}
	}()
}

func (e *Engine) runOneSweep() {
	actions := e.Arp.Sweep()
	for _, b := range actions.Broadcasts {
		outIf, ok := e.Ifaces.Get(b.OutIfName)
		if !ok {
			continue
		}
		e.broadcastARPRequest(b.IP, outIf)
	}
	for _, req := range actions.Exhausted {
		for _, pf := range req.Pending {
			e.sendHostUnreachable(pf)
		}
	}
}

// sendHostUnreachable replies to the original sender of a frame whose
// next-hop ARP resolution was exhausted. The reply is reflected straight
// back out the interface the triggering frame originally arrived on,
// addressed to that frame's own source MAC: no new route or ARP lookup,
// since the link the packet came in on is already known to reach it.
func (e *Engine) sendHostUnreachable(pf arp.PendingFrame) {
	if len(pf.Bytes) < wire.EthernetHeaderLen+wire.IPv4HeaderLen {
		return
	}
	ipBuf := pf.Bytes[wire.EthernetHeaderLen:]
	ip, err := wire.DecodeIPv4(ipBuf)
	if err != nil {
		return
	}

	inIf, ok := e.Ifaces.Get(pf.OrigInIfName)
	if !ok {
		log.Printf("router: host-unreachable reply to %s: origin interface %s gone, dropping", ip.SrcIP, pf.OrigInIfName)
		return
	}

	quoted := ipBuf
	if len(quoted) > wire.IPv4HeaderLen+8 {
		quoted = quoted[:wire.IPv4HeaderLen+8]
	}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(icmpTypeDestUnreach, icmpCodeHostUnreach), Seq: 1500}
	icmpBytes, err := wire.EncodeICMPv4(icmp, quoted)
	if err != nil {
		return
	}

	frame, err := buildICMPFrame(macArr(inIf.MAC), macArr(pf.OrigSrcMAC), inIf.IPv4, ip.SrcIP, icmpBytes)
	if err != nil {
		return
	}
	e.transmit(inIf.Name, frame)
}
