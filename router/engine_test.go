package router

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket/layers"

	"github.com/coursenet/pcprouter/arp"
	"github.com/coursenet/pcprouter/iface"
	"github.com/coursenet/pcprouter/route"
	"github.com/coursenet/pcprouter/wire"
)

type fakeLink struct {
	sent []sentFrame
}

type sentFrame struct {
	iface string
	frame []byte
}

func (f *fakeLink) SendFrame(ifaceName string, frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	f.sent = append(f.sent, sentFrame{iface: ifaceName, frame: cp})
	return nil
}

func mac(s string) net.HardwareAddr {
	m, _ := net.ParseMAC(s)
	return m
}

func buildIPv4Frame(t *testing.T, dstMAC, srcMAC net.HardwareAddr, srcIP, dstIP net.IP, ttl uint8, payload []byte) []byte {
	t.Helper()
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      ttl,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	ipBytes, err := wire.EncodeIPv4(ip, payload)
	if err != nil {
		t.Fatalf("EncodeIPv4: %v", err)
	}
	frame, err := wire.EncodeEthernet(macArr(dstMAC), macArr(srcMAC), layers.EthernetTypeIPv4, ipBytes)
	if err != nil {
		t.Fatalf("EncodeEthernet: %v", err)
	}
	return frame
}

func newTestEngine(clock func() time.Time) (*Engine, *fakeLink, *iface.Table) {
	eth1 := &iface.Interface{Name: "eth1", IPv4: net.ParseIP("10.0.1.1"), MAC: mac("aa:aa:aa:aa:aa:aa")}
	eth2 := &iface.Interface{Name: "eth2", IPv4: net.ParseIP("10.0.2.1"), MAC: mac("bb:bb:bb:bb:bb:bb")}
	ifaces := iface.NewTable(eth1, eth2)
	routes := route.NewTable(
		route.Entry{
			Dest: wire.IPv4ToUint32(net.ParseIP("10.0.1.0")), Mask: wire.IPv4ToUint32(net.ParseIP("255.255.255.0")),
			InterfaceName: "eth1",
		},
		route.Entry{
			Dest: wire.IPv4ToUint32(net.ParseIP("10.0.2.0")), Mask: wire.IPv4ToUint32(net.ParseIP("255.255.255.0")),
			InterfaceName: "eth2",
		},
	)
	cache := arp.NewCache(clock)
	link := &fakeLink{}
	return New(ifaces, routes, cache, link), link, ifaces
}

func TestForwardingARPMissThenHit(t *testing.T) {
	e, link, _ := newTestEngine(nil)

	frame := buildIPv4Frame(t, mac("aa:aa:aa:aa:aa:aa"), mac("cc:cc:cc:cc:cc:cc"),
		net.ParseIP("1.2.3.4"), net.ParseIP("10.0.2.5"), 64, []byte("hi"))
	e.OnFrame(frame, "eth1")

	if len(link.sent) != 0 {
		t.Fatalf("expected no frame sent before ARP resolves, got %d", len(link.sent))
	}

	e.runOneSweep()
	if len(link.sent) != 1 {
		t.Fatalf("expected an ARP broadcast on sweep, got %d sends", len(link.sent))
	}
	arpOut, err := wire.DecodeARP(link.sent[0].frame[wire.EthernetHeaderLen:])
	if err != nil || arpOut.Operation != layers.ARPRequest {
		t.Fatalf("expected ARP request broadcast, got err=%v", err)
	}
	link.sent = nil

	reply := &layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
		HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPReply,
		SourceHwAddress: mac("cc:cc:cc:cc:cc:cc"), SourceProtAddress: net.ParseIP("10.0.2.5").To4(),
		DstHwAddress: mac("bb:bb:bb:bb:bb:bb"), DstProtAddress: net.ParseIP("10.0.2.1").To4(),
	}
	replyBytes, _ := wire.EncodeARP(reply)
	replyFrame, _ := wire.EncodeEthernet(macArr(mac("bb:bb:bb:bb:bb:bb")), macArr(mac("cc:cc:cc:cc:cc:cc")), layers.EthernetTypeARP, replyBytes)
	e.OnFrame(replyFrame, "eth2")

	if len(link.sent) != 1 {
		t.Fatalf("expected the original frame drained after ARP resolves, got %d", len(link.sent))
	}
	out := link.sent[0]
	if out.iface != "eth2" {
		t.Fatalf("expected drain on eth2, got %s", out.iface)
	}
	outEth, err := wire.DecodeEthernet(out.frame)
	if err != nil {
		t.Fatal(err)
	}
	if outEth.SrcMAC != [6]byte{0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb} {
		t.Fatalf("expected eth.src = eth2's MAC, got %x", outEth.SrcMAC)
	}
	if outEth.DstMAC != [6]byte{0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc} {
		t.Fatalf("expected eth.dst = resolved MAC, got %x", outEth.DstMAC)
	}
	outIP, err := wire.DecodeIPv4(outEth.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if outIP.TTL != 63 {
		t.Fatalf("expected ttl decremented to 63, got %d", outIP.TTL)
	}
	if !wire.VerifyIPv4Checksum(outEth.Payload) {
		t.Fatal("expected a valid recomputed checksum")
	}
}

func TestTTLExpiry(t *testing.T) {
	e, link, _ := newTestEngine(nil)
	frame := buildIPv4Frame(t, mac("aa:aa:aa:aa:aa:aa"), mac("cc:cc:cc:cc:cc:cc"),
		net.ParseIP("1.2.3.4"), net.ParseIP("10.0.2.5"), 1, []byte("hi"))
	e.OnFrame(frame, "eth1")

	if len(link.sent) != 1 {
		t.Fatalf("expected a single ICMP time-exceeded reply, got %d", len(link.sent))
	}
	assertICMP(t, link.sent[0].frame, icmpTypeTimeExceeded, icmpCodeTTLExceeded, net.ParseIP("1.2.3.4"), net.ParseIP("10.0.1.1"))
}

func TestNoRoute(t *testing.T) {
	e, link, _ := newTestEngine(nil)
	frame := buildIPv4Frame(t, mac("aa:aa:aa:aa:aa:aa"), mac("cc:cc:cc:cc:cc:cc"),
		net.ParseIP("1.2.3.4"), net.ParseIP("192.168.9.9"), 64, []byte("hi"))
	e.OnFrame(frame, "eth1")

	if len(link.sent) != 1 {
		t.Fatalf("expected a single ICMP net-unreachable reply, got %d", len(link.sent))
	}
	assertICMP(t, link.sent[0].frame, icmpTypeDestUnreach, icmpCodeNetUnreach, net.ParseIP("1.2.3.4"), net.ParseIP("10.0.1.1"))
}

func TestEchoToRouter(t *testing.T) {
	e, link, _ := newTestEngine(nil)

	echoPayload := []byte("hi")
	req := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(icmpTypeEchoRequest, 0), Id: 7, Seq: 3}
	icmpBytes, err := wire.EncodeICMPv4(req, echoPayload)
	if err != nil {
		t.Fatal(err)
	}
	ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolICMPv4,
		SrcIP: net.ParseIP("1.2.3.4"), DstIP: net.ParseIP("10.0.1.1")}
	ipBytes, err := wire.EncodeIPv4(ip, icmpBytes)
	if err != nil {
		t.Fatal(err)
	}
	frame, err := wire.EncodeEthernet(macArr(mac("aa:aa:aa:aa:aa:aa")), macArr(mac("cc:cc:cc:cc:cc:cc")), layers.EthernetTypeIPv4, ipBytes)
	if err != nil {
		t.Fatal(err)
	}
	e.OnFrame(frame, "eth1")

	if len(link.sent) != 1 {
		t.Fatalf("expected one echo reply, got %d", len(link.sent))
	}
	outEth, err := wire.DecodeEthernet(link.sent[0].frame)
	if err != nil {
		t.Fatal(err)
	}
	outIP, err := wire.DecodeIPv4(outEth.Payload)
	if err != nil {
		t.Fatal(err)
	}
	icmp, payload, err := wire.DecodeICMPv4(outIP.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if icmp.TypeCode.Type() != icmpTypeEchoReply || icmp.Id != 7 || icmp.Seq != 3 {
		t.Fatalf("expected echo reply id=7 seq=3, got type=%d id=%d seq=%d", icmp.TypeCode.Type(), icmp.Id, icmp.Seq)
	}
	if string(payload) != "hi" {
		t.Fatalf("expected reflected payload %q, got %q", "hi", payload)
	}
	if !outIP.SrcIP.Equal(net.ParseIP("10.0.1.1")) || !outIP.DstIP.Equal(net.ParseIP("1.2.3.4")) {
		t.Fatalf("unexpected ip src/dst: %s -> %s", outIP.SrcIP, outIP.DstIP)
	}
}

func TestARPHostUnreachableAfterRetryExhaustion(t *testing.T) {
	clock := time.Now()
	e, link, _ := newTestEngine(func() time.Time { return clock })
	frame := buildIPv4Frame(t, mac("aa:aa:aa:aa:aa:aa"), mac("cc:cc:cc:cc:cc:cc"),
		net.ParseIP("10.0.1.99"), net.ParseIP("10.0.2.5"), 64, []byte("hi"))
	e.OnFrame(frame, "eth1")

	for i := 0; i < arp.MaxRetries; i++ {
		clock = clock.Add(arp.RetryInterval)
		e.runOneSweep()
	}
	link.sent = nil
	clock = clock.Add(arp.RetryInterval)
	e.runOneSweep()

	if len(link.sent) != 1 {
		t.Fatalf("expected one host-unreachable reply, got %d", len(link.sent))
	}
	assertICMP(t, link.sent[0].frame, icmpTypeDestUnreach, icmpCodeHostUnreach, net.ParseIP("10.0.1.99"), net.ParseIP("10.0.1.1"))
}

func assertICMP(t *testing.T, frame []byte, wantType, wantCode uint8, wantIPDst, wantIPSrc net.IP) {
	t.Helper()
	eth, err := wire.DecodeEthernet(frame)
	if err != nil {
		t.Fatal(err)
	}
	ip, err := wire.DecodeIPv4(eth.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if !wire.VerifyIPv4Checksum(eth.Payload) {
		t.Fatal("ip checksum invalid")
	}
	icmp, _, err := wire.DecodeICMPv4(ip.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if icmp.TypeCode.Type() != wantType || icmp.TypeCode.Code() != wantCode {
		t.Fatalf("expected icmp %d/%d, got %d/%d", wantType, wantCode, icmp.TypeCode.Type(), icmp.TypeCode.Code())
	}
	if !ip.DstIP.Equal(wantIPDst) {
		t.Fatalf("expected ip.dst %s, got %s", wantIPDst, ip.DstIP)
	}
	if !ip.SrcIP.Equal(wantIPSrc) {
		t.Fatalf("expected ip.src %s, got %s", wantIPSrc, ip.SrcIP)
	}
	if ip.TTL != 60 {
		t.Fatalf("expected reply ttl=60, got %d", ip.TTL)
	}
}
