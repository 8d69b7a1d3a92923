// Command pcprouterd runs the IPv4/ARP software router described by
// config.yaml: an interface table, a static routing table, and the
// ARP cache sweeper. Outgoing frames go to loggingLink, which logs them
// instead of transmitting; no frames are received.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	rs "github.com/Clouded-Sabre/rawsocket/lib"

	"github.com/coursenet/pcprouter/arp"
	"github.com/coursenet/pcprouter/config"
	"github.com/coursenet/pcprouter/iface"
	"github.com/coursenet/pcprouter/netio"
	"github.com/coursenet/pcprouter/router"
)

// loggingLink stands in for a real frame driver. Actual recv_frame/
// send_frame wiring is platform-specific (raw AF_PACKET socket, pcap
// handle, tun device...) and out of scope here, same as netio.LinkDriver
// documents; this implementation logs what it would have transmitted so
// the daemon is runnable and observable without one.
type loggingLink struct{}

func (loggingLink) SendFrame(ifaceName string, frame []byte) error {
	log.Printf("pcprouterd: tx %s: %d bytes", ifaceName, len(frame))
	return nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to router configuration")
	flag.Parse()

	cfg, err := config.ReadConfig(*configPath)
	if err != nil {
		log.Fatalf("pcprouterd: configuration error: %v", err)
	}

	rscore, err := netio.NewRawSocketCore(rs.NewDefaultRsConfig())
	if err != nil {
		log.Fatalf("pcprouterd: raw socket init: %v", err)
	}
	defer rscore.Close()

	ifaces, err := cfg.BuildInterfaces(map[string]iface.LinkHandle{})
	if err != nil {
		log.Fatalf("pcprouterd: %v", err)
	}
	routes, err := cfg.BuildRoutes()
	if err != nil {
		log.Fatalf("pcprouterd: %v", err)
	}

	engine := router.New(ifaces, routes, arp.NewCache(nil), loggingLink{})
	engine.RunSweeper()
	defer engine.Close()

	log.Printf("pcprouterd: routing %d interface(s), %d route(s)", len(ifaces.All()), len(cfg.Routes))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("pcprouterd: shutting down")
}
