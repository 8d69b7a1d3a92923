// Command ctcpecho runs a cTCP echo endpoint over a UDP underlay: every
// chunk delivered to the application is queued straight back out as the
// next chunk to send.
package main

import (
	"flag"
	"log"
	"net"
	"sync"
	"time"

	"github.com/coursenet/pcprouter/config"
	"github.com/coursenet/pcprouter/ctcp"
)

// udpDatagram adapts a connected UDP socket to netio.Datagram.
type udpDatagram struct {
	conn *net.UDPConn
}

func (d *udpDatagram) Send(b []byte) error {
	_, err := d.conn.Write(b)
	return err
}

func (d *udpDatagram) Recv() ([]byte, error) {
	buf := make([]byte, 2048)
	n, err := d.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// echoHost implements netio.ConnHost by handing every delivered chunk
// straight back to Input, so whatever the peer sends is echoed back
// byte for byte.
type echoHost struct {
	mu      sync.Mutex
	pending [][]byte
	closed  bool
}

func (h *echoHost) Input() ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pending) == 0 {
		return nil, false
	}
	next := h.pending[0]
	h.pending = h.pending[1:]
	return next, true
}

func (h *echoHost) Output(b []byte) int {
	if b == nil {
		log.Println("ctcpecho: peer closed")
		return 0
	}
	h.mu.Lock()
	cp := make([]byte, len(b))
	copy(cp, b)
	h.pending = append(h.pending, cp)
	h.mu.Unlock()
	log.Printf("ctcpecho: echoing %d bytes", len(b))
	return len(b)
}

func (h *echoHost) BufSpace() int { return 1 << 20 }

func (h *echoHost) Remove() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

func (h *echoHost) EndClient() {}

func main() {
	listenAddr := flag.String("listen", "127.0.0.2:7080", "UDP underlay address to listen on")
	configPath := flag.String("config", "config.yaml", "path to cTCP configuration")
	flag.Parse()

	cfg, err := config.ReadConfig(*configPath)
	if err != nil {
		log.Printf("ctcpecho: %v, using defaults", err)
		cfg = config.DefaultConfig()
	}

	udpAddr, err := net.ResolveUDPAddr("udp", *listenAddr)
	if err != nil {
		log.Fatalf("ctcpecho: resolve: %v", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		log.Fatalf("ctcpecho: listen: %v", err)
	}
	defer conn.Close()

	log.Printf("ctcpecho: listening on %s", *listenAddr)

	buf := make([]byte, 2048)
	n, raddr, err := conn.ReadFromUDP(buf)
	if err != nil {
		log.Fatalf("ctcpecho: initial read: %v", err)
	}
	if err := conn.Close(); err != nil {
		log.Fatalf("ctcpecho: %v", err)
	}
	peered, err := net.DialUDP("udp", udpAddr, raddr)
	if err != nil {
		log.Fatalf("ctcpecho: dial back to peer: %v", err)
	}
	defer peered.Close()

	host := &echoHost{}
	dg := &udpDatagram{conn: peered}
	conn2 := ctcp.New(dg, host, cfg.CtcpConfig(), 1, 1, nil)
	conn2.OnDatagram(buf[:n])

	tick := time.NewTicker(time.Duration(cfg.TimerTickMs) * time.Millisecond)
	defer tick.Stop()

	recvCh := make(chan []byte, 16)
	go func() {
		for {
			b, err := dg.Recv()
			if err != nil {
				close(recvCh)
				return
			}
			recvCh <- b
		}
	}()

	for !conn2.Destroyed() {
		select {
		case b, ok := <-recvCh:
			if !ok {
				return
			}
			conn2.OnDatagram(b)
		case <-tick.C:
			conn2.OnInput()
			conn2.OnOutput()
			conn2.OnTick()
		}
	}
}
