// Package netio names the external collaborators the router and cTCP core
// consume but never implement: the link-layer frame driver and the
// unreliable datagram transport beneath cTCP. Both stay interfaces so the
// core packages can be driven by fakes in tests.
package netio

import "time"

// LinkDriver hands received Ethernet frame bytes to the router and accepts
// frames the router wants transmitted; its own implementation (opening a
// raw socket, reading/writing real frames) lives outside this core.
type LinkDriver interface {
	RecvFrame(ifaceName string) (frame []byte, err error)
	SendFrame(ifaceName string, frame []byte) error
}

// Datagram is the unreliable transport beneath cTCP (datagram_recv/datagram_send).
type Datagram interface {
	Recv() ([]byte, error)
	Send(b []byte) error
}

// ConnHost is the set of host calls a cTCP connection consumes from its
// embedding application: input, output, available buffer space, and
// connection lifecycle notifications.
type ConnHost interface {
	// Input returns the next chunk of application bytes to send, if any.
	Input() (data []byte, ok bool)
	// Output delivers b to the application and returns how many bytes it
	// accepted (mirrors conn_bufspace-gated conn_output).
	Output(b []byte) int
	// BufSpace reports how many bytes Output can currently accept.
	BufSpace() int
	// Remove tells the host this connection is gone (conn_remove).
	Remove()
	// EndClient signals EOF to the local application (end_client).
	EndClient()
}

// Clock abstracts current_time() as an interface. The arp, ctcp and bbr
// packages do not use it; they take a func() time.Time clock instead.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by the OS monotonic clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
