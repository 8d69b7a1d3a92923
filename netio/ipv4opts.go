package netio

import (
	"net"

	"golang.org/x/net/ipv4"
)

// ConfigureRawIPv4Socket sets the socket options a real LinkDriver needs
// on a raw IPv4 socket before handing it off to the router: a fixed TTL
// (the router decrements and stamps TTL itself, so the kernel must not
// also meddle with it) and checksum generation left to the caller, since
// wire.SetChecksum already computed one.
func ConfigureRawIPv4Socket(conn *net.IPConn, ttl int) error {
	pconn := ipv4.NewPacketConn(conn)
	if err := pconn.SetTTL(ttl); err != nil {
		return err
	}
	return pconn.SetChecksum(false, 0)
}
