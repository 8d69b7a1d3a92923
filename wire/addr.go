package wire

import (
	"encoding/binary"
	"net"
)

// IPv4ToUint32 converts a 4-byte IPv4 address to the 32-bit host-order
// integer form used by route.Table and arp.Cache keys.
func IPv4ToUint32(ip net.IP) uint32 {
	ip4 := ip.To4()
	if ip4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(ip4)
}

// Uint32ToIPv4 is the inverse of IPv4ToUint32.
func Uint32ToIPv4(v uint32) net.IP {
	b := make(net.IP, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}
