package config

import (
	"fmt"
	"net"

	"github.com/coursenet/pcprouter/ctcp"
	"github.com/coursenet/pcprouter/iface"
	"github.com/coursenet/pcprouter/route"
	"github.com/coursenet/pcprouter/wire"
)

// BuildInterfaces resolves the configured interfaces against a link
// table already opened by the caller (raw socket handles are not
// something config.yaml can express).
func (c *Config) BuildInterfaces(links map[string]iface.LinkHandle) (*iface.Table, error) {
	ifaces := make([]*iface.Interface, 0, len(c.Interfaces))
	for _, ic := range c.Interfaces {
		ip := net.ParseIP(ic.IPv4)
		if ip == nil {
			return nil, fmt.Errorf("config: interface %s: invalid ipv4 %q", ic.Name, ic.IPv4)
		}
		mac, err := net.ParseMAC(ic.MAC)
		if err != nil {
			return nil, fmt.Errorf("config: interface %s: invalid mac: %w", ic.Name, err)
		}
		ifaces = append(ifaces, &iface.Interface{
			Name: ic.Name,
			IPv4: ip.To4(),
			MAC:  mac,
			Link: links[ic.Name],
		})
	}
	return iface.NewTable(ifaces...), nil
}

// BuildRoutes turns the configured static routes into a route.Table.
func (c *Config) BuildRoutes() (*route.Table, error) {
	t := route.NewTable()
	for _, rc := range c.Routes {
		dest := net.ParseIP(rc.Dest)
		mask := net.ParseIP(rc.Mask)
		if dest == nil || mask == nil {
			return nil, fmt.Errorf("config: route %s/%s: invalid dest/mask", rc.Dest, rc.Mask)
		}
		var gw uint32
		if rc.Gateway != "" {
			gwIP := net.ParseIP(rc.Gateway)
			if gwIP == nil {
				return nil, fmt.Errorf("config: route %s: invalid gateway %q", rc.Dest, rc.Gateway)
			}
			gw = wire.IPv4ToUint32(gwIP)
		}
		t.Add(route.Entry{
			Dest:          wire.IPv4ToUint32(dest),
			Mask:          wire.IPv4ToUint32(mask),
			Gateway:       gw,
			InterfaceName: rc.Interface,
		})
	}
	return t, nil
}

// CtcpConfig projects the cTCP tunables out of the shared config file.
func (c *Config) CtcpConfig() ctcp.Config {
	return ctcp.Config{
		RecvWindow:      c.RecvWindow,
		SendWindow:      c.SendWindow,
		RtTimeoutMs:     c.RtTimeoutMs,
		TimerTickMs:     c.TimerTickMs,
		RetransmitLimit: c.RetransmitLimit,
	}
}
