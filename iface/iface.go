// Package iface holds the interface table: the mapping from a short
// interface name to its IPv4 address, MAC address, and link handle,
// loaded once at startup and never mutated afterward.
package iface

import (
	"fmt"
	"net"
)

// LinkHandle is the opaque handle the host collaborator uses to send and
// receive frames on a physical or virtual link. Its concrete type is
// supplied by netio and is out of scope here; the table only stores it.
type LinkHandle interface{}

// Interface is immutable after Table construction.
type Interface struct {
	Name string
	IPv4 net.IP
	MAC  net.HardwareAddr
	Link LinkHandle
}

// Table resolves interface names to Interfaces and answers "is this IP
// one of ours" checks across the whole set.
type Table struct {
	byName map[string]*Interface
	order  []string
}

// NewTable builds a Table from a set of interfaces. Later entries with a
// duplicate name overwrite earlier ones.
func NewTable(ifaces ...*Interface) *Table {
	t := &Table{byName: make(map[string]*Interface, len(ifaces))}
	for _, in := range ifaces {
		if _, exists := t.byName[in.Name]; !exists {
			t.order = append(t.order, in.Name)
		}
		t.byName[in.Name] = in
	}
	return t
}

// Get returns the named interface, or ok=false if no such interface
// exists in the table.
func (t *Table) Get(name string) (*Interface, bool) {
	in, ok := t.byName[name]
	return in, ok
}

// MustGet is Get but panics on a missing name; intended for startup-time
// configuration wiring where a missing interface is a fatal misconfiguration.
func (t *Table) MustGet(name string) *Interface {
	in, ok := t.byName[name]
	if !ok {
		panic(fmt.Sprintf("iface: no such interface %q", name))
	}
	return in
}

// All returns every interface in insertion order.
func (t *Table) All() []*Interface {
	out := make([]*Interface, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.byName[name])
	}
	return out
}

// OwnsIP reports whether ip matches the address of any interface in the
// table, i.e. whether a datagram addressed to ip is destined for this
// router itself.
func (t *Table) OwnsIP(ip net.IP) bool {
	for _, name := range t.order {
		if t.byName[name].IPv4.Equal(ip) {
			return true
		}
	}
	return false
}

// Lookup returns the interface owning ip, if any.
func (t *Table) Lookup(ip net.IP) (*Interface, bool) {
	for _, name := range t.order {
		in := t.byName[name]
		if in.IPv4.Equal(ip) {
			return in, true
		}
	}
	return nil, false
}
