// Package route implements the static IPv4 routing table and its
// longest-prefix-match lookup.
package route

import (
	"math/bits"
	"net"

	"github.com/coursenet/pcprouter/wire"
)

// Entry is a single routing-table row, immutable after Table construction.
// Dest must already be normalized: Dest == Dest & Mask.
type Entry struct {
	Dest          uint32
	Mask          uint32
	Gateway       uint32 // 0 means directly connected via Interface
	InterfaceName string
}

// Table is a flat ordered list of routes, searched by longest prefix.
type Table struct {
	entries []Entry
}

// NewTable builds a routing table from entries, preserving insertion
// order so that equal-mask ties resolve to the first-inserted entry.
func NewTable(entries ...Entry) *Table {
	t := &Table{entries: make([]Entry, len(entries))}
	copy(t.entries, entries)
	return t
}

// Add appends a route to the table.
func (t *Table) Add(e Entry) {
	t.entries = append(t.entries, e)
}

// Lookup returns the route with the longest mask matching dst. Ties on
// mask length favor the earliest-inserted matching entry. Returns
// ok=false if the table is empty or no entry matches (a zero mask
// matches everything, so an explicit default route always matches).
func (t *Table) Lookup(dst uint32) (Entry, bool) {
	var (
		best    Entry
		bestLen = -1
		found   bool
	)
	for _, e := range t.entries {
		if dst&e.Mask != e.Dest {
			continue
		}
		l := bits.OnesCount32(e.Mask)
		if l > bestLen {
			best, bestLen, found = e, l, true
		}
	}
	return best, found
}

// LookupIP is Lookup taking a net.IP instead of a raw uint32.
func (t *Table) LookupIP(dst net.IP) (Entry, bool) {
	return t.Lookup(wire.IPv4ToUint32(dst))
}

// NextHop resolves the next-hop IP for a route: the gateway if one is
// configured, otherwise the destination itself (directly connected).
func (e Entry) NextHop(dst uint32) uint32 {
	if e.Gateway == 0 {
		return dst
	}
	return e.Gateway
}
