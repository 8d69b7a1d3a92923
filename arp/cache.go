// Package arp implements the ARP cache, the per-unresolved-IP pending
// frame queue, and the periodic sweeper that drives resolution retries
// and host-unreachable fallback.
package arp

import (
	"net"
	"sync"
	"time"
)

// EntryTTL is how long a resolved IP-to-MAC mapping stays valid.
const EntryTTL = 15 * time.Second

// SweepInterval is how often the sweeper walks the cache and pending
// requests.
const SweepInterval = 1 * time.Second

// RetryInterval is the minimum spacing between ARP request retries for
// a single pending resolution.
const RetryInterval = 1 * time.Second

// MaxRetries is how many ARP requests are sent before a pending
// resolution is abandoned as host-unreachable.
const MaxRetries = 5

type entry struct {
	mac        net.HardwareAddr
	insertedAt time.Time
}

// PendingFrame is a full Ethernet+IP frame (source MAC not yet filled)
// waiting on ARP resolution of its next hop. OrigInIfName/OrigSrcMAC
// record where the triggering frame came from, so a host-unreachable
// reply (if resolution is abandoned) can be reflected straight back out
// the interface it arrived on without a second round of ARP resolution.
type PendingFrame struct {
	Bytes        []byte
	OutInterface string
	OrigInIfName string
	OrigSrcMAC   net.HardwareAddr
}

// Request tracks an in-flight ARP resolution for a single next-hop IP.
// Exactly one Request exists per unresolved IP at any instant; the
// cache enforces that by keying requests on IP.
type Request struct {
	IP         uint32
	SentCount  int
	LastSentAt time.Time
	Pending    []PendingFrame
}

// Cache is the IP->MAC map plus the set of in-flight Requests. It is
// shared by the forwarding engine (writes on ARP reply, reads on
// forward) and the sweeper goroutine, so every operation is guarded by
// a single mutex.
type Cache struct {
	mu       sync.Mutex
	entries  map[uint32]entry
	requests map[uint32]*Request
	now      func() time.Time
}

// NewCache creates an empty ARP cache. now defaults to time.Now if nil,
// overridable for deterministic tests.
func NewCache(now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		entries:  make(map[uint32]entry),
		requests: make(map[uint32]*Request),
		now:      now,
	}
}

// Lookup returns the MAC for ip iff a fresh (non-stale) entry exists.
func (c *Cache) Lookup(ip uint32) (net.HardwareAddr, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ip]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) >= EntryTTL {
		return nil, false
	}
	return e.mac, true
}

// Insert records ip->mac, refreshing insertedAt. If a Request was
// pending for ip, it is removed from the cache and returned so the
// caller can drain its pending frames outside the lock.
func (c *Cache) Insert(ip uint32, mac net.HardwareAddr) (*Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ip] = entry{mac: mac, insertedAt: c.now()}
	req, ok := c.requests[ip]
	if ok {
		delete(c.requests, ip)
	}
	return req, ok
}

// Enqueue appends a pending frame to the Request for ip, creating the
// Request with SentCount=0 if none exists yet.
func (c *Cache) Enqueue(ip uint32, frame PendingFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	req, ok := c.requests[ip]
	if !ok {
		req = &Request{IP: ip}
		c.requests[ip] = req
	}
	req.Pending = append(req.Pending, frame)
}

// SweepActions is what the sweeper decided to do on a single pass,
// returned for the caller to execute outside the cache lock (ARP
// broadcasts and ICMP host-unreachable replies are I/O, not O(1) map
// work).
type SweepActions struct {
	// Broadcasts holds, for each Request due for a retry, the
	// next-hop IP and the interface of its first pending frame.
	Broadcasts []BroadcastAction
	// Exhausted holds, for each Request that hit MaxRetries, its
	// full pending-frame list (for host-unreachable ICMP generation)
	// before the Request is destroyed.
	Exhausted []*Request
}

// BroadcastAction is one ARP request the sweeper wants transmitted.
type BroadcastAction struct {
	IP        uint32
	OutIfName string
}

// Sweep runs one pass of the 1 Hz sweeper: expires stale entries, and
// for every pending Request either skips (too soon to retry), emits a
// broadcast action (retry), or hands back the exhausted Request for
// host-unreachable handling (and destroys it).
func (c *Cache) Sweep() SweepActions {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var actions SweepActions

	for ip, e := range c.entries {
		if now.Sub(e.insertedAt) >= EntryTTL {
			delete(c.entries, ip)
		}
	}

	for ip, req := range c.requests {
		if now.Sub(req.LastSentAt) < RetryInterval {
			continue
		}
		if req.SentCount >= MaxRetries {
			actions.Exhausted = append(actions.Exhausted, req)
			delete(c.requests, ip)
			continue
		}
		outIf := ""
		if len(req.Pending) > 0 {
			outIf = req.Pending[0].OutInterface
		}
		actions.Broadcasts = append(actions.Broadcasts, BroadcastAction{IP: ip, OutIfName: outIf})
		req.SentCount++
		req.LastSentAt = now
	}

	return actions
}
