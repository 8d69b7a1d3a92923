package arp

import (
	"net"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestInsertThenLookupHits(t *testing.T) {
	now := time.Now()
	c := NewCache(fixedClock(now))
	mac := net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}

	c.Insert(1, mac)
	got, ok := c.Lookup(1)
	if !ok {
		t.Fatal("expected lookup to hit immediately after insert")
	}
	if got.String() != mac.String() {
		t.Fatalf("got %s, want %s", got, mac)
	}
}

func TestLookupStaleEntryMisses(t *testing.T) {
	now := time.Now()
	clock := now
	c := NewCache(func() time.Time { return clock })
	c.Insert(1, net.HardwareAddr{1, 2, 3, 4, 5, 6})

	clock = now.Add(EntryTTL + time.Second)
	if _, ok := c.Lookup(1); ok {
		t.Fatal("expected stale entry to miss")
	}
}

func TestInsertDrainsPendingRequest(t *testing.T) {
	c := NewCache(fixedClock(time.Now()))
	c.Enqueue(1, PendingFrame{Bytes: []byte("frame"), OutInterface: "eth2"})

	req, ok := c.Insert(1, net.HardwareAddr{1, 2, 3, 4, 5, 6})
	if !ok {
		t.Fatal("expected a pending request to be returned")
	}
	if len(req.Pending) != 1 {
		t.Fatalf("expected 1 pending frame, got %d", len(req.Pending))
	}

	if _, ok := c.requests[1]; ok {
		t.Fatal("request should be removed from the cache once drained")
	}
}

func TestSweepSkipsRecentRequests(t *testing.T) {
	now := time.Now()
	c := NewCache(fixedClock(now))
	c.Enqueue(1, PendingFrame{OutInterface: "eth2"})

	actions := c.Sweep()
	if len(actions.Broadcasts) != 1 {
		t.Fatalf("expected first sweep to broadcast, got %d", len(actions.Broadcasts))
	}

	actions = c.Sweep()
	if len(actions.Broadcasts) != 0 {
		t.Fatal("expected second immediate sweep to skip (too soon to retry)")
	}
}

func TestSweepExhaustsAfterMaxRetries(t *testing.T) {
	now := time.Now()
	clock := now
	c := NewCache(func() time.Time { return clock })
	c.Enqueue(1, PendingFrame{OutInterface: "eth2"})

	for i := 0; i < MaxRetries; i++ {
		clock = clock.Add(RetryInterval)
		actions := c.Sweep()
		if len(actions.Exhausted) != 0 {
			t.Fatalf("did not expect exhaustion on retry %d", i)
		}
	}

	clock = clock.Add(RetryInterval)
	actions := c.Sweep()
	if len(actions.Exhausted) != 1 {
		t.Fatalf("expected exhaustion after %d retries, got %d", MaxRetries, len(actions.Exhausted))
	}
	if _, stillPending := c.requests[1]; stillPending {
		t.Fatal("exhausted request should be destroyed")
	}
}
