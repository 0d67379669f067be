package websocket

import (
	"sync"
	"testing"
)

func stubConn(userID, documentID string) *Conn {
	c := newConn(nil, userID)
	if documentID != "" {
		c.setDocument(documentID)
	}
	return c
}

func TestRegistryBindAndTargets(t *testing.T) {
	registry := NewRegistry()

	a := stubConn("user-a", "doc-1")
	b := stubConn("user-b", "doc-1")
	other := stubConn("user-c", "doc-2")

	registry.Bind("doc-1", a)
	registry.Bind("doc-1", b)
	registry.Bind("doc-2", other)

	targets := registry.BroadcastTargets("doc-1", a)
	if len(targets) != 1 {
		t.Fatalf("Expected 1 target, got %d", len(targets))
	}
	if targets[0] != b {
		t.Error("Expected the other room member to be the broadcast target")
	}

	if got := len(registry.BroadcastTargets("doc-2", nil)); got != 1 {
		t.Errorf("Expected 1 target in doc-2, got %d", got)
	}
	if got := registry.BroadcastTargets("missing", nil); got != nil {
		t.Errorf("Expected no targets for unknown room, got %d", len(got))
	}
}

func TestRegistryUnbindReclaimsEmptyRooms(t *testing.T) {
	registry := NewRegistry()

	a := stubConn("user-a", "doc-1")
	b := stubConn("user-b", "doc-1")
	registry.Bind("doc-1", a)
	registry.Bind("doc-1", b)

	registry.Unbind(a)
	if counts := registry.RoomCounts(); counts["doc-1"] != 1 {
		t.Errorf("Expected 1 connection left in doc-1, got %d", counts["doc-1"])
	}

	registry.Unbind(b)
	counts := registry.RoomCounts()
	if _, ok := counts["doc-1"]; ok {
		t.Error("Expected empty room entry to be reclaimed")
	}
	if len(counts) != 0 {
		t.Errorf("Expected no active rooms, got %d", len(counts))
	}
}

func TestRegistryUnbindUnboundIsNoop(t *testing.T) {
	registry := NewRegistry()
	registry.Unbind(stubConn("user-a", ""))

	if counts := registry.RoomCounts(); len(counts) != 0 {
		t.Errorf("Expected no rooms, got %d", len(counts))
	}
}

func TestRegistrySnapshotUnaffectedByLaterMutation(t *testing.T) {
	registry := NewRegistry()

	a := stubConn("user-a", "doc-1")
	b := stubConn("user-b", "doc-1")
	registry.Bind("doc-1", a)
	registry.Bind("doc-1", b)

	targets := registry.BroadcastTargets("doc-1", nil)
	registry.Unbind(a)
	registry.Unbind(b)

	if len(targets) != 2 {
		t.Errorf("Snapshot changed after unbind: expected 2 targets, got %d", len(targets))
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := stubConn("user", "doc-1")
			registry.Bind("doc-1", c)
			registry.BroadcastTargets("doc-1", nil)
			registry.RoomCounts()
			registry.Unbind(c)
		}()
	}
	wg.Wait()

	if counts := registry.RoomCounts(); len(counts) != 0 {
		t.Errorf("Expected all rooms reclaimed after concurrent churn, got %d", len(counts))
	}
}
