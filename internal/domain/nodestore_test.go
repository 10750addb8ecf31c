package domain

import (
	"bytes"
	"testing"
	"time"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestUpdateFromPacketCreatesNode(t *testing.T) {
	store := NewNodeStore()

	store.UpdateFromPacket(0x42, floatPtr(7.5), intPtr(2))

	node, ok := store.Get(0x42)
	if !ok {
		t.Fatalf("expected node to be created")
	}
	if node.SNR == nil || *node.SNR != 7.5 {
		t.Fatalf("snr mismatch: %v", node.SNR)
	}
	if node.HopsAway == nil || *node.HopsAway != 2 {
		t.Fatalf("hops mismatch: %v", node.HopsAway)
	}
	if node.LastHeard.IsZero() {
		t.Fatalf("expected last heard to advance")
	}
}

func TestUpdateFromPacketIgnoresReservedAddresses(t *testing.T) {
	store := NewNodeStore()

	store.UpdateFromPacket(0, nil, nil)
	store.UpdateFromPacket(BroadcastNum, nil, nil)

	if store.Len() != 0 {
		t.Fatalf("reserved addresses must not create nodes, got %d", store.Len())
	}
}

func TestUpdateFromUserKeepsCachedValuesOnEmptyFields(t *testing.T) {
	store := NodeStoreWith(t, Node{Num: 1, ShortName: "OLD", LongName: "Old Long"})

	store.UpdateFromUser(1, UserInfo{LongName: "New Long"})

	node, _ := store.Get(1)
	if node.ShortName != "OLD" {
		t.Fatalf("empty short name must not blank cached value, got %q", node.ShortName)
	}
	if node.LongName != "New Long" {
		t.Fatalf("long name must update, got %q", node.LongName)
	}
}

func TestUpdateFromMeshViewOnlyFillsUnknownFields(t *testing.T) {
	store := NodeStoreWith(t, Node{Num: 1, ShortName: "LIVE"})

	store.UpdateFromMeshView(1, MeshViewNode{
		Num:       1,
		ShortName: "MAP",
		LongName:  "Map Name",
	})

	node, _ := store.Get(1)
	if node.ShortName != "LIVE" {
		t.Fatalf("populated field must win over map record, got %q", node.ShortName)
	}
	if node.LongName != "Map Name" {
		t.Fatalf("unknown field must be filled, got %q", node.LongName)
	}
}

func TestUpdateFromMeshViewReplacesDifferingPublicKey(t *testing.T) {
	oldKey := []byte{1, 2, 3}
	newKey := []byte{9, 9, 9}
	store := NodeStoreWith(t, Node{Num: 1, PublicKey: oldKey})

	store.UpdateFromMeshView(1, MeshViewNode{Num: 1, PublicKey: newKey})

	node, _ := store.Get(1)
	if !bytes.Equal(node.PublicKey, newKey) {
		t.Fatalf("differing public key must replace stored one, got %x", node.PublicKey)
	}
}

func TestLastHeardNeverRegresses(t *testing.T) {
	store := NewNodeStore()
	now := time.Now()

	store.UpdateFromNodeInfo(NodeInfoUpdate{Num: 1, LastHeard: now})
	store.UpdateFromMeshView(1, MeshViewNode{Num: 1, LastSeen: now.Add(-time.Hour)})

	node, _ := store.Get(1)
	if !node.LastHeard.Equal(now) {
		t.Fatalf("stale source must not regress last heard: got %v want %v", node.LastHeard, now)
	}
}

func TestSnapshotSortedOrdersByLastHeardThenNum(t *testing.T) {
	store := NewNodeStore()
	now := time.Now()
	store.Load([]Node{
		{Num: 3, LastHeard: now.Add(-time.Minute)},
		{Num: 1, LastHeard: now},
		{Num: 2, LastHeard: now},
	})

	snapshot := store.SnapshotSorted()
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(snapshot))
	}
	if snapshot[0].Num != 1 || snapshot[1].Num != 2 || snapshot[2].Num != 3 {
		t.Fatalf("order mismatch: %d, %d, %d", snapshot[0].Num, snapshot[1].Num, snapshot[2].Num)
	}
}

func TestToggleFavoriteReturnsNewValue(t *testing.T) {
	store := NewNodeStore()

	if !store.ToggleFavorite(1) {
		t.Fatalf("first toggle must report true")
	}
	if store.ToggleFavorite(1) {
		t.Fatalf("second toggle must report false")
	}
}

func TestOnUpdateUnsubscribeStopsDelivery(t *testing.T) {
	store := NewNodeStore()
	var calls int
	unsubscribe := store.OnUpdate(func([]Node) { calls++ })

	store.UpdateFromPacket(1, nil, nil)
	unsubscribe()
	unsubscribe()
	store.UpdateFromPacket(2, nil, nil)

	if calls != 1 {
		t.Fatalf("expected exactly one delivery, got %d", calls)
	}
}

func TestSnapshotsDetachFromStoreMemory(t *testing.T) {
	store := NewNodeStore()
	store.UpdateFromPacket(1, floatPtr(7.5), intPtr(2))
	store.UpdatePosition(1, PositionInfo{LatitudeI: 520000000, LongitudeI: 48000000})

	snapshot := store.SnapshotSorted()
	*snapshot[0].SNR = 99
	*snapshot[0].HopsAway = 9
	*snapshot[0].LatitudeI = 1

	node, _ := store.Get(1)
	if *node.SNR != 7.5 || *node.HopsAway != 2 || *node.LatitudeI != 520000000 {
		t.Fatalf("snapshot writes must not reach the store: snr=%v hops=%v lat=%v",
			*node.SNR, *node.HopsAway, *node.LatitudeI)
	}

	*node.SNR = 42
	again, _ := store.Get(1)
	if *again.SNR != 7.5 {
		t.Fatalf("get results must not share memory with the store: snr=%v", *again.SNR)
	}
}

func TestNodeInfoOverwritesIdentity(t *testing.T) {
	store := NodeStoreWith(t, Node{Num: 1, ShortName: "OLD", IsFavorite: true})

	store.UpdateFromNodeInfo(NodeInfoUpdate{Num: 1, ShortName: "NEW", IsFavorite: false})

	node, _ := store.Get(1)
	if node.ShortName != "NEW" {
		t.Fatalf("node info must overwrite identity, got %q", node.ShortName)
	}
	if node.IsFavorite {
		t.Fatalf("node info must overwrite bookkeeping flags")
	}
}

// NodeStoreWith seeds a store without going through the merge paths.
func NodeStoreWith(t *testing.T, nodes ...Node) *NodeStore {
	t.Helper()

	store := NewNodeStore()
	store.Load(nodes)

	return store
}
