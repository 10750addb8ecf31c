package domain

import (
	"testing"

	"meshtui/internal/radio"
)

func TestPacketStoreEvictsOldestBeyondCap(t *testing.T) {
	store := NewPacketStore(3)
	for i := int64(1); i <= 4; i++ {
		store.Add(radio.DecodedPacket{ID: i})
	}

	packets := store.All()
	if len(packets) != 3 {
		t.Fatalf("expected 3 packets, got %d", len(packets))
	}
	if packets[0].ID != 2 || packets[2].ID != 4 {
		t.Fatalf("expected oldest entry evicted, got ids %d..%d", packets[0].ID, packets[2].ID)
	}
}

func TestPacketStoreNotifiesSubscribersInOrder(t *testing.T) {
	store := NewPacketStore(10)
	var order []string
	store.OnPacket(func(radio.DecodedPacket) { order = append(order, "first") })
	store.OnPacket(func(radio.DecodedPacket) { order = append(order, "second") })

	store.Add(radio.DecodedPacket{ID: 1})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("subscriber order mismatch: %v", order)
	}
}

func TestPacketStoreLateSubscriberSeesOnlySubsequentPackets(t *testing.T) {
	store := NewPacketStore(10)
	store.Add(radio.DecodedPacket{ID: 1})

	var seen []int64
	store.OnPacket(func(packet radio.DecodedPacket) { seen = append(seen, packet.ID) })
	store.Add(radio.DecodedPacket{ID: 2})
	store.Add(radio.DecodedPacket{ID: 3})

	if len(seen) != 2 || seen[0] != 2 || seen[1] != 3 {
		t.Fatalf("late subscriber must not see earlier packets: %v", seen)
	}
}

func TestPacketStoreUnsubscribeIsIdempotent(t *testing.T) {
	store := NewPacketStore(10)
	var kept, removed int
	unsubscribe := store.OnPacket(func(radio.DecodedPacket) { removed++ })
	store.OnPacket(func(radio.DecodedPacket) { kept++ })

	unsubscribe()
	unsubscribe()
	store.Add(radio.DecodedPacket{ID: 1})

	if removed != 0 {
		t.Fatalf("removed subscriber must not be called, got %d", removed)
	}
	if kept != 1 {
		t.Fatalf("remaining subscriber must still fire, got %d", kept)
	}
}

func TestPacketStoreAllReturnsCopy(t *testing.T) {
	store := NewPacketStore(10)
	store.Add(radio.DecodedPacket{ID: 1})

	first := store.All()
	first[0].ID = 99

	if store.All()[0].ID != 1 {
		t.Fatalf("mutating the snapshot must not affect the store")
	}
}
