package domain

import (
	"bytes"
	"testing"
)

func TestChannelTableUpsertRejectsOutOfRangeIndex(t *testing.T) {
	table := NewChannelTable()

	table.Upsert(ChannelInfo{Index: -1, Name: "low"})
	table.Upsert(ChannelInfo{Index: MaxChannels, Name: "high"})

	if got := len(table.Snapshot()); got != 0 {
		t.Fatalf("out-of-range slots must be dropped, got %d entries", got)
	}
}

func TestChannelTableLastWriteWins(t *testing.T) {
	table := NewChannelTable()

	table.Upsert(ChannelInfo{Index: 2, Name: "first"})
	table.Upsert(ChannelInfo{Index: 2, Name: "second"})

	info, ok := table.Get(2)
	if !ok {
		t.Fatalf("expected slot 2 to be populated")
	}
	if info.Name != "second" {
		t.Fatalf("later write must win: %q", info.Name)
	}
}

func TestChannelTableClonesPSK(t *testing.T) {
	table := NewChannelTable()
	psk := []byte{1, 2, 3, 4}
	table.Upsert(ChannelInfo{Index: 0, PSK: psk})

	psk[0] = 0xFF
	stored, _ := table.Get(0)
	if !bytes.Equal(stored.PSK, []byte{1, 2, 3, 4}) {
		t.Fatalf("caller mutation must not reach the stored key: %x", stored.PSK)
	}

	stored.PSK[0] = 0xEE
	again, _ := table.Get(0)
	if again.PSK[0] != 1 {
		t.Fatalf("returned key must be a copy: %x", again.PSK)
	}
}

func TestChannelTableSnapshotIndexOrder(t *testing.T) {
	table := NewChannelTable()
	table.Upsert(ChannelInfo{Index: 5, Name: "five"})
	table.Upsert(ChannelInfo{Index: 0, Name: "zero"})
	table.Upsert(ChannelInfo{Index: 3, Name: "three"})

	snapshot := table.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(snapshot))
	}
	if snapshot[0].Index != 0 || snapshot[1].Index != 3 || snapshot[2].Index != 5 {
		t.Fatalf("snapshot order mismatch: %d, %d, %d",
			snapshot[0].Index, snapshot[1].Index, snapshot[2].Index)
	}
}
