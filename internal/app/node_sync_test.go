package app

import (
	"testing"

	"meshtui/internal/domain"
	"meshtui/internal/radio"
)

func newTestNodeSync() (*NodeSyncService, *domain.NodeStore) {
	nodes := domain.NewNodeStore()
	svc := NewNodeSyncService(newRecordingBus(), domain.NewPacketStore(10), nodes, domain.NewChannelTable(), nil)

	return svc, nodes
}

func TestMeshPacketZeroSNRKeepsKnownValue(t *testing.T) {
	svc, nodes := newTestNodeSync()

	svc.applyPacket(radio.DecodedPacket{
		Envelope: radio.EnvelopeMeshPacket,
		Mesh:     &radio.MeshSummary{From: 7, SNR: 6.25},
	})
	svc.applyPacket(radio.DecodedPacket{
		Envelope: radio.EnvelopeMeshPacket,
		Mesh:     &radio.MeshSummary{From: 7},
	})

	node, ok := nodes.Get(7)
	if !ok {
		t.Fatalf("expected node to exist")
	}
	if node.SNR == nil || *node.SNR != 6.25 {
		t.Fatalf("unmeasured snr must not overwrite the known value: %v", node.SNR)
	}
	if node.LastHeard.IsZero() {
		t.Fatalf("the zero-snr packet must still advance last heard")
	}
}

func TestUndecodablePacketIsIgnored(t *testing.T) {
	svc, nodes := newTestNodeSync()

	svc.applyPacket(radio.DecodedPacket{
		DecodeError: "decode fromradio protobuf: short buffer",
		Envelope:    radio.EnvelopeMeshPacket,
		Mesh:        &radio.MeshSummary{From: 7},
	})

	if nodes.Len() != 0 {
		t.Fatalf("failed decodes must not touch the node store, got %d nodes", nodes.Len())
	}
}
