package radio

import (
	"testing"

	generated "buf.build/gen/go/meshtastic/protobufs/protocolbuffers/go/meshtastic"
	"google.golang.org/protobuf/proto"
)

func TestGetChannelRequestShiftsIndexOnWire(t *testing.T) {
	req, err := GetChannelRequest(0)
	if err != nil {
		t.Fatalf("build get channel request: %v", err)
	}
	if got := req.Message.GetGetChannelRequest(); got != 1 {
		t.Fatalf("expected wire index 1 for channel 0, got %d", got)
	}

	req, err = GetChannelRequest(7)
	if err != nil {
		t.Fatalf("build get channel request: %v", err)
	}
	if got := req.Message.GetGetChannelRequest(); got != 8 {
		t.Fatalf("expected wire index 8 for channel 7, got %d", got)
	}
}

func TestGetChannelRequestRejectsOutOfRangeIndex(t *testing.T) {
	if _, err := GetChannelRequest(-1); err == nil {
		t.Fatalf("expected error for negative index")
	}
	if _, err := GetChannelRequest(8); err == nil {
		t.Fatalf("expected error for index past last slot")
	}
}

func TestReadRequestsWantResponse(t *testing.T) {
	getChannel, err := GetChannelRequest(2)
	if err != nil {
		t.Fatalf("build get channel request: %v", err)
	}
	reads := []AdminRequest{
		GetOwnerRequest(),
		GetConfigRequest(generated.AdminMessage_DEVICE_CONFIG),
		GetModuleConfigRequest(generated.AdminMessage_MQTT_CONFIG),
		getChannel,
	}
	for _, req := range reads {
		if !req.WantResponse {
			t.Fatalf("read request %s must want a response", req.Action)
		}
	}
}

func TestWriteRequestsAreFireAndForget(t *testing.T) {
	writes := []AdminRequest{
		SetOwner(&generated.User{LongName: "Test"}),
		SetConfig(&generated.Config{}),
		SetModuleConfig(&generated.ModuleConfig{}),
		SetChannel(&generated.Channel{Index: 1}),
		RebootRequest(5),
		ShutdownRequest(5),
		FactoryResetConfigRequest(),
		NodeDBResetRequest(),
		BeginEditSettingsRequest(),
		CommitEditSettingsRequest(),
		RemoveNodeRequest(42),
		SetFavoriteRequest(42, true),
		SetIgnoredRequest(42, false),
	}
	for _, req := range writes {
		if req.WantResponse {
			t.Fatalf("write request %s must not want a response", req.Action)
		}
	}
}

func TestFavoriteAndIgnoredVariantsFollowDirection(t *testing.T) {
	add := SetFavoriteRequest(42, true)
	if add.Message.GetSetFavoriteNode() != 42 {
		t.Fatalf("expected set_favorite_node variant")
	}
	remove := SetFavoriteRequest(42, false)
	if remove.Message.GetRemoveFavoriteNode() != 42 {
		t.Fatalf("expected remove_favorite_node variant")
	}

	ignore := SetIgnoredRequest(7, true)
	if ignore.Message.GetSetIgnoredNode() != 7 {
		t.Fatalf("expected set_ignored_node variant")
	}
	unignore := SetIgnoredRequest(7, false)
	if unignore.Message.GetRemoveIgnoredNode() != 7 {
		t.Fatalf("expected remove_ignored_node variant")
	}
}

func TestEncodeAdminAckFollowsWantResponse(t *testing.T) {
	codec := mustNewCodec(t)

	read := GetOwnerRequest()
	encoded, err := codec.EncodeAdmin(0x10, read.WantResponse, read.Message)
	if err != nil {
		t.Fatalf("encode admin read: %v", err)
	}
	if !encoded.WantAck {
		t.Fatalf("read request must want an ack")
	}
	assertAdminPacket(t, encoded, 0x10, true)

	write := RebootRequest(3)
	encoded, err = codec.EncodeAdmin(0x10, write.WantResponse, write.Message)
	if err != nil {
		t.Fatalf("encode admin write: %v", err)
	}
	if encoded.WantAck {
		t.Fatalf("write request must not want an ack")
	}
	assertAdminPacket(t, encoded, 0x10, false)
}

func assertAdminPacket(t *testing.T, encoded EncodedPacket, to uint32, wantResponse bool) {
	t.Helper()

	var wire generated.ToRadio
	if err := proto.Unmarshal(encoded.Payload, &wire); err != nil {
		t.Fatalf("unmarshal toradio: %v", err)
	}
	packet := wire.GetPacket()
	if packet == nil {
		t.Fatalf("expected packet variant")
	}
	if packet.GetTo() != to {
		t.Fatalf("destination mismatch: got %d want %d", packet.GetTo(), to)
	}
	if packet.GetId() != encoded.PacketID {
		t.Fatalf("packet id mismatch: got %d want %d", packet.GetId(), encoded.PacketID)
	}
	if packet.GetPriority() != generated.MeshPacket_RELIABLE {
		t.Fatalf("expected reliable priority, got %v", packet.GetPriority())
	}
	decoded := packet.GetDecoded()
	if decoded.GetPortnum() != generated.PortNum_ADMIN_APP {
		t.Fatalf("expected admin port, got %v", decoded.GetPortnum())
	}
	if decoded.GetWantResponse() != wantResponse {
		t.Fatalf("want_response mismatch: got %v want %v", decoded.GetWantResponse(), wantResponse)
	}
}
