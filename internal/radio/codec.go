package radio

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync/atomic"

	generated "buf.build/gen/go/meshtastic/protobufs/protocolbuffers/go/meshtastic"
	"google.golang.org/protobuf/proto"
)

// skipNodeDBNonce is the reserved want-config nonce asking the device to skip
// replaying its full node database, shortening reconnect time.
const skipNodeDBNonce = 69420

const maxTextBytes = 200

// EncodedPacket is an outbound frame plus the packet id used for correlation.
type EncodedPacket struct {
	Payload  []byte
	PacketID uint32
	WantAck  bool
}

// Codec builds outbound ToRadio frames and tracks session identity learned
// from inbound traffic.
type Codec struct {
	wantConfigID atomic.Uint32
	packetID     atomic.Uint32
	localNodeNum atomic.Uint32
}

func NewCodec() (*Codec, error) {
	var seedRaw [4]byte
	if _, err := rand.Read(seedRaw[:]); err != nil {
		return nil, fmt.Errorf("seed codec packet id: %w", err)
	}
	c := &Codec{}
	c.packetID.Store(binary.BigEndian.Uint32(seedRaw[:]))

	return c, nil
}

// LocalNode reports the node number learned from the MyInfo frame, 0 when the
// config sync has not delivered it yet.
func (c *Codec) LocalNode() uint32 {
	return c.localNodeNum.Load()
}

func (c *Codec) SetLocalNode(num uint32) {
	if num != 0 {
		c.localNodeNum.Store(num)
	}
}

// WantConfigID reports the nonce of the last want-config request.
func (c *Codec) WantConfigID() uint32 {
	return c.wantConfigID.Load()
}

// EncodeWantConfig builds the config-sync request. With skipNodeDB the
// reserved sentinel nonce is used instead of a fresh one.
func (c *Codec) EncodeWantConfig(skipNodeDB bool) ([]byte, error) {
	id := uint32(skipNodeDBNonce)
	if !skipNodeDB {
		id = c.nextNonZeroID()
	}
	wire := &generated.ToRadio{PayloadVariant: &generated.ToRadio_WantConfigId{WantConfigId: id}}
	payload, err := proto.Marshal(wire)
	if err != nil {
		return nil, err
	}
	c.wantConfigID.Store(id)

	return payload, nil
}

func (c *Codec) EncodeHeartbeat() ([]byte, error) {
	wire := &generated.ToRadio{PayloadVariant: &generated.ToRadio_Heartbeat{Heartbeat: &generated.Heartbeat{}}}

	return proto.Marshal(wire)
}

// EncodeText builds an outbound text message packet. Direct messages request
// an ack, broadcasts do not.
func (c *Codec) EncodeText(to uint32, channel uint32, text string) (EncodedPacket, error) {
	if text == "" {
		return EncodedPacket{}, fmt.Errorf("message body is empty")
	}
	if len(text) > maxTextBytes {
		return EncodedPacket{}, fmt.Errorf("message body exceeds %d bytes: %d", maxTextBytes, len(text))
	}
	packetID := c.nextNonZeroID()
	packet := &generated.MeshPacket{
		To:      to,
		Channel: channel,
		Id:      packetID,
		WantAck: to != ^uint32(0),
		PayloadVariant: &generated.MeshPacket_Decoded{Decoded: &generated.Data{
			Portnum: generated.PortNum_TEXT_MESSAGE_APP,
			Payload: []byte(text),
		}},
	}
	wire := &generated.ToRadio{PayloadVariant: &generated.ToRadio_Packet{Packet: packet}}
	payload, err := proto.Marshal(wire)
	if err != nil {
		return EncodedPacket{}, fmt.Errorf("marshal text packet: %w", err)
	}

	return EncodedPacket{Payload: payload, PacketID: packetID, WantAck: packet.GetWantAck()}, nil
}

// EncodeAdmin wraps an admin message in a destination-addressed packet. Read
// requests (wantResponse) also request an ack; writes are fire-and-forget:
// the device may act, including rebooting, without any protocol-level reply.
func (c *Codec) EncodeAdmin(to uint32, wantResponse bool, message *generated.AdminMessage) (EncodedPacket, error) {
	if message == nil {
		return EncodedPacket{}, fmt.Errorf("admin payload is required")
	}
	encodedAdmin, err := proto.Marshal(message)
	if err != nil {
		return EncodedPacket{}, fmt.Errorf("marshal admin payload: %w", err)
	}
	packetID := c.nextNonZeroID()
	packet := &generated.MeshPacket{
		To:       to,
		Id:       packetID,
		WantAck:  wantResponse,
		Priority: generated.MeshPacket_RELIABLE,
		PayloadVariant: &generated.MeshPacket_Decoded{Decoded: &generated.Data{
			Portnum:      generated.PortNum_ADMIN_APP,
			Payload:      encodedAdmin,
			WantResponse: wantResponse,
		}},
	}
	wire := &generated.ToRadio{PayloadVariant: &generated.ToRadio_Packet{Packet: packet}}
	payload, err := proto.Marshal(wire)
	if err != nil {
		return EncodedPacket{}, fmt.Errorf("marshal admin packet: %w", err)
	}

	return EncodedPacket{Payload: payload, PacketID: packetID, WantAck: packet.GetWantAck()}, nil
}

func (c *Codec) nextNonZeroID() uint32 {
	for {
		id := c.packetID.Add(1)
		if id != 0 {
			return id
		}
	}
}
