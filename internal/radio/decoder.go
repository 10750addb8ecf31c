package radio

import (
	"fmt"
	"sync/atomic"
	"time"

	generated "buf.build/gen/go/meshtastic/protobufs/protocolbuffers/go/meshtastic"
	"google.golang.org/protobuf/proto"
)

// EnvelopeKind tags the outer FromRadio variant of a decoded packet.
type EnvelopeKind int

const (
	EnvelopeNone EnvelopeKind = iota
	EnvelopeMeshPacket
	EnvelopeNodeInfo
	EnvelopeMyInfo
	EnvelopeChannel
	EnvelopeConfig
	EnvelopeModuleConfig
	EnvelopeClientNotification
	EnvelopeMetadata
	EnvelopeQueueStatus
	EnvelopeConfigComplete
	EnvelopeOther
)

// MeshSummary carries the inner mesh packet header fields the stores need.
type MeshSummary struct {
	PacketID  uint32
	From      uint32
	To        uint32
	Channel   uint32
	HopStart  uint32
	HopLimit  uint32
	SNR       float64
	RSSI      int32
	WantAck   bool
	ViaMQTT   bool
	Encrypted bool
}

// HopsAway derives the relay hop count from hop-start and hop-limit. Zero
// means direct neighbor; ok=false means unknown.
func (m MeshSummary) HopsAway() (int, bool) {
	if m.HopStart == 0 && m.HopLimit == 0 {
		return 0, false
	}
	if m.HopStart < m.HopLimit {
		return 0, false
	}

	return int(m.HopStart - m.HopLimit), true
}

// DecodedPacket is the normalized unit flowing through the stores. Exactly one
// of DecodeError or Envelope is meaningful: a failed outer parse leaves only
// ID/Timestamp/Raw/DecodeError populated.
type DecodedPacket struct {
	ID        int64
	Timestamp time.Time
	Raw       []byte

	Envelope EnvelopeKind
	Frame    *generated.FromRadio

	Mesh    *MeshSummary
	Port    generated.PortNum
	HasPort bool
	Payload Payload

	// CorrelationID is the inner payload's reply-to id, used to match an
	// outbound request to its inbound ack or error.
	CorrelationID uint32

	DecodeError string
}

// Decoder turns raw FromRadio frames into DecodedPacket values. Decode is
// total: all failure is represented in the result, never raised.
type Decoder struct {
	lastID atomic.Int64
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Decode(raw []byte) DecodedPacket {
	out := DecodedPacket{
		ID:        d.nextID(),
		Timestamp: time.Now(),
		Raw:       raw,
	}

	var wire generated.FromRadio
	if err := proto.Unmarshal(raw, &wire); err != nil {
		out.DecodeError = fmt.Sprintf("decode fromradio protobuf: %v", err)

		return out
	}
	out.Frame = &wire

	switch wire.GetPayloadVariant().(type) {
	case *generated.FromRadio_Packet:
		out.Envelope = EnvelopeMeshPacket
		decodeMeshPacket(wire.GetPacket(), &out)
	case *generated.FromRadio_NodeInfo:
		out.Envelope = EnvelopeNodeInfo
	case *generated.FromRadio_MyInfo:
		out.Envelope = EnvelopeMyInfo
	case *generated.FromRadio_Channel:
		out.Envelope = EnvelopeChannel
	case *generated.FromRadio_Config:
		out.Envelope = EnvelopeConfig
	case *generated.FromRadio_ModuleConfig:
		out.Envelope = EnvelopeModuleConfig
	case *generated.FromRadio_ClientNotification:
		out.Envelope = EnvelopeClientNotification
	case *generated.FromRadio_Metadata:
		out.Envelope = EnvelopeMetadata
	case *generated.FromRadio_QueueStatus:
		out.Envelope = EnvelopeQueueStatus
	case *generated.FromRadio_ConfigCompleteId:
		out.Envelope = EnvelopeConfigComplete
	default:
		out.Envelope = EnvelopeOther
	}

	return out
}

func decodeMeshPacket(packet *generated.MeshPacket, out *DecodedPacket) {
	if packet == nil {
		return
	}
	summary := MeshSummary{
		PacketID: packet.GetId(),
		From:     packet.GetFrom(),
		To:       packet.GetTo(),
		Channel:  packet.GetChannel(),
		HopStart: packet.GetHopStart(),
		HopLimit: packet.GetHopLimit(),
		SNR:      float64(packet.GetRxSnr()),
		RSSI:     packet.GetRxRssi(),
		WantAck:  packet.GetWantAck(),
		ViaMQTT:  packet.GetViaMqtt(),
	}

	decoded := packet.GetDecoded()
	if decoded == nil {
		summary.Encrypted = true
		out.Mesh = &summary

		return
	}
	out.Mesh = &summary
	out.Port = decoded.GetPortnum()
	out.HasPort = true
	out.Payload = decodePortPayload(decoded.GetPortnum(), decoded.GetPayload())

	if replyTo := decoded.GetRequestId(); replyTo != 0 {
		out.CorrelationID = replyTo
	} else if replyTo := decoded.GetReplyId(); replyTo != 0 {
		out.CorrelationID = replyTo
	}
}

// decodePortPayload is the fixed per-port dispatch table. A per-port decode
// failure degrades to the raw inner bytes so one malformed payload never hides
// an otherwise valid packet.
func decodePortPayload(port generated.PortNum, payload []byte) Payload {
	switch port {
	case generated.PortNum_TEXT_MESSAGE_APP, generated.PortNum_RANGE_TEST_APP:
		return TextPayload{Text: string(payload)}
	case generated.PortNum_POSITION_APP:
		var position generated.Position
		if err := proto.Unmarshal(payload, &position); err != nil {
			return RawPayload{Data: payload}
		}

		return PositionPayload{Position: &position}
	case generated.PortNum_NODEINFO_APP:
		var user generated.User
		if err := proto.Unmarshal(payload, &user); err != nil {
			return RawPayload{Data: payload}
		}

		return UserPayload{User: &user}
	case generated.PortNum_TELEMETRY_APP:
		var telemetry generated.Telemetry
		if err := proto.Unmarshal(payload, &telemetry); err != nil {
			return RawPayload{Data: payload}
		}

		return TelemetryPayload{Telemetry: &telemetry}
	case generated.PortNum_ROUTING_APP:
		var routing generated.Routing
		if err := proto.Unmarshal(payload, &routing); err != nil {
			return RawPayload{Data: payload}
		}

		return RoutingPayload{Routing: &routing}
	case generated.PortNum_TRACEROUTE_APP:
		var route generated.RouteDiscovery
		if err := proto.Unmarshal(payload, &route); err != nil {
			return RawPayload{Data: payload}
		}

		return TraceroutePayload{Route: &route}
	case generated.PortNum_STORE_FORWARD_APP:
		var record generated.StoreAndForward
		if err := proto.Unmarshal(payload, &record); err != nil {
			return RawPayload{Data: payload}
		}

		return StoreForwardPayload{Message: &record}
	case generated.PortNum_ADMIN_APP:
		var admin generated.AdminMessage
		if err := proto.Unmarshal(payload, &admin); err != nil {
			return RawPayload{Data: payload}
		}

		return AdminPayload{Message: &admin}
	case generated.PortNum_WAYPOINT_APP:
		var waypoint generated.Waypoint
		if err := proto.Unmarshal(payload, &waypoint); err != nil {
			return RawPayload{Data: payload}
		}

		return WaypointPayload{Waypoint: &waypoint}
	case generated.PortNum_NEIGHBORINFO_APP:
		var neighbors generated.NeighborInfo
		if err := proto.Unmarshal(payload, &neighbors); err != nil {
			return RawPayload{Data: payload}
		}

		return NeighborInfoPayload{Neighbors: &neighbors}
	default:
		return RawPayload{Data: payload}
	}
}

// nextID assigns a session-unique packet id. Wall-clock microseconds with a
// collision bump keeps ids roughly time ordered.
func (d *Decoder) nextID() int64 {
	for {
		last := d.lastID.Load()
		id := time.Now().UnixMicro()
		if id <= last {
			id = last + 1
		}
		if d.lastID.CompareAndSwap(last, id) {
			return id
		}
	}
}
