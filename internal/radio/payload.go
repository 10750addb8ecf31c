package radio

import (
	generated "buf.build/gen/go/meshtastic/protobufs/protocolbuffers/go/meshtastic"
)

// Payload is the closed set of decoded application payloads. One case exists
// per supported port; unrecognized or undecodable ports fall back to
// RawPayload.
type Payload interface {
	isPayload()
}

// TextPayload is a TEXT_MESSAGE or RANGE_TEST payload.
type TextPayload struct {
	Text string
}

// PositionPayload is a POSITION payload.
type PositionPayload struct {
	Position *generated.Position
}

// UserPayload is a NODEINFO payload.
type UserPayload struct {
	User *generated.User
}

// TelemetryPayload is a TELEMETRY payload.
type TelemetryPayload struct {
	Telemetry *generated.Telemetry
}

// RoutingPayload is a ROUTING result, carrying delivery acks and errors.
type RoutingPayload struct {
	Routing *generated.Routing
}

// TraceroutePayload is a TRACEROUTE route discovery record.
type TraceroutePayload struct {
	Route *generated.RouteDiscovery
}

// StoreForwardPayload is a STORE_FORWARD record.
type StoreForwardPayload struct {
	Message *generated.StoreAndForward
}

// AdminPayload is an ADMIN request or response.
type AdminPayload struct {
	Message *generated.AdminMessage
}

// WaypointPayload is a WAYPOINT payload.
type WaypointPayload struct {
	Waypoint *generated.Waypoint
}

// NeighborInfoPayload is a NEIGHBORINFO payload.
type NeighborInfoPayload struct {
	Neighbors *generated.NeighborInfo
}

// RawPayload carries inner bytes that had no decoder or failed to decode.
type RawPayload struct {
	Data []byte
}

func (TextPayload) isPayload()         {}
func (PositionPayload) isPayload()     {}
func (UserPayload) isPayload()         {}
func (TelemetryPayload) isPayload()    {}
func (RoutingPayload) isPayload()      {}
func (TraceroutePayload) isPayload()   {}
func (StoreForwardPayload) isPayload() {}
func (AdminPayload) isPayload()        {}
func (WaypointPayload) isPayload()     {}
func (NeighborInfoPayload) isPayload() {}
func (RawPayload) isPayload()          {}
