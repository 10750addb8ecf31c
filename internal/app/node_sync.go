package app

import (
	"context"
	"log/slog"
	"time"

	generated "buf.build/gen/go/meshtastic/protobufs/protocolbuffers/go/meshtastic"

	"meshtui/internal/bus"
	"meshtui/internal/connectors"
	"meshtui/internal/domain"
	"meshtui/internal/radio"
)

// NodeSyncService projects decoded packets into the node store and channel
// table. Packet-driven updates arrive through the packet store subscription so
// they apply in arrival order; channel and owner events come off the bus.
type NodeSyncService struct {
	bus      bus.MessageBus
	packets  *domain.PacketStore
	nodes    *domain.NodeStore
	channels *domain.ChannelTable
	logger   *slog.Logger

	unsubscribe func()
}

func NewNodeSyncService(
	messageBus bus.MessageBus,
	packets *domain.PacketStore,
	nodes *domain.NodeStore,
	channels *domain.ChannelTable,
	logger *slog.Logger,
) *NodeSyncService {
	if logger == nil {
		logger = slog.Default().With("component", "app.node_sync")
	}

	return &NodeSyncService{
		bus:      messageBus,
		packets:  packets,
		nodes:    nodes,
		channels: channels,
		logger:   logger,
	}
}

func (s *NodeSyncService) Start(ctx context.Context) {
	s.unsubscribe = s.packets.OnPacket(s.applyPacket)

	channelSub := s.bus.Subscribe(connectors.TopicChannels)
	ownerSub := s.bus.Subscribe(connectors.TopicOwner)
	go func() {
		defer s.bus.Unsubscribe(channelSub, connectors.TopicChannels)
		defer s.bus.Unsubscribe(ownerSub, connectors.TopicOwner)

		for {
			select {
			case <-ctx.Done():
				if s.unsubscribe != nil {
					s.unsubscribe()
				}

				return
			case raw, ok := <-channelSub:
				if !ok {
					return
				}
				event, ok := raw.(connectors.ChannelEvent)
				if !ok {
					continue
				}
				s.channels.Upsert(domain.ChannelInfo{
					Index: event.Index,
					Name:  event.Name,
					Role:  event.Role,
					PSK:   event.PSK,
				})
			case raw, ok := <-ownerSub:
				if !ok {
					return
				}
				owner, ok := raw.(connectors.OwnerInfo)
				if !ok {
					continue
				}
				s.nodes.UpdateFromUser(owner.Num, domain.UserInfo{
					ShortName: owner.ShortName,
					LongName:  owner.LongName,
				})
			}
		}
	}()
}

func (s *NodeSyncService) applyPacket(packet radio.DecodedPacket) {
	if packet.DecodeError != "" {
		return
	}

	switch packet.Envelope {
	case radio.EnvelopeNodeInfo:
		if update, ok := nodeInfoUpdate(packet.Frame.GetNodeInfo()); ok {
			s.nodes.UpdateFromNodeInfo(update)
		}
	case radio.EnvelopeMeshPacket:
		s.applyMeshPacket(packet)
	}
}

func (s *NodeSyncService) applyMeshPacket(packet radio.DecodedPacket) {
	mesh := packet.Mesh
	if mesh == nil {
		return
	}

	// rx_snr is a plain proto3 field: zero means the radio did not measure it
	// (MQTT-relayed or self-originated packets). Skip rather than overwrite a
	// known value with a fake 0.
	var snr *float64
	if mesh.SNR != 0 {
		v := mesh.SNR
		snr = &v
	}
	var hops *int
	if h, ok := mesh.HopsAway(); ok {
		hops = &h
	}
	s.nodes.UpdateFromPacket(mesh.From, snr, hops)

	switch payload := packet.Payload.(type) {
	case radio.UserPayload:
		s.nodes.UpdateFromUser(mesh.From, userInfo(payload.User))
	case radio.PositionPayload:
		if pos, ok := positionInfo(payload.Position); ok {
			s.nodes.UpdatePosition(mesh.From, pos)
		}
	case radio.TelemetryPayload:
		if metrics, ok := deviceMetrics(payload.Telemetry); ok {
			s.nodes.UpdateDeviceMetrics(mesh.From, metrics)
		}
	}
}

func nodeInfoUpdate(info *generated.NodeInfo) (domain.NodeInfoUpdate, bool) {
	if info == nil || info.GetNum() == 0 {
		return domain.NodeInfoUpdate{}, false
	}

	update := domain.NodeInfoUpdate{
		Num:        info.GetNum(),
		IsFavorite: info.GetIsFavorite(),
		IsIgnored:  info.GetIsIgnored(),
	}
	if user := info.GetUser(); user != nil {
		update.ShortName = user.GetShortName()
		update.LongName = user.GetLongName()
		update.HWModel = user.GetHwModel().String()
		update.PublicKey = user.GetPublicKey()
	}
	if snr := info.GetSnr(); snr != 0 {
		v := float64(snr)
		update.SNR = &v
	}
	if info.HopsAway != nil {
		v := int(info.GetHopsAway())
		update.HopsAway = &v
	}
	if heard := info.GetLastHeard(); heard != 0 {
		update.LastHeard = time.Unix(int64(heard), 0)
	}
	if pos, ok := positionInfo(info.GetPosition()); ok {
		update.Position = &pos
	}
	if info.GetDeviceMetrics() != nil {
		if metrics, ok := deviceMetricsFromProto(info.GetDeviceMetrics()); ok {
			update.Metrics = &metrics
		}
	}

	return update, true
}

func userInfo(user *generated.User) domain.UserInfo {
	if user == nil {
		return domain.UserInfo{}
	}

	return domain.UserInfo{
		ShortName: user.GetShortName(),
		LongName:  user.GetLongName(),
		HWModel:   user.GetHwModel().String(),
		PublicKey: user.GetPublicKey(),
	}
}

func positionInfo(pos *generated.Position) (domain.PositionInfo, bool) {
	if pos == nil {
		return domain.PositionInfo{}, false
	}
	if pos.GetLatitudeI() == 0 && pos.GetLongitudeI() == 0 {
		return domain.PositionInfo{}, false
	}

	info := domain.PositionInfo{
		LatitudeI:  pos.GetLatitudeI(),
		LongitudeI: pos.GetLongitudeI(),
	}
	if pos.Altitude != nil {
		v := pos.GetAltitude()
		info.Altitude = &v
	}

	return info, true
}

func deviceMetrics(telemetry *generated.Telemetry) (domain.DeviceMetricsInfo, bool) {
	if telemetry == nil {
		return domain.DeviceMetricsInfo{}, false
	}

	return deviceMetricsFromProto(telemetry.GetDeviceMetrics())
}

func deviceMetricsFromProto(metrics *generated.DeviceMetrics) (domain.DeviceMetricsInfo, bool) {
	if metrics == nil {
		return domain.DeviceMetricsInfo{}, false
	}

	var out domain.DeviceMetricsInfo
	if metrics.BatteryLevel != nil {
		v := metrics.GetBatteryLevel()
		out.BatteryLevel = &v
	}
	if metrics.Voltage != nil {
		v := float64(metrics.GetVoltage())
		out.Voltage = &v
	}
	if metrics.ChannelUtilization != nil {
		v := float64(metrics.GetChannelUtilization())
		out.ChannelUtilization = &v
	}
	if metrics.AirUtilTx != nil {
		v := float64(metrics.GetAirUtilTx())
		out.AirUtilTx = &v
	}
	hasAny := out.BatteryLevel != nil || out.Voltage != nil || out.ChannelUtilization != nil || out.AirUtilTx != nil

	return out, hasAny
}
