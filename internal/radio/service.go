package radio

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	generated "buf.build/gen/go/meshtastic/protobufs/protocolbuffers/go/meshtastic"

	"meshtui/internal/bus"
	"meshtui/internal/connectors"
	"meshtui/internal/transport"
)

const (
	readFrameTimeout  = 30 * time.Second
	writeFrameTimeout = 8 * time.Second
	heartbeatInterval = 25 * time.Second
	configSyncTimeout = 45 * time.Second
	maxReconnectDelay = 15 * time.Second
)

// PacketSink receives every decoded packet in arrival order.
type PacketSink interface {
	Add(packet DecodedPacket)
}

// OwnerFetcher is an optional transport capability used to recover the local
// identity when the config-sync handshake cannot complete.
type OwnerFetcher interface {
	FetchOwner(ctx context.Context) (uint32, *generated.User, error)
}

// AdminMessageEvent is an inbound ADMIN payload addressed to the local node.
type AdminMessageEvent struct {
	From      uint32
	To        uint32
	PacketID  uint32
	RequestID uint32
	Message   *generated.AdminMessage
}

// Service owns one transport session: it pumps inbound frames through the
// decoder into the packet sink and bus, and serializes outbound sends.
type Service struct {
	logger     *slog.Logger
	bus        bus.MessageBus
	transport  transport.Transport
	codec      *Codec
	decoder    *Decoder
	sink       PacketSink
	skipNodeDB bool
}

func NewService(
	logger *slog.Logger,
	messageBus bus.MessageBus,
	tr transport.Transport,
	codec *Codec,
	decoder *Decoder,
	sink PacketSink,
	skipNodeDB bool,
) (*Service, error) {
	if tr == nil {
		return nil, fmt.Errorf("transport is required")
	}

	return &Service{
		logger:     logger,
		bus:        messageBus,
		transport:  tr,
		codec:      codec,
		decoder:    decoder,
		sink:       sink,
		skipNodeDB: skipNodeDB,
	}, nil
}

func (s *Service) Start(ctx context.Context) {
	go s.runConnector(ctx)
}

// SendAdmin encodes and writes an admin request, returning the packet id used
// on the wire. A failed write must leave no optimistic local state behind;
// callers gate on the returned error.
func (s *Service) SendAdmin(ctx context.Context, to uint32, req AdminRequest) (uint32, error) {
	encoded, err := s.codec.EncodeAdmin(to, req.WantResponse, req.Message)
	if err != nil {
		return 0, fmt.Errorf("encode admin %s: %w", req.Action, err)
	}
	if err := s.writeFrame(ctx, encoded.Payload); err != nil {
		return 0, fmt.Errorf("send admin %s: %w", req.Action, err)
	}
	s.logger.Debug("sent admin request", "action", req.Action, "to", to, "packet_id", encoded.PacketID, "want_response", req.WantResponse)

	return encoded.PacketID, nil
}

// SendText encodes and writes an outbound text message.
func (s *Service) SendText(ctx context.Context, to uint32, channel uint32, text string) (uint32, error) {
	encoded, err := s.codec.EncodeText(to, channel, text)
	if err != nil {
		return 0, fmt.Errorf("encode outgoing message: %w", err)
	}
	if err := s.writeFrame(ctx, encoded.Payload); err != nil {
		return 0, fmt.Errorf("send outgoing frame: %w", err)
	}

	return encoded.PacketID, nil
}

func (s *Service) runConnector(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		s.publishConnStatus(connectors.ConnectionStateConnecting, nil)
		if err := s.transport.Connect(ctx); err != nil {
			s.publishConnStatus(connectors.ConnectionStateReconnecting, err)
			s.logger.Error("transport connect failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}

		backoff = time.Second
		s.publishConnStatus(connectors.ConnectionStateConnected, nil)
		if err := s.sendWantConfig(ctx); err != nil {
			s.logger.Warn("want_config send failed", "error", err)
		}

		sessionCtx, cancelSession := context.WithCancel(ctx)
		go s.runKeepAlive(sessionCtx)
		go s.runOwnerFallback(sessionCtx)
		err := s.runReader(ctx)
		cancelSession()
		_ = s.transport.Close()
		s.publishConnStatus(connectors.ConnectionStateReconnecting, err)

		if !sleepWithContext(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff)
	}
}

func (s *Service) runReader(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		readCtx, cancel := context.WithTimeout(ctx, readFrameTimeout)
		payload, err := s.transport.ReadFrame(readCtx)
		cancel()
		if err != nil {
			return err
		}

		s.bus.Publish(connectors.TopicRawFrameIn, connectors.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(payload)), Len: len(payload)})
		packet := s.decoder.Decode(payload)
		if packet.DecodeError != "" {
			s.logger.Warn("decode fromradio failed", "error", packet.DecodeError, "len", len(payload))
		}

		// Store first, then fan out: subscribers for this packet complete
		// before the next frame is read.
		s.sink.Add(packet)
		s.bus.Publish(connectors.TopicPacket, packet)
		s.handleDecoded(packet)
	}
}

func (s *Service) handleDecoded(packet DecodedPacket) {
	switch packet.Envelope {
	case EnvelopeMyInfo:
		if my := packet.Frame.GetMyInfo(); my != nil {
			s.codec.SetLocalNode(my.GetMyNodeNum())
		}
	case EnvelopeConfigComplete:
		completeID := packet.Frame.GetConfigCompleteId()
		if expected := s.codec.WantConfigID(); expected != 0 && completeID == expected {
			s.bus.Publish(connectors.TopicConfigReady, connectors.ConfigReady{
				Nonce:        completeID,
				LocalNodeNum: s.codec.LocalNode(),
			})
		}
	case EnvelopeChannel:
		if event, ok := channelEvent(packet.Frame.GetChannel()); ok {
			s.bus.Publish(connectors.TopicChannels, event)
		}
	case EnvelopeClientNotification:
		if notice := packet.Frame.GetClientNotification(); notice != nil {
			s.bus.Publish(connectors.TopicClientNotification, connectors.ClientNotificationEvent{
				Message:   notice.GetMessage(),
				Severity:  notice.GetLevel().String(),
				Timestamp: time.Now(),
			})
		}
	case EnvelopeMeshPacket:
		s.handleMeshPacket(packet)
	}
}

func (s *Service) handleMeshPacket(packet DecodedPacket) {
	if !packet.HasPort || packet.Mesh == nil {
		return
	}
	if packet.Port != generated.PortNum_ADMIN_APP {
		return
	}
	admin, ok := packet.Payload.(AdminPayload)
	if !ok {
		return
	}
	local := s.codec.LocalNode()
	if local != 0 && packet.Mesh.To != local {
		return
	}
	event := AdminMessageEvent{
		From:      packet.Mesh.From,
		To:        packet.Mesh.To,
		PacketID:  packet.Mesh.PacketID,
		RequestID: packet.CorrelationID,
		Message:   admin.Message,
	}
	s.bus.Publish(connectors.TopicAdminMessage, event)
}

func (s *Service) runKeepAlive(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := s.codec.EncodeHeartbeat()
			if err != nil {
				s.logger.Debug("encode heartbeat failed", "error", err)
				continue
			}
			if err := s.writeFrame(ctx, payload); err != nil {
				s.logger.Debug("heartbeat write failed", "error", err)
			}
		}
	}
}

// runOwnerFallback recovers the local identity through the transport's
// one-shot owner endpoint when the handshake never completes.
func (s *Service) runOwnerFallback(ctx context.Context) {
	fetcher, ok := s.transport.(OwnerFetcher)
	if !ok {
		return
	}
	readySub := s.bus.Subscribe(connectors.TopicConfigReady)
	defer s.bus.Unsubscribe(readySub, connectors.TopicConfigReady)

	select {
	case <-ctx.Done():
		return
	case <-readySub:
		return
	case <-time.After(configSyncTimeout):
	}

	num, user, err := fetcher.FetchOwner(ctx)
	if err != nil {
		s.logger.Warn("owner fallback failed", "error", err)

		return
	}
	s.codec.SetLocalNode(num)
	s.bus.Publish(connectors.TopicOwner, connectors.OwnerInfo{
		Num:       num,
		ShortName: user.GetShortName(),
		LongName:  user.GetLongName(),
	})
	s.logger.Info("recovered owner via transport fallback", "node_num", num)
}

func (s *Service) sendWantConfig(ctx context.Context) error {
	payload, err := s.codec.EncodeWantConfig(s.skipNodeDB)
	if err != nil {
		return err
	}

	return s.writeFrame(ctx, payload)
}

func (s *Service) writeFrame(ctx context.Context, payload []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeFrameTimeout)
	defer cancel()
	if err := s.transport.WriteFrame(writeCtx, payload); err != nil {
		return err
	}
	s.bus.Publish(connectors.TopicRawFrameOut, connectors.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(payload)), Len: len(payload)})

	return nil
}

func (s *Service) publishConnStatus(state connectors.ConnectionState, err error) {
	status := connectors.ConnectionStatus{
		State:         state,
		TransportName: s.transport.Name(),
		Timestamp:     time.Now(),
	}
	if err != nil {
		status.Err = err.Error()
	}
	s.bus.Publish(connectors.TopicConnStatus, status)
}

func channelEvent(channel *generated.Channel) (connectors.ChannelEvent, bool) {
	if channel == nil || channel.GetRole() == generated.Channel_DISABLED {
		return connectors.ChannelEvent{}, false
	}
	index := int(channel.GetIndex())
	if index < 0 {
		return connectors.ChannelEvent{}, false
	}

	return connectors.ChannelEvent{
		Index: index,
		Name:  strings.TrimSpace(channel.GetSettings().GetName()),
		Role:  channel.GetRole().String(),
		PSK:   channel.GetSettings().GetPsk(),
	}, true
}

func nextBackoff(current time.Duration) time.Duration {
	if current < maxReconnectDelay {
		return current * 2
	}

	return current
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
