package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	generated "buf.build/gen/go/meshtastic/protobufs/protocolbuffers/go/meshtastic"

	"meshtui/internal/bus"
	"meshtui/internal/connectors"
	"meshtui/internal/domain"
	"meshtui/internal/radio"
)

const adminOpTimeout = 10 * time.Second

type adminSender interface {
	SendAdmin(ctx context.Context, to uint32, req radio.AdminRequest) (uint32, error)
}

// AdminService exchanges admin messages with a node. Read requests are
// serialized through a single in-flight slot; responses are correlated by the
// request packet id echoed back by the device.
type AdminService struct {
	bus      bus.MessageBus
	radio    adminSender
	nodes    *domain.NodeStore
	channels *domain.ChannelTable
	logger   *slog.Logger

	readMu       sync.Mutex
	readInFlight bool

	session editSession
}

func NewAdminService(
	messageBus bus.MessageBus,
	sender adminSender,
	nodes *domain.NodeStore,
	channels *domain.ChannelTable,
	logger *slog.Logger,
) *AdminService {
	if logger == nil {
		logger = slog.Default().With("component", "app.admin")
	}

	return &AdminService{
		bus:      messageBus,
		radio:    sender,
		nodes:    nodes,
		channels: channels,
		logger:   logger,
	}
}

// GetOwner reads the target node's owner record.
func (s *AdminService) GetOwner(ctx context.Context, to uint32) (*generated.User, error) {
	resp, err := s.sendAndWait(ctx, to, radio.GetOwnerRequest())
	if err != nil {
		return nil, err
	}
	owner := resp.GetGetOwnerResponse()
	if owner == nil {
		return nil, fmt.Errorf("admin response has no owner payload")
	}

	return owner, nil
}

// GetConfig reads one device config section.
func (s *AdminService) GetConfig(ctx context.Context, to uint32, configType generated.AdminMessage_ConfigType) (*generated.Config, error) {
	resp, err := s.sendAndWait(ctx, to, radio.GetConfigRequest(configType))
	if err != nil {
		return nil, err
	}
	cfg := resp.GetGetConfigResponse()
	if cfg == nil {
		return nil, fmt.Errorf("admin response has no config payload")
	}

	return cfg, nil
}

// GetModuleConfig reads one module config section.
func (s *AdminService) GetModuleConfig(ctx context.Context, to uint32, configType generated.AdminMessage_ModuleConfigType) (*generated.ModuleConfig, error) {
	resp, err := s.sendAndWait(ctx, to, radio.GetModuleConfigRequest(configType))
	if err != nil {
		return nil, err
	}
	cfg := resp.GetGetModuleConfigResponse()
	if cfg == nil {
		return nil, fmt.Errorf("admin response has no module config payload")
	}

	return cfg, nil
}

// GetChannel reads one channel slot and records it in the channel table. The
// response carries the true zero-based index regardless of the shifted value
// sent on the wire.
func (s *AdminService) GetChannel(ctx context.Context, to uint32, index int) (domain.ChannelInfo, error) {
	req, err := radio.GetChannelRequest(index)
	if err != nil {
		return domain.ChannelInfo{}, err
	}
	resp, err := s.sendAndWait(ctx, to, req)
	if err != nil {
		return domain.ChannelInfo{}, err
	}
	channel := resp.GetGetChannelResponse()
	if channel == nil {
		return domain.ChannelInfo{}, fmt.Errorf("admin response has no channel payload")
	}

	info := domain.ChannelInfo{
		Index: int(channel.GetIndex()),
		Name:  channel.GetSettings().GetName(),
		Role:  channel.GetRole().String(),
		PSK:   channel.GetSettings().GetPsk(),
	}
	s.channels.Upsert(info)

	return info, nil
}

func (s *AdminService) SetOwner(ctx context.Context, to uint32, user *generated.User) error {
	return s.sendWrite(ctx, to, radio.SetOwner(user))
}

func (s *AdminService) SetConfig(ctx context.Context, to uint32, cfg *generated.Config) error {
	return s.sendWrite(ctx, to, radio.SetConfig(cfg))
}

func (s *AdminService) SetModuleConfig(ctx context.Context, to uint32, cfg *generated.ModuleConfig) error {
	return s.sendWrite(ctx, to, radio.SetModuleConfig(cfg))
}

func (s *AdminService) SetChannel(ctx context.Context, to uint32, channel *generated.Channel) error {
	return s.sendWrite(ctx, to, radio.SetChannel(channel))
}

func (s *AdminService) Reboot(ctx context.Context, to uint32, seconds int32) error {
	_, err := s.radio.SendAdmin(ctx, to, radio.RebootRequest(seconds))

	return err
}

func (s *AdminService) Shutdown(ctx context.Context, to uint32, seconds int32) error {
	_, err := s.radio.SendAdmin(ctx, to, radio.ShutdownRequest(seconds))

	return err
}

func (s *AdminService) FactoryResetConfig(ctx context.Context, to uint32) error {
	_, err := s.radio.SendAdmin(ctx, to, radio.FactoryResetConfigRequest())

	return err
}

func (s *AdminService) NodeDBReset(ctx context.Context, to uint32) error {
	_, err := s.radio.SendAdmin(ctx, to, radio.NodeDBResetRequest())

	return err
}

// RemoveNode removes a node from the device node database. The local store is
// updated only after the request is accepted for sending.
func (s *AdminService) RemoveNode(ctx context.Context, to uint32, num uint32) error {
	if _, err := s.radio.SendAdmin(ctx, to, radio.RemoveNodeRequest(num)); err != nil {
		return err
	}
	s.nodes.RemoveNode(num)

	return nil
}

// ToggleFavorite flips a node's favorite flag on the device and locally,
// returning the new value.
func (s *AdminService) ToggleFavorite(ctx context.Context, to uint32, num uint32) (bool, error) {
	desired := true
	if node, ok := s.nodes.Get(num); ok {
		desired = !node.IsFavorite
	}
	if _, err := s.radio.SendAdmin(ctx, to, radio.SetFavoriteRequest(num, desired)); err != nil {
		return !desired, err
	}

	return s.nodes.ToggleFavorite(num), nil
}

// ToggleIgnored flips a node's ignored flag on the device and locally,
// returning the new value.
func (s *AdminService) ToggleIgnored(ctx context.Context, to uint32, num uint32) (bool, error) {
	desired := true
	if node, ok := s.nodes.Get(num); ok {
		desired = !node.IsIgnored
	}
	if _, err := s.radio.SendAdmin(ctx, to, radio.SetIgnoredRequest(num, desired)); err != nil {
		return !desired, err
	}

	return s.nodes.ToggleIgnored(num), nil
}

// sendWrite sends one write-style admin message and counts it against an open
// edit session.
func (s *AdminService) sendWrite(ctx context.Context, to uint32, req radio.AdminRequest) error {
	if _, err := s.radio.SendAdmin(ctx, to, req); err != nil {
		return err
	}
	s.session.countWrite()

	return nil
}

// sendAndWait serializes read requests: a second read while one is in flight
// fails immediately instead of queueing.
func (s *AdminService) sendAndWait(ctx context.Context, to uint32, req radio.AdminRequest) (*generated.AdminMessage, error) {
	release, err := s.acquireReadSlot()
	if err != nil {
		return nil, err
	}
	defer release()

	adminSub := s.bus.Subscribe(connectors.TopicAdminMessage)
	defer s.bus.Unsubscribe(adminSub, connectors.TopicAdminMessage)
	connSub := s.bus.Subscribe(connectors.TopicConnStatus)
	defer s.bus.Unsubscribe(connSub, connectors.TopicConnStatus)

	requestID, err := s.radio.SendAdmin(ctx, to, req)
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, adminOpTimeout)
	defer cancel()
	for {
		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("wait admin response %s (request %d): %w", req.Action, requestID, waitCtx.Err())
		case raw, ok := <-adminSub:
			if !ok {
				return nil, fmt.Errorf("admin subscription closed")
			}
			event, ok := raw.(radio.AdminMessageEvent)
			if !ok {
				continue
			}
			if event.RequestID != requestID || event.Message == nil {
				continue
			}

			return event.Message, nil
		case raw, ok := <-connSub:
			if !ok {
				continue
			}
			status, ok := raw.(connectors.ConnectionStatus)
			if !ok {
				continue
			}
			if status.State != connectors.ConnectionStateConnected {
				return nil, fmt.Errorf("connection changed to %s while waiting admin response", status.State)
			}
		}
	}
}

func (s *AdminService) acquireReadSlot() (func(), error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	if s.readInFlight {
		return nil, fmt.Errorf("another admin read is already in progress")
	}
	s.readInFlight = true

	return func() {
		s.readMu.Lock()
		s.readInFlight = false
		s.readMu.Unlock()
	}, nil
}
