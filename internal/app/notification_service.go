package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"meshtui/internal/bus"
	"meshtui/internal/config"
	"meshtui/internal/connectors"
	"meshtui/internal/domain"
	"meshtui/internal/notifications"
)

// NotificationService listens to bus events and emits user-facing
// notifications. Connection states are deduplicated so reconnect loops do not
// spam the desktop.
type NotificationService struct {
	bus           bus.MessageBus
	nodes         *domain.NodeStore
	currentConfig func() config.AppConfig
	sender        notifications.Sender
	logger        *slog.Logger

	connStatusMu     sync.Mutex
	lastConnState    connectors.ConnectionState
	lastConnStateSet bool
}

func NewNotificationService(
	messageBus bus.MessageBus,
	nodes *domain.NodeStore,
	currentConfig func() config.AppConfig,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		nodes:         nodes,
		currentConfig: currentConfig,
		sender:        sender,
		logger:        logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	connSub := s.bus.Subscribe(connectors.TopicConnStatus)
	noticeSub := s.bus.Subscribe(connectors.TopicClientNotification)
	rebootSub := s.bus.Subscribe(connectors.TopicRebootNotice)

	go func() {
		defer s.bus.Unsubscribe(connSub, connectors.TopicConnStatus)
		defer s.bus.Unsubscribe(noticeSub, connectors.TopicClientNotification)
		defer s.bus.Unsubscribe(rebootSub, connectors.TopicRebootNotice)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				status, ok := raw.(connectors.ConnectionStatus)
				if !ok {
					continue
				}
				s.handleConnectionStatus(status)
			case raw, ok := <-noticeSub:
				if !ok {
					return
				}
				event, ok := raw.(connectors.ClientNotificationEvent)
				if !ok {
					continue
				}
				s.handleClientNotification(event)
			case raw, ok := <-rebootSub:
				if !ok {
					return
				}
				notice, ok := raw.(connectors.RebootNotice)
				if !ok {
					continue
				}
				s.handleRebootNotice(notice)
			}
		}
	}()
}

func (s *NotificationService) handleConnectionStatus(status connectors.ConnectionStatus) {
	if status.State == "" {
		return
	}

	s.connStatusMu.Lock()
	if s.lastConnStateSet && s.lastConnState == status.State {
		s.connStatusMu.Unlock()

		return
	}
	s.lastConnState = status.State
	s.lastConnStateSet = true
	s.connStatusMu.Unlock()

	prefs := s.notificationPrefs()
	if !prefs.Enabled || !prefs.ConnectionStatus {
		return
	}
	if status.State != connectors.ConnectionStateConnected &&
		status.State != connectors.ConnectionStateDisconnected {
		return
	}

	content := strings.TrimSpace(status.TransportName)
	if errText := strings.TrimSpace(status.Err); errText != "" {
		content = fmt.Sprintf("%s (error: %s)", content, errText)
	}
	s.send(notifications.Payload{
		Title: fmt.Sprintf("Radio %s", status.State),
		Body:  content,
	})
}

func (s *NotificationService) handleClientNotification(event connectors.ClientNotificationEvent) {
	prefs := s.notificationPrefs()
	if !prefs.Enabled || !prefs.DeviceNotices {
		return
	}
	message := strings.TrimSpace(event.Message)
	if message == "" {
		return
	}

	title := "Device notice"
	if severity := strings.TrimSpace(event.Severity); severity != "" {
		title = fmt.Sprintf("Device notice (%s)", strings.ToLower(severity))
	}
	s.send(notifications.Payload{Title: title, Body: message})
}

func (s *NotificationService) handleRebootNotice(notice connectors.RebootNotice) {
	prefs := s.notificationPrefs()
	if !prefs.Enabled || !prefs.RebootNotices {
		return
	}

	name := domain.FormatNodeNum(notice.NodeNum)
	if s.nodes != nil {
		name = s.nodes.NodeName(notice.NodeNum)
	}
	s.send(notifications.Payload{
		Title: "Settings applied",
		Body:  fmt.Sprintf("%s is rebooting to apply %d setting change(s)", name, notice.PendingWrites),
	})
}

func (s *NotificationService) notificationPrefs() config.NotificationConfig {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
		cfg.FillMissingDefaults()
	}

	return cfg.Notifications
}

func (s *NotificationService) send(payload notifications.Payload) {
	title := strings.TrimSpace(payload.Title)
	content := strings.TrimSpace(payload.Body)
	if title == "" && content == "" {
		return
	}
	s.logger.Debug("sending notification", "title", title)
	s.sender.Send(notifications.Payload{Title: title, Body: content})
}
