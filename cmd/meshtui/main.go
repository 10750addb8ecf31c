package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"meshtui/internal/app"
	"meshtui/internal/bus"
	"meshtui/internal/config"
	"meshtui/internal/connectors"
	"meshtui/internal/domain"
	"meshtui/internal/logging"
	"meshtui/internal/meshview"
	"meshtui/internal/notifications"
	"meshtui/internal/persistence"
	"meshtui/internal/radio"
	"meshtui/internal/transport"
)

const (
	initialConfigWaitTimeout = 45 * time.Second
	maxHexPreviewLen         = 64
	sendTimeout              = 8 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("run meshtui", "error", err)
		os.Exit(1)
	}
}

func run() error {
	connector := flag.String("connector", "", "connector type (ip, serial)")
	host := flag.String("host", "", "ip/hostname")
	serialPort := flag.String("serial-port", "", "serial device path")
	meshviewURL := flag.String("meshview", "", "meshview base url, enables map-service ingest")
	sendText := flag.String("send-text", "", "send a broadcast text message after config sync")
	getOwner := flag.Bool("get-owner", false, "read the owner record after config sync")
	getChannel := flag.Int("get-channel", -1, "read one channel slot (0-7) after config sync")
	listenFor := flag.Duration("listen-for", 0, "listen duration, e.g. 30s")
	skipNodeDB := flag.Bool("skip-nodedb", false, "request config sync without the node database")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := app.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(&cfg, *connector, *host, *serialPort, *meshviewURL, *skipNodeDB)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("cli")
	logger.Info("starting meshtui", "version", app.BuildVersionWithDate())

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn("close sqlite", "error", closeErr)
		}
	}()

	b := bus.New(logMgr.Logger("bus"))
	defer b.Close()

	nodeStore := domain.NewNodeStore()
	packetStore := domain.NewPacketStore(cfg.History.PacketCap)
	channelTable := domain.NewChannelTable()
	nodeStore.StartTicker(ctx, time.Duration(cfg.History.NodeTickerSec)*time.Second)

	writer := persistence.NewWriterQueue(logMgr.Logger("persistence"), 256)
	writer.Start(ctx)
	nodeCache := app.NewNodeCache(persistence.NewNodeRepo(db), writer, nodeStore, logMgr.Logger("node_cache"))
	if err := nodeCache.Start(ctx); err != nil {
		return fmt.Errorf("bootstrap node cache: %w", err)
	}

	tr, err := buildTransport(cfg.Connection)
	if err != nil {
		return err
	}

	codec, err := radio.NewCodec()
	if err != nil {
		return fmt.Errorf("initialize codec: %w", err)
	}
	radioSvc, err := radio.NewService(
		logMgr.Logger("radio"), b, tr, codec, radio.NewDecoder(), packetStore, cfg.Connection.SkipNodeDB,
	)
	if err != nil {
		return fmt.Errorf("initialize radio service: %w", err)
	}

	nodeSync := app.NewNodeSyncService(b, packetStore, nodeStore, channelTable, logMgr.Logger("node_sync"))
	nodeSync.Start(ctx)

	adminSvc := app.NewAdminService(b, radioSvc, nodeStore, channelTable, logMgr.Logger("admin"))

	var sender notifications.Sender = notifications.NopSender{}
	if cfg.Notifications.Enabled {
		sender = notifications.NewBeeepSender(app.Name, logMgr.Logger("notifications"))
	}
	notifySvc := app.NewNotificationService(b, nodeStore, func() config.AppConfig { return cfg }, sender, logMgr.Logger("notify"))
	notifySvc.Start(ctx)

	if cfg.MeshView.Enabled {
		poller := meshview.NewPoller(
			logMgr.Logger("meshview"),
			meshview.NewClient(cfg.MeshView.BaseURL),
			nodeStore,
			cfg.MeshView.DaysActive,
			time.Duration(cfg.MeshView.FirehoseIntervalSec)*time.Second,
			time.Duration(cfg.MeshView.ConfirmIntervalSec)*time.Second,
		)
		poller.Start(ctx)
		logger.Info("meshview ingest enabled", "base_url", cfg.MeshView.BaseURL)
	}

	readySub := b.Subscribe(connectors.TopicConfigReady)
	defer b.Unsubscribe(readySub, connectors.TopicConfigReady)
	radioSvc.Start(ctx)

	logger.Info("waiting for initial config completion", "timeout", initialConfigWaitTimeout)
	ready, err := waitForConfigReady(ctx, readySub, initialConfigWaitTimeout)
	if err != nil {
		return fmt.Errorf("initial config did not complete: %w", err)
	}
	logger.Info("initial config completed", "nonce", ready.Nonce, "local_node", domain.FormatNodeNum(ready.LocalNodeNum))
	logSnapshot(logger, nodeStore, channelTable)

	if *getOwner {
		owner, err := adminSvc.GetOwner(ctx, ready.LocalNodeNum)
		if err != nil {
			return fmt.Errorf("get owner: %w", err)
		}
		logger.Info("owner", "short_name", owner.GetShortName(), "long_name", owner.GetLongName())
	}
	if *getChannel >= 0 {
		channel, err := adminSvc.GetChannel(ctx, ready.LocalNodeNum, *getChannel)
		if err != nil {
			return fmt.Errorf("get channel %d: %w", *getChannel, err)
		}
		logger.Info("channel", "index", channel.Index, "name", channel.Name, "role", channel.Role)
	}

	if text := strings.TrimSpace(*sendText); text != "" {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		packetID, err := radioSvc.SendText(sendCtx, domain.BroadcastNum, 0, text)
		cancel()
		if err != nil {
			return fmt.Errorf("send text: %w", err)
		}
		logger.Info("text sent", "packet_id", packetID)
	}

	watch(ctx, b, logger)

	if *listenFor > 0 {
		logger.Info("listen mode", "duration", *listenFor)
		select {
		case <-ctx.Done():
		case <-time.After(*listenFor):
		}

		return nil
	}

	logger.Info("listening until interrupt")
	<-ctx.Done()

	return nil
}

func applyFlagOverrides(cfg *config.AppConfig, connector, host, serialPort, meshviewURL string, skipNodeDB bool) {
	if strings.TrimSpace(connector) != "" {
		cfg.Connection.Connector = config.ConnectorType(strings.TrimSpace(connector))
	}
	if strings.TrimSpace(host) != "" {
		cfg.Connection.Host = strings.TrimSpace(host)
	}
	if strings.TrimSpace(serialPort) != "" {
		cfg.Connection.Connector = config.ConnectorSerial
		cfg.Connection.SerialPort = strings.TrimSpace(serialPort)
	}
	if strings.TrimSpace(meshviewURL) != "" {
		cfg.MeshView.Enabled = true
		cfg.MeshView.BaseURL = strings.TrimSpace(meshviewURL)
	}
	if skipNodeDB {
		cfg.Connection.SkipNodeDB = true
	}
}

func buildTransport(conn config.ConnectionConfig) (transport.Transport, error) {
	switch conn.Connector {
	case config.ConnectorIP:
		return transport.NewIPTransport(conn.Host, app.DefaultIPPort), nil
	case config.ConnectorSerial:
		return transport.NewSerialTransport(conn.SerialPort, conn.SerialBaud), nil
	default:
		return nil, fmt.Errorf("unknown connector: %s", conn.Connector)
	}
}

func waitForConfigReady(ctx context.Context, readySub bus.Subscription, timeout time.Duration) (connectors.ConfigReady, error) {
	timeoutCh := time.After(timeout)
	for {
		select {
		case <-ctx.Done():
			return connectors.ConfigReady{}, ctx.Err()
		case <-timeoutCh:
			return connectors.ConfigReady{}, fmt.Errorf("timeout after %s", timeout)
		case raw, ok := <-readySub:
			if !ok {
				return connectors.ConfigReady{}, fmt.Errorf("config ready subscription closed")
			}
			ready, ok := raw.(connectors.ConfigReady)
			if !ok {
				continue
			}

			return ready, nil
		}
	}
}

func logSnapshot(logger *slog.Logger, nodes *domain.NodeStore, channels *domain.ChannelTable) {
	logger.Info("node table", "count", nodes.Len())
	for _, node := range nodes.SnapshotSorted() {
		logger.Info("node",
			"id", domain.FormatNodeNum(node.Num),
			"name", domain.DisplayName(node),
			"last_heard", node.LastHeard.Format(time.RFC3339),
		)
	}
	for _, channel := range channels.Snapshot() {
		logger.Info("channel", "index", channel.Index, "name", channel.Name, "role", channel.Role)
	}
}

func watch(ctx context.Context, b bus.MessageBus, logger *slog.Logger) {
	connSub := b.Subscribe(connectors.TopicConnStatus)
	packetSub := b.Subscribe(connectors.TopicPacket)
	channelSub := b.Subscribe(connectors.TopicChannels)
	noticeSub := b.Subscribe(connectors.TopicClientNotification)
	rebootSub := b.Subscribe(connectors.TopicRebootNotice)
	rawInSub := b.Subscribe(connectors.TopicRawFrameIn)

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.Unsubscribe(connSub, connectors.TopicConnStatus)
				b.Unsubscribe(packetSub, connectors.TopicPacket)
				b.Unsubscribe(channelSub, connectors.TopicChannels)
				b.Unsubscribe(noticeSub, connectors.TopicClientNotification)
				b.Unsubscribe(rebootSub, connectors.TopicRebootNotice)
				b.Unsubscribe(rawInSub, connectors.TopicRawFrameIn)

				return
			case raw := <-connSub:
				if status, ok := raw.(connectors.ConnectionStatus); ok {
					logger.Info("conn", "state", status.State, "transport", status.TransportName, "error", status.Err)
				}
			case raw := <-packetSub:
				if packet, ok := raw.(radio.DecodedPacket); ok {
					logPacket(logger, packet)
				}
			case raw := <-channelSub:
				if event, ok := raw.(connectors.ChannelEvent); ok {
					logger.Info("channel", "index", event.Index, "name", event.Name, "role", event.Role)
				}
			case raw := <-noticeSub:
				if event, ok := raw.(connectors.ClientNotificationEvent); ok {
					logger.Info("device-notice", "severity", event.Severity, "message", event.Message)
				}
			case raw := <-rebootSub:
				if notice, ok := raw.(connectors.RebootNotice); ok {
					logger.Info("reboot-notice", "node", domain.FormatNodeNum(notice.NodeNum), "writes", notice.PendingWrites)
				}
			case raw := <-rawInSub:
				if frame, ok := raw.(connectors.RawFrame); ok {
					logger.Debug("raw-in", "len", frame.Len, "hex", previewHex(frame.Hex))
				}
			}
		}
	}()
}

func logPacket(logger *slog.Logger, packet radio.DecodedPacket) {
	if packet.DecodeError != "" {
		logger.Warn("packet", "id", packet.ID, "decode_error", packet.DecodeError)

		return
	}
	attrs := []any{"id", packet.ID, "envelope", packet.Envelope}
	if packet.Mesh != nil {
		attrs = append(attrs, "from", domain.FormatNodeNum(packet.Mesh.From), "to", domain.FormatNodeNum(packet.Mesh.To))
		if hops, ok := packet.Mesh.HopsAway(); ok {
			attrs = append(attrs, "hops", hops)
		}
	}
	if packet.HasPort {
		attrs = append(attrs, "port", packet.Port.String())
	}
	if text, ok := packet.Payload.(radio.TextPayload); ok {
		attrs = append(attrs, "text", text.Text)
	}
	logger.Info("packet", attrs...)
}

func previewHex(hexStr string) string {
	if len(hexStr) <= maxHexPreviewLen {
		return hexStr
	}

	return hexStr[:maxHexPreviewLen] + "..."
}
