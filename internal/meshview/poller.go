package meshview

import (
	"context"
	"log/slog"
	"time"

	"meshtui/internal/domain"
)

const firehoseBatchLimit = 200

// NodeUpdater is the store-side merge entry point for map-service records.
type NodeUpdater interface {
	UpdateFromMeshView(num uint32, rec domain.MeshViewNode)
}

// Poller runs two loops against the map service: a fast packet firehose that
// surfaces node activity with low latency, and a slower node confirmation pass
// that fills in identity details.
type Poller struct {
	logger        *slog.Logger
	client        *Client
	nodes         NodeUpdater
	daysActive    int
	firehoseEvery time.Duration
	confirmEvery  time.Duration
	packetCursor  int64
}

func NewPoller(
	logger *slog.Logger,
	client *Client,
	nodes NodeUpdater,
	daysActive int,
	firehoseEvery time.Duration,
	confirmEvery time.Duration,
) *Poller {
	return &Poller{
		logger:        logger,
		client:        client,
		nodes:         nodes,
		daysActive:    daysActive,
		firehoseEvery: firehoseEvery,
		confirmEvery:  confirmEvery,
	}
}

func (p *Poller) Start(ctx context.Context) {
	// The cursor starts at "now" so a fresh session does not replay history.
	p.packetCursor = time.Now().UnixMicro()
	go p.runFirehose(ctx)
	go p.runConfirmation(ctx)
}

func (p *Poller) runFirehose(ctx context.Context) {
	ticker := time.NewTicker(p.firehoseEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollPackets(ctx)
		}
	}
}

func (p *Poller) runConfirmation(ctx context.Context) {
	p.pollNodes(ctx)
	ticker := time.NewTicker(p.confirmEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollNodes(ctx)
		}
	}
}

func (p *Poller) pollPackets(ctx context.Context) {
	packets, cursor, err := p.client.Packets(ctx, p.packetCursor, firehoseBatchLimit)
	if err != nil {
		p.logger.Debug("meshview packet poll failed", "error", err)

		return
	}
	p.packetCursor = cursor

	for _, pkt := range packets {
		num, err := domain.ParseNodeNum(pkt.FromNodeID)
		if err != nil || num == 0 {
			continue
		}
		p.nodes.UpdateFromMeshView(num, domain.MeshViewNode{
			Num:      num,
			LastSeen: time.UnixMicro(pkt.ImportTimeUS),
		})
	}
	if len(packets) > 0 {
		p.logger.Debug("meshview firehose applied", "packets", len(packets), "cursor", cursor)
	}
}

func (p *Poller) pollNodes(ctx context.Context) {
	nodes, err := p.client.Nodes(ctx, p.daysActive)
	if err != nil {
		p.logger.Debug("meshview node poll failed", "error", err)

		return
	}
	for _, node := range nodes {
		p.nodes.UpdateFromMeshView(node.Num, node)
	}
}
