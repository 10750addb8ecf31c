package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"meshtui/internal/domain"
	"meshtui/internal/persistence"
)

// NodeCache replays persisted nodes into the store on startup and writes store
// changes back through the writer queue. The store re-notifies on a timer with
// unchanged data, so only rows whose UpdatedAt moved are persisted.
type NodeCache struct {
	repo   *persistence.NodeRepo
	writer *persistence.WriterQueue
	nodes  *domain.NodeStore
	logger *slog.Logger

	mu        sync.Mutex
	persisted map[uint32]time.Time

	unsubscribe func()
}

func NewNodeCache(
	repo *persistence.NodeRepo,
	writer *persistence.WriterQueue,
	nodes *domain.NodeStore,
	logger *slog.Logger,
) *NodeCache {
	if logger == nil {
		logger = slog.Default().With("component", "app.node_cache")
	}

	return &NodeCache{
		repo:      repo,
		writer:    writer,
		nodes:     nodes,
		logger:    logger,
		persisted: make(map[uint32]time.Time),
	}
}

// Start loads the cached nodes and begins persisting store updates. The load
// happens before subscribing so the replay itself is not written back.
func (c *NodeCache) Start(ctx context.Context) error {
	cached, err := c.repo.ListSortedByLastHeard(ctx)
	if err != nil {
		return err
	}
	c.nodes.Load(cached)
	for _, node := range cached {
		c.persisted[node.Num] = node.UpdatedAt
	}
	c.logger.Info("node cache loaded", "nodes", len(cached))

	c.unsubscribe = c.nodes.OnUpdate(c.persistChanged)
	go func() {
		<-ctx.Done()
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
	}()

	return nil
}

func (c *NodeCache) persistChanged(snapshot []domain.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, node := range snapshot {
		if last, ok := c.persisted[node.Num]; ok && !node.UpdatedAt.After(last) {
			continue
		}
		c.persisted[node.Num] = node.UpdatedAt
		n := node
		c.writer.Enqueue("upsert_node", func(ctx context.Context) error {
			return c.repo.Upsert(ctx, n)
		})
	}
}
