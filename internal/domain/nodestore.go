package domain

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultNodeTickerInterval re-emits an unchanged snapshot so consumers that
// derive "time since last heard" stay fresh without new traffic.
const DefaultNodeTickerInterval = time.Second

type nodeSubscriber struct {
	id int
	fn func([]Node)
}

// NodeStore is the authoritative mesh topology table. All mutators are total:
// they create the node lazily on first reference and never fail.
type NodeStore struct {
	mu          sync.Mutex
	nodes       map[uint32]Node
	subscribers []nodeSubscriber
	nextSubID   int
}

func NewNodeStore() *NodeStore {
	return &NodeStore{nodes: make(map[uint32]Node)}
}

// Load seeds the table from a persisted cache without firing per-node merges.
func (s *NodeStore) Load(nodes []Node) {
	s.mu.Lock()
	for _, node := range nodes {
		if node.Num == 0 {
			continue
		}
		s.nodes[node.Num] = node
	}
	s.mu.Unlock()
	s.notify()
}

// UpdateFromNodeInfo applies a full node-info broadcast. Identity and
// bookkeeping fields are authoritative and overwrite the stored node.
func (s *NodeStore) UpdateFromNodeInfo(update NodeInfoUpdate) {
	if update.Num == 0 {
		return
	}
	s.mu.Lock()
	node := s.getOrCreateLocked(update.Num)

	node.ShortName = update.ShortName
	node.LongName = update.LongName
	if update.HWModel != "" {
		node.HWModel = update.HWModel
	}
	if len(update.PublicKey) > 0 {
		node.PublicKey = cloneBytes(update.PublicKey)
	}
	if update.SNR != nil {
		node.SNR = update.SNR
	}
	if update.HopsAway != nil {
		node.HopsAway = update.HopsAway
	}
	node.IsFavorite = update.IsFavorite
	node.IsIgnored = update.IsIgnored
	if update.Position != nil {
		applyPositionLocked(&node, *update.Position)
	}
	if update.Metrics != nil {
		applyMetricsLocked(&node, *update.Metrics)
	}
	advanceLastHeard(&node, update.LastHeard)
	node.UpdatedAt = time.Now()

	s.nodes[update.Num] = node
	s.mu.Unlock()
	s.notify()
}

// UpdateFromPacket records link quality observed on any received mesh packet.
func (s *NodeStore) UpdateFromPacket(num uint32, snr *float64, hops *int) {
	if num == 0 || num == BroadcastNum {
		return
	}
	s.mu.Lock()
	node := s.getOrCreateLocked(num)
	if snr != nil {
		node.SNR = snr
	}
	if hops != nil {
		node.HopsAway = hops
	}
	advanceLastHeard(&node, time.Now())
	node.UpdatedAt = time.Now()
	s.nodes[num] = node
	s.mu.Unlock()
	s.notify()
}

// UpdateFromUser merges identity learned opportunistically from a NODEINFO
// application payload. Empty fields never blank cached values.
func (s *NodeStore) UpdateFromUser(num uint32, user UserInfo) {
	if num == 0 {
		return
	}
	s.mu.Lock()
	node := s.getOrCreateLocked(num)
	if user.ShortName != "" {
		node.ShortName = user.ShortName
	}
	if user.LongName != "" {
		node.LongName = user.LongName
	}
	if user.HWModel != "" {
		node.HWModel = user.HWModel
	}
	if len(user.PublicKey) > 0 {
		node.PublicKey = cloneBytes(user.PublicKey)
	}
	node.UpdatedAt = time.Now()
	s.nodes[num] = node
	s.mu.Unlock()
	s.notify()
}

// UpdatePosition merges a POSITION payload.
func (s *NodeStore) UpdatePosition(num uint32, pos PositionInfo) {
	if num == 0 {
		return
	}
	s.mu.Lock()
	node := s.getOrCreateLocked(num)
	applyPositionLocked(&node, pos)
	node.UpdatedAt = time.Now()
	s.nodes[num] = node
	s.mu.Unlock()
	s.notify()
}

// UpdateDeviceMetrics merges the device-metrics slice of a TELEMETRY payload.
func (s *NodeStore) UpdateDeviceMetrics(num uint32, metrics DeviceMetricsInfo) {
	if num == 0 {
		return
	}
	s.mu.Lock()
	node := s.getOrCreateLocked(num)
	applyMetricsLocked(&node, metrics)
	node.UpdatedAt = time.Now()
	s.nodes[num] = node
	s.mu.Unlock()
	s.notify()
}

// UpdateFromMeshView merges a correlation-service record with fill-if-unknown
// semantics: it never replaces a populated field with an empty one. The public
// key is the exception and is taken whenever it differs byte-for-byte from the
// stored one.
func (s *NodeStore) UpdateFromMeshView(num uint32, rec MeshViewNode) {
	if num == 0 {
		return
	}
	s.mu.Lock()
	node := s.getOrCreateLocked(num)
	if node.ShortName == "" && rec.ShortName != "" {
		node.ShortName = rec.ShortName
	}
	if node.LongName == "" && rec.LongName != "" {
		node.LongName = rec.LongName
	}
	if node.HWModel == "" && rec.HWModel != "" {
		node.HWModel = rec.HWModel
	}
	if node.LatitudeI == nil && rec.LatitudeI != nil {
		node.LatitudeI = rec.LatitudeI
	}
	if node.LongitudeI == nil && rec.LongitudeI != nil {
		node.LongitudeI = rec.LongitudeI
	}
	if len(rec.PublicKey) > 0 && !bytes.Equal(node.PublicKey, rec.PublicKey) {
		node.PublicKey = cloneBytes(rec.PublicKey)
	}
	advanceLastHeard(&node, rec.LastSeen)
	node.UpdatedAt = time.Now()
	s.nodes[num] = node
	s.mu.Unlock()
	s.notify()
}

// RemoveNode deletes a node. Callers must only invoke it after the matching
// admin request was accepted for send.
func (s *NodeStore) RemoveNode(num uint32) {
	s.mu.Lock()
	if _, ok := s.nodes[num]; !ok {
		s.mu.Unlock()

		return
	}
	delete(s.nodes, num)
	s.mu.Unlock()
	s.notify()
}

// ToggleFavorite flips the favorite flag and reports the new value.
func (s *NodeStore) ToggleFavorite(num uint32) bool {
	if num == 0 {
		return false
	}
	s.mu.Lock()
	node := s.getOrCreateLocked(num)
	node.IsFavorite = !node.IsFavorite
	node.UpdatedAt = time.Now()
	s.nodes[num] = node
	value := node.IsFavorite
	s.mu.Unlock()
	s.notify()

	return value
}

// ToggleIgnored flips the ignored flag and reports the new value.
func (s *NodeStore) ToggleIgnored(num uint32) bool {
	if num == 0 {
		return false
	}
	s.mu.Lock()
	node := s.getOrCreateLocked(num)
	node.IsIgnored = !node.IsIgnored
	node.UpdatedAt = time.Now()
	s.nodes[num] = node
	value := node.IsIgnored
	s.mu.Unlock()
	s.notify()

	return value
}

func (s *NodeStore) Get(num uint32) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[num]
	if ok {
		node = cloneNode(node)
	}

	return node, ok
}

// NodeName resolves the canonical display name for a node number, falling back
// to the formatted hex id for unknown nodes.
func (s *NodeStore) NodeName(num uint32) string {
	node, ok := s.Get(num)
	if !ok {
		return FormatNodeNum(num)
	}

	return DisplayName(node)
}

// SnapshotSorted returns a stable copy ordered by last-heard descending with
// node number as tiebreak.
func (s *NodeStore) SnapshotSorted() []Node {
	s.mu.Lock()
	out := make([]Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		out = append(out, cloneNode(node))
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastHeard.Equal(out[j].LastHeard) {
			return out[i].Num < out[j].Num
		}

		return out[i].LastHeard.After(out[j].LastHeard)
	})

	return out
}

func (s *NodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.nodes)
}

// OnUpdate registers a subscriber invoked with the full sorted snapshot after
// every mutation and on every ticker tick. The returned function removes
// exactly that subscriber and is safe to call twice.
func (s *NodeStore) OnUpdate(fn func([]Node)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, nodeSubscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == id {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)

				return
			}
		}
	}
}

// StartTicker re-invokes the notify path on a fixed interval until ctx is
// cancelled. It shares the same delivery path as data mutations so consumers
// have a single update code path.
func (s *NodeStore) StartTicker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultNodeTickerInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.notify()
			}
		}
	}()
}

func (s *NodeStore) getOrCreateLocked(num uint32) Node {
	node, ok := s.nodes[num]
	if !ok {
		node = Node{Num: num}
	}

	return node
}

func (s *NodeStore) notify() {
	s.mu.Lock()
	subs := make([]nodeSubscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()
	if len(subs) == 0 {
		return
	}

	snapshot := s.SnapshotSorted()
	for _, sub := range subs {
		sub.fn(snapshot)
	}
}

func applyPositionLocked(node *Node, pos PositionInfo) {
	lat := pos.LatitudeI
	lon := pos.LongitudeI
	node.LatitudeI = &lat
	node.LongitudeI = &lon
	if pos.Altitude != nil {
		node.Altitude = pos.Altitude
	}
}

func applyMetricsLocked(node *Node, metrics DeviceMetricsInfo) {
	if metrics.BatteryLevel != nil {
		node.BatteryLevel = metrics.BatteryLevel
	}
	if metrics.Voltage != nil {
		node.Voltage = metrics.Voltage
	}
	if metrics.ChannelUtilization != nil {
		node.ChannelUtilization = metrics.ChannelUtilization
	}
	if metrics.AirUtilTx != nil {
		node.AirUtilTx = metrics.AirUtilTx
	}
}

// advanceLastHeard keeps the later timestamp so stale sources never regress it.
func advanceLastHeard(node *Node, heard time.Time) {
	if heard.IsZero() || heard.Before(node.LastHeard) {
		return
	}
	node.LastHeard = heard
}

// cloneNode detaches a node from store-owned memory. Snapshots and Get results
// must not share pointers with the map entry, so every optional field is
// copied, not just the key bytes.
func cloneNode(node Node) Node {
	node.PublicKey = cloneBytes(node.PublicKey)
	node.SNR = clonePtr(node.SNR)
	node.HopsAway = clonePtr(node.HopsAway)
	node.BatteryLevel = clonePtr(node.BatteryLevel)
	node.Voltage = clonePtr(node.Voltage)
	node.ChannelUtilization = clonePtr(node.ChannelUtilization)
	node.AirUtilTx = clonePtr(node.AirUtilTx)
	node.LatitudeI = clonePtr(node.LatitudeI)
	node.LongitudeI = clonePtr(node.LongitudeI)
	node.Altitude = clonePtr(node.Altitude)

	return node
}

func clonePtr[T any](value *T) *T {
	if value == nil {
		return nil
	}
	out := *value

	return &out
}

func cloneBytes(value []byte) []byte {
	if len(value) == 0 {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)

	return out
}
