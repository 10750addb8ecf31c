package domain

import "sync"

// MaxChannels is the fixed channel slot count of the device.
const MaxChannels = 8

// ChannelTable holds the 8 channel slots. Writes are last-write-wins by index
// regardless of whether they came from a broadcast frame or an admin response.
type ChannelTable struct {
	mu    sync.Mutex
	slots [MaxChannels]*ChannelInfo
}

func NewChannelTable() *ChannelTable {
	return &ChannelTable{}
}

func (t *ChannelTable) Upsert(info ChannelInfo) {
	if info.Index < 0 || info.Index >= MaxChannels {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	stored := info
	stored.PSK = cloneBytes(info.PSK)
	t.slots[info.Index] = &stored
}

func (t *ChannelTable) Get(index int) (ChannelInfo, bool) {
	if index < 0 || index >= MaxChannels {
		return ChannelInfo{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.slots[index] == nil {
		return ChannelInfo{}, false
	}
	info := *t.slots[index]
	info.PSK = cloneBytes(info.PSK)

	return info, true
}

// Snapshot returns the populated slots in index order.
func (t *ChannelTable) Snapshot() []ChannelInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ChannelInfo, 0, MaxChannels)
	for _, slot := range t.slots {
		if slot == nil {
			continue
		}
		info := *slot
		info.PSK = cloneBytes(info.PSK)
		out = append(out, info)
	}

	return out
}
