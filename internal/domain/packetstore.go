package domain

import (
	"sync"

	"meshtui/internal/radio"
)

// DefaultPacketCap bounds the in-memory packet history.
const DefaultPacketCap = 5000

type packetSubscriber struct {
	id int
	fn func(radio.DecodedPacket)
}

// PacketStore keeps a bounded ordered history of decoded packets and fans each
// addition out to subscribers in registration order.
type PacketStore struct {
	mu          sync.Mutex
	cap         int
	packets     []radio.DecodedPacket
	subscribers []packetSubscriber
	nextSubID   int
}

func NewPacketStore(capacity int) *PacketStore {
	if capacity <= 0 {
		capacity = DefaultPacketCap
	}

	return &PacketStore{cap: capacity}
}

// Add appends a packet, evicting oldest entries beyond the cap, then notifies
// every current subscriber in registration order.
func (s *PacketStore) Add(packet radio.DecodedPacket) {
	s.mu.Lock()
	s.packets = append(s.packets, packet)
	if overflow := len(s.packets) - s.cap; overflow > 0 {
		s.packets = append(s.packets[:0:0], s.packets[overflow:]...)
	}
	subs := make([]packetSubscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(packet)
	}
}

// All returns a snapshot copy in arrival order.
func (s *PacketStore) All() []radio.DecodedPacket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]radio.DecodedPacket, len(s.packets))
	copy(out, s.packets)

	return out
}

func (s *PacketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.packets)
}

// OnPacket registers a subscriber. The returned function removes exactly that
// subscriber and calling it twice is a no-op.
func (s *PacketStore) OnPacket(fn func(radio.DecodedPacket)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, packetSubscriber{id: id, fn: fn})
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
