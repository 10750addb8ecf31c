package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meshtui/internal/connectors"
	"meshtui/internal/radio"
)

// editSession tracks a begin/commit settings transaction. It only counts
// writes; the device applies them immediately and defers the reboot until
// commit.
type editSession struct {
	mu      sync.Mutex
	open    bool
	pending int
}

func (s *editSession) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return fmt.Errorf("settings edit already in progress")
	}
	s.open = true
	s.pending = 0

	return nil
}

func (s *editSession) countWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		s.pending++
	}
}

func (s *editSession) finish() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, fmt.Errorf("no settings edit in progress")
	}
	pending := s.pending
	s.open = false
	s.pending = 0

	return pending, nil
}

func (s *editSession) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.pending = 0
}

func (s *editSession) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.open
}

// BeginEdit opens a settings transaction on the device. Writes sent before
// CommitEdit are applied without intermediate reboots.
func (s *AdminService) BeginEdit(ctx context.Context, to uint32) error {
	if err := s.session.begin(); err != nil {
		return err
	}
	if _, err := s.radio.SendAdmin(ctx, to, radio.BeginEditSettingsRequest()); err != nil {
		s.session.reset()

		return err
	}
	s.logger.Info("settings edit opened", "to", to)

	return nil
}

// CommitEdit closes the transaction. The device reboots to apply the batch, so
// one reboot notice carrying the write count is published for the whole
// session.
func (s *AdminService) CommitEdit(ctx context.Context, to uint32) error {
	if !s.session.isOpen() {
		return fmt.Errorf("no settings edit in progress")
	}
	if _, err := s.radio.SendAdmin(ctx, to, radio.CommitEditSettingsRequest()); err != nil {
		return err
	}
	pending, err := s.session.finish()
	if err != nil {
		return err
	}

	s.bus.Publish(connectors.TopicRebootNotice, connectors.RebootNotice{
		NodeNum:       to,
		PendingWrites: pending,
		Timestamp:     time.Now(),
	})
	s.logger.Info("settings edit committed", "to", to, "writes", pending)

	return nil
}

// CancelEdit abandons the local transaction state. Writes already sent were
// applied by the device; there is no undo.
func (s *AdminService) CancelEdit() {
	s.session.reset()
	s.logger.Info("settings edit cancelled")
}

// EditOpen reports whether a settings transaction is in progress.
func (s *AdminService) EditOpen() bool {
	return s.session.isOpen()
}
