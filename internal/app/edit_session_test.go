package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	generated "buf.build/gen/go/meshtastic/protobufs/protocolbuffers/go/meshtastic"

	"meshtui/internal/bus"
	"meshtui/internal/connectors"
	"meshtui/internal/domain"
	"meshtui/internal/radio"
)

type recordingBus struct {
	mu        sync.Mutex
	published map[string][]any
}

func newRecordingBus() *recordingBus {
	return &recordingBus{published: make(map[string][]any)}
}

func (b *recordingBus) Publish(topic string, msg any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[topic] = append(b.published[topic], msg)
}

func (b *recordingBus) Subscribe(topics ...string) bus.Subscription {
	return make(bus.Subscription, 8)
}

func (b *recordingBus) Unsubscribe(ch bus.Subscription, topics ...string) {}

func (b *recordingBus) Close() {}

func (b *recordingBus) events(topic string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]any(nil), b.published[topic]...)
}

type fakeAdminSender struct {
	mu     sync.Mutex
	sent   []radio.AdminRequest
	err    error
	nextID uint32
}

func (f *fakeAdminSender) SendAdmin(ctx context.Context, to uint32, req radio.AdminRequest) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.sent = append(f.sent, req)
	f.nextID++

	return f.nextID, nil
}

func (f *fakeAdminSender) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, req := range f.sent {
		out = append(out, req.Action)
	}

	return out
}

func newTestAdminService(t *testing.T) (*AdminService, *fakeAdminSender, *recordingBus) {
	t.Helper()

	sender := &fakeAdminSender{}
	b := newRecordingBus()
	svc := NewAdminService(b, sender, domain.NewNodeStore(), domain.NewChannelTable(), nil)

	return svc, sender, b
}

func TestEditSessionCommitPublishesOneRebootNotice(t *testing.T) {
	svc, sender, b := newTestAdminService(t)
	ctx := context.Background()

	if err := svc.BeginEdit(ctx, 5); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if err := svc.SetConfig(ctx, 5, &generated.Config{}); err != nil {
		t.Fatalf("set config: %v", err)
	}
	if err := svc.SetChannel(ctx, 5, &generated.Channel{Index: 1}); err != nil {
		t.Fatalf("set channel: %v", err)
	}
	if err := svc.CommitEdit(ctx, 5); err != nil {
		t.Fatalf("commit edit: %v", err)
	}

	notices := b.events(connectors.TopicRebootNotice)
	if len(notices) != 1 {
		t.Fatalf("expected exactly one reboot notice, got %d", len(notices))
	}
	notice := notices[0].(connectors.RebootNotice)
	if notice.NodeNum != 5 {
		t.Fatalf("notice node mismatch: %d", notice.NodeNum)
	}
	if notice.PendingWrites != 2 {
		t.Fatalf("notice must carry the write count, got %d", notice.PendingWrites)
	}
	if svc.EditOpen() {
		t.Fatalf("commit must close the session")
	}

	actions := sender.actions()
	want := []string{"begin_edit_settings", "set_config", "set_channel", "commit_edit_settings"}
	if len(actions) != len(want) {
		t.Fatalf("sent actions mismatch: %v", actions)
	}
	for i, action := range want {
		if actions[i] != action {
			t.Fatalf("action %d mismatch: got %s want %s", i, actions[i], action)
		}
	}
}

func TestEditSessionCancelKeepsSentWrites(t *testing.T) {
	svc, sender, b := newTestAdminService(t)
	ctx := context.Background()

	if err := svc.BeginEdit(ctx, 5); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if err := svc.SetConfig(ctx, 5, &generated.Config{}); err != nil {
		t.Fatalf("set config: %v", err)
	}
	svc.CancelEdit()

	if svc.EditOpen() {
		t.Fatalf("cancel must close the session")
	}
	if len(b.events(connectors.TopicRebootNotice)) != 0 {
		t.Fatalf("cancel must not publish a reboot notice")
	}
	// The write already reached the device; cancel never un-sends it.
	actions := sender.actions()
	if len(actions) != 2 || actions[1] != "set_config" {
		t.Fatalf("sent writes must remain sent: %v", actions)
	}

	// A fresh session starts from a clean counter.
	if err := svc.BeginEdit(ctx, 5); err != nil {
		t.Fatalf("begin after cancel: %v", err)
	}
	if err := svc.CommitEdit(ctx, 5); err != nil {
		t.Fatalf("commit after cancel: %v", err)
	}
	notices := b.events(connectors.TopicRebootNotice)
	if len(notices) != 1 {
		t.Fatalf("expected one notice from the second session, got %d", len(notices))
	}
	if notices[0].(connectors.RebootNotice).PendingWrites != 0 {
		t.Fatalf("cancelled writes must not leak into the next session")
	}
}

func TestEditSessionBeginTwiceFails(t *testing.T) {
	svc, _, _ := newTestAdminService(t)
	ctx := context.Background()

	if err := svc.BeginEdit(ctx, 5); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if err := svc.BeginEdit(ctx, 5); err == nil {
		t.Fatalf("expected error for nested begin")
	}
}

func TestEditSessionCommitWithoutBeginFails(t *testing.T) {
	svc, sender, _ := newTestAdminService(t)

	if err := svc.CommitEdit(context.Background(), 5); err == nil {
		t.Fatalf("expected error for commit without begin")
	}
	if len(sender.actions()) != 0 {
		t.Fatalf("failed commit must not reach the device")
	}
}

func TestWritesOutsideSessionAreNotCounted(t *testing.T) {
	svc, _, b := newTestAdminService(t)
	ctx := context.Background()

	if err := svc.SetConfig(ctx, 5, &generated.Config{}); err != nil {
		t.Fatalf("set config: %v", err)
	}
	if err := svc.BeginEdit(ctx, 5); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if err := svc.CommitEdit(ctx, 5); err != nil {
		t.Fatalf("commit edit: %v", err)
	}

	notices := b.events(connectors.TopicRebootNotice)
	if len(notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notices))
	}
	if got := notices[0].(connectors.RebootNotice).PendingWrites; got != 0 {
		t.Fatalf("out-of-session writes must not count, got %d", got)
	}
}

func TestEditSessionBeginSendFailureResets(t *testing.T) {
	svc, sender, _ := newTestAdminService(t)
	sender.err = errors.New("transport down")

	if err := svc.BeginEdit(context.Background(), 5); err == nil {
		t.Fatalf("expected send failure to surface")
	}
	if svc.EditOpen() {
		t.Fatalf("failed begin must leave the session closed")
	}
}
