package persistence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriterQueueRunsEnqueuedWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := NewWriterQueue(discardLogger(), 4)
	queue.Start(ctx)

	done := make(chan struct{})
	queue.Enqueue("test write", func(context.Context) error {
		close(done)

		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("enqueued write never ran")
	}
}

func TestWriterQueueRetriesFailedWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := NewWriterQueue(discardLogger(), 4)
	queue.Start(ctx)

	var attempts atomic.Int32
	done := make(chan struct{})
	queue.Enqueue("flaky write", func(context.Context) error {
		if attempts.Add(1) < 2 {
			return errors.New("transient")
		}
		close(done)

		return nil
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("write was not retried to success")
	}
	if got := attempts.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}
