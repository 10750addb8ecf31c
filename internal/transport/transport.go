package transport

import "context"

// Transport is a framed byte stream to a single device.
type Transport interface {
	Name() string
	Connect(ctx context.Context) error
	Close() error
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, payload []byte) error
}

// StatusTargetResolver reports a human-readable connection target for status
// lines and logs.
type StatusTargetResolver interface {
	StatusTarget() string
}
