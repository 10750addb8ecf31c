package notifications

// Payload is one user-facing notification: a short title plus the body text.
type Payload struct {
	Title string
	Body  string
}

// Sender delivers payloads through a platform backend. Delivery is best
// effort; senders swallow backend failures.
type Sender interface {
	Send(payload Payload)
}
