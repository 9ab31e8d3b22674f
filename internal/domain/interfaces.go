package domain

import "context"

// FeedWorker defines the interface for a feed connection owner
type FeedWorker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// MessageHandler receives decoded messages in wire order.
// Handlers run on the dispatcher goroutine and must not retain the loop.
type MessageHandler interface {
	Name() string
	Handle(ctx context.Context, msg Message) error
}
