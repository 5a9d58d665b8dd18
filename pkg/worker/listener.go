package worker

import "context"

// Listener provides hooks into the worker's lifecycle for logging, metrics, etc.
type Listener struct {
	OnStart         func(ctx context.Context)
	OnExit          func(ctx context.Context)
	OnMessageStart  func(ctx context.Context, d *Delivery)
	OnMessageFinish func(ctx context.Context, d *Delivery, err error)
	// OnError is called for decode and handler failures; d is nil for the former.
	OnError func(ctx context.Context, d *Delivery, err error)
}
