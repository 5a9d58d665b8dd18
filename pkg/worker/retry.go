package worker

import "context"

// RetryDecision defines whether a message should be retried or Nacked.
type RetryDecision struct {
	Retry bool
	Nack  bool
}

// RetryPolicy decides what happens to a message whose handler failed.
// d is nil when the message could not be decoded.
type RetryPolicy interface {
	OnError(ctx context.Context, d *Delivery, err error) RetryDecision
}

// NoRetry Nacks every failed message and leaves redelivery to the broker.
type NoRetry struct{}

func (NoRetry) OnError(ctx context.Context, d *Delivery, err error) RetryDecision {
	return RetryDecision{Retry: false, Nack: true}
}

// Drop acknowledges failed messages so they are never redelivered.
type Drop struct{}

func (Drop) OnError(ctx context.Context, d *Delivery, err error) RetryDecision {
	return RetryDecision{}
}
