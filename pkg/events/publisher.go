package events

import "context"

// Publisher broadcasts JSON messages on a subject. No reply is expected.
type Publisher interface {
	Publish(ctx context.Context, subject string, message interface{}) error
}

// NoOpPublisher is a Publisher that does nothing (for in-process usage without events).
type NoOpPublisher struct{}

// Publish is a no-op.
func (p *NoOpPublisher) Publish(_ context.Context, _ string, _ interface{}) error {
	return nil
}

// CallbackPublisher is a Publisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, subject string, message interface{}) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, subject string, message interface{}) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// Publish calls the callback.
func (p *CallbackPublisher) Publish(ctx context.Context, subject string, message interface{}) error {
	return p.callback(ctx, subject, message)
}
