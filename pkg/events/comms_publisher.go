package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/resource-bus/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisher publishes events to COMMS subjects.
type CommsPublisher struct {
	bus commsutil.Bus
}

// NewCommsPublisher creates a new CommsPublisher on the given bus.
func NewCommsPublisher(bus commsutil.Bus) *CommsPublisher {
	return &CommsPublisher{bus: bus}
}

// Publish encodes message as JSON and publishes it fire-and-forget.
func (p *CommsPublisher) Publish(_ context.Context, subject string, message interface{}) error {
	data, err := commsutil.EncodePayload(message)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	if err := p.bus.Publish(subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - EMIT %s <- %s", commsPublisherLogPrefix, subject, data))
	return nil
}
