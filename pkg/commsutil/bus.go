package commsutil

import (
	"context"
	"errors"
	"fmt"

	comms "github.com/nats-io/nats.go"
)

const busLogPrefix = "commsutil:bus"

// Msg is one message delivered by the bus.
type Msg struct {
	Subject string
	Reply   string
	Data    []byte
}

// MsgHandler receives deliveries for a subscription.
type MsgHandler func(msg *Msg)

// Subscription cancels delivery for one subscription.
type Subscription interface {
	Unsubscribe() error
}

// Bus is the pub/sub transport the resource protocol runs on.
type Bus interface {
	Subscribe(subject string, handler MsgHandler) (Subscription, error)
	QueueSubscribe(subject, queue string, handler MsgHandler) (Subscription, error)
	Publish(subject string, data []byte) error
	// Request publishes data and waits for a single correlated reply until ctx is done.
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

// ErrTimeout is returned by Bus implementations when no reply arrived in time.
var ErrTimeout = errors.New("commsutil:bus - request timed out")

// ErrNoResponders is returned when nothing is subscribed to a request subject.
var ErrNoResponders = errors.New("commsutil:bus - no responders")

// IsTimeout reports whether err means a request exceeded its deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, comms.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// IsNoResponders reports whether err means no subscriber was listening.
func IsNoResponders(err error) bool {
	return errors.Is(err, ErrNoResponders) || errors.Is(err, comms.ErrNoResponders)
}

// NATSBus adapts a COMMS connection to the Bus interface.
type NATSBus struct {
	nc *comms.Conn
}

// NewNATSBus wraps an established connection.
func NewNATSBus(nc *comms.Conn) *NATSBus {
	return &NATSBus{nc: nc}
}

// Conn returns the underlying connection.
func (b *NATSBus) Conn() *comms.Conn { return b.nc }

func (b *NATSBus) Subscribe(subject string, handler MsgHandler) (Subscription, error) {
	sub, err := b.nc.Subscribe(subject, natsHandler(handler))
	if err != nil {
		return nil, fmt.Errorf("%s - subscribe %s: %w", busLogPrefix, subject, err)
	}
	return sub, nil
}

func (b *NATSBus) QueueSubscribe(subject, queue string, handler MsgHandler) (Subscription, error) {
	sub, err := b.nc.QueueSubscribe(subject, queue, natsHandler(handler))
	if err != nil {
		return nil, fmt.Errorf("%s - queue subscribe %s (%s): %w", busLogPrefix, subject, queue, err)
	}
	return sub, nil
}

func (b *NATSBus) Publish(subject string, data []byte) error {
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("%s - publish %s: %w", busLogPrefix, subject, err)
	}
	return nil
}

func (b *NATSBus) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	msg, err := b.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("%s - request %s: %w", busLogPrefix, subject, err)
	}
	return msg.Data, nil
}

// Flush waits until the server has processed everything published so far.
func (b *NATSBus) Flush() error {
	return b.nc.Flush()
}

func natsHandler(handler MsgHandler) comms.MsgHandler {
	return func(m *comms.Msg) {
		handler(&Msg{Subject: m.Subject, Reply: m.Reply, Data: m.Data})
	}
}
