// Package commstest provides an in-memory, recording Bus for tests.
package commstest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/morezero/resource-bus/pkg/commsutil"
)

// Published is one recorded Publish call.
type Published struct {
	Subject string
	Reply   string
	Data    []byte
}

// SubscribeCall is one recorded Subscribe or QueueSubscribe call.
type SubscribeCall struct {
	Subject string
	Queue   string
}

// Bus is an in-process Bus. Subjects match exactly; within a queue group each
// message goes to one member, chosen round-robin.
type Bus struct {
	mu        sync.Mutex
	nextID    int
	subs      map[int]*subscription
	published []Published
	calls     []SubscribeCall
	unsubs    int
	rr        map[string]int
	inbox     int
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscription), rr: make(map[string]int)}
}

type subscription struct {
	bus     *Bus
	id      int
	subject string
	queue   string
	handler commsutil.MsgHandler
	inbox   bool
	mu      sync.Mutex
	closed  bool
}

func (s *subscription) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("commstest:bus - subscription %d already closed", s.id)
	}
	s.closed = true
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	if !s.inbox {
		s.bus.unsubs++
	}
	s.bus.mu.Unlock()
	return nil
}

func (b *Bus) Subscribe(subject string, handler commsutil.MsgHandler) (commsutil.Subscription, error) {
	return b.QueueSubscribe(subject, "", handler)
}

func (b *Bus) QueueSubscribe(subject, queue string, handler commsutil.MsgHandler) (commsutil.Subscription, error) {
	return b.add(subject, queue, handler, false), nil
}

func (b *Bus) add(subject, queue string, handler commsutil.MsgHandler, inbox bool) *subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &subscription{bus: b, id: b.nextID, subject: subject, queue: queue, handler: handler, inbox: inbox}
	b.subs[sub.id] = sub
	if !inbox {
		b.calls = append(b.calls, SubscribeCall{Subject: subject, Queue: queue})
	}
	return sub
}

func (b *Bus) Publish(subject string, data []byte) error {
	return b.publish(subject, "", data)
}

func (b *Bus) publish(subject, reply string, data []byte) error {
	cp := append([]byte(nil), data...)
	targets := b.route(subject, Published{Subject: subject, Reply: reply, Data: cp})
	for _, h := range targets {
		h(&commsutil.Msg{Subject: subject, Reply: reply, Data: cp})
	}
	return nil
}

// route records the message and picks its receivers under the lock.
func (b *Bus) route(subject string, p Published) []commsutil.MsgHandler {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, p)

	var targets []commsutil.MsgHandler
	groups := make(map[string][]*subscription)
	for id := 1; id <= b.nextID; id++ {
		sub, ok := b.subs[id]
		if !ok || sub.subject != subject {
			continue
		}
		if sub.queue == "" {
			targets = append(targets, sub.handler)
			continue
		}
		groups[sub.queue] = append(groups[sub.queue], sub)
	}
	for queue, members := range groups {
		key := subject + "|" + queue
		targets = append(targets, members[b.rr[key]%len(members)].handler)
		b.rr[key]++
	}
	return targets
}

func (b *Bus) hasSubscribers(subject string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.subject == subject {
			return true
		}
	}
	return false
}

// Request publishes with a private reply subject and waits for the first reply.
func (b *Bus) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	if !b.hasSubscribers(subject) {
		return nil, commsutil.ErrNoResponders
	}
	b.mu.Lock()
	b.inbox++
	reply := fmt.Sprintf("_INBOX.%d", b.inbox)
	b.mu.Unlock()

	replies := make(chan []byte, 1)
	sub := b.add(reply, "", func(msg *commsutil.Msg) {
		select {
		case replies <- msg.Data:
		default:
		}
	}, true)
	defer sub.Unsubscribe()

	if err := b.publish(subject, reply, data); err != nil {
		return nil, err
	}
	select {
	case resp := <-replies:
		return resp, nil
	case <-ctx.Done():
		return nil, commsutil.ErrTimeout
	}
}

// Published returns every message published so far.
func (b *Bus) Published() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Published(nil), b.published...)
}

// PublishedTo returns the messages published on subject.
func (b *Bus) PublishedTo(subject string) []Published {
	var out []Published
	for _, p := range b.Published() {
		if p.Subject == subject {
			out = append(out, p)
		}
	}
	return out
}

// WaitForPublish blocks until n messages were published on subject or the timeout elapses.
func (b *Bus) WaitForPublish(subject string, n int, timeout time.Duration) []Published {
	deadline := time.Now().Add(timeout)
	for {
		got := b.PublishedTo(subject)
		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// SubscribeCalls returns every recorded subscription request.
func (b *Bus) SubscribeCalls() []SubscribeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SubscribeCall(nil), b.calls...)
}

// Unsubscribes returns how many subscriptions were cancelled.
func (b *Bus) Unsubscribes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unsubs
}

// Deliver hands a raw message to the subscribers of subject, as if it came off the wire.
func (b *Bus) Deliver(subject, reply string, data []byte) {
	b.publish(subject, reply, data)
}
