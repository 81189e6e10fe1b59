package client

import (
	"sync"

	"github.com/morezero/resource-bus/pkg/commsutil"
)

// Subscription is an active event subscription. Unsubscribe is idempotent.
type Subscription struct {
	mu  sync.Mutex
	sub commsutil.Subscription
}

func newSubscription(sub commsutil.Subscription) *Subscription {
	return &Subscription{sub: sub}
}

// Unsubscribe cancels the subscription. Only the first call reaches the bus.
func (s *Subscription) Unsubscribe() error {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub == nil {
		return nil
	}
	return sub.Unsubscribe()
}

// Active reports whether Unsubscribe has not been called yet.
func (s *Subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}
