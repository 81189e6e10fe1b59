package client

import (
	"fmt"
	"sort"

	"github.com/morezero/resource-bus/pkg/commsutil"
)

// Set holds one client per resource name.
type Set struct {
	clients map[string]*Client
}

// NewSet creates a client for each name. Every client shares opts. A name may appear once.
func NewSet(bus commsutil.Bus, names []string, opts ...Option) (*Set, error) {
	set := &Set{clients: make(map[string]*Client, len(names))}
	for _, name := range names {
		if _, exists := set.clients[name]; exists {
			return nil, fmt.Errorf("client:set - client for %q is already in use", name)
		}
		c, err := New(bus, name, opts...)
		if err != nil {
			return nil, err
		}
		set.clients[name] = c
	}
	return set, nil
}

// Client returns the client for name, or nil.
func (s *Set) Client(name string) *Client { return s.clients[name] }

// Names returns the resource names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.clients))
	for name := range s.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
