package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]*Document
	now  func() time.Time
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]*Document), now: func() time.Time { return time.Now().UTC() }}
}

// Load returns a copy of the document, or nil if it does not exist.
func (m *Memory) Load(_ context.Context, id string) (interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (m *Memory) ToJSON(ctx context.Context, instance interface{}) (interface{}, error) {
	return DocumentJSON(ctx, instance)
}

// Upsert creates or replaces the document body and bumps its revision.
func (m *Memory) Upsert(_ context.Context, id string, body json.RawMessage) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	doc, ok := m.docs[id]
	if !ok {
		doc = &Document{ID: id, Created: now}
		m.docs[id] = doc
	}
	doc.Body = append(json.RawMessage(nil), body...)
	doc.Revision++
	doc.Modified = now
	cp := *doc
	return &cp, nil
}

// Delete removes the document. Deleting a missing id is not an error.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

// List returns all documents ordered by id.
func (m *Memory) List(_ context.Context) ([]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		cp := *m.docs[id]
		out = append(out, &cp)
	}
	return out, nil
}
