package events

import (
	"context"
	"testing"
)

func TestNoOpPublisher(t *testing.T) {
	pub := &NoOpPublisher{}
	err := pub.Publish(context.Background(), "users", &ChangeEvent{Type: TypeUpdated, ID: "1"})
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCallbackPublisher(t *testing.T) {
	var capturedSubject string
	var captured interface{}

	pub := NewCallbackPublisher(func(_ context.Context, subject string, message interface{}) error {
		capturedSubject = subject
		captured = message
		return nil
	})

	event := &ChangeEvent{
		Type:      TypeDeleted,
		Resource:  "users",
		ID:        "42",
		Timestamp: "2025-01-01T00:00:00Z",
	}

	if err := pub.Publish(context.Background(), "users", event); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if capturedSubject != "users" {
		t.Errorf("expected subject users, got %s", capturedSubject)
	}
	got, ok := captured.(*ChangeEvent)
	if !ok {
		t.Fatalf("expected *ChangeEvent, got %T", captured)
	}
	if got.ID != "42" || got.Type != TypeDeleted {
		t.Errorf("unexpected event %+v", got)
	}
}
