package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/morezero/resource-bus/pkg/events"
	"github.com/morezero/resource-bus/pkg/resource"
)

// Verbs of the default action set.
const (
	VerbGet    = "GET"
	VerbPut    = "PUT"
	VerbPatch  = "PATCH"
	VerbDelete = "DELETE"
)

func (s *Server) defaultActions() []resource.Action {
	put := resource.NewInstanceAction(VerbPut, s.putInstance).WithAutoLoad(resource.AutoLoadOff)
	if s.resourceSchema != "" {
		put.WithSchema(s.resourceSchema)
	}
	return []resource.Action{
		resource.NewInstanceAction(VerbGet, s.getInstance).
			WithAutoLoad(resource.AutoLoadJSON).
			WithoutValidation().
			MustBuild(),
		put.MustBuild(),
		// The body is a patch document; the patched result is validated instead.
		resource.NewInstanceAction(VerbPatch, s.patchInstance).
			WithAutoLoad(resource.AutoLoadJSON).
			WithoutValidation().
			MustBuild(),
		resource.NewInstanceAction(VerbDelete, s.deleteInstance).
			WithAutoLoad(resource.AutoLoadOff).
			WithoutValidation().
			MustBuild(),
	}
}

func (s *Server) getInstance(_ context.Context, target resource.Target, _ json.RawMessage) (interface{}, error) {
	return target.Instance, nil
}

func (s *Server) putInstance(ctx context.Context, target resource.Target, body json.RawMessage) (interface{}, error) {
	if len(body) == 0 {
		return nil, resource.BadRequest(fmt.Sprintf("%s requires a body", VerbPut))
	}
	result, err := s.store.Upsert(ctx, target.ID, body)
	if err != nil {
		return nil, fmt.Errorf("%s - upsert %s %s: %w", logPrefix, s.name, target.ID, err)
	}
	s.changed(ctx, events.TypeUpdated, target.ID, body)
	return result, nil
}

func (s *Server) patchInstance(ctx context.Context, target resource.Target, body json.RawMessage) (interface{}, error) {
	if len(body) == 0 {
		return nil, resource.BadRequest(fmt.Sprintf("%s requires a patch document", VerbPatch))
	}
	current, err := resource.EncodeResult(target.Instance)
	if err != nil {
		return nil, fmt.Errorf("%s - encode %s %s: %w", logPrefix, s.name, target.ID, err)
	}
	patched, err := s.patcher.Apply(current, body)
	if err != nil {
		return nil, err
	}
	if s.resourceSchema != "" {
		if err := s.gate.ValidateDocument(s.resourceSchema, patched); err != nil {
			return nil, err
		}
	}

	stored, err := s.store.Upsert(ctx, target.ID, patched)
	if err != nil {
		return nil, fmt.Errorf("%s - upsert %s %s: %w", logPrefix, s.name, target.ID, err)
	}
	result, err := s.store.ToJSON(ctx, stored)
	if err != nil {
		return nil, fmt.Errorf("%s - serialize %s %s: %w", logPrefix, s.name, target.ID, err)
	}
	s.changed(ctx, events.TypePatched, target.ID, patched)
	return result, nil
}

func (s *Server) deleteInstance(ctx context.Context, target resource.Target, _ json.RawMessage) (interface{}, error) {
	if err := s.store.Delete(ctx, target.ID); err != nil {
		return nil, fmt.Errorf("%s - delete %s %s: %w", logPrefix, s.name, target.ID, err)
	}
	s.changed(ctx, events.TypeDeleted, target.ID, nil)
	return nil, nil
}

// changed broadcasts a ChangeEvent when change events are enabled. A failed
// broadcast is logged and does not fail the request.
func (s *Server) changed(ctx context.Context, eventType, id string, body json.RawMessage) {
	if !s.changeEvents {
		return
	}
	event := &events.ChangeEvent{
		Type:      eventType,
		Resource:  s.name,
		ID:        id,
		Body:      body,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.Emit(ctx, event); err != nil {
		s.logger.Warn(fmt.Sprintf("%s - %v", logPrefix, err))
	}
}
