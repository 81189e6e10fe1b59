package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/morezero/resource-bus/pkg/resource"
	"github.com/morezero/resource-bus/pkg/store"
)

const actionsLogPrefix = "server:actions"

// Collection verbs served next to the default instance verbs.
const (
	VerbCreate = "CREATE"
	VerbList   = "LIST"
)

// entry is the collection representation of one stored instance.
type entry struct {
	ID   string      `json:"id"`
	Body interface{} `json:"body"`
}

// collectionActions returns CREATE, and LIST when the store can enumerate.
func collectionActions(st resource.Store, resourceSchema string) ([]resource.Action, error) {
	create := resource.NewCollectionAction(VerbCreate, func(ctx context.Context, body json.RawMessage) (interface{}, error) {
		if len(body) == 0 {
			return nil, resource.BadRequest(fmt.Sprintf("%s requires a body", VerbCreate))
		}
		id := uuid.NewString()
		inst, err := st.Upsert(ctx, id, body)
		if err != nil {
			return nil, fmt.Errorf("%s - create %s: %w", actionsLogPrefix, id, err)
		}
		return toEntry(ctx, st, id, inst)
	})
	if resourceSchema != "" {
		create.WithSchema(resourceSchema)
	}
	createAction, err := create.Build()
	if err != nil {
		return nil, err
	}
	actions := []resource.Action{createAction}

	if lister, ok := st.(resource.Lister); ok {
		list, err := resource.NewCollectionAction(VerbList, func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
			instances, err := lister.List(ctx)
			if err != nil {
				return nil, fmt.Errorf("%s - list: %w", actionsLogPrefix, err)
			}
			out := make([]entry, 0, len(instances))
			for _, inst := range instances {
				e, err := toEntry(ctx, st, "", inst)
				if err != nil {
					return nil, err
				}
				out = append(out, e)
			}
			return out, nil
		}).WithoutValidation().Build()
		if err != nil {
			return nil, err
		}
		actions = append(actions, list)
	}
	return actions, nil
}

func toEntry(ctx context.Context, st resource.Store, id string, inst interface{}) (entry, error) {
	if doc, ok := inst.(*store.Document); ok && id == "" {
		id = doc.ID
	}
	body, err := st.ToJSON(ctx, inst)
	if err != nil {
		return entry{}, fmt.Errorf("%s - serialize %s: %w", actionsLogPrefix, id, err)
	}
	return entry{ID: id, Body: body}, nil
}
