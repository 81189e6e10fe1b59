package resource

import (
	"context"
	"encoding/json"
)

// Loader fetches and serializes domain objects for auto-loading instance actions.
type Loader interface {
	// Load returns the instance with the given id, or nil if it does not exist.
	Load(ctx context.Context, id string) (interface{}, error)
	// ToJSON returns the plain representation of a loaded instance.
	ToJSON(ctx context.Context, instance interface{}) (interface{}, error)
}

// Store is a Loader that can also persist and remove instances.
// It backs the default GET, PUT, PATCH and DELETE actions.
type Store interface {
	Loader
	Upsert(ctx context.Context, id string, body json.RawMessage) (interface{}, error)
	Delete(ctx context.Context, id string) error
}

// Lister is implemented by stores that can enumerate their instances.
type Lister interface {
	List(ctx context.Context) ([]interface{}, error)
}
