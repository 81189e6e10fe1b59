package resource

import (
	"context"
	"encoding/json"
	"fmt"
)

const actionLogPrefix = "resource:action"

// Scope selects whether a verb targets the whole collection or one instance.
type Scope string

const (
	ScopeCollection Scope = "collection"
	ScopeInstance   Scope = "instance"
)

// AutoLoadMode controls how an instance is fetched before an instance handler runs.
type AutoLoadMode int

const (
	// AutoLoadRaw passes the instance returned by Loader.Load.
	AutoLoadRaw AutoLoadMode = iota
	// AutoLoadOff passes only the id.
	AutoLoadOff
	// AutoLoadJSON passes the Loader.ToJSON form of the loaded instance.
	AutoLoadJSON
)

func (m AutoLoadMode) String() string {
	switch m {
	case AutoLoadOff:
		return "off"
	case AutoLoadRaw:
		return "raw"
	case AutoLoadJSON:
		return "json"
	default:
		return fmt.Sprintf("AutoLoadMode(%d)", int(m))
	}
}

func (m AutoLoadMode) valid() bool {
	return m == AutoLoadOff || m == AutoLoadRaw || m == AutoLoadJSON
}

// ParseAutoLoadMode parses "off" (or "false"), "raw" and "json".
func ParseAutoLoadMode(s string) (AutoLoadMode, error) {
	switch s {
	case "off", "false":
		return AutoLoadOff, nil
	case "raw":
		return AutoLoadRaw, nil
	case "json":
		return AutoLoadJSON, nil
	}
	return 0, fmt.Errorf("%s - invalid autoload mode %q", actionLogPrefix, s)
}

// BodySchema names the schema a request body is validated against.
// The zero value is unset, which defers to the server's validation policy.
type BodySchema struct {
	Ref      string
	Disabled bool
}

// IsSet reports whether a schema ref or an explicit opt-out was configured.
func (s BodySchema) IsSet() bool { return s.Disabled || s.Ref != "" }

// Target identifies the instance an instance handler operates on.
// Instance is nil when auto-loading is off.
type Target struct {
	ID       string
	Instance interface{}
}

// CollectionHandler handles a collection verb.
type CollectionHandler func(ctx context.Context, body json.RawMessage) (interface{}, error)

// InstanceHandler handles an instance verb.
type InstanceHandler func(ctx context.Context, target Target, body json.RawMessage) (interface{}, error)

// Key is the routing key of an action within a resource.
type Key struct {
	Scope Scope
	Verb  string
}

func (k Key) String() string { return string(k.Scope) + "." + k.Verb }

// Action is an immutable verb descriptor. Build one with NewCollectionAction or NewInstanceAction.
type Action struct {
	scope      Scope
	verb       string
	collection CollectionHandler
	instance   InstanceHandler
	schema     BodySchema
	autoLoad   AutoLoadMode
}

func (a Action) Scope() Scope               { return a.scope }
func (a Action) Verb() string               { return a.verb }
func (a Action) Key() Key                   { return Key{Scope: a.scope, Verb: a.verb} }
func (a Action) Schema() BodySchema         { return a.schema }
func (a Action) AutoLoadMode() AutoLoadMode { return a.autoLoad }

// HandleCollection invokes a collection handler.
func (a Action) HandleCollection(ctx context.Context, body json.RawMessage) (interface{}, error) {
	if a.collection == nil {
		return nil, fmt.Errorf("%s - %s is not a collection action", actionLogPrefix, a.Key())
	}
	return a.collection(ctx, body)
}

// HandleInstance invokes an instance handler.
func (a Action) HandleInstance(ctx context.Context, target Target, body json.RawMessage) (interface{}, error) {
	if a.instance == nil {
		return nil, fmt.Errorf("%s - %s is not an instance action", actionLogPrefix, a.Key())
	}
	return a.instance(ctx, target, body)
}

// ActionBuilder configures an Action before it is handed to a server.
type ActionBuilder struct {
	action Action
	err    error
}

// NewCollectionAction starts an action targeted at the resource collection.
func NewCollectionAction(verb string, h CollectionHandler) *ActionBuilder {
	b := &ActionBuilder{action: Action{scope: ScopeCollection, verb: verb, collection: h}}
	if h == nil {
		b.err = fmt.Errorf("%s - nil handler for collection verb %q", actionLogPrefix, verb)
	}
	return b.checkVerb()
}

// NewInstanceAction starts an action targeted at one member of the collection.
// Auto-loading defaults to AutoLoadRaw.
func NewInstanceAction(verb string, h InstanceHandler) *ActionBuilder {
	b := &ActionBuilder{action: Action{scope: ScopeInstance, verb: verb, instance: h, autoLoad: AutoLoadRaw}}
	if h == nil {
		b.err = fmt.Errorf("%s - nil handler for instance verb %q", actionLogPrefix, verb)
	}
	return b.checkVerb()
}

func (b *ActionBuilder) checkVerb() *ActionBuilder {
	if b.err == nil && b.action.verb == "" {
		b.err = fmt.Errorf("%s - empty verb", actionLogPrefix)
	}
	return b
}

// WithSchema validates request bodies against the schema registered under ref.
func (b *ActionBuilder) WithSchema(ref string) *ActionBuilder {
	b.action.schema = BodySchema{Ref: ref}
	return b
}

// WithoutValidation opts the action out of body validation.
func (b *ActionBuilder) WithoutValidation() *ActionBuilder {
	b.action.schema = BodySchema{Disabled: true}
	return b
}

// WithAutoLoad sets the auto-load mode of an instance action.
func (b *ActionBuilder) WithAutoLoad(mode AutoLoadMode) *ActionBuilder {
	if b.err != nil {
		return b
	}
	switch {
	case b.action.scope != ScopeInstance:
		b.err = fmt.Errorf("%s - autoload mode set on collection verb %q", actionLogPrefix, b.action.verb)
	case !mode.valid():
		b.err = fmt.Errorf("%s - invalid autoload mode %s", actionLogPrefix, mode)
	default:
		b.action.autoLoad = mode
	}
	return b
}

// Build returns the configured action, or the first configuration error.
func (b *ActionBuilder) Build() (Action, error) {
	if b.err != nil {
		return Action{}, b.err
	}
	return b.action, nil
}

// MustBuild is like Build but panics on a configuration error.
func (b *ActionBuilder) MustBuild() Action {
	a, err := b.Build()
	if err != nil {
		panic(err)
	}
	return a
}
