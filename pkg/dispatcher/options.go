package dispatcher

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/morezero/resource-bus/pkg/events"
	"github.com/morezero/resource-bus/pkg/patch"
	"github.com/morezero/resource-bus/pkg/resource"
	"github.com/morezero/resource-bus/pkg/validation"
)

type options struct {
	store          resource.Store
	loader         resource.Loader
	actions        []resource.Action
	registry       *validation.Registry
	policy         validation.Policy
	resourceSchema string
	logger         *slog.Logger
	queueGroup     string
	metrics        *Metrics
	limiter        *rate.Limiter
	patcher        patch.Applier
	publisher      events.Publisher
	changeEvents   bool
	handlerTimeout time.Duration
	strict         bool
}

// Option configures a Server.
type Option func(*options)

// WithStore supplies the adapter behind auto-loading and enables the default
// GET, PUT, PATCH and DELETE actions.
func WithStore(store resource.Store) Option {
	return func(o *options) { o.store = store }
}

// WithLoader supplies an auto-loading adapter without enabling the default actions.
func WithLoader(loader resource.Loader) Option {
	return func(o *options) { o.loader = loader }
}

// WithActions registers caller actions. They are registered after the defaults.
func WithActions(actions ...resource.Action) Option {
	return func(o *options) { o.actions = append(o.actions, actions...) }
}

// WithValidation sets the schema registry and the policy for verbs without a schema.
func WithValidation(reg *validation.Registry, policy validation.Policy) Option {
	return func(o *options) {
		o.registry = reg
		o.policy = policy
	}
}

// WithResourceSchema names the schema that whole resource documents must satisfy.
// The default PUT validates its body against it and PATCH validates the patched result.
func WithResourceSchema(ref string) Option {
	return func(o *options) { o.resourceSchema = ref }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithQueueGroup overrides the shared queue group name.
func WithQueueGroup(queue string) Option {
	return func(o *options) { o.queueGroup = queue }
}

func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRateLimit answers deliveries beyond the limiter's budget with 429.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(o *options) { o.limiter = limiter }
}

// WithPatcher replaces the JSON Patch applier used by the default PATCH action.
func WithPatcher(p patch.Applier) Option {
	return func(o *options) { o.patcher = p }
}

// WithPublisher replaces the publisher used by Emit and change events.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithChangeEvents makes the default PUT, PATCH and DELETE actions broadcast a
// ChangeEvent on the resource subject after they succeed.
func WithChangeEvents() Option {
	return func(o *options) { o.changeEvents = true }
}

// WithHandlerTimeout bounds the context passed to handlers. Zero means no bound.
func WithHandlerTimeout(d time.Duration) Option {
	return func(o *options) { o.handlerTimeout = d }
}

// WithStrictRegistration rejects caller actions whose (scope, verb) was already
// registered by another caller action. Overriding a default action stays allowed.
func WithStrictRegistration() Option {
	return func(o *options) { o.strict = true }
}
