// Package dispatcher binds resource actions to bus subjects and runs the
// request pipeline: decode, validate, auto-load, invoke, reply.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/morezero/resource-bus/pkg/commsutil"
	"github.com/morezero/resource-bus/pkg/events"
	"github.com/morezero/resource-bus/pkg/patch"
	"github.com/morezero/resource-bus/pkg/resource"
	"github.com/morezero/resource-bus/pkg/validation"
)

const logPrefix = "dispatcher:server"

// Server serves the actions of one resource over a bus.
type Server struct {
	bus            commsutil.Bus
	name           string
	queueGroup     string
	routes         map[resource.Key]resource.Action
	order          []resource.Key
	loader         resource.Loader
	store          resource.Store
	gate           *validation.Gate
	resourceSchema string
	patcher        patch.Applier
	publisher      events.Publisher
	changeEvents   bool
	metrics        *Metrics
	limiter        *rate.Limiter
	handlerTimeout time.Duration
	logger         *slog.Logger

	mu      sync.Mutex
	subs    []commsutil.Subscription
	started bool
	closed  bool
	ctx     context.Context
	wg      sync.WaitGroup
}

// NewServer builds the routing table of a resource. Default actions come first
// when a store is supplied; a later action with the same (scope, verb) replaces
// an earlier one.
func NewServer(bus commsutil.Bus, name string, opts ...Option) (*Server, error) {
	if bus == nil {
		return nil, fmt.Errorf("%s - bus is required", logPrefix)
	}
	if err := commsutil.ValidateResourceName(name); err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}

	o := options{queueGroup: commsutil.DefaultQueueGroup}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		bus:            bus,
		name:           name,
		queueGroup:     o.queueGroup,
		routes:         make(map[resource.Key]resource.Action),
		store:          o.store,
		loader:         o.loader,
		gate:           validation.NewGate(o.registry, o.policy, logger),
		resourceSchema: o.resourceSchema,
		patcher:        o.patcher,
		publisher:      o.publisher,
		changeEvents:   o.changeEvents,
		metrics:        o.metrics,
		limiter:        o.limiter,
		handlerTimeout: o.handlerTimeout,
		logger:         logger,
		ctx:            context.Background(),
	}
	if s.queueGroup == "" {
		s.queueGroup = commsutil.DefaultQueueGroup
	}
	if s.loader == nil && s.store != nil {
		s.loader = s.store
	}
	if s.patcher == nil {
		s.patcher = patch.JSONPatch{}
	}
	if s.publisher == nil {
		s.publisher = events.NewCommsPublisher(bus)
	}
	if s.resourceSchema != "" {
		if _, ok := s.gate.Registry.Lookup(s.resourceSchema); !ok {
			return nil, fmt.Errorf("%s - resource schema %q is not registered", logPrefix, s.resourceSchema)
		}
	}

	if s.store != nil {
		for _, a := range s.defaultActions() {
			s.register(a)
		}
	}
	seen := make(map[resource.Key]bool)
	for _, a := range o.actions {
		if a.Verb() == "" {
			return nil, fmt.Errorf("%s - action without verb; build actions with NewCollectionAction or NewInstanceAction", logPrefix)
		}
		if o.strict && seen[a.Key()] {
			return nil, fmt.Errorf("%s - duplicate action %s", logPrefix, a.Key())
		}
		seen[a.Key()] = true
		if a.Scope() == resource.ScopeInstance && a.AutoLoadMode() != resource.AutoLoadOff && s.loader == nil {
			return nil, fmt.Errorf("%s - action %s auto-loads %s but no loader is configured", logPrefix, a.Key(), a.AutoLoadMode())
		}
		s.register(a)
	}
	return s, nil
}

func (s *Server) register(a resource.Action) {
	key := a.Key()
	if _, exists := s.routes[key]; !exists {
		s.order = append(s.order, key)
	} else {
		s.logger.Debug(fmt.Sprintf("%s - %s.%s overrides an earlier registration", logPrefix, s.name, key))
	}
	s.routes[key] = a
}

// Name returns the resource name.
func (s *Server) Name() string { return s.name }

// Subjects returns the request subjects of every registered action, in registration order.
func (s *Server) Subjects() []string {
	subjects := make([]string, 0, len(s.order))
	for _, key := range s.order {
		subjects = append(subjects, commsutil.BuildActionSubject(s.name, string(key.Scope), key.Verb))
	}
	return subjects
}

// Start subscribes every action on its subject with the shared queue group.
// ctx is the parent of every handler context.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("%s - %s already started", logPrefix, s.name)
	}
	if s.closed {
		return fmt.Errorf("%s - %s is closed", logPrefix, s.name)
	}
	if ctx != nil {
		s.ctx = ctx
	}

	for _, key := range s.order {
		action := s.routes[key]
		subject := commsutil.BuildActionSubject(s.name, string(key.Scope), key.Verb)
		sub, err := s.bus.QueueSubscribe(subject, s.queueGroup, s.deliver(action))
		if err != nil {
			for _, prev := range s.subs {
				prev.Unsubscribe()
			}
			s.subs = nil
			return fmt.Errorf("%s - failed to subscribe %s: %w", logPrefix, subject, err)
		}
		s.subs = append(s.subs, sub)
		s.logger.Debug(fmt.Sprintf("%s - Subscribed %s (queue=%s)", logPrefix, subject, s.queueGroup))
	}
	s.started = true
	s.logger.Info(fmt.Sprintf("%s - %s serving %d actions", logPrefix, s.name, len(s.subs)))
	return nil
}

// Close unsubscribes every action and waits for in-flight deliveries to finish.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn(fmt.Sprintf("%s - unsubscribe failed: %v", logPrefix, err))
		}
	}
	s.wg.Wait()
}

// Emit broadcasts message on the bare resource subject.
func (s *Server) Emit(ctx context.Context, message interface{}) error {
	subject := commsutil.BuildEventSubject(s.name)
	if err := s.publisher.Publish(ctx, subject, message); err != nil {
		return fmt.Errorf("%s - emit on %s: %w", logPrefix, subject, err)
	}
	return nil
}

func (s *Server) deliver(action resource.Action) commsutil.MsgHandler {
	return func(msg *commsutil.Msg) {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		ctx := s.ctx
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			s.logger.Debug(fmt.Sprintf("%s - REC %s -> %s", logPrefix, msg.Subject, msg.Data))
			resp := s.handle(ctx, action, msg.Data)
			s.reply(msg.Reply, resp)
		}()
	}
}

// Dispatch runs the request pipeline for the action registered under key and
// returns the response envelope. It never fails; errors become failure envelopes.
func (s *Server) Dispatch(ctx context.Context, key resource.Key, data []byte) resource.Response {
	action, ok := s.routes[key]
	if !ok {
		return resource.Failure(resource.NotFound(fmt.Sprintf("no action %s on %s", key, s.name)))
	}
	return s.handle(ctx, action, data)
}

func (s *Server) handle(ctx context.Context, action resource.Action, data []byte) resource.Response {
	started := time.Now()
	s.metrics.begin(s.name)
	resp := s.process(ctx, action, data)
	s.metrics.end(s.name, string(action.Scope()), action.Verb(), resp.Status, started)
	return resp
}

func (s *Server) process(ctx context.Context, action resource.Action, data []byte) (resp resource.Response) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s - panic in %s.%s: %v", logPrefix, s.name, action.Key(), r)
			s.logFailure(action, err)
			resp = resource.Failure(err)
		}
	}()

	if s.handlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.handlerTimeout)
		defer cancel()
	}

	result, err := s.invoke(ctx, action, data)
	if err != nil {
		s.logFailure(action, err)
		return resource.Failure(err)
	}
	body, err := resource.EncodeResult(result)
	if err != nil {
		err = fmt.Errorf("%s - failed to encode result of %s: %w", logPrefix, action.Key(), err)
		s.logFailure(action, err)
		return resource.Failure(err)
	}
	return resource.OK(body)
}

func (s *Server) invoke(ctx context.Context, action resource.Action, data []byte) (interface{}, error) {
	if s.limiter != nil && !s.limiter.Allow() {
		return nil, resource.TooManyRequests()
	}
	req, err := resource.DecodeRequest(data)
	if err != nil {
		return nil, err
	}
	req, err = s.gate.Validate(action, req)
	if err != nil {
		return nil, err
	}

	if action.Scope() == resource.ScopeCollection {
		return action.HandleCollection(ctx, req.Body)
	}
	target, err := s.resolveTarget(ctx, action, req)
	if err != nil {
		return nil, err
	}
	return action.HandleInstance(ctx, target, req.Body)
}

func (s *Server) resolveTarget(ctx context.Context, action resource.Action, req resource.Request) (resource.Target, error) {
	if req.ID == nil {
		return resource.Target{}, resource.BadRequest(fmt.Sprintf("%s requires an id", action.Key()))
	}
	target := resource.Target{ID: *req.ID}
	mode := action.AutoLoadMode()
	if mode == resource.AutoLoadOff {
		return target, nil
	}

	instance, err := s.loader.Load(ctx, target.ID)
	if err != nil {
		return target, fmt.Errorf("%s - load %s %s: %w", logPrefix, s.name, target.ID, err)
	}
	if instance == nil {
		return target, resource.NotFound(fmt.Sprintf("%s %s not found", s.name, target.ID))
	}
	if mode == resource.AutoLoadJSON {
		if instance, err = s.loader.ToJSON(ctx, instance); err != nil {
			return target, fmt.Errorf("%s - serialize %s %s: %w", logPrefix, s.name, target.ID, err)
		}
	}
	target.Instance = instance
	return target, nil
}

func (s *Server) logFailure(action resource.Action, err error) {
	var decodeErr *resource.DecodeError
	if errors.As(err, &decodeErr) {
		s.logger.Error(fmt.Sprintf("%s - malformed request on %s.%s: %v", logPrefix, s.name, action.Key(), err))
		return
	}
	status, _ := resource.StatusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(fmt.Sprintf("%s - %s.%s failed: %v", logPrefix, s.name, action.Key(), err))
		return
	}
	s.logger.Error(fmt.Sprintf("%s - %s.%s rejected with %d: %v", logPrefix, s.name, action.Key(), status, err))
}

func (s *Server) reply(subject string, resp resource.Response) {
	data, err := commsutil.EncodePayload(resp)
	if err != nil {
		s.logger.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
		return
	}
	if subject == "" {
		s.logger.Debug(fmt.Sprintf("%s - no reply subject, dropping %s", logPrefix, data))
		return
	}
	s.logger.Debug(fmt.Sprintf("%s - PUB %s <- %s", logPrefix, subject, data))
	if err := s.bus.Publish(subject, data); err != nil {
		s.logger.Error(fmt.Sprintf("%s - failed to publish reply to %s: %v", logPrefix, subject, err))
	}
}
