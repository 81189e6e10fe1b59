// Package client sends resource requests over a bus and decodes their replies.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/morezero/resource-bus/pkg/commsutil"
	"github.com/morezero/resource-bus/pkg/resource"
)

const logPrefix = "client:client"

// DefaultTimeout bounds a request when neither the client nor the call sets a shorter one.
const DefaultTimeout = 1000 * time.Millisecond

// Client talks to one resource.
type Client struct {
	bus     commsutil.Bus
	name    string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Values <= 0 keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a client for the named resource.
func New(bus commsutil.Bus, name string, opts ...Option) (*Client, error) {
	if bus == nil {
		return nil, fmt.Errorf("%s - bus is required", logPrefix)
	}
	if err := commsutil.ValidateResourceName(name); err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	c := &Client{bus: bus, name: name, timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the resource name.
func (c *Client) Name() string { return c.name }

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Request sends req for verb and returns the reply body. The request goes to
// the instance subject when req carries an id and to the collection subject otherwise.
// Failures are *resource.Error values.
func (c *Client) Request(ctx context.Context, verb string, req resource.Request) (json.RawMessage, error) {
	subject := commsutil.BuildActionSubject(c.name, string(req.Scope()), verb)
	data, err := commsutil.EncodePayload(req)
	if err != nil {
		return nil, resource.BadRequest("request body is not serializable").WithCause(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug(fmt.Sprintf("%s - REQ %s <- %s", logPrefix, subject, data))
	reply, err := c.bus.Request(ctx, subject, data)
	if err != nil {
		switch {
		case commsutil.IsNoResponders(err):
			c.logger.Warn(fmt.Sprintf("%s - no responders on %s", logPrefix, subject))
			return nil, resource.ServiceUnavailable().WithCause(err)
		case commsutil.IsTimeout(err):
			c.logger.Warn(fmt.Sprintf("%s - request to %s timed out", logPrefix, subject))
			return nil, resource.GatewayTimeout().WithCause(err)
		default:
			c.logger.Error(fmt.Sprintf("%s - request to %s failed: %v", logPrefix, subject, err))
			return nil, resource.NewError(http.StatusInternalServerError, resource.GenericMessage).WithCause(err)
		}
	}
	c.logger.Debug(fmt.Sprintf("%s - REP %s -> %s", logPrefix, subject, reply))

	var resp resource.Response
	if err := commsutil.DecodePayload(reply, &resp); err != nil {
		return nil, resource.NewError(http.StatusBadGateway, "malformed response").WithCause(err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	if len(resp.Body) == 0 {
		return json.RawMessage("null"), nil
	}
	return resp.Body, nil
}

// Collection invokes a collection verb. A nil body is omitted.
func (c *Client) Collection(ctx context.Context, verb string, body interface{}) (json.RawMessage, error) {
	req, err := resource.NewRequest(nil, body)
	if err != nil {
		return nil, resource.BadRequest("request body is not serializable").WithCause(err)
	}
	return c.Request(ctx, verb, req)
}

// Instance invokes an instance verb on id. A nil body is omitted.
func (c *Client) Instance(ctx context.Context, verb, id string, body interface{}) (json.RawMessage, error) {
	req, err := resource.NewRequest(&id, body)
	if err != nil {
		return nil, resource.BadRequest("request body is not serializable").WithCause(err)
	}
	return c.Request(ctx, verb, req)
}

func (c *Client) Get(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Instance(ctx, "GET", id, nil)
}

func (c *Client) Put(ctx context.Context, id string, body interface{}) (json.RawMessage, error) {
	return c.Instance(ctx, "PUT", id, body)
}

// Patch sends a JSON Patch document.
func (c *Client) Patch(ctx context.Context, id string, ops interface{}) (json.RawMessage, error) {
	return c.Instance(ctx, "PATCH", id, ops)
}

func (c *Client) Delete(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Instance(ctx, "DELETE", id, nil)
}

// Subscribe delivers every JSON message broadcast on the resource subject to cb.
// Messages that are not valid JSON are logged and dropped.
func (c *Client) Subscribe(cb func(message json.RawMessage)) (*Subscription, error) {
	subject := commsutil.BuildEventSubject(c.name)
	sub, err := c.bus.Subscribe(subject, func(msg *commsutil.Msg) {
		message, err := commsutil.DecodeMessage(msg.Data)
		if err != nil {
			c.logger.Warn(fmt.Sprintf("%s - dropping event on %s: %v", logPrefix, subject, err))
			return
		}
		c.logger.Debug(fmt.Sprintf("%s - EVT %s -> %s", logPrefix, subject, message))
		cb(message)
	})
	if err != nil {
		return nil, fmt.Errorf("%s - subscribe %s: %w", logPrefix, subject, err)
	}
	return newSubscription(sub), nil
}
