// Package httpproxy exposes a resource over HTTP by forwarding requests to its
// bus subjects.
package httpproxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/morezero/resource-bus/pkg/resource"
)

const logPrefix = "httpproxy:router"

// MaxBodyBytes caps the size of a proxied request body.
const MaxBodyBytes = 1 << 20

// Requester sends one resource request. *client.Client implements it.
type Requester interface {
	Request(ctx context.Context, verb string, req resource.Request) (json.RawMessage, error)
}

// Router maps HTTP routes onto resource verbs.
type Router struct {
	mux    chi.Router
	client Requester
	logger *slog.Logger
}

// NewRouter creates a router with GET, PUT, PATCH and DELETE on /{id}.
func NewRouter(client Requester, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{mux: chi.NewRouter(), client: client, logger: logger}
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		r.mux.Method(method, "/{id}", r.proxy(method, true))
	}
	return r
}

// RouteCollectionActions adds POST /{verb} for each collection verb.
func (r *Router) RouteCollectionActions(verbs ...string) *Router {
	for _, verb := range verbs {
		r.mux.Post("/"+verb, r.proxy(verb, false))
	}
	return r
}

// RouteInstanceActions adds POST /{id}/{verb} for each instance verb.
func (r *Router) RouteInstanceActions(verbs ...string) *Router {
	for _, verb := range verbs {
		r.mux.Post("/{id}/"+verb, r.proxy(verb, true))
	}
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) proxy(verb string, instance bool) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var id *string
		if instance {
			v := chi.URLParam(req, "id")
			id = &v
		}

		body, err := readBody(w, req)
		if err != nil {
			r.fail(w, verb, err)
			return
		}

		result, err := r.client.Request(req.Context(), verb, resource.Request{ID: id, Body: body})
		if err != nil {
			r.fail(w, verb, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(result)
	}
}

// readBody returns the JSON request body, or nil when there is none.
func readBody(w http.ResponseWriter, req *http.Request) (json.RawMessage, error) {
	if req.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, req.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, resource.NewError(http.StatusRequestEntityTooLarge, "")
		}
		return nil, resource.BadRequest("unreadable request body").WithCause(err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, resource.BadRequest("request body is not valid JSON")
	}
	return data, nil
}

// fail writes the error status with an empty body.
func (r *Router) fail(w http.ResponseWriter, verb string, err error) {
	status, _ := resource.StatusOf(err)
	r.logger.Debug(fmt.Sprintf("%s - %s failed with %d: %v", logPrefix, verb, status, err))
	w.WriteHeader(status)
}
