package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"golang.org/x/time/rate"

	"github.com/morezero/resource-bus/pkg/commsutil"
	"github.com/morezero/resource-bus/pkg/commsutil/commstest"
	"github.com/morezero/resource-bus/pkg/events"
	"github.com/morezero/resource-bus/pkg/resource"
	"github.com/morezero/resource-bus/pkg/store"
	"github.com/morezero/resource-bus/pkg/validation"
)

const testPrefix = "dispatcher:server_test"

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type call struct {
	target resource.Target
	body   string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
	ret   interface{}
	err   error
}

func (r *recorder) collection(_ context.Context, body json.RawMessage) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{body: string(body)})
	return r.ret, r.err
}

func (r *recorder) instance(_ context.Context, target resource.Target, body json.RawMessage) (interface{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{target: target, body: string(body)})
	return r.ret, r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder) last() call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func startServer(t *testing.T, bus commsutil.Bus, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithLogger(quietLogger)}, opts...)
	srv, err := NewServer(bus, "users", opts...)
	if err != nil {
		t.Fatalf("%s - NewServer failed: %v", testPrefix, err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("%s - Start failed: %v", testPrefix, err)
	}
	t.Cleanup(srv.Close)
	return srv
}

func send(t *testing.T, bus commsutil.Bus, subject, envelope string) (resource.Response, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := bus.Request(ctx, subject, []byte(envelope))
	if err != nil {
		t.Fatalf("%s - request %s failed: %v", testPrefix, subject, err)
	}
	var resp resource.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("%s - bad response %s: %v", testPrefix, data, err)
	}
	return resp, string(data)
}

func TestStart_OneSubscriptionPerAction(t *testing.T) {
	bus := commstest.New()
	rec := &recorder{}
	startServer(t, bus,
		WithStore(store.NewMemory()),
		WithActions(
			resource.NewCollectionAction("CREATE", rec.collection).MustBuild(),
			resource.NewInstanceAction("rename", rec.instance).WithAutoLoad(resource.AutoLoadOff).MustBuild(),
			resource.NewInstanceAction(VerbGet, rec.instance).MustBuild(),
		),
	)

	want := []string{
		"users.instance.GET",
		"users.instance.PUT",
		"users.instance.PATCH",
		"users.instance.DELETE",
		"users.collection.CREATE",
		"users.instance.rename",
	}
	calls := bus.SubscribeCalls()
	if len(calls) != len(want) {
		t.Fatalf("%s - got %d subscriptions, want %d: %v", testPrefix, len(calls), len(want), calls)
	}
	for i, c := range calls {
		if c.Subject != want[i] {
			t.Errorf("%s - subscription %d subject = %q, want %q", testPrefix, i, c.Subject, want[i])
		}
		if c.Queue != commsutil.DefaultQueueGroup {
			t.Errorf("%s - subscription %d queue = %q, want %q", testPrefix, i, c.Queue, commsutil.DefaultQueueGroup)
		}
	}
}

func TestStart_Twice(t *testing.T) {
	srv := startServer(t, commstest.New())
	if err := srv.Start(context.Background()); err == nil {
		t.Error("expected error on second Start")
	}
}

func TestCollectionAction_Success(t *testing.T) {
	bus := commstest.New()
	rec := &recorder{ret: map[string]int{"count": 2}}
	startServer(t, bus, WithActions(resource.NewCollectionAction("COUNT", rec.collection).MustBuild()))

	_, raw := send(t, bus, "users.collection.COUNT", `{"body":{"active":true}}`)
	if raw != `{"status":200,"body":{"count":2}}` {
		t.Errorf("%s - response = %s", testPrefix, raw)
	}
	if rec.count() != 1 || rec.last().body != `{"active":true}` {
		t.Errorf("%s - handler calls = %+v", testPrefix, rec.calls)
	}
}

func TestInstanceAction_ReceivesIDAndBody(t *testing.T) {
	bus := commstest.New()
	rec := &recorder{ret: "ok"}
	startServer(t, bus, WithActions(
		resource.NewInstanceAction("rename", rec.instance).WithAutoLoad(resource.AutoLoadOff).MustBuild(),
	))

	resp, _ := send(t, bus, "users.instance.rename", `{"id":"42","body":{"name":"Ada"}}`)
	if resp.Status != http.StatusOK || string(resp.Body) != `"ok"` {
		t.Errorf("%s - response = %+v", testPrefix, resp)
	}
	got := rec.last()
	if got.target.ID != "42" || got.target.Instance != nil {
		t.Errorf("%s - target = %+v", testPrefix, got.target)
	}
	if got.body != `{"name":"Ada"}` {
		t.Errorf("%s - body = %s", testPrefix, got.body)
	}
}

func TestInstanceAction_EmptyStringIDIsPresent(t *testing.T) {
	bus := commstest.New()
	rec := &recorder{}
	startServer(t, bus, WithActions(
		resource.NewInstanceAction("touch", rec.instance).WithAutoLoad(resource.AutoLoadOff).MustBuild(),
	))

	resp, _ := send(t, bus, "users.instance.touch", `{"id":""}`)
	if resp.Status != http.StatusOK {
		t.Fatalf("%s - status = %d", testPrefix, resp.Status)
	}
	if rec.last().target.ID != "" {
		t.Errorf("%s - id = %q", testPrefix, rec.last().target.ID)
	}

	resp, _ = send(t, bus, "users.instance.touch", `{}`)
	if resp.Status != http.StatusBadRequest {
		t.Errorf("%s - missing id status = %d, want 400", testPrefix, resp.Status)
	}
}

func TestErrorFunnel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"labeled", resource.NotFound("user 7 not found"), `{"status":404,"message":"user 7 not found"}`},
		{"wrapped labeled", errors.Join(errors.New("ctx"), resource.Errorf(409, "conflict on %s", "7")), `{"status":409,"message":"conflict on 7"}`},
		{"untyped", errors.New("database exploded"), `{"status":500,"message":"Internal Server Error"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bus := commstest.New()
			rec := &recorder{err: tc.err}
			startServer(t, bus, WithActions(resource.NewCollectionAction("FAIL", rec.collection).MustBuild()))

			_, raw := send(t, bus, "users.collection.FAIL", `{}`)
			if raw != tc.want {
				t.Errorf("%s - response = %s, want %s", testPrefix, raw, tc.want)
			}
		})
	}
}

func TestMalformedEnvelope(t *testing.T) {
	bus := commstest.New()
	rec := &recorder{}
	startServer(t, bus, WithActions(resource.NewCollectionAction("LIST", rec.collection).MustBuild()))

	_, raw := send(t, bus, "users.collection.LIST", `{not json`)
	if raw != `{"status":500,"message":"Internal Server Error"}` {
		t.Errorf("%s - response = %s", testPrefix, raw)
	}
	if rec.count() != 0 {
		t.Errorf("%s - handler invoked %d times", testPrefix, rec.count())
	}
}

func TestPanicIsRecovered(t *testing.T) {
	bus := commstest.New()
	boom := func(context.Context, json.RawMessage) (interface{}, error) { panic("boom") }
	startServer(t, bus, WithActions(resource.NewCollectionAction("BOOM", boom).MustBuild()))

	_, raw := send(t, bus, "users.collection.BOOM", `{}`)
	if raw != `{"status":500,"message":"Internal Server Error"}` {
		t.Errorf("%s - response = %s", testPrefix, raw)
	}
	// The subscription keeps serving after a panic.
	_, raw = send(t, bus, "users.collection.BOOM", `{}`)
	if raw != `{"status":500,"message":"Internal Server Error"}` {
		t.Errorf("%s - second response = %s", testPrefix, raw)
	}
}

func TestValidationBlocksHandler(t *testing.T) {
	bus := commstest.New()
	reg := validation.NewRegistry().MustAddSchema("rename", `{"type":"object","required":["name"]}`)
	rec := &recorder{}
	startServer(t, bus,
		WithValidation(reg, validation.Strict),
		WithActions(
			resource.NewInstanceAction("rename", rec.instance).
				WithAutoLoad(resource.AutoLoadOff).
				WithSchema("rename").
				MustBuild(),
			resource.NewCollectionAction("search", rec.collection).MustBuild(),
		),
	)

	resp, _ := send(t, bus, "users.instance.rename", `{"id":"1","body":{"nick":"x"}}`)
	if resp.Status != http.StatusBadRequest {
		t.Errorf("%s - status = %d, want 400", testPrefix, resp.Status)
	}
	resp, _ = send(t, bus, "users.collection.search", `{"body":{"q":"x"}}`)
	if resp.Status != http.StatusBadRequest || resp.Message != "no schema registered for verb search" {
		t.Errorf("%s - strict response = %+v", testPrefix, resp)
	}
	if rec.count() != 0 {
		t.Errorf("%s - handler invoked %d times", testPrefix, rec.count())
	}

	resp, _ = send(t, bus, "users.instance.rename", `{"id":"1","body":{"name":"x"}}`)
	if resp.Status != http.StatusOK || rec.count() != 1 {
		t.Errorf("%s - valid body response = %+v, calls = %d", testPrefix, resp, rec.count())
	}
}

func TestAutoLoad(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	if _, err := mem.Upsert(ctx, "1", json.RawMessage(`{"name":"Ada"}`)); err != nil {
		t.Fatalf("%s - seed failed: %v", testPrefix, err)
	}

	raw := &recorder{ret: "raw"}
	plain := &recorder{ret: "json"}
	bus := commstest.New()
	startServer(t, bus,
		WithLoader(mem),
		WithActions(
			resource.NewInstanceAction("inspect", raw.instance).MustBuild(),
			resource.NewInstanceAction("render", plain.instance).WithAutoLoad(resource.AutoLoadJSON).MustBuild(),
		),
	)

	for _, subject := range []string{"users.instance.inspect", "users.instance.render"} {
		resp, _ := send(t, bus, subject, `{"id":"missing"}`)
		if resp.Status != http.StatusNotFound {
			t.Errorf("%s - %s status = %d, want 404", testPrefix, subject, resp.Status)
		}
	}
	if raw.count() != 0 || plain.count() != 0 {
		t.Fatalf("%s - handlers invoked for missing instance", testPrefix)
	}

	send(t, bus, "users.instance.inspect", `{"id":"1"}`)
	doc, ok := raw.last().target.Instance.(*store.Document)
	if !ok || doc.ID != "1" {
		t.Errorf("%s - raw instance = %#v", testPrefix, raw.last().target.Instance)
	}

	send(t, bus, "users.instance.render", `{"id":"1"}`)
	body, ok := plain.last().target.Instance.(json.RawMessage)
	if !ok || string(body) != `{"name":"Ada"}` {
		t.Errorf("%s - json instance = %#v", testPrefix, plain.last().target.Instance)
	}
}

func TestDefaultActions(t *testing.T) {
	bus := commstest.New()
	mem := store.NewMemory()
	startServer(t, bus, WithStore(mem))

	resp, _ := send(t, bus, "users.instance.GET", `{"id":"1"}`)
	if resp.Status != http.StatusNotFound {
		t.Errorf("%s - GET missing status = %d", testPrefix, resp.Status)
	}

	resp, _ = send(t, bus, "users.instance.PUT", `{"id":"1","body":{"name":"Ada","langs":["go"]}}`)
	if resp.Status != http.StatusOK {
		t.Fatalf("%s - PUT response = %+v", testPrefix, resp)
	}

	_, raw := send(t, bus, "users.instance.GET", `{"id":"1"}`)
	if raw != `{"status":200,"body":{"name":"Ada","langs":["go"]}}` {
		t.Errorf("%s - GET response = %s", testPrefix, raw)
	}

	resp, raw = send(t, bus, "users.instance.PATCH", `{"id":"1","body":[{"op":"replace","path":"/name","value":"Grace"}]}`)
	var patched struct {
		Name  string   `json:"name"`
		Langs []string `json:"langs"`
	}
	if err := json.Unmarshal(resp.Body, &patched); err != nil || patched.Name != "Grace" || len(patched.Langs) != 1 {
		t.Errorf("%s - PATCH response = %s", testPrefix, raw)
	}

	resp, _ = send(t, bus, "users.instance.PATCH", `{"id":"1","body":[{"op":"remove","path":"/nope"}]}`)
	if resp.Status != http.StatusBadRequest {
		t.Errorf("%s - failing PATCH status = %d, want 400", testPrefix, resp.Status)
	}

	resp, _ = send(t, bus, "users.instance.DELETE", `{"id":"1"}`)
	if resp.Status != http.StatusOK {
		t.Errorf("%s - DELETE response = %+v", testPrefix, resp)
	}
	if inst, _ := mem.Load(context.Background(), "1"); inst != nil {
		t.Errorf("%s - instance still stored after DELETE", testPrefix)
	}
}

func TestDefaultActions_ResourceSchema(t *testing.T) {
	bus := commstest.New()
	mem := store.NewMemory()
	reg := validation.NewRegistry().MustAddSchema("user", `{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)
	startServer(t, bus, WithStore(mem), WithValidation(reg, validation.Permissive), WithResourceSchema("user"))

	resp, _ := send(t, bus, "users.instance.PUT", `{"id":"1","body":{"nick":"x"}}`)
	if resp.Status != http.StatusBadRequest {
		t.Errorf("%s - invalid PUT status = %d, want 400", testPrefix, resp.Status)
	}

	send(t, bus, "users.instance.PUT", `{"id":"1","body":{"name":"Ada"}}`)
	resp, _ = send(t, bus, "users.instance.PATCH", `{"id":"1","body":[{"op":"replace","path":"/name","value":7}]}`)
	if resp.Status != http.StatusBadRequest {
		t.Errorf("%s - invalid PATCH status = %d, want 400", testPrefix, resp.Status)
	}

	inst, _ := mem.Load(context.Background(), "1")
	if doc := inst.(*store.Document); string(doc.Body) != `{"name":"Ada"}` || doc.Revision != 1 {
		t.Errorf("%s - stored document changed: %s rev %d", testPrefix, doc.Body, doc.Revision)
	}
}

func TestDefaultActions_Override(t *testing.T) {
	bus := commstest.New()
	rec := &recorder{ret: "custom"}
	startServer(t, bus,
		WithStore(store.NewMemory()),
		WithActions(resource.NewInstanceAction(VerbGet, rec.instance).WithAutoLoad(resource.AutoLoadOff).MustBuild()),
	)

	_, raw := send(t, bus, "users.instance.GET", `{"id":"anything"}`)
	if raw != `{"status":200,"body":"custom"}` {
		t.Errorf("%s - response = %s", testPrefix, raw)
	}
	if n := len(bus.SubscribeCalls()); n != 4 {
		t.Errorf("%s - subscriptions = %d, want 4", testPrefix, n)
	}
}

func TestChangeEvents(t *testing.T) {
	bus := commstest.New()
	var mu sync.Mutex
	var got []*events.ChangeEvent
	publisher := events.NewCallbackPublisher(func(_ context.Context, subject string, message interface{}) error {
		if subject != "users" {
			t.Errorf("%s - event subject = %q", testPrefix, subject)
		}
		mu.Lock()
		got = append(got, message.(*events.ChangeEvent))
		mu.Unlock()
		return nil
	})
	startServer(t, bus, WithStore(store.NewMemory()), WithPublisher(publisher), WithChangeEvents())

	send(t, bus, "users.instance.PUT", `{"id":"1","body":{"n":1}}`)
	send(t, bus, "users.instance.PATCH", `{"id":"1","body":[{"op":"add","path":"/m","value":2}]}`)
	send(t, bus, "users.instance.DELETE", `{"id":"1"}`)

	mu.Lock()
	defer mu.Unlock()
	wantTypes := []string{events.TypeUpdated, events.TypePatched, events.TypeDeleted}
	if len(got) != len(wantTypes) {
		t.Fatalf("%s - got %d events, want %d", testPrefix, len(got), len(wantTypes))
	}
	for i, e := range got {
		if e.Type != wantTypes[i] || e.ID != "1" || e.Resource != "users" {
			t.Errorf("%s - event %d = %+v", testPrefix, i, e)
		}
	}
	if string(got[1].Body) != `{"m":2,"n":1}` && string(got[1].Body) != `{"n":1,"m":2}` {
		t.Errorf("%s - patched body = %s", testPrefix, got[1].Body)
	}
}

func TestEmit(t *testing.T) {
	bus := commstest.New()
	srv := startServer(t, bus)

	if err := srv.Emit(context.Background(), map[string]string{"hello": "world"}); err != nil {
		t.Fatalf("%s - Emit failed: %v", testPrefix, err)
	}
	pubs := bus.PublishedTo("users")
	if len(pubs) != 1 || string(pubs[0].Data) != `{"hello":"world"}` {
		t.Errorf("%s - published = %+v", testPrefix, pubs)
	}
}

func TestRateLimit(t *testing.T) {
	bus := commstest.New()
	rec := &recorder{}
	startServer(t, bus,
		WithRateLimit(rate.NewLimiter(0, 1)),
		WithActions(resource.NewCollectionAction("PING", rec.collection).MustBuild()),
	)

	resp, _ := send(t, bus, "users.collection.PING", `{}`)
	if resp.Status != http.StatusOK {
		t.Errorf("%s - first status = %d", testPrefix, resp.Status)
	}
	_, raw := send(t, bus, "users.collection.PING", `{}`)
	if raw != `{"status":429,"message":"Too Many Requests"}` {
		t.Errorf("%s - limited response = %s", testPrefix, raw)
	}
	if rec.count() != 1 {
		t.Errorf("%s - handler calls = %d, want 1", testPrefix, rec.count())
	}
}

func TestHandlerTimeout(t *testing.T) {
	bus := commstest.New()
	slow := func(ctx context.Context, _ json.RawMessage) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	startServer(t, bus,
		WithHandlerTimeout(20*time.Millisecond),
		WithActions(resource.NewCollectionAction("SLOW", slow).MustBuild()),
	)

	resp, _ := send(t, bus, "users.collection.SLOW", `{}`)
	if resp.Status != http.StatusInternalServerError {
		t.Errorf("%s - status = %d, want 500", testPrefix, resp.Status)
	}
}

func TestMetrics(t *testing.T) {
	bus := commstest.New()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	rec := &recorder{}
	startServer(t, bus, WithMetrics(m), WithActions(resource.NewCollectionAction("PING", rec.collection).MustBuild()))

	send(t, bus, "users.collection.PING", `{}`)
	send(t, bus, "users.collection.PING", `{bad`)

	for status, want := range map[string]float64{"200": 1, "500": 1} {
		var pb dto.Metric
		if err := m.RequestsTotal.WithLabelValues("users", "collection", "PING", status).Write(&pb); err != nil {
			t.Fatalf("%s - read counter: %v", testPrefix, err)
		}
		if got := pb.GetCounter().GetValue(); got != want {
			t.Errorf("%s - requests_total{status=%s} = %v, want %v", testPrefix, status, got, want)
		}
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("%s - gather: %v", testPrefix, err)
	}
	if len(families) != 3 {
		t.Errorf("%s - gathered %d families, want 3", testPrefix, len(families))
	}
}

func TestDispatch(t *testing.T) {
	rec := &recorder{ret: 1}
	srv, err := NewServer(commstest.New(), "users",
		WithLogger(quietLogger),
		WithActions(resource.NewCollectionAction("ONE", rec.collection).MustBuild()),
	)
	if err != nil {
		t.Fatalf("%s - NewServer failed: %v", testPrefix, err)
	}

	resp := srv.Dispatch(context.Background(), resource.Key{Scope: resource.ScopeCollection, Verb: "ONE"}, []byte(`{}`))
	if resp.Status != http.StatusOK || string(resp.Body) != "1" {
		t.Errorf("%s - response = %+v", testPrefix, resp)
	}
	resp = srv.Dispatch(context.Background(), resource.Key{Scope: resource.ScopeInstance, Verb: "ONE"}, []byte(`{}`))
	if resp.Status != http.StatusNotFound {
		t.Errorf("%s - unknown key status = %d", testPrefix, resp.Status)
	}
}

func TestNewServer_ConfigurationErrors(t *testing.T) {
	noop := func(context.Context, resource.Target, json.RawMessage) (interface{}, error) { return nil, nil }
	bus := commstest.New()

	if _, err := NewServer(nil, "users"); err == nil {
		t.Error("expected error for nil bus")
	}
	if _, err := NewServer(bus, "bad name"); err == nil {
		t.Error("expected error for invalid resource name")
	}
	if _, err := NewServer(bus, "users", WithActions(resource.NewInstanceAction("x", noop).MustBuild())); err == nil {
		t.Error("expected error for auto-loading action without loader")
	}
	if _, err := NewServer(bus, "users", WithActions(resource.Action{})); err == nil {
		t.Error("expected error for zero action")
	}
	if _, err := NewServer(bus, "users", WithStore(store.NewMemory()), WithResourceSchema("missing")); err == nil {
		t.Error("expected error for unregistered resource schema")
	}

	dup := resource.NewInstanceAction("x", noop).WithAutoLoad(resource.AutoLoadOff).MustBuild()
	if _, err := NewServer(bus, "users", WithActions(dup, dup)); err != nil {
		t.Errorf("last registration should win by default: %v", err)
	}
	if _, err := NewServer(bus, "users", WithStrictRegistration(), WithActions(dup, dup)); err == nil {
		t.Error("expected error for duplicate action under strict registration")
	}
	override := resource.NewInstanceAction(VerbGet, noop).WithAutoLoad(resource.AutoLoadOff).MustBuild()
	if _, err := NewServer(bus, "users", WithStrictRegistration(), WithStore(store.NewMemory()), WithActions(override)); err != nil {
		t.Errorf("overriding a default under strict registration should succeed: %v", err)
	}
}

func TestClose_WaitsForInFlight(t *testing.T) {
	bus := commstest.New()
	release := make(chan struct{})
	var finished atomic.Bool
	block := func(context.Context, json.RawMessage) (interface{}, error) {
		<-release
		finished.Store(true)
		return nil, nil
	}
	srv, err := NewServer(bus, "users", WithLogger(quietLogger), WithActions(resource.NewCollectionAction("WAIT", block).MustBuild()))
	if err != nil {
		t.Fatalf("%s - NewServer failed: %v", testPrefix, err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("%s - Start failed: %v", testPrefix, err)
	}

	bus.Deliver("users.collection.WAIT", "reply.1", []byte(`{}`))
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	srv.Close()

	if !finished.Load() {
		t.Error("Close returned before the in-flight delivery finished")
	}
	if bus.Unsubscribes() != 1 {
		t.Errorf("%s - unsubscribes = %d, want 1", testPrefix, bus.Unsubscribes())
	}
	if len(bus.PublishedTo("reply.1")) != 1 {
		t.Errorf("%s - in-flight reply not published", testPrefix)
	}

	bus.Deliver("users.collection.WAIT", "reply.2", []byte(`{}`))
	if len(bus.PublishedTo("reply.2")) != 0 {
		t.Errorf("%s - delivery after Close was handled", testPrefix)
	}
	srv.Close()
}
