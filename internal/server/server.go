// Package server orchestrates all components: COMMS connection, storage, schema
// registry, resource dispatcher, and the HTTP health, metrics and proxy endpoint.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/morezero/resource-bus/internal/config"
	"github.com/morezero/resource-bus/pkg/client"
	"github.com/morezero/resource-bus/pkg/commsutil"
	"github.com/morezero/resource-bus/pkg/db"
	"github.com/morezero/resource-bus/pkg/dispatcher"
	"github.com/morezero/resource-bus/pkg/httpproxy"
	"github.com/morezero/resource-bus/pkg/resource"
	"github.com/morezero/resource-bus/pkg/seed"
	"github.com/morezero/resource-bus/pkg/store"
	"github.com/morezero/resource-bus/pkg/validation"
)

const logPrefix = "server:server"

// Server is the resourced orchestrator.
type Server struct {
	cfg        *config.Config
	nc         *comms.Conn
	pool       *pgxpool.Pool
	store      resource.Store
	schemas    *validation.Registry
	metrics    *prometheus.Registry
	resource   *dispatcher.Server
	client     *client.Client
	httpServer *http.Server
}

// HealthOutput is the body of GET /health.
type HealthOutput struct {
	Status    string          `json:"status"`
	Resource  string          `json:"resource"`
	Checks    map[string]bool `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

// ParseLogLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: ParseLogLevel(cfg.LogLevel)})))
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting resourced for %s", logPrefix, cfg.ResourceName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Connect to NATS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.COMMSURL))

	// Step 2: Open the store
	st, pool, err := openStore(ctx, cfg)
	if err != nil {
		nc.Close()
		return err
	}

	// Step 3: Build the resource server and its HTTP surface
	s, err := New(cfg, commsutil.NewNATSBus(nc), st)
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		nc.Close()
		return err
	}
	s.nc = nc
	s.pool = pool

	if err := s.Seed(ctx); err != nil {
		s.Shutdown(ctx)
		return err
	}

	if err := s.Start(ctx); err != nil {
		s.Shutdown(ctx)
		return err
	}

	// Step 4: Start HTTP server
	httpAddr := cfg.ListenAddr()
	s.httpServer = &http.Server{Addr: httpAddr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, httpAddr))
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - resourced is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HealthCheckTimeout)
	defer shutdownCancel()
	s.Shutdown(shutdownCtx)

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (resource.Store, *pgxpool.Pool, error) {
	if !cfg.UsesDatabase() {
		slog.Info(fmt.Sprintf("%s - Using in-memory store", logPrefix))
		return store.NewMemory(), nil, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	if cfg.RunMigrations {
		migrations, err := db.LoadMigrations(cfg.MigrationPath)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
		}
		if err := db.RunMigrations(ctx, pool, migrations); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
		}
	}
	return db.NewDocumentStore(pool, cfg.ResourceName), pool, nil
}

// New wires the schema registry, resource server, client and metrics for cfg
// on top of bus and st. Call Start to subscribe.
func New(cfg *config.Config, bus commsutil.Bus, st resource.Store) (*Server, error) {
	s := &Server{cfg: cfg, store: st, schemas: validation.NewRegistry(), metrics: prometheus.NewRegistry()}

	if cfg.SchemaDir != "" {
		if err := s.schemas.LoadDir(cfg.SchemaDir); err != nil {
			return nil, fmt.Errorf("%s - failed to load schemas: %w", logPrefix, err)
		}
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}

	actions, err := collectionActions(st, cfg.ResourceSchema)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to build collection actions: %w", logPrefix, err)
	}

	s.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts := []dispatcher.Option{
		dispatcher.WithStore(st),
		dispatcher.WithActions(actions...),
		dispatcher.WithValidation(s.schemas, policy),
		dispatcher.WithResourceSchema(cfg.ResourceSchema),
		dispatcher.WithQueueGroup(cfg.QueueGroup),
		dispatcher.WithMetrics(dispatcher.NewMetrics(s.metrics)),
		dispatcher.WithHandlerTimeout(cfg.HandlerTimeout),
	}
	if cfg.RateLimitRPS > 0 {
		opts = append(opts, dispatcher.WithRateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)))
	}
	if cfg.ChangeEvents {
		opts = append(opts, dispatcher.WithChangeEvents())
	}

	s.resource, err = dispatcher.NewServer(bus, cfg.ResourceName, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create resource server: %w", logPrefix, err)
	}
	s.client, err = client.New(bus, cfg.ResourceName, client.WithTimeout(cfg.ClientTimeout))
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create resource client: %w", logPrefix, err)
	}
	return s, nil
}

// Seed upserts the documents of the configured seed file directly into the store.
func (s *Server) Seed(ctx context.Context) error {
	if s.cfg.SeedFile == "" {
		return nil
	}
	f, err := seed.Load(s.cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("%s - failed to load seed file: %w", logPrefix, err)
	}
	if f == nil {
		slog.Warn(fmt.Sprintf("%s - Seed file %s not found, skipping", logPrefix, s.cfg.SeedFile))
		return nil
	}
	_, err = f.Apply(ctx, s.cfg.ResourceName, func(ctx context.Context, id string, body json.RawMessage) error {
		_, err := s.store.Upsert(ctx, id, body)
		return err
	})
	return err
}

// Start subscribes the resource actions.
func (s *Server) Start(ctx context.Context) error {
	if err := s.resource.Start(ctx); err != nil {
		return fmt.Errorf("%s - failed to start resource server: %w", logPrefix, err)
	}
	for _, subject := range s.resource.Subjects() {
		slog.Info(fmt.Sprintf("%s - Serving %s", logPrefix, subject))
	}
	return nil
}

// Shutdown stops the HTTP server, drains in-flight requests and closes connections.
func (s *Server) Shutdown(ctx context.Context) {
	if s.httpServer != nil {
		s.httpServer.Shutdown(ctx)
	}
	s.resource.Close()
	if s.nc != nil {
		s.nc.Drain()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// Handler returns the HTTP routes: home page, /health, /ready, /metrics and
// the resource proxy under /api/<resource>.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleHome())
	r.Get("/health", s.handleHealth)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))

	proxy := httpproxy.NewRouter(s.client, nil).RouteCollectionActions(VerbCreate)
	if _, ok := s.store.(resource.Lister); ok {
		proxy.RouteCollectionActions(VerbList)
	}
	r.Mount("/api/"+s.cfg.ResourceName, proxy)
	return r
}

// Health checks the bus connection and, when used, the database.
func (s *Server) Health(ctx context.Context) *HealthOutput {
	out := &HealthOutput{
		Status:    "healthy",
		Resource:  s.cfg.ResourceName,
		Checks:    map[string]bool{},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.nc != nil {
		out.Checks["comms"] = s.nc.IsConnected()
	}
	if s.pool != nil {
		out.Checks["database"] = s.pool.Ping(ctx) == nil
	}
	for _, ok := range out.Checks {
		if !ok {
			out.Status = "unhealthy"
		}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
	defer cancel()
	h := s.Health(ctx)
	w.Header().Set("Content-Type", "application/json")
	if h.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(h)
}

// homePageTemplate is the HTML for the service home page.
const homePageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Health.Resource}} - resourced</title>
  <style>
    body { background: #fff; color: #000; font-family: system-ui, sans-serif; margin: 0; padding: 2rem; line-height: 1.5; }
    h1, h2 { color: #0066cc; }
    .status-healthy { color: #0066cc; font-weight: bold; }
    .status-unhealthy { color: #cc0000; font-weight: bold; }
    table { border-collapse: collapse; width: 100%; max-width: 900px; margin-top: 0.5rem; }
    th, td { text-align: left; padding: 0.5rem 0.75rem; border: 1px solid #ccc; }
    th { background: #f0f4f8; color: #0066cc; }
    code { background: #f5f5f5; padding: 0 0.25rem; }
  </style>
</head>
<body>
  <h1>{{.Health.Resource}}</h1>
  <section>
    <h2>Health</h2>
    <p>Status: <span class="status-{{.Health.Status}}">{{.Health.Status}}</span></p>
    {{range $name, $ok := .Health.Checks}}<p>{{$name}}: {{if $ok}}OK{{else}}Failed{{end}}</p>{{end}}
    <p>Timestamp: {{.Health.Timestamp}}</p>
  </section>
  <section>
    <h2>Subjects</h2>
    <table>
      <thead><tr><th>Subject</th><th>Queue group</th></tr></thead>
      <tbody>
        {{range .Subjects}}<tr><td><code>{{.}}</code></td><td>{{$.QueueGroup}}</td></tr>{{end}}
      </tbody>
    </table>
  </section>
  <section>
    <h2>Schemas</h2>
    {{if not .Schemas}}<p>No schemas loaded.</p>{{else}}<p>{{range .Schemas}}<code>{{.}}</code> {{end}}</p>{{end}}
  </section>
</body>
</html>
`

type homeData struct {
	Health     *HealthOutput
	Subjects   []string
	QueueGroup string
	Schemas    []string
}

func (s *Server) handleHome() http.HandlerFunc {
	tmpl := template.Must(template.New("home").Parse(homePageTemplate))
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()

		data := homeData{
			Health:     s.Health(ctx),
			Subjects:   s.resource.Subjects(),
			QueueGroup: s.cfg.QueueGroup,
			Schemas:    s.schemas.Refs(),
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			slog.Error(fmt.Sprintf("%s - home template execute: %v", logPrefix, err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}
