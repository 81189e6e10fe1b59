// Package main is the entrypoint for resourced, the resource bus server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/morezero/resource-bus/internal/config"
	"github.com/morezero/resource-bus/internal/server"
	"github.com/morezero/resource-bus/pkg/client"
	"github.com/morezero/resource-bus/pkg/commsutil"
	"github.com/morezero/resource-bus/pkg/db"
	"github.com/morezero/resource-bus/pkg/resource"
	"github.com/morezero/resource-bus/pkg/seed"
)

const usage = `Usage: resourced [command]
       resourced serve                         Start the resource server (NATS, store, HTTP).
       resourced migrate up                    Run database migrations.
       resourced migrate down                  Roll back one migration (migrations are forward-only).
       resourced migrate status                Show migration status.
       resourced ensure-db [name]              Create database if missing (default name: resources_test). Uses DATABASE_URL host/user.
       resourced clear [resource]              Delete stored documents of one resource, or all when omitted.
       resourced call collection VERB [body]   Send a collection request and print the result.
       resourced call instance VERB ID [body]  Send an instance request and print the result.
       resourced watch                         Print every message broadcast on the resource subject.
       resourced seed [file]                   PUT the documents of a seed file (JSON or YAML) through a running server.

Commands:
  serve           (default) Start the resource server for RESOURCE_NAME.
  migrate up      Run database migrations only.
  migrate down    Roll back last migration (no-op).
  migrate status  Show current migration status.
  ensure-db       Create database (e.g. resources_test) on same host as DATABASE_URL.
  clear           Delete stored documents; schema preserved.
  call            Issue one request through the resource client.
  watch           Subscribe to the resource broadcast subject until interrupted.
  seed [file]     Seed documents; file defaults to SEED_FILE.

Environment: COMMS_URL, RESOURCE_NAME, STORE_DRIVER (memory or postgres), DATABASE_URL,
MIGRATION_PATH, SCHEMA_DIR, RESOURCE_SCHEMA, SEED_FILE, HTTP_ADDR (default 0.0.0.0:8080). See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("resourced migrate: require subcommand (up, down, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("resourced migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("resourced migrate status: %v", err)
			}
		case "down":
			if err := runMigrateDown(); err != nil {
				log.Fatalf("resourced migrate down: %v", err)
			}
		default:
			log.Fatalf("resourced migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		return
	case "clear":
		resourceName := ""
		if len(args) > 1 {
			resourceName = args[1]
		}
		if err := runClear(resourceName); err != nil {
			log.Fatalf("resourced clear: %v", err)
		}
		return
	case "ensure-db":
		dbName := "resources_test"
		if len(args) > 1 && args[1] != "" {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("resourced ensure-db: %v", err)
		}
		return
	case "call":
		c, err := parseCall(args[1:])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n%s", err, usage)
			os.Exit(1)
		}
		if err := runCall(c); err != nil {
			log.Fatalf("resourced call: %v", err)
		}
		return
	case "watch":
		if err := runWatch(); err != nil {
			log.Fatalf("resourced watch: %v", err)
		}
		return
	case "seed":
		seedFile := ""
		if len(args) > 1 {
			seedFile = args[1]
		}
		if err := runSeed(seedFile); err != nil {
			log.Fatalf("resourced seed: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("resourced: %v", err)
	}
}

func runMigrateUp() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrations, err := db.LoadMigrations(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrations); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return db.MigrationStatus(ctx, pool, cfg.MigrationPath)
}

func runMigrateDown() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	return db.MigrationDown(ctx, pool, cfg.MigrationPath)
}

func runClear(resourceName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	n, err := db.ClearDocuments(ctx, pool, resourceName)
	if err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	if n >= 0 {
		fmt.Printf("Deleted %d documents of %q.\n", n, resourceName)
	}
	return nil
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	u, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	// Replace path with target database name; query (e.g. sslmode) is kept on u.RawQuery.
	u.Path = "/" + dbName
	if err := db.EnsureDatabase(context.Background(), u.String()); err != nil {
		return err
	}
	fmt.Printf("Database %q is ready.\n", dbName)
	return nil
}

// callArgs is a parsed "call" command line.
type callArgs struct {
	Verb    string
	Request resource.Request
}

func parseCall(args []string) (callArgs, error) {
	if len(args) < 2 {
		return callArgs{}, fmt.Errorf("call: require scope and verb")
	}
	c := callArgs{Verb: args[1]}
	rest := args[2:]
	switch resource.Scope(args[0]) {
	case resource.ScopeCollection:
	case resource.ScopeInstance:
		if len(rest) == 0 {
			return callArgs{}, fmt.Errorf("call instance: require an id")
		}
		id := rest[0]
		c.Request.ID = &id
		rest = rest[1:]
	default:
		return callArgs{}, fmt.Errorf("call: unknown scope %q (use collection, instance)", args[0])
	}
	if len(rest) > 1 {
		return callArgs{}, fmt.Errorf("call: unexpected arguments %q", rest[1:])
	}
	if len(rest) == 1 {
		if !json.Valid([]byte(rest[0])) {
			return callArgs{}, fmt.Errorf("call: body is not valid JSON")
		}
		c.Request.Body = json.RawMessage(rest[0])
	}
	return c, nil
}

func runCall(c callArgs) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-cli")
	if err != nil {
		return fmt.Errorf("connect NATS: %w", err)
	}
	defer nc.Close()

	rc, err := client.New(commsutil.NewNATSBus(nc), cfg.ResourceName, client.WithTimeout(cfg.ClientTimeout))
	if err != nil {
		return err
	}
	result, err := rc.Request(context.Background(), c.Verb, c.Request)
	if err != nil {
		status, msg := resource.StatusOf(err)
		return fmt.Errorf("%d %s", status, msg)
	}
	fmt.Println(string(result))
	return nil
}

func runWatch() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-watch")
	if err != nil {
		return fmt.Errorf("connect NATS: %w", err)
	}
	defer nc.Close()

	rc, err := client.New(commsutil.NewNATSBus(nc), cfg.ResourceName)
	if err != nil {
		return err
	}
	sub, err := rc.Subscribe(func(message json.RawMessage) {
		fmt.Println(string(message))
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

func runSeed(seedFileOverride string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	f, err := seed.Load(seedFileOverride, cfg.SeedFile)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("no seed file found (pass a path or set SEED_FILE)")
	}

	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-seed")
	if err != nil {
		return fmt.Errorf("connect NATS: %w", err)
	}
	defer nc.Close()

	rc, err := client.New(commsutil.NewNATSBus(nc), cfg.ResourceName, client.WithTimeout(cfg.ClientTimeout))
	if err != nil {
		return err
	}
	n, err := f.Apply(context.Background(), cfg.ResourceName, func(ctx context.Context, id string, body json.RawMessage) error {
		_, err := rc.Put(ctx, id, body)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %d documents into %q.\n", n, cfg.ResourceName)
	return nil
}
