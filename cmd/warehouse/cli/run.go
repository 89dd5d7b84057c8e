package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sevensea/warehouse/internal/app"
	"github.com/sevensea/warehouse/internal/platform/cache"
	"github.com/sevensea/warehouse/internal/platform/db"
)

const usage = `usage: warehouse [command]

commands:
  migrate                      apply database migrations
  seed [--password] [--domain] create default accounts on an empty store
  jobs trigger <name>          enqueue billing:overdue_sweep or inventory:low_stock_scan
  jobs stats [--json]          print default queue statistics

without a command the HTTP server starts`

// Run dispatches a maintenance command and returns the process exit code.
func Run(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, usage)
		return 2
	}
	switch args[0] {
	case "migrate":
		if cfg.StoreDriver != app.StorePostgres {
			_, _ = fmt.Fprintf(stderr, "migrate: store driver %s has no schema\n", cfg.StoreDriver)
			return 1
		}
		if err := db.Migrate(ctx, cfg.PGDSN); err != nil {
			_, _ = fmt.Fprintf(stderr, "migrate: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(stdout, "migrations applied")
		return 0
	case "seed":
		return runSeed(ctx, cfg, logger, args[1:], stdout, stderr)
	case "jobs":
		return runJobs(ctx, cfg, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		_, _ = fmt.Fprintln(stdout, usage)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n%s\n", args[0], usage)
		return 2
	}
}

func runSeed(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stderr)
	password := fs.String("password", cfg.SeedPassword, "password for the seeded accounts")
	domain := fs.String("domain", cfg.SeedEmailDomain, "email domain for the seeded accounts")
	jsonOut := fs.Bool("json", false, "print a JSON summary")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var redisClient *redis.Client
	if cfg.StoreDriver == app.StoreRedis {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "seed: %v\n", err)
			return 1
		}
		defer client.Close()
		redisClient = client
	}
	store, pool, err := app.OpenStore(ctx, cfg, redisClient)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "seed: %v\n", err)
		return 1
	}
	if pool != nil {
		defer pool.Close()
	}
	services := app.NewServices(app.Dependencies{Config: cfg, Logger: logger, Store: store, Pool: pool})
	return SeedCommand(ctx, services.Users, SeedOptions{
		Password:   *password,
		Domain:     *domain,
		JSONOutput: *jsonOut,
		Stdout:     stdout,
		Stderr:     stderr,
	})
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, usage)
		return 2
	}
	jobsCLI, err := NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs: %v\n", err)
		return 1
	}
	defer jobsCLI.Close()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			_, _ = fmt.Fprintln(stderr, "jobs trigger: job name required")
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	case "stats":
		fs := flag.NewFlagSet("jobs stats", flag.ContinueOnError)
		fs.SetOutput(stderr)
		jsonOut := fs.Bool("json", false, "print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return 1
		}
		if *jsonOut {
			_ = json.NewEncoder(stdout).Encode(stats)
			return 0
		}
		_, _ = fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "jobs: unknown subcommand %q\n", args[0])
		return 2
	}
}
