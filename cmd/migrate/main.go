package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/storage/postgres"
)

const envPostgresDSN = "FOODORDER_POSTGRES_DSN"

type direction string

const (
	directionUp     direction = "up"
	directionDown   direction = "down"
	directionStatus direction = "status"
)

type config struct {
	dsn       string
	direction direction
	steps     int
	timeout   time.Duration
}

// migrator — часть postgres.Store, нужная утилите.
type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (postgres.MigrationState, error)
	Close() error
}

var openStore = func(ctx context.Context, dsn string) (migrator, error) {
	return postgres.Open(ctx, dsn)
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := parseConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		log.WithError(err).Fatal("invalid arguments")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.WithError(err).WithField("direction", cfg.direction).Fatal("migration failed")
	}
}

func parseConfig(args []string, lookup func(string) (string, bool)) (config, error) {
	var (
		cfg config
		dir string
	)

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.StringVar(&dir, "direction", string(directionUp), "up|down|status")
	fs.IntVar(&cfg.steps, "steps", 0, "migrations to apply or roll back; 0 means all for up and one for down")
	fs.StringVar(&cfg.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	fs.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "deadline for the whole run")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	cfg.dsn = strings.TrimSpace(cfg.dsn)
	if cfg.dsn == "" {
		env, _ := lookup(envPostgresDSN)
		cfg.dsn = strings.TrimSpace(env)
	}
	cfg.direction = direction(strings.ToLower(strings.TrimSpace(dir)))

	switch {
	case cfg.dsn == "":
		return config{}, fmt.Errorf("%s (or -dsn) is required", envPostgresDSN)
	case cfg.direction != directionUp && cfg.direction != directionDown && cfg.direction != directionStatus:
		return config{}, fmt.Errorf("unsupported direction %q (use up|down|status)", dir)
	case cfg.steps < 0:
		return config{}, errors.New("steps must be >= 0")
	case cfg.timeout <= 0:
		return config{}, errors.New("timeout must be > 0")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config, out io.Writer) error {
	store, err := openStore(ctx, cfg.dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer func() { _ = store.Close() }()

	switch cfg.direction {
	case directionUp:
		err = store.MigrateUp(ctx, cfg.steps)
	case directionDown:
		err = store.MigrateDown(ctx, cfg.steps)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", cfg.direction, err)
	}

	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("read migration status: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: version=%d applied=%d pending=%d\n", cfg.direction, state.Version, state.Applied, state.Pending)
	return err
}
