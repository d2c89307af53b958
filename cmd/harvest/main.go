// harvest fetches course listings in regional batches, caches them and
// merges the fresh batches into one deduplicated dataset.
//
// Usage:
//
//	harvest batches
//	harvest run --batch 3 [--force]
//	harvest run-all [--force]
//	harvest merge
//	harvest export --out courses.csv [--upload]
//	harvest serve [--addr :8080] [--refresh-interval 6h]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"course-harvest/internal/config"
	"course-harvest/internal/logging"
	"course-harvest/internal/service"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "harvest",
		Usage:   "Batch course scraping, caching and merge",
		Version: version,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"HARVEST_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "store",
				Value:   config.StoreMemory,
				Usage:   "Storage backend (memory, sqlite, postgres)",
				EnvVars: []string{"HARVEST_STORE"},
			},
			&cli.StringFlag{
				Name:    "sources",
				Usage:   "YAML file with batch definitions (default: built-in batches)",
				EnvVars: []string{"HARVEST_SOURCES_FILE"},
			},
		},

		Commands: []*cli.Command{
			batchesCommand(),
			runCommand(),
			runAllCommand(),
			mergeCommand(),
			pruneCommand(),
			exportCommand(),
			serveCommand(),
		},
	}
}

// env carries what every command needs.
type env struct {
	cfg   config.Config
	log   *zap.Logger
	svc   *service.Service
	close func()
}

// setup loads config, applies global flags and wires the service.
func setup(c *cli.Context) (*env, error) {
	cfg := config.Load()
	if v := c.String("store"); v != "" {
		cfg.Store = strings.ToLower(v)
	}
	if v := c.String("sources"); v != "" {
		cfg.SourcesFile = v
	}
	if v := c.String("log-level"); v != "" {
		cfg.LogLevel = v
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	restore := logging.Install(log)

	svc, closeStores, err := buildService(c.Context, cfg, log)
	if err != nil {
		restore()
		return nil, err
	}
	return &env{
		cfg: cfg,
		log: log,
		svc: svc,
		close: func() {
			closeStores()
			restore()
		},
	}, nil
}

// withEnv wraps a command action with setup and teardown.
func withEnv(fn func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := setup(c)
		if err != nil {
			return err
		}
		defer e.close()
		return fn(c, e)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
