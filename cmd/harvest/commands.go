package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"course-harvest/internal/export"
	"course-harvest/internal/service"
	"course-harvest/internal/sftpclient"
)

func batchesCommand() *cli.Command {
	return &cli.Command{
		Name:  "batches",
		Usage: "List the configured source batches",
		Action: withEnv(func(c *cli.Context, e *env) error {
			w := c.App.Writer
			for _, b := range e.svc.Registry.List() {
				fmt.Fprintf(w, "%d) %s (%d providers)\n", b.Number, b.Name, len(b.Providers))
				for _, p := range b.Providers {
					fmt.Fprintf(w, "   - %s [%s] %s\n", p.Name, p.Slug, p.URL)
				}
			}
			return nil
		}),
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run one batch, serving it from the cache when fresh",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "batch",
				Aliases:  []string{"b"},
				Usage:    "Batch number",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Skip the cache check",
			},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			n := c.Int("batch")
			resp, err := e.svc.Handle(c.Context, service.Request{Batch: &n, ForceRefresh: c.Bool("force")})
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, resp)
		}),
	}
}

func runAllCommand() *cli.Command {
	return &cli.Command{
		Name:  "run-all",
		Usage: "Run every batch on the worker pool, then merge",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Skip the cache check",
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Concurrent batch runs",
				EnvVars: []string{"HARVEST_WORKERS"},
			},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			if c.IsSet("workers") {
				e.svc.Workers = c.Int("workers")
			}
			out, err := e.svc.RefreshAll(c.Context, c.Bool("force"))
			if perr := printJSON(c.App.Writer, out); perr != nil {
				return perr
			}
			return err
		}),
	}
}

func mergeCommand() *cli.Command {
	return &cli.Command{
		Name:  "merge",
		Usage: "Merge all fresh cached batches into the merged store",
		Action: withEnv(func(c *cli.Context, e *env) error {
			resp, err := e.svc.Handle(c.Context, service.Request{MergeAll: true})
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, resp)
		}),
	}
}

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete expired cache entries",
		Action: withEnv(func(c *cli.Context, e *env) error {
			n, err := e.svc.Prune(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "OK: pruned %d expired entries\n", n)
			return nil
		}),
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the merged store as CSV, optionally uploading it via SFTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Usage: "Output file (default: dated name in the current directory)",
			},
			&cli.BoolFlag{
				Name:  "merge",
				Usage: "Run a merge before exporting",
			},
			&cli.BoolFlag{
				Name:  "upload",
				Usage: "Upload the file to SFTP_HOST after writing it",
			},
		},
		Action: withEnv(runExport),
	}
}

func runExport(c *cli.Context, e *env) error {
	ctx := c.Context
	if c.Bool("merge") {
		if _, err := e.svc.MergeAll(ctx); err != nil {
			return err
		}
	}

	recs, err := e.svc.Records(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.WriteRecordsCSV(&buf, recs); err != nil {
		return err
	}

	out := c.String("out")
	if out == "" {
		out = export.FileName(time.Now())
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(c.App.Writer, "OK: wrote %d records to %s\n", len(recs), out)

	if !c.Bool("upload") {
		return nil
	}
	cfg := e.cfg
	remote := filepath.Base(out)
	if err := sftpclient.UploadFile(ctx, sftpclient.Config{
		Host:                  cfg.SFTPHost,
		Port:                  cfg.SFTPPort,
		User:                  cfg.SFTPUser,
		Pass:                  cfg.SFTPPass,
		RemoteDir:             cfg.SFTPDir,
		KnownHostsFile:        cfg.SFTPKnownHosts,
		InsecureIgnoreHostKey: cfg.SFTPInsecureIgnoreHostKey,
	}, out, remote); err != nil {
		return err
	}
	e.log.Info("export: uploaded", zap.String("remote_dir", cfg.SFTPDir), zap.String("file", remote))
	fmt.Fprintf(c.App.Writer, "OK: uploaded %s to %s\n", remote, cfg.SFTPDir)
	return nil
}
