package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"course-harvest/internal/httpapi"
	"course-harvest/internal/service"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and optionally refresh all batches periodically",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "Listen address",
				EnvVars: []string{"HARVEST_HTTP_ADDR"},
			},
			&cli.DurationFlag{
				Name:    "refresh-interval",
				Usage:   "Run every batch and merge on this interval (0 disables)",
				EnvVars: []string{"HARVEST_REFRESH_INTERVAL"},
			},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			addr := e.cfg.HTTPAddr
			if v := c.String("addr"); v != "" {
				addr = v
			}
			interval := e.cfg.RefreshInterval
			if c.IsSet("refresh-interval") {
				interval = c.Duration("refresh-interval")
			}
			return serve(c.Context, e, addr, interval)
		}),
	}
}

// serve runs the HTTP server and the refresher until ctx is done or either
// fails.
func serve(ctx context.Context, e *env, addr string, interval time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewRouter(httpapi.NewHandler(e.svc, e.log)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		e.log.Info("serve: HTTP API listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		e.log.Info("serve: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if interval > 0 {
		g.Go(func() error {
			refreshLoop(gCtx, e.svc, interval, e.log)
			return nil
		})
	}

	return g.Wait()
}

// refreshLoop refreshes every batch, merges and prunes on each tick.
// Failures are logged and retried on the next tick.
func refreshLoop(ctx context.Context, svc *service.Service, interval time.Duration, log *zap.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		out, err := svc.RefreshAll(ctx, false)
		if err != nil {
			log.Warn("serve: refresh failed", zap.Error(err))
			continue
		}
		n, err := svc.Prune(ctx)
		if err != nil {
			log.Warn("serve: prune failed", zap.Error(err))
		}
		log.Info("serve: refresh done",
			zap.Int("batches", len(out.Batches)),
			zap.Int("failed", out.Failed),
			zap.Int("merged", out.Merge.TotalRecords),
			zap.Int("pruned", n),
		)
	}
}
