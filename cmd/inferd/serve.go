package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"inferd/internal/health"
	"inferd/internal/httpapi"
	"inferd/internal/manager"
)

var _ httpapi.Service = (*manager.Manager)(nil)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and optional gRPC health endpoint)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, nil)
		},
	}
	f := cmd.Flags()
	f.String("addr", "", "HTTP listen address, e.g. :8080")
	f.String("grpc-addr", "", "gRPC health listen address (disabled when empty)")
	f.Int("capacity", 0, "maximum number of resident models")
	f.Int("batch-chunk", 0, "maximum concurrent predictions per batch")
	f.Int("shard-concurrency", 0, "maximum parallel weight shard downloads per load")
	f.Bool("warmup", true, "run a warmup inference after each load")
	f.String("http-log-level", "", "per-request log level: off, error, info, debug")
	f.Int64("max-body-bytes", 0, "maximum JSON request body size")
	f.String("predict-timeout", "", "timeout for predict and batch requests, e.g. 30s")
	f.Bool("cors", false, "enable CORS")
	f.String("cors-origins", "", "comma-separated allowed CORS origins")
	for key, name := range map[string]string{
		"addr":              "addr",
		"grpc_addr":         "grpc-addr",
		"cache_capacity":    "capacity",
		"batch_chunk_size":  "batch-chunk",
		"shard_concurrency": "shard-concurrency",
		"http_log_level":    "http-log-level",
		"max_body_bytes":    "max-body-bytes",
		"predict_timeout":   "predict-timeout",
		"cors.enabled":      "cors",
	} {
		_ = a.v.BindPFlag(key, f.Lookup(name))
	}
	return cmd
}

// serve runs until ctx is done. When ready is non-nil it receives the bound
// HTTP address once the listener is up.
func (a *app) serve(ctx context.Context, ready chan<- string) error {
	cfg, log := a.cfg, a.log

	cat, err := buildCatalog(ctx, cfg, log)
	if err != nil {
		return err
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Catalog:        cat,
		Loader:         buildLoader(ctx, cfg, log),
		Capacity:       cfg.CacheCapacity,
		BatchChunkSize: cfg.BatchChunkSize,
		Warmup:         cfg.Warmup,
		Logger:         &log,
		Registerer:     prometheus.DefaultRegisterer,
	})

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	mux := httpapi.NewMux(mgr,
		httpapi.WithLogger(log, cfg.HTTPLogLevel),
		httpapi.WithMaxBodyBytes(cfg.MaxBodyBytes),
		httpapi.WithPredictTimeout(cfg.PredictTimeoutDuration()),
		httpapi.WithBaseContext(baseCtx),
		httpapi.WithCORS(httpapi.CORSOptions{
			Enabled:        cfg.CORS.Enabled,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			AllowedMethods: cfg.CORS.AllowedMethods,
			AllowedHeaders: cfg.CORS.AllowedHeaders,
		}),
	)

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 2)
	go func() {
		log.Info().Str("addr", lis.Addr().String()).Int("models", cat.Len()).Int("capacity", cfg.CacheCapacity).Msg("inferd listening")
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var hs *health.Server
	if cfg.GRPCAddr != "" {
		glis, gerr := net.Listen("tcp", cfg.GRPCAddr)
		if gerr != nil {
			errc <- fmt.Errorf("grpc listen: %w", gerr)
		} else {
			hs = health.New(mgr, log)
			go hs.Watch(baseCtx, time.Second)
			go func() {
				if err := hs.Serve(glis); err != nil {
					errc <- err
				}
			}()
		}
	}
	if ready != nil && len(errc) == 0 {
		ready <- lis.Addr().String()
	}

	select {
	case err = <-errc:
	default:
		select {
		case <-ctx.Done():
		case err = <-errc:
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("server error")
	}

	// Graceful shutdown: stop accepting HTTP, drain the cache, then health.
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeoutDuration())
	defer cancel()
	if serr := srv.Shutdown(sctx); serr != nil {
		log.Warn().Err(serr).Msg("graceful shutdown error")
	}
	if serr := mgr.Shutdown(sctx); serr != nil {
		log.Warn().Err(serr).Msg("manager shutdown")
	}
	cancelBase()
	if hs != nil {
		hs.Refresh()
		hs.Stop()
	}
	log.Info().Msg("inferd stopped")
	return err
}
