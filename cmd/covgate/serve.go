package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/covgate/config"
	"github.com/hazyhaar/covgate/coverage"
	"github.com/hazyhaar/covgate/dbopen"
	"github.com/hazyhaar/covgate/metrics"
	"github.com/hazyhaar/covgate/shield"
	"github.com/hazyhaar/covgate/trace"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the coverage HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			level := new(slog.LevelVar)
			lvl, _ := config.ParseLevel(cfg.Server.LogLevel)
			level.Set(lvl)
			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)

			return serve(cmd.Context(), cfg, path, level, logger, nil)
		},
	}
}

// app is the wired server: the coverage service behind the shield stack,
// plus /metrics and the optional /mcp endpoint.
type app struct {
	svc     *coverage.Service
	reg     *metrics.Registry
	handler http.Handler
}

func newApp(cfg *config.Config, logger *slog.Logger, version string) (*app, error) {
	reg := metrics.New()

	opts := []coverage.Option{coverage.WithMetrics(reg)}
	if cfg.Server.TraceSQL {
		statements := reg.Counter("covgate_sql_statements_total", "Ledger SQL statements by outcome.", "outcome")
		trace.SetRecorder(trace.RecorderFunc(func(e *trace.Entry) {
			if e.Error != "" {
				statements.Inc("error")
				return
			}
			statements.Inc("ok")
		}))
		opts = append(opts, coverage.WithDBOptions(dbopen.WithTrace()))
	}

	svc, err := coverage.New(&cfg.Coverage, logger, opts...)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(cfg.Server.MaxBodyBytes) {
		r.Use(mw)
	}
	svc.RegisterHTTP(r)
	r.Handle("/metrics", reg.Handler())

	if cfg.Server.MCPEnabled {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "covgate", Version: version}, nil)
		svc.RegisterMCP(mcpSrv)
		h := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil)
		r.Handle("/mcp", h)
		r.Handle("/mcp/*", h)
	}

	return &app{svc: svc, reg: reg, handler: r}, nil
}

// serve runs the HTTP server until ctx is cancelled, then drains it within
// the configured shutdown timeout. When ready is non-nil the bound address
// is sent on it once the listener is open.
func serve(ctx context.Context, cfg *config.Config, configPath string, level *slog.LevelVar, logger *slog.Logger, ready chan<- string) error {
	a, err := newApp(cfg, logger, version)
	if err != nil {
		return err
	}
	defer a.svc.Close()

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "addr", ln.Addr().String(), "db", cfg.Coverage.DBPath, "mcp", cfg.Server.MCPEnabled)
		if ready != nil {
			ready <- ln.Addr().String()
		}
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if configPath != "" {
		// Only the log level is applied live; other changes need a restart.
		g.Go(func() error {
			err := config.Watch(gctx, configPath, func(next *config.Config) {
				lvl, err := config.ParseLevel(next.Server.LogLevel)
				if err != nil {
					return
				}
				if lvl != level.Level() {
					level.Set(lvl)
					logger.Info("log level changed", "level", lvl.String())
				}
			})
			if err != nil {
				logger.Warn("config watch stopped", "path", configPath, "error", err)
			}
			return nil
		})
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}
