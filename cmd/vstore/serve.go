package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/vango-dev/vstore/internal/config"
	"github.com/vango-dev/vstore/internal/demo"
	"github.com/vango-dev/vstore/pkg/middleware"
	"github.com/vango-dev/vstore/pkg/persist"
	"github.com/vango-dev/vstore/pkg/reactive"
	"github.com/vango-dev/vstore/pkg/server"
	"github.com/vango-dev/vstore/pkg/store"
)

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		address string
		backend string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo stores",
		Long: `Serve the demo stores (counter, todos, cart) over HTTP and
WebSocket, restoring and persisting snapshots with the
configured backend.

Examples:
  vstore serve
  vstore serve --address=:9090
  vstore serve --backend=file -c ./vstore.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			if backend != "" {
				cfg.Persist.Backend = backend
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "Listen address (default from config)")
	cmd.Flags().StringVarP(&backend, "backend", "b", "", "Snapshot backend: none, memory, file, redis, postgres, s3, nats")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	printBanner()
	info("listening on %s", cfg.Server.Address)
	fmt.Println()

	registry := store.New(store.WithLogger(logger))
	if err := registry.Install(reactive.NewOwner(nil)); err != nil {
		return err
	}
	defer registry.Dispose()

	var routes []server.Option

	if cfg.Metrics.Enabled {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		registry.Use(middleware.Prometheus(
			middleware.WithRegistry(promReg),
			middleware.WithNamespace(cfg.Metrics.Namespace),
		))
		routes = append(routes, server.WithRoute(cfg.Metrics.Path, promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))
	}

	if cfg.Tracing.Enabled {
		tp := newTracerProvider(logger)
		otel.SetTracerProvider(tp)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
		registry.Use(middleware.OpenTelemetry(
			middleware.WithTracerName(cfg.Name),
			middleware.WithTracerProvider(tp),
			middleware.WithIncludeArgs(cfg.Tracing.IncludeArgs),
		))
	}

	srv := server.New(registry, append(routes,
		server.WithLogger(logger),
		server.WithDefinitions(demo.Definitions(demo.SampleTodos)...),
		server.WithConfig(serverConfig(cfg)),
	)...)

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	if backend != nil {
		persister := persist.NewPersister(backend, cfg.Persist.Key,
			persist.WithRate(cfg.SaveInterval(), cfg.Persist.Burst),
			persist.WithPersistLogger(logger),
			persist.WithLocker(srv.Locker()),
		)
		if cfg.Persist.Restore {
			found, err := persister.Restore(ctx, registry)
			if err != nil {
				return err
			}
			if found {
				success("Restored snapshot %q from %s", cfg.Persist.Key, cfg.Persist.Backend)
			}
		}
		registry.Use(persister.Plugin())

		go persister.Run(ctx, cfg.SaveInterval())
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := persister.Close(closeCtx); err != nil {
				logger.Error("final snapshot failed", "error", err)
			}
		}()
	} else {
		warn("persistence is off; state is lost on exit")
	}

	return srv.Run(ctx)
}

// serverConfig maps the server section onto server.Config.
func serverConfig(cfg *config.Config) *server.Config {
	sc := server.DefaultConfig()
	sc.Address = cfg.Server.Address
	sc.ShutdownTimeout = cfg.ShutdownTimeout()
	sc.SendBuffer = cfg.Server.SendBuffer

	origins := cfg.Server.AllowedOrigins
	if len(origins) > 0 {
		sc.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(origins, "*") {
				return true
			}
			return slices.Contains(origins, origin) || origin == "http://"+r.Host || origin == "https://"+r.Host
		}
	}
	return sc
}
