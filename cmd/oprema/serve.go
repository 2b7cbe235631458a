package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/oprema/internal/api"
	"github.com/erazemk/oprema/internal/config"
	"github.com/erazemk/oprema/internal/metrics"
	"github.com/erazemk/oprema/internal/store"
	"github.com/erazemk/oprema/internal/web"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

func serveCmd(a *app) *cobra.Command {
	var (
		addr   string
		driver string
		seed   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("storage") {
				cfg.Storage.Driver = driver
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid configuration: %w", err)
				}
			}
			return runServe(cmd.Context(), cfg, seed)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&driver, "storage", "", "storage driver: json or sqlite (overrides storage.driver)")
	cmd.Flags().BoolVar(&seed, "seed", false, "write sample users and assets into empty collections before serving")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, seed bool) error {
	st, err := store.Open(cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()
	slog.Info("store ready", "driver", cfg.Storage.Driver)

	if seed {
		if _, err := seedStore(ctx, st); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(cfg.Server.UploadsDir, 0o755); err != nil {
		return fmt.Errorf("creating uploads dir: %w", err)
	}

	handler, err := newHandler(cfg, st, metrics.New())
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server started", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	slog.Info("server stopped, closing store")
	return err
}

// newHandler assembles the API, web pages, health and metrics endpoints
// behind the logging middleware.
func newHandler(cfg *config.Config, st store.Store, m *metrics.Metrics) (http.Handler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	apiCfg := api.Config{
		Store:          st,
		UploadsDir:     cfg.Server.UploadsDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		CurrentUserID:  cfg.Identity.CurrentUserID,
		TokenSecret:    cfg.Identity.TokenSecret,
		Location:       loc,
		DefaultPreset:  cfg.DefaultPreset(),
		Metrics:        m,
	}

	webRouter, err := web.NewRouter(web.Config{Config: apiCfg, PublicDir: cfg.Server.PublicDir})
	if err != nil {
		return nil, fmt.Errorf("setting up web router: %w", err)
	}

	// API routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewRouter(apiCfg))
	mux.Handle("GET /healthz", api.Routed(api.Healthz))
	mux.Handle("GET /metrics", api.Routed(m.Handler().ServeHTTP))
	mux.Handle("/", webRouter)

	return api.LoggingMiddleware(m)(mux), nil
}
