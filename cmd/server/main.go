// Package main is the entry point for the ingestion server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"aida/internal/app"
	"aida/internal/blob"
	"aida/internal/config"
	internaldb "aida/internal/db"
)

const (
	readPoolSize    = 8
	shutdownTimeout = 10 * time.Second
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "aida-server",
		Short:         "Authenticated CSV/SQL ingestion server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), f)
		},
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "", "YAML config file (default $AIDA_CONFIG)")
	root.PersistentFlags().StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the orphan janitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), f)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply metastore migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context(), f)
		},
	})
	return root
}

func loadConfig(f *flags) (*config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(f.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger := newLogger(cfg)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	return cfg, logger, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func migrate(ctx context.Context, f *flags) error {
	cfg, logger, err := loadConfig(f)
	if err != nil {
		return err
	}
	pools, err := internaldb.OpenPools(cfg.MetaDBPath, 1)
	if err != nil {
		return err
	}
	defer pools.Close() //nolint:errcheck

	v, err := internaldb.Migrate(ctx, pools.Write, logger)
	if err != nil {
		return err
	}
	logger.Info("metastore migrated", "path", cfg.MetaDBPath, "version", v)
	return nil
}

func serve(parent context.Context, f *flags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, logger, err := loadConfig(f)
	if err != nil {
		return err
	}

	pools, err := internaldb.OpenPools(cfg.MetaDBPath, readPoolSize)
	if err != nil {
		return err
	}
	defer pools.Close() //nolint:errcheck
	if _, err := internaldb.Migrate(ctx, pools.Write, logger); err != nil {
		return err
	}

	store, err := blob.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("blob store: %w", err)
	}
	verifier, err := app.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, app.Deps{
		Cfg:      cfg,
		Pools:    pools,
		Store:    store,
		Verifier: verifier,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP API listening", "addr", cfg.ListenAddr, "storage", cfg.Storage.Backend,
			"try", fmt.Sprintf("curl http://%s/healthz", curlHostForListenAddr(cfg.ListenAddr)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return a.Janitor.Run(gctx, cfg.Ingest.JanitorSchedule)
	})
	if a.RateLimiter != nil {
		g.Go(func() error { return a.RateLimiter.Run(gctx) })
	}
	return g.Wait()
}

// curlHostForListenAddr turns a listen address into a host:port a local
// client can dial.
func curlHostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
