package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flpliao/lovable-clock-flow-sub004/api"
	"github.com/flpliao/lovable-clock-flow-sub004/config"
	"github.com/flpliao/lovable-clock-flow-sub004/factory"
	"github.com/flpliao/lovable-clock-flow-sub004/logging"
	"github.com/flpliao/lovable-clock-flow-sub004/store/sqlite"
	"github.com/flpliao/lovable-clock-flow-sub004/timeoff"
)

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port    int
		dbPath  string
		catalog string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]any{}
			if cmd.Flags().Changed("port") {
				overrides["server.port"] = port
			}
			if cmd.Flags().Changed("db") {
				overrides["database.path"] = dbPath
			}
			if cmd.Flags().Changed("catalog") {
				overrides["leave.catalog_file"] = catalog
			}
			cfg, err := root.load(overrides)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (\":memory:\" for in-memory)")
	cmd.Flags().StringVar(&catalog, "catalog", "", "Leave-type catalog file (YAML or JSON)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.Component("server")

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Fail fast on a broken catalog file; the handler reloads it later.
	catalog, err := factory.LoadCatalog(cfg.Leave.CatalogFile)
	if err != nil {
		return err
	}

	engine := timeoff.NewEngine(catalog, decimal.NewFromInt(int64(cfg.Leave.HoursPerDay)))
	svc := timeoff.NewRequestService(store, engine)
	svc.MaxEscalationDepth = cfg.Leave.MaxEscalationDepth
	svc.SimpleFallback = cfg.Leave.SimpleHoursFallback

	// Initialize handler
	handler := api.NewHandler(store, svc)
	handler.CatalogFile = cfg.Leave.CatalogFile
	handler.CatalogTTL = cfg.Leave.CatalogCacheTTL

	router := api.NewRouter(handler, api.RouterOptions{CORSOrigins: cfg.Server.CORSOrigins})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.Server.Port).
			Str("database", cfg.Database.Path).
			Int("leave_types", len(catalog.All())).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// =============================================================================
// MIGRATE
// =============================================================================

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var (
		dbPath  string
		catalog string
		seed    bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  "Apply the database schema. With --seed, write the effective catalog into the leave_types table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]any{}
			if cmd.Flags().Changed("db") {
				overrides["database.path"] = dbPath
			}
			if cmd.Flags().Changed("catalog") {
				overrides["leave.catalog_file"] = catalog
			}
			cfg, err := root.load(overrides)
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			store, err := sqlite.New(cfg.Database.Path)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer store.Close()

			logger := logging.Component("migrate")
			logger.Info().Str("database", cfg.Database.Path).Msg("schema applied")
			if !seed {
				return nil
			}

			c, err := factory.LoadCatalog(cfg.Leave.CatalogFile)
			if err != nil {
				return err
			}
			if err := store.SaveLeaveTypes(cmd.Context(), c.All()); err != nil {
				return err
			}
			logger.Info().Int("leave_types", len(c.All())).Msg("catalog seeded")
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	cmd.Flags().StringVar(&catalog, "catalog", "", "Leave-type catalog file to seed")
	cmd.Flags().BoolVar(&seed, "seed", false, "Write the catalog into leave_types")
	return cmd
}

// =============================================================================
// CATALOG
// =============================================================================

func newCatalogCmd(root *rootOptions) *cobra.Command {
	var catalog string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the effective leave-type catalog as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := map[string]any{}
			if cmd.Flags().Changed("catalog") {
				overrides["leave.catalog_file"] = catalog
			}
			cfg, err := root.load(overrides)
			if err != nil {
				return err
			}
			c, err := factory.LoadCatalog(cfg.Leave.CatalogFile)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(factory.ToFile(c))
		},
	}
	cmd.Flags().StringVar(&catalog, "catalog", "", "Leave-type catalog file (YAML or JSON)")
	return cmd
}
