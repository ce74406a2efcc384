/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave request engine. Handles configuration,
  dependency injection, and graceful shutdown.

COMMANDS:
  leave-engine serve     Run the HTTP API
  leave-engine migrate   Apply the schema; --seed writes the catalog to leave_types
  leave-engine catalog   Print the effective catalog as YAML

GLOBAL FLAGS:
  --config       Config file (default: ./leave.yaml, ~/.config/leave-engine/leave.yaml)
  --log-level    trace, debug, info, warn, error
  --log-format   console or json

CONFIGURATION PRECEDENCE:
  defaults < config file < LEAVE_* environment < flags

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdown_timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with a file database
  leave-engine serve --db ./data/leave.db

  # Run in memory on another port
  leave-engine serve --db :memory: --port 3000

  # Seed a customised catalog
  leave-engine migrate --seed --catalog ./catalog.yaml

SEE ALSO:
  - api/server.go: Router configuration
  - config/loader.go: Configuration loading
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flpliao/lovable-clock-flow-sub004/config"
	"github.com/flpliao/lovable-clock-flow-sub004/logging"
)

// Version information (set at build time)
var version = "dev"

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "leave-engine",
		Short:         "Leave request validation and approval service",
		Long:          "leave-engine validates leave requests, routes them up the supervisor chain and records approved usage.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file path")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format (console, json)")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newCatalogCmd(opts),
	)
	return cmd
}

// load reads configuration, applies overrides and initializes logging.
func (o *rootOptions) load(overrides map[string]any) (*config.Config, error) {
	loader := config.NewLoader()
	if o.configFile != "" {
		loader.SetConfigFile(o.configFile)
	}
	if o.logLevel != "" {
		loader.Set("logging.level", o.logLevel)
	}
	if o.logFormat != "" {
		loader.Set("logging.format", o.logFormat)
	}
	for k, v := range overrides {
		loader.Set(k, v)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       os.Stderr,
		EnableCaller: cfg.Logging.EnableCaller,
	})
	if used := loader.ConfigFileUsed(); used != "" {
		logging.Component("config").Debug().Str("file", used).Msg("configuration loaded")
	}
	return cfg, nil
}
