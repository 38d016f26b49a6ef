package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alarmd/alarmd/internal/config"
	"github.com/alarmd/alarmd/internal/logger"
	"github.com/alarmd/alarmd/internal/service/daemon"
	"github.com/alarmd/alarmd/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// databasePath overrides the alarm database location.
	databasePath string
	// redisAddress overrides the broadcast Redis address.
	redisAddress string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command for running the alarm daemon.
	rootCmd = &cobra.Command{
		Use:   "alarmd [listen-address]",
		Short: "Run the alarm daemon.",
		Long: `Starts the alarm daemon that schedules alarms, persists them to SQLite,
and broadcasts ringing signals to subscribers.

The daemon listens for JSON control commands from alarmctl on the configured
TCP address. Listen address can be provided as argument to override config
(e.g., :9090, 127.0.0.1:8385). Alarms survive restarts: on startup every
persisted alarm is restored to its previous lifecycle state.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &daemon.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				DatabasePath:  databasePath,
				RedisAddress:  redisAddress,
			}

			return daemon.Run(ctx, options)
		},
	}
)

// Execute runs the alarmd CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&databasePath, "database", "d", "", "path to the alarm database (overrides config)")
	rootCmd.Flags().StringVar(&redisAddress, "redis", "", "redis address for signal broadcasts (overrides config)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error, fatal")
}
