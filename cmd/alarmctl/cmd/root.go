package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alarmd/alarmd/internal/config"
	"github.com/alarmd/alarmd/internal/protocol"
	"github.com/alarmd/alarmd/internal/service/client"
	"github.com/alarmd/alarmd/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// serverAddress overrides the daemon address from config.
	serverAddress string

	// rootCmd represents the base command for controlling the alarm daemon.
	rootCmd = &cobra.Command{
		Use:   "alarmctl",
		Short: "Control the alarm daemon.",
		Long: `Sends control commands to a running alarm daemon and prints the
resulting alarm list. Each invocation performs one command over TCP.`,
	}
)

// Execute runs the alarmctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run sends one prepared command to the daemon.
func run(opts *client.Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	opts.ConfigPath = configPath
	opts.ServerAddress = serverAddress

	return client.Run(ctx, opts)
}

// parseAlarmID converts the positional alarm id argument.
func parseAlarmID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid alarm id %q: %w", arg, err)
	}

	return id, nil
}

// newTargetCommand builds a subcommand that addresses one alarm by id.
func newTargetCommand(use, short, commandType string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <alarm-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := parseAlarmID(args[0])
			if err != nil {
				return err
			}

			return run(&client.Options{Command: commandType, AlarmID: id})
		},
	}
}

// newSnoozeCommand builds the snooze subcommand with its optional time.
func newSnoozeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "snooze <alarm-id> [hh:mm]",
		Short: "Postpone a ringing alarm.",
		Long: `Postpones a ringing alarm by the configured snooze interval, or until
the given time of day when hh:mm is provided.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := parseAlarmID(args[0])
			if err != nil {
				return err
			}

			opts := &client.Options{Command: protocol.CommandSnooze, AlarmID: id}

			if len(args) > 1 {
				hour, minute, err := parseClockTime(args[1])
				if err != nil {
					return err
				}

				opts.Hour = &hour
				opts.Minute = &minute
			}

			return run(opts)
		},
	}
}

// parseClockTime parses an hh:mm argument.
func parseClockTime(arg string) (hour, minute int, err error) {
	parts := strings.SplitN(arg, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected hh:mm", arg)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", arg)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", arg)
	}

	return hour, minute, nil
}

// newPrealarmDurationCommand builds the pre-alarm offset subcommand.
func newPrealarmDurationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-prealarm-duration <minutes>",
		Short: "Set how long before the main alarm the pre-alarm sounds.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid minutes %q: %w", args[0], err)
			}

			return run(&client.Options{Command: protocol.CommandSetPrealarmDuration, Minutes: minutes})
		},
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "s", "", "daemon address (overrides config)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print all alarms.",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return run(&client.Options{Command: protocol.CommandList})
			},
		},
		&cobra.Command{
			Use:   "create",
			Short: "Create a new alarm with default settings.",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return run(&client.Options{Command: protocol.CommandCreate})
			},
		},
		&cobra.Command{
			Use:   "time-set",
			Short: "Tell the daemon the wall clock changed.",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return run(&client.Options{Command: protocol.CommandTimeSet})
			},
		},
		newChangeCommand(),
		newSnoozeCommand(),
		newPrealarmDurationCommand(),
		newTargetCommand("enable", "Turn an alarm on.", protocol.CommandEnable),
		newTargetCommand("disable", "Turn an alarm off.", protocol.CommandDisable),
		newTargetCommand("delete", "Remove an alarm.", protocol.CommandDelete),
		newTargetCommand("dismiss", "Stop a ringing alarm or cancel its snooze.", protocol.CommandDismiss),
		newTargetCommand("skip", "Toggle skipping of the next occurrence.", protocol.CommandSkip),
		newTargetCommand("mute", "Silence a ringing alarm without dismissing it.", protocol.CommandMute),
		newTargetCommand("demute", "Restore the sound of a muted ringing alarm.", protocol.CommandDemute),
		newTargetCommand("refresh", "Recompute an alarm's schedule.", protocol.CommandRefresh),
	)
}
