package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/alarmd/alarmd/internal/config"
	"github.com/alarmd/alarmd/internal/logger"
	"github.com/alarmd/alarmd/internal/protocol"
)

// Options configures a single control command sent to the alarm daemon.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides the daemon address from config when specified.
	ServerAddress string
	// Command is the message type to send.
	Command string
	// AlarmID targets a single alarm for commands that need one.
	AlarmID int
	// Hour and Minute carry the optional custom snooze time.
	Hour *int
	// Minute is the minute component of the custom snooze time.
	Minute *int
	// Alarm carries the replacement settings for the change command.
	Alarm *protocol.Alarm
	// Minutes carries the new offset for set-prealarm-duration.
	Minutes int
	// Output receives the formatted reply; defaults to stdout.
	Output io.Writer
}

// dialTimeout bounds the whole request/reply exchange.
const dialTimeout = 10 * time.Second

// errCommandFailed is returned when the daemon reports an error reply.
var errCommandFailed = errors.New("command failed")

// Run sends one command to the daemon and prints the resulting alarm list.
func Run(ctx context.Context, opts *Options) error {
	result, err := Do(ctx, opts)
	if err != nil {
		return err
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}

	printResult(output, result)

	return nil
}

// Do sends one command to the daemon and returns the decoded result.
func Do(ctx context.Context, opts *Options) (*protocol.Result, error) {
	ctx = logger.WithName(ctx, "alarmctl")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	serverAddress := cfg.ListenAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	request, err := buildRequest(opts)
	if err != nil {
		return nil, err
	}

	return exchange(ctx, serverAddress, request)
}

// buildRequest assembles the wire message from the parsed flags.
func buildRequest(opts *Options) (*protocol.Message, error) {
	switch opts.Command {
	case protocol.CommandList, protocol.CommandCreate, protocol.CommandTimeSet:
		return protocol.Encode(opts.Command, nil)

	case protocol.CommandSnooze:
		return protocol.Encode(opts.Command, &protocol.SnoozeRequest{
			ID:     opts.AlarmID,
			Hour:   opts.Hour,
			Minute: opts.Minute,
		})

	case protocol.CommandChange:
		if opts.Alarm == nil {
			return nil, errors.New("change requires alarm settings")
		}

		return protocol.Encode(opts.Command, &protocol.ChangeRequest{Alarm: *opts.Alarm})

	case protocol.CommandSetPrealarmDuration:
		return protocol.Encode(opts.Command, &protocol.PrealarmDurationRequest{Minutes: opts.Minutes})

	default:
		return protocol.Encode(opts.Command, &protocol.TargetRequest{ID: opts.AlarmID})
	}
}

// exchange performs one request/reply round trip.
func exchange(ctx context.Context, address string, request *protocol.Message) (*protocol.Result, error) {
	dialer := net.Dialer{Timeout: dialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(dialTimeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}

	var reply protocol.Message
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}

	var result protocol.Result
	if len(reply.Data) > 0 {
		if err := json.Unmarshal(reply.Data, &result); err != nil {
			return nil, fmt.Errorf("decode reply: %w", err)
		}
	}

	if reply.Type != protocol.ReplyOK {
		if result.Error != "" {
			return nil, fmt.Errorf("%w: %s", errCommandFailed, result.Error)
		}

		return nil, errCommandFailed
	}

	return &result, nil
}

// printResult renders the reply as a readable alarm table.
func printResult(output io.Writer, result *protocol.Result) {
	if len(result.Alarms) == 0 {
		fmt.Fprintln(output, "no alarms")

		return
	}

	for _, a := range result.Alarms {
		fmt.Fprintln(output, formatAlarm(a))
	}
}

// formatAlarm converts one wire alarm to a single readable line.
func formatAlarm(a protocol.Alarm) string {
	status := "off"
	if a.IsEnabled {
		status = "on"
	}

	line := fmt.Sprintf("#%d %02d:%02d [%s] %s (%s)", a.ID, a.Hour, a.Minutes, status, a.Label, a.State)

	if a.NextTime != "" {
		line += " next " + a.NextTime
	}

	if a.Skipping {
		line += " skipping"
	}

	return line
}
