package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/alarmd/alarmd/internal/config"
	"github.com/alarmd/alarmd/internal/engine"
	"github.com/alarmd/alarmd/internal/logger"
	"github.com/alarmd/alarmd/internal/protocol"
)

// connectionTimeout bounds a whole request/reply exchange.
const connectionTimeout = 10 * time.Second

var (
	// errUnknownCommand is returned for message types the daemon does not know.
	errUnknownCommand = errors.New("unknown command")
	// errUnknownAlarm is returned when a command targets a missing alarm.
	errUnknownAlarm = errors.New("no such alarm")
)

// service executes decoded commands against the alarm manager. Its methods
// run on the event loop goroutine only.
type service struct {
	// manager owns the alarm instances.
	manager *engine.Manager
	// settings is the live configuration, mutated by preference commands.
	settings *config.Config
	// configPath is where preference changes are persisted.
	configPath string
}

// handleConnection decodes one command, executes it on the event loop, and
// writes the reply.
func handleConnection(ctx context.Context, conn net.Conn, svc *service, submit func(fn func(ctx context.Context))) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(connectionTimeout)); err != nil {
		logger.Errorf(ctx, "Failed to set connection deadline: %v", err)

		return
	}

	var request protocol.Message
	if err := json.NewDecoder(conn).Decode(&request); err != nil {
		logger.Errorf(ctx, "Failed to decode command: %v", err)

		return
	}

	replies := make(chan *protocol.Message, 1)

	submit(func(ctx context.Context) {
		replies <- svc.handleMessage(ctx, &request)
	})

	select {
	case reply := <-replies:
		if err := json.NewEncoder(conn).Encode(reply); err != nil {
			logger.Errorf(ctx, "Failed to write reply: %v", err)
		}
	case <-ctx.Done():
	}
}

// handleMessage executes a single command and builds the reply envelope.
func (s *service) handleMessage(ctx context.Context, request *protocol.Message) *protocol.Message {
	ctx = logger.WithKV(ctx, "command", request.Type)

	logger.Debug(ctx, "Executing command")

	result, err := s.execute(ctx, request)
	if err != nil {
		logger.WarnKV(ctx, "Command failed", "error", err)

		reply, encodeErr := protocol.Encode(protocol.ReplyError, &protocol.Result{Error: err.Error()})
		if encodeErr != nil {
			return &protocol.Message{Type: protocol.ReplyError}
		}

		return reply
	}

	reply, err := protocol.Encode(protocol.ReplyOK, result)
	if err != nil {
		logger.Errorf(ctx, "Failed to encode reply: %v", err)

		return &protocol.Message{Type: protocol.ReplyError}
	}

	return reply
}

// execute dispatches the command to the manager.
//
//nolint:cyclop // One arm per command type keeps the wire surface readable.
func (s *service) execute(ctx context.Context, request *protocol.Message) (*protocol.Result, error) {
	switch request.Type {
	case protocol.CommandList:
		return s.listResult(), nil

	case protocol.CommandCreate:
		created := s.manager.CreateNewAlarm(ctx)
		wire := protocol.FromValue(created.Value())

		result := s.listResult()
		result.Alarm = &wire

		return result, nil

	case protocol.CommandChange:
		return s.executeChange(ctx, request.Data)

	case protocol.CommandSnooze:
		return s.executeSnooze(ctx, request.Data)

	case protocol.CommandEnable:
		return s.executeTarget(ctx, request.Data, (*engine.Alarm).Enable)

	case protocol.CommandDisable:
		return s.executeTarget(ctx, request.Data, (*engine.Alarm).Disable)

	case protocol.CommandDelete:
		return s.executeTarget(ctx, request.Data, (*engine.Alarm).Delete)

	case protocol.CommandDismiss:
		return s.executeTarget(ctx, request.Data, (*engine.Alarm).Dismiss)

	case protocol.CommandSkip:
		return s.executeTarget(ctx, request.Data, (*engine.Alarm).RequestSkip)

	case protocol.CommandMute:
		return s.executeTarget(ctx, request.Data, (*engine.Alarm).Mute)

	case protocol.CommandDemute:
		return s.executeTarget(ctx, request.Data, (*engine.Alarm).Demute)

	case protocol.CommandRefresh:
		return s.executeTarget(ctx, request.Data, (*engine.Alarm).Refresh)

	case protocol.CommandTimeSet:
		s.manager.OnTimeSet(ctx)

		return s.listResult(), nil

	case protocol.CommandSetPrealarmDuration:
		return s.executeSetPrealarmDuration(ctx, request.Data)
	}

	return nil, fmt.Errorf("%w: %q", errUnknownCommand, request.Type)
}

// executeTarget runs a single-alarm operation addressed by id.
func (s *service) executeTarget(ctx context.Context, data json.RawMessage, op func(*engine.Alarm, context.Context)) (*protocol.Result, error) {
	var target protocol.TargetRequest
	if err := json.Unmarshal(data, &target); err != nil {
		return nil, fmt.Errorf("decode target: %w", err)
	}

	instance, ok := s.manager.Alarm(target.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", errUnknownAlarm, target.ID)
	}

	op(instance, ctx)

	result := s.listResult()

	// Deleted alarms have no surviving snapshot to report.
	if survivor, ok := s.manager.Alarm(target.ID); ok {
		wire := protocol.FromValue(survivor.Value())
		result.Alarm = &wire
	}

	return result, nil
}

// executeChange replaces an alarm's settings with the provided snapshot.
func (s *service) executeChange(ctx context.Context, data json.RawMessage) (*protocol.Result, error) {
	var change protocol.ChangeRequest
	if err := json.Unmarshal(data, &change); err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}

	value, err := change.Alarm.ToValue()
	if err != nil {
		return nil, fmt.Errorf("decode alarm: %w", err)
	}

	instance, ok := s.manager.Alarm(value.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", errUnknownAlarm, value.ID)
	}

	instance.Change(ctx, value)

	wire := protocol.FromValue(instance.Value())

	result := s.listResult()
	result.Alarm = &wire

	return result, nil
}

// executeSnooze postpones a ringing alarm, optionally to a custom time of day.
func (s *service) executeSnooze(ctx context.Context, data json.RawMessage) (*protocol.Result, error) {
	var snooze protocol.SnoozeRequest
	if err := json.Unmarshal(data, &snooze); err != nil {
		return nil, fmt.Errorf("decode snooze: %w", err)
	}

	if snooze.Hour != nil && (*snooze.Hour < 0 || *snooze.Hour > 23) {
		return nil, fmt.Errorf("snooze hour %d out of range [0,23]", *snooze.Hour)
	}

	if snooze.Minute != nil && (*snooze.Minute < 0 || *snooze.Minute > 59) {
		return nil, fmt.Errorf("snooze minute %d out of range [0,59]", *snooze.Minute)
	}

	instance, ok := s.manager.Alarm(snooze.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", errUnknownAlarm, snooze.ID)
	}

	if snooze.Hour != nil && snooze.Minute != nil {
		instance.SnoozeTo(ctx, *snooze.Hour, *snooze.Minute)
	} else {
		instance.Snooze(ctx)
	}

	wire := protocol.FromValue(instance.Value())

	result := s.listResult()
	result.Alarm = &wire

	return result, nil
}

// executeSetPrealarmDuration updates the pre-alarm offset, persists it, and
// reschedules every alarm under the new offset.
func (s *service) executeSetPrealarmDuration(ctx context.Context, data json.RawMessage) (*protocol.Result, error) {
	var update protocol.PrealarmDurationRequest
	if err := json.Unmarshal(data, &update); err != nil {
		return nil, fmt.Errorf("decode duration: %w", err)
	}

	if update.Minutes < 0 {
		return nil, errors.New("pre-alarm duration must not be negative")
	}

	s.settings.PrealarmMinutes = update.Minutes

	if err := config.Save(s.configPath, s.settings); err != nil {
		logger.Errorf(ctx, "Failed to persist settings: %v", err)
	}

	s.manager.OnPrealarmDurationChanged(ctx)

	return s.listResult(), nil
}

// listResult snapshots the current alarm list into a reply payload.
func (s *service) listResult() *protocol.Result {
	values := s.manager.Values()

	wire := make([]protocol.Alarm, 0, len(values))
	for _, value := range values {
		wire = append(wire, protocol.FromValue(value))
	}

	return &protocol.Result{Alarms: wire}
}
